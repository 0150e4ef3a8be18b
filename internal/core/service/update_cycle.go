package service

import (
	"fmt"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DEFAULT_UPDATE_INTERVAL    = 5 * time.Minute
	REASON_AUTOMATION_DISABLED = "automation disabled"
	REASON_MANUAL_OVERRIDE     = "manual override active"
)

// UpdateCycle runs one refresh: read the sources, decide, build the snapshot.
// It is not safe for concurrent use; the optimizer actor serializes calls.
type UpdateCycle struct {
	Soc      port.SocSource
	Forecast port.ForecastSource
	Prices   port.PriceSource
	Engine   port.DecisionEngine
	Interval time.Duration
	Logger   *zap.Logger

	count    uint64
	counters domain.CostCounters
}

var _ port.UpdateCycleDriver = (*UpdateCycle)(nil)

func NewUpdateCycle(soc port.SocSource, forecast port.ForecastSource, prices port.PriceSource,
	engine port.DecisionEngine, interval time.Duration, logger *zap.Logger) *UpdateCycle {
	if interval <= 0 {
		interval = DEFAULT_UPDATE_INTERVAL
	}
	return &UpdateCycle{
		Soc:      soc,
		Forecast: forecast,
		Prices:   prices,
		Engine:   engine,
		Interval: interval,
		Logger:   logger,
	}
}

func (c *UpdateCycle) UpdateCount() uint64 {
	return c.count
}

func (c *UpdateCycle) Run(states port.StateLookup, cfg domain.OptimizerConfig, now time.Time) (snapshot domain.Snapshot, err error) {
	c.count++
	cycle := c.count

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("update cycle #%d failed: %v", cycle, r)
			c.Logger.Error("update cycle failed", zap.Uint64("cycle", cycle), zap.Any("panic", r))
		}
	}()

	if err := cfg.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("update cycle #%d: %w", cycle, err)
	}

	c.Logger.Debug("update cycle start", zap.Uint64("cycle", cycle))

	builder := domain.NewSnapshotBuilder(now).
		WithConfig(cfg).
		WithUpdate(cycle, now.Add(c.Interval)).
		WithCounters(c.counters)

	// each source is read independently so one missing provider never blocks the others
	if c.Soc != nil {
		soc := c.Soc.GetBatterySoC(states)
		if soc == nil {
			c.Logger.Warn("battery soc unavailable", zap.String("entity", c.Soc.SourceEntityId()))
		}
		builder.WithBatterySoC(soc)
	}
	if c.Forecast != nil {
		forecast := c.Forecast.GetForecast(states, now)
		today := c.Forecast.GetSolarToday(states, now)
		c.Logger.Debug("solar forecast loaded", zap.String("entity", c.Forecast.SourceEntityId()),
			zap.Int("periods", len(forecast)), zap.Float64p("today_kwh", today))
		builder.WithForecast(forecast).WithSolarForecastToday(today)
	}
	if c.Prices != nil {
		prices := c.Prices.GetPrices(states, now)
		current := c.Prices.GetCurrentPrice(states)
		c.Logger.Debug("prices loaded", zap.String("entity", c.Prices.SourceEntityId()),
			zap.Int("periods", len(prices)), zap.Float64p("current_price", current))
		builder.WithPrices(prices).WithCurrentPrice(current)
	}

	c.Logger.Info("optimizer run", zap.Uint64("cycle", cycle), zap.String("strategy", string(cfg.Strategy)),
		zap.Bool("automation", cfg.AutomationEnabled), zap.Bool("manual_override", cfg.ManualOverride),
		zap.Bool("dry_run", cfg.DryRun))

	switch {
	case !cfg.AutomationEnabled:
		builder.WithReason(REASON_AUTOMATION_DISABLED)
		c.Logger.Info("optimizer skipped", zap.String("reason", REASON_AUTOMATION_DISABLED))
	case cfg.ManualOverride:
		builder.WithReason(REASON_MANUAL_OVERRIDE)
		c.Logger.Info("optimizer skipped", zap.String("reason", REASON_MANUAL_OVERRIDE))
	default:
		decision := c.Engine.Decide(builder.Inputs(), cfg)
		c.logEvents(decision.Events)
		builder.WithDecision(decision)
		c.dispatch(cfg, decision)
	}

	return builder.Build(), nil
}

// dispatch reports the decision. No inverter command is ever sent, in either mode.
func (c *UpdateCycle) dispatch(cfg domain.OptimizerConfig, d domain.Decision) {
	fields := []zap.Field{
		zap.String("action", string(d.Action)),
		zap.Float64p("target_soc", d.TargetSoC),
		zap.String("reason", d.Reason),
	}
	if cfg.DryRun {
		c.Logger.Info("[DRY RUN] would execute decision", fields...)
	} else {
		c.Logger.Info("executing decision (no inverter control configured)", fields...)
	}
}

func (c *UpdateCycle) logEvents(events []domain.DecisionEvent) {
	for _, ev := range events {
		fields := make([]zap.Field, 0, len(ev.Fields)+1)
		fields = append(fields, zap.String("strategy", ev.Strategy))
		for k, v := range ev.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if ce := c.Logger.Check(eventLevel(ev.Level), ev.Message); ce != nil {
			ce.Write(fields...)
		}
	}
}

func eventLevel(level domain.EventLevel) zapcore.Level {
	switch level {
	case domain.EVENT_LEVEL_DEBUG:
		return zapcore.DebugLevel
	case domain.EVENT_LEVEL_WARN:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
