package domain

import (
	"slices"
	"time"
)

type EventLevel int

const (
	EVENT_LEVEL_DEBUG EventLevel = iota
	EVENT_LEVEL_INFO
	EVENT_LEVEL_WARN
)

// DecisionEvent is a structured log record emitted by the decision engine.
type DecisionEvent struct {
	Level    EventLevel
	Strategy string
	Message  string
	Fields   map[string]any
}

type DecisionInputs struct {
	Now          time.Time
	BatterySoC   *float64
	CurrentPrice *float64
	Prices       []PricePeriod
	Forecast     []ForecastPeriod
}

type Decision struct {
	Action     Action
	TargetSoC  *float64
	Reason     string
	ActionTime *time.Time
	Events     []DecisionEvent
}

type CostCounters struct {
	DailyCost      float64 `json:"daily_cost"`
	DailySavings   float64 `json:"daily_savings"`
	MonthlyCost    float64 `json:"monthly_cost"`
	MonthlySavings float64 `json:"monthly_savings"`
}

// Snapshot is the published result of one update cycle. It is never modified after Build.
type Snapshot struct {
	Timestamp          time.Time        `json:"timestamp"`
	BatterySoC         *float64         `json:"battery_soc"`
	CurrentPrice       *float64         `json:"current_price"`
	Prices             []PricePeriod    `json:"prices_today"`
	Forecast           []ForecastPeriod `json:"solar_forecast"`
	SolarForecastToday *float64         `json:"solar_forecast_today"`
	NextAction         Action           `json:"next_action"`
	TargetSoC          *float64         `json:"target_soc"`
	DecisionReason     string           `json:"decision_reason"`
	LastActionTime     *time.Time       `json:"last_action_time"`
	NextUpdateTime     time.Time        `json:"next_update_time"`
	UpdateCount        uint64           `json:"update_count"`
	Counters           CostCounters     `json:"counters"`
	Strategy           Strategy         `json:"strategy"`
	AutomationEnabled  bool             `json:"automation_enabled"`
	ManualOverride     bool             `json:"manual_override"`
	DryRun             bool             `json:"dry_run"`
}

type SnapshotBuilder struct {
	snap Snapshot
}

func NewSnapshotBuilder(now time.Time) *SnapshotBuilder {
	return &SnapshotBuilder{
		snap: Snapshot{
			Timestamp:  now,
			NextAction: ACTION_IDLE,
		},
	}
}

func (b *SnapshotBuilder) WithBatterySoC(soc *float64) *SnapshotBuilder {
	b.snap.BatterySoC = copyFloat(soc)
	return b
}

func (b *SnapshotBuilder) WithCurrentPrice(price *float64) *SnapshotBuilder {
	b.snap.CurrentPrice = copyFloat(price)
	return b
}

func (b *SnapshotBuilder) WithPrices(prices []PricePeriod) *SnapshotBuilder {
	b.snap.Prices = slices.Clone(prices)
	return b
}

func (b *SnapshotBuilder) WithForecast(forecast []ForecastPeriod) *SnapshotBuilder {
	b.snap.Forecast = slices.Clone(forecast)
	return b
}

func (b *SnapshotBuilder) WithSolarForecastToday(kwh *float64) *SnapshotBuilder {
	b.snap.SolarForecastToday = copyFloat(kwh)
	return b
}

func (b *SnapshotBuilder) WithConfig(cfg OptimizerConfig) *SnapshotBuilder {
	b.snap.Strategy = cfg.Strategy
	b.snap.AutomationEnabled = cfg.AutomationEnabled
	b.snap.ManualOverride = cfg.ManualOverride
	b.snap.DryRun = cfg.DryRun
	return b
}

func (b *SnapshotBuilder) WithUpdate(count uint64, next time.Time) *SnapshotBuilder {
	b.snap.UpdateCount = count
	b.snap.NextUpdateTime = next
	return b
}

func (b *SnapshotBuilder) WithCounters(c CostCounters) *SnapshotBuilder {
	b.snap.Counters = c
	return b
}

// WithReason records a reason without a decision, leaving the action at IDLE.
func (b *SnapshotBuilder) WithReason(reason string) *SnapshotBuilder {
	b.snap.DecisionReason = reason
	return b
}

func (b *SnapshotBuilder) WithDecision(d Decision) *SnapshotBuilder {
	if d.Action == "" {
		d.Action = ACTION_IDLE
	}
	b.snap.NextAction = d.Action
	b.snap.TargetSoC = copyFloat(d.TargetSoC)
	b.snap.DecisionReason = d.Reason
	if d.ActionTime != nil {
		t := *d.ActionTime
		b.snap.LastActionTime = &t
	}
	return b
}

// Inputs returns what the decision engine needs from the data gathered so far.
func (b *SnapshotBuilder) Inputs() DecisionInputs {
	return DecisionInputs{
		Now:          b.snap.Timestamp,
		BatterySoC:   copyFloat(b.snap.BatterySoC),
		CurrentPrice: copyFloat(b.snap.CurrentPrice),
		Prices:       slices.Clone(b.snap.Prices),
		Forecast:     slices.Clone(b.snap.Forecast),
	}
}

func (b *SnapshotBuilder) Build() Snapshot {
	s := b.snap
	s.BatterySoC = copyFloat(s.BatterySoC)
	s.CurrentPrice = copyFloat(s.CurrentPrice)
	s.SolarForecastToday = copyFloat(s.SolarForecastToday)
	s.TargetSoC = copyFloat(s.TargetSoC)
	s.Prices = slices.Clone(s.Prices)
	s.Forecast = slices.Clone(s.Forecast)
	if s.LastActionTime != nil {
		t := *s.LastActionTime
		s.LastActionTime = &t
	}
	return s
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
