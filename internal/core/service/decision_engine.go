package service

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"
)

const (
	// fraction of the min..max price spread used for the cheap/expensive bands
	PRICE_BAND_FRACTION = 0.25
	// kW above which a forecast period counts as significant production
	SIGNIFICANT_PV_ESTIMATE_KW = 1.0
	// SOC points kept free below max_soc ahead of solar production
	SELF_CONSUMPTION_HEADROOM   = 20.0
	BALANCED_CHARGE_FACTOR      = 0.9
	BALANCED_DISCHARGE_FACTOR   = 1.1
	REASON_NO_PRICE_DATA        = "No price data available"
	REASON_NO_FUTURE_PRICES     = "No future price entries found"
	REASON_NO_FORECAST_DATA     = "No solar forecast data available"
	REASON_NO_SIGNIFICANT_SOLAR = "No significant solar production expected (all periods < 1.0 kW)"
	REASON_SOC_UNAVAILABLE      = "Battery SOC unavailable"
)

// DefaultDecisionEngine picks the next battery action. Decide is a pure function
// of its arguments; everything it would log is returned as Decision.Events.
type DefaultDecisionEngine struct{}

var _ port.DecisionEngine = (*DefaultDecisionEngine)(nil)

func NewDecisionEngine() *DefaultDecisionEngine {
	return &DefaultDecisionEngine{}
}

func (e *DefaultDecisionEngine) Decide(in domain.DecisionInputs, cfg domain.OptimizerConfig) domain.Decision {
	b := &decisionBuilder{now: in.Now, strategy: "optimizer"}

	if in.BatterySoC != nil && *in.BatterySoC < cfg.MinSoC {
		b.charge(cfg.MinSoC, fmt.Sprintf("Safety override: SOC %.1f%% is below minimum %.0f%%", *in.BatterySoC, cfg.MinSoC))
		b.info("SAFETY OVERRIDE", map[string]any{"soc": *in.BatterySoC, "min_soc": cfg.MinSoC, "target_soc": cfg.MinSoC})
		return b.result()
	}

	b.strategy = string(cfg.Strategy)
	switch cfg.Strategy {
	case domain.STRATEGY_MINIMIZE_COST:
		minimizeCost(b, in, cfg)
	case domain.STRATEGY_MAXIMIZE_SELF_CONSUMPTION:
		maximizeSelfConsumption(b, in, cfg)
	case domain.STRATEGY_GRID_INDEPENDENCE:
		gridIndependence(b, in, cfg)
	case domain.STRATEGY_BALANCED:
		balanced(b, in, cfg)
	default:
		b.idle(fmt.Sprintf("Unknown strategy %q", cfg.Strategy))
		b.warn("unknown strategy", nil)
	}
	return b.result()
}

func minimizeCost(b *decisionBuilder, in domain.DecisionInputs, cfg domain.OptimizerConfig) {
	if len(in.Prices) == 0 {
		b.idle(REASON_NO_PRICE_DATA)
		b.info("no price data", nil)
		return
	}
	future := futurePrices(in.Prices, in.Now)
	if len(future) == 0 {
		b.idle(REASON_NO_FUTURE_PRICES)
		b.info("no future prices", nil)
		return
	}

	byPrice := slices.Clone(future)
	slices.SortStableFunc(byPrice, func(a, b domain.PricePeriod) int {
		return cmp.Compare(a.Price, b.Price)
	})
	lowest := byPrice[0].Price
	highest := byPrice[len(byPrice)-1].Price
	spread := highest - lowest
	cheap := lowest + spread*PRICE_BAND_FRACTION
	expensive := highest - spread*PRICE_BAND_FRACTION
	current := valueOr(in.CurrentPrice, 0)
	soc := in.BatterySoC

	b.info("inputs", map[string]any{
		"current_price":       current,
		"lowest_price":        lowest,
		"highest_price":       highest,
		"cheap_threshold":     cheap,
		"expensive_threshold": expensive,
		"soc":                 valueOr(soc, -1),
		"min_soc":             cfg.MinSoC,
		"max_soc":             cfg.MaxSoC,
		"future_prices":       len(future),
	})

	switch {
	case current <= cheap && soc != nil && *soc < cfg.MaxSoC:
		b.charge(cfg.MaxSoC, fmt.Sprintf("Price €%.4f ≤ cheap threshold €%.4f and SOC %.1f%% < max %.0f%%",
			current, cheap, *soc, cfg.MaxSoC))
	case current >= expensive && soc != nil && *soc > cfg.MinSoC:
		b.discharge(cfg.MinSoC, fmt.Sprintf("Price €%.4f ≥ expensive threshold €%.4f and SOC %.1f%% > min %.0f%%",
			current, expensive, *soc, cfg.MinSoC))
	case current > cheap && current < expensive:
		b.idle(fmt.Sprintf("Price €%.4f is in moderate range (€%.4f-€%.4f)", current, cheap, expensive))
	case soc == nil:
		b.idle(REASON_SOC_UNAVAILABLE)
	case current <= cheap && *soc >= cfg.MaxSoC:
		b.idle(fmt.Sprintf("Price is cheap but battery already at max SOC (%.1f%%)", *soc))
	case current >= expensive && *soc <= cfg.MinSoC:
		b.idle(fmt.Sprintf("Price is expensive but battery already at min SOC (%.1f%%)", *soc))
	default:
		b.idle(fmt.Sprintf("Price €%.4f in moderate range (cheap=€%.4f, expensive=€%.4f)", current, cheap, expensive))
	}
	b.logOutcome()
}

func maximizeSelfConsumption(b *decisionBuilder, in domain.DecisionInputs, cfg domain.OptimizerConfig) {
	if len(in.Forecast) == 0 {
		b.idle(REASON_NO_FORECAST_DATA)
		b.info("no solar forecast", nil)
		return
	}

	headroom := cfg.MaxSoC - SELF_CONSUMPTION_HEADROOM
	var next *domain.ForecastPeriod
	for i := range in.Forecast {
		f := in.Forecast[i]
		if f.PeriodStart.After(in.Now) && f.PVEstimate > SIGNIFICANT_PV_ESTIMATE_KW {
			next = &f
			break
		}
	}
	if next == nil {
		b.idle(REASON_NO_SIGNIFICANT_SOLAR)
		b.logOutcome()
		return
	}

	at := next.PeriodStart.Format("15:04")
	soc := in.BatterySoC
	b.info("inputs", map[string]any{
		"next_solar_period":  next.PeriodStart,
		"pv_estimate":        next.PVEstimate,
		"soc":                valueOr(soc, -1),
		"max_soc":            cfg.MaxSoC,
		"headroom_threshold": headroom,
	})

	switch {
	case soc == nil:
		b.idle(fmt.Sprintf("Solar expected %.2f kW at %s but battery SOC unavailable", next.PVEstimate, at))
	case *soc > headroom:
		b.discharge(headroom, fmt.Sprintf("Solar expected %.2f kW at %s: discharging to %.0f%% to make room (SOC %.1f%% > headroom threshold %.0f%%)",
			next.PVEstimate, at, headroom, *soc, headroom))
	default:
		b.idle(fmt.Sprintf("Solar expected %.2f kW at %s: battery has enough room (SOC %.1f%% ≤ %.0f%%)",
			next.PVEstimate, at, *soc, headroom))
	}
	b.logOutcome()
}

func gridIndependence(b *decisionBuilder, in domain.DecisionInputs, cfg domain.OptimizerConfig) {
	soc := in.BatterySoC
	b.info("inputs", map[string]any{"soc": valueOr(soc, -1), "max_soc": cfg.MaxSoC})

	switch {
	case soc == nil:
		b.idle(REASON_SOC_UNAVAILABLE)
	case *soc < cfg.MaxSoC:
		b.charge(cfg.MaxSoC, fmt.Sprintf("Grid independence: charging to max %.0f%% (SOC %.1f%% < %.0f%%)",
			cfg.MaxSoC, *soc, cfg.MaxSoC))
	default:
		b.idle(fmt.Sprintf("Battery already at max SOC (%.1f%% ≥ %.0f%%)", *soc, cfg.MaxSoC))
	}
	b.logOutcome()
}

func balanced(b *decisionBuilder, in domain.DecisionInputs, cfg domain.OptimizerConfig) {
	if len(in.Prices) == 0 {
		b.idle(REASON_NO_PRICE_DATA)
		b.info("no price data", nil)
		return
	}
	future := futurePrices(in.Prices, in.Now)
	if len(future) == 0 {
		b.idle(REASON_NO_FUTURE_PRICES)
		b.info("no future prices", nil)
		return
	}

	var sum float64
	for _, p := range future {
		sum += p.Price
	}
	avg := sum / float64(len(future))
	current := valueOr(in.CurrentPrice, 0)
	chargeThreshold := avg * BALANCED_CHARGE_FACTOR
	dischargeThreshold := avg * BALANCED_DISCHARGE_FACTOR
	soc := in.BatterySoC

	b.info("inputs", map[string]any{
		"current_price":       current,
		"avg_price":           avg,
		"future_prices":       len(future),
		"charge_threshold":    chargeThreshold,
		"discharge_threshold": dischargeThreshold,
		"soc":                 valueOr(soc, -1),
		"min_soc":             cfg.MinSoC,
		"max_soc":             cfg.MaxSoC,
	})

	switch {
	case current < chargeThreshold && soc != nil && *soc < cfg.MaxSoC:
		b.charge(cfg.MaxSoC, fmt.Sprintf("Price €%.4f < charge threshold €%.4f (avg €%.4f × 0.9) and SOC %.1f%% < max %.0f%%",
			current, chargeThreshold, avg, *soc, cfg.MaxSoC))
	case current > dischargeThreshold && soc != nil && *soc > cfg.MinSoC:
		b.discharge(cfg.MinSoC, fmt.Sprintf("Price €%.4f > discharge threshold €%.4f (avg €%.4f × 1.1) and SOC %.1f%% > min %.0f%%",
			current, dischargeThreshold, avg, *soc, cfg.MinSoC))
	default:
		b.idle(fmt.Sprintf("Price €%.4f in moderate range (charge=€%.4f, discharge=€%.4f, avg=€%.4f)",
			current, chargeThreshold, dischargeThreshold, avg))
	}
	b.logOutcome()
}

// futurePrices keeps periods starting at or after now, in provider order.
func futurePrices(prices []domain.PricePeriod, now time.Time) []domain.PricePeriod {
	var future []domain.PricePeriod
	for _, p := range prices {
		if !p.PeriodStart.Before(now) {
			future = append(future, p)
		}
	}
	return future
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

type decisionBuilder struct {
	now      time.Time
	strategy string
	decision domain.Decision
}

func (b *decisionBuilder) charge(target float64, reason string) {
	b.act(domain.ACTION_CHARGE, target, reason)
}

func (b *decisionBuilder) discharge(target float64, reason string) {
	b.act(domain.ACTION_DISCHARGE, target, reason)
}

func (b *decisionBuilder) act(action domain.Action, target float64, reason string) {
	now := b.now
	b.decision.Action = action
	b.decision.TargetSoC = domain.Float(target)
	b.decision.Reason = reason
	b.decision.ActionTime = &now
}

func (b *decisionBuilder) idle(reason string) {
	b.decision.Action = domain.ACTION_IDLE
	b.decision.TargetSoC = nil
	b.decision.Reason = reason
	b.decision.ActionTime = nil
}

func (b *decisionBuilder) logOutcome() {
	fields := map[string]any{"action": string(b.decision.Action), "reason": b.decision.Reason}
	if b.decision.TargetSoC != nil {
		fields["target_soc"] = *b.decision.TargetSoC
	}
	b.info("decision", fields)
}

func (b *decisionBuilder) info(msg string, fields map[string]any) {
	b.event(domain.EVENT_LEVEL_INFO, msg, fields)
}

func (b *decisionBuilder) warn(msg string, fields map[string]any) {
	b.event(domain.EVENT_LEVEL_WARN, msg, fields)
}

func (b *decisionBuilder) event(level domain.EventLevel, msg string, fields map[string]any) {
	b.decision.Events = append(b.decision.Events, domain.DecisionEvent{
		Level:    level,
		Strategy: b.strategy,
		Message:  msg,
		Fields:   fields,
	})
}

func (b *decisionBuilder) result() domain.Decision {
	if b.decision.Action == "" {
		b.decision.Action = domain.ACTION_IDLE
	}
	return b.decision
}
