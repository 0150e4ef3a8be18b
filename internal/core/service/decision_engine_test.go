package service

import (
	"testing"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var engine = NewDecisionEngine()

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func TestMinimizeCostChargesOnCheapPrice(t *testing.T) {

	require := require.New(t)

	in := inputs(domain.Float(50), domain.Float(0.15), hourlyPrices(now.Add(time.Hour), 0.21, 0.18, 0.15), nil)
	d := engine.Decide(in, config(domain.STRATEGY_MINIMIZE_COST))

	require.Equal(domain.ACTION_CHARGE, d.Action)
	require.NotNil(d.TargetSoC)
	require.Equal(95.0, *d.TargetSoC)
	require.NotNil(d.ActionTime)
	require.Equal(now, *d.ActionTime)
	assert.Contains(t, d.Reason, "cheap threshold €0.1650")
	assert.Contains(t, d.Reason, "SOC 50.0% < max 95%")
}

func TestMinimizeCostDischargesOnExpensivePrice(t *testing.T) {

	require := require.New(t)

	in := inputs(domain.Float(50), domain.Float(0.21), hourlyPrices(now.Add(time.Hour), 0.21, 0.18, 0.15), nil)
	d := engine.Decide(in, config(domain.STRATEGY_MINIMIZE_COST))

	require.Equal(domain.ACTION_DISCHARGE, d.Action)
	require.Equal(20.0, *d.TargetSoC)
	assert.Contains(t, d.Reason, "expensive threshold €0.1950")
}

func TestMinimizeCostIdleReasons(t *testing.T) {

	prices := hourlyPrices(now.Add(time.Hour), 0.21, 0.18, 0.15)
	cfg := config(domain.STRATEGY_MINIMIZE_COST)

	tests := []struct {
		name   string
		soc    *float64
		price  *float64
		prices []domain.PricePeriod
		reason string
	}{
		{"moderate price", domain.Float(50), domain.Float(0.18), prices, "is in moderate range"},
		{"soc unavailable", nil, domain.Float(0.15), prices, REASON_SOC_UNAVAILABLE},
		{"already full", domain.Float(95), domain.Float(0.15), prices, "battery already at max SOC (95.0%)"},
		{"already empty", domain.Float(20), domain.Float(0.21), prices, "battery already at min SOC (20.0%)"},
		{"no prices", domain.Float(50), domain.Float(0.15), nil, REASON_NO_PRICE_DATA},
		{"only past prices", domain.Float(50), domain.Float(0.15), hourlyPrices(now.Add(-5*time.Hour), 0.1, 0.2), REASON_NO_FUTURE_PRICES},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Decide(inputs(tt.soc, tt.price, tt.prices, nil), cfg)
			assert.Equal(t, domain.ACTION_IDLE, d.Action)
			assert.Nil(t, d.TargetSoC)
			assert.Nil(t, d.ActionTime)
			assert.Contains(t, d.Reason, tt.reason)
		})
	}
}

func TestMinimizeCostIgnoresPastPeriods(t *testing.T) {

	require := require.New(t)

	prices := append(hourlyPrices(now.Add(-3*time.Hour), 0.01), hourlyPrices(now.Add(time.Hour), 0.21, 0.18, 0.15)...)
	d := engine.Decide(inputs(domain.Float(50), domain.Float(0.15), prices, nil), config(domain.STRATEGY_MINIMIZE_COST))

	require.Equal(domain.ACTION_CHARGE, d.Action)
}

func TestPeriodStartingNowCountsAsFuture(t *testing.T) {

	require := require.New(t)

	// a period whose timestamp fell back to the cycle time is still considered
	prices := []domain.PricePeriod{{PeriodStart: now, Price: 0.10}}
	d := engine.Decide(inputs(domain.Float(50), domain.Float(0.10), prices, nil), config(domain.STRATEGY_MINIMIZE_COST))

	require.Equal(domain.ACTION_CHARGE, d.Action)
}

func TestSafetyOverrideWinsForEveryStrategy(t *testing.T) {

	for _, s := range domain.Strategies {
		t.Run(string(s), func(t *testing.T) {
			in := inputs(domain.Float(15), domain.Float(0.50), hourlyPrices(now.Add(time.Hour), 0.1, 0.5),
				hourlyForecast(now.Add(time.Hour), 3.0))
			d := engine.Decide(in, config(s))
			require.Equal(t, domain.ACTION_CHARGE, d.Action)
			require.Equal(t, 20.0, *d.TargetSoC)
			assert.Contains(t, d.Reason, "Safety override: SOC 15.0% is below minimum 20%")
		})
	}
}

func TestSafetyOverrideNotAtMinimum(t *testing.T) {

	d := engine.Decide(inputs(domain.Float(20), nil, nil, nil), config(domain.STRATEGY_GRID_INDEPENDENCE))

	assert.Equal(t, domain.ACTION_CHARGE, d.Action)
	assert.Equal(t, 95.0, *d.TargetSoC)
	assert.NotContains(t, d.Reason, "Safety override")
}

func TestGridIndependence(t *testing.T) {

	require := require.New(t)
	cfg := config(domain.STRATEGY_GRID_INDEPENDENCE)

	d := engine.Decide(inputs(domain.Float(96), nil, nil, nil), cfg)
	require.Equal(domain.ACTION_IDLE, d.Action)
	require.Contains(d.Reason, "Battery already at max SOC (96.0% ≥ 95%)")

	d = engine.Decide(inputs(domain.Float(90), nil, nil, nil), cfg)
	require.Equal(domain.ACTION_CHARGE, d.Action)
	require.Equal(95.0, *d.TargetSoC)

	d = engine.Decide(inputs(nil, nil, nil, nil), cfg)
	require.Equal(domain.ACTION_IDLE, d.Action)
	require.Equal(REASON_SOC_UNAVAILABLE, d.Reason)
}

func TestMaximizeSelfConsumption(t *testing.T) {

	require := require.New(t)
	cfg := config(domain.STRATEGY_MAXIMIZE_SELF_CONSUMPTION)

	forecast := []domain.ForecastPeriod{
		{PeriodStart: now.Add(-time.Hour), PVEstimate: 3.0},
		{PeriodStart: now.Add(time.Hour), PVEstimate: 1.0},
		{PeriodStart: now.Add(2 * time.Hour), PVEstimate: 2.5},
		{PeriodStart: now.Add(3 * time.Hour), PVEstimate: 4.0},
	}

	d := engine.Decide(inputs(domain.Float(90), nil, nil, forecast), cfg)
	require.Equal(domain.ACTION_DISCHARGE, d.Action)
	require.Equal(75.0, *d.TargetSoC)
	require.Contains(d.Reason, "Solar expected 2.50 kW at 12:00")

	d = engine.Decide(inputs(domain.Float(60), nil, nil, forecast), cfg)
	require.Equal(domain.ACTION_IDLE, d.Action)
	require.Contains(d.Reason, "battery has enough room (SOC 60.0% ≤ 75%)")

	d = engine.Decide(inputs(nil, nil, nil, forecast), cfg)
	require.Equal(domain.ACTION_IDLE, d.Action)
	require.Contains(d.Reason, "battery SOC unavailable")

	d = engine.Decide(inputs(domain.Float(90), nil, nil, hourlyForecast(now.Add(time.Hour), 0.2, 1.0, 0.8)), cfg)
	require.Equal(domain.ACTION_IDLE, d.Action)
	require.Equal(REASON_NO_SIGNIFICANT_SOLAR, d.Reason)

	d = engine.Decide(inputs(domain.Float(90), nil, nil, nil), cfg)
	require.Equal(domain.ACTION_IDLE, d.Action)
	require.Equal(REASON_NO_FORECAST_DATA, d.Reason)
}

func TestBalanced(t *testing.T) {

	cfg := config(domain.STRATEGY_BALANCED)
	// avg 0.20, charge below 0.18, discharge above 0.22
	prices := hourlyPrices(now.Add(time.Hour), 0.20, 0.30, 0.10)

	tests := []struct {
		name   string
		soc    *float64
		price  *float64
		action domain.Action
		target float64
	}{
		{"charge below threshold", domain.Float(50), domain.Float(0.15), domain.ACTION_CHARGE, 95},
		{"discharge above threshold", domain.Float(50), domain.Float(0.25), domain.ACTION_DISCHARGE, 20},
		{"moderate", domain.Float(50), domain.Float(0.20), domain.ACTION_IDLE, 0},
		{"missing price counts as zero", domain.Float(50), nil, domain.ACTION_CHARGE, 95},
		{"cheap but full", domain.Float(95), domain.Float(0.15), domain.ACTION_IDLE, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Decide(inputs(tt.soc, tt.price, prices, nil), cfg)
			require.Equal(t, tt.action, d.Action)
			if tt.action == domain.ACTION_IDLE {
				assert.Nil(t, d.TargetSoC)
				assert.Contains(t, d.Reason, "avg=€0.2000")
			} else {
				require.NotNil(t, d.TargetSoC)
				assert.InDelta(t, tt.target, *d.TargetSoC, 0.0001)
			}
		})
	}
}

func TestDecideIsIdempotent(t *testing.T) {

	in := inputs(domain.Float(50), domain.Float(0.15), hourlyPrices(now.Add(time.Hour), 0.21, 0.18, 0.15),
		hourlyForecast(now.Add(time.Hour), 0.5, 2.0))

	for _, s := range domain.Strategies {
		cfg := config(s)
		assert.Equal(t, engine.Decide(in, cfg), engine.Decide(in, cfg), string(s))
	}
}

func TestDecisionEventsCarryStrategy(t *testing.T) {

	d := engine.Decide(inputs(domain.Float(50), domain.Float(0.15), hourlyPrices(now.Add(time.Hour), 0.21, 0.18, 0.15), nil),
		config(domain.STRATEGY_MINIMIZE_COST))

	require.NotEmpty(t, d.Events)
	for _, ev := range d.Events {
		assert.Equal(t, string(domain.STRATEGY_MINIMIZE_COST), ev.Strategy)
	}
}

func TestUnknownStrategyIsIdle(t *testing.T) {

	cfg := config("bogus")
	d := engine.Decide(inputs(domain.Float(50), nil, nil, nil), cfg)

	assert.Equal(t, domain.ACTION_IDLE, d.Action)
	assert.Contains(t, d.Reason, "Unknown strategy")
}

func config(s domain.Strategy) domain.OptimizerConfig {
	cfg := domain.DefaultOptimizerConfig()
	cfg.Strategy = s
	return cfg
}

func inputs(soc *float64, price *float64, prices []domain.PricePeriod, forecast []domain.ForecastPeriod) domain.DecisionInputs {
	return domain.DecisionInputs{
		Now:          now,
		BatterySoC:   soc,
		CurrentPrice: price,
		Prices:       prices,
		Forecast:     forecast,
	}
}

func hourlyPrices(start time.Time, values ...float64) []domain.PricePeriod {
	var prices []domain.PricePeriod
	for i, v := range values {
		prices = append(prices, domain.PricePeriod{PeriodStart: start.Add(time.Duration(i) * time.Hour), Price: v})
	}
	return prices
}

func hourlyForecast(start time.Time, values ...float64) []domain.ForecastPeriod {
	var forecast []domain.ForecastPeriod
	for i, v := range values {
		forecast = append(forecast, domain.ForecastPeriod{PeriodStart: start.Add(time.Duration(i) * time.Hour), PVEstimate: v})
	}
	return forecast
}
