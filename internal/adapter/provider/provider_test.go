package provider

import (
	"math"
	"testing"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type states map[string]domain.EntityState

func (s states) Lookup(entityId string) (domain.EntityState, bool) {
	st, ok := s[entityId]
	return st, ok
}

var now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func entity(id string, state string, attrs map[string]any) states {
	return states{id: {EntityId: id, State: state, Attributes: attrs}}
}

func TestSolaxModbusSoC(t *testing.T) {
	soc := NewSolaxModbusSoC("sensor.solax_battery_capacity")
	assert.Equal(t, "sensor.solax_battery_capacity", soc.SourceEntityId())

	v := soc.GetBatterySoC(entity("sensor.solax_battery_capacity", " 56.5 ", nil))
	require.NotNil(t, v)
	assert.Equal(t, 56.5, *v)

	for _, state := range []string{"unavailable", "unknown", "", "abc", "NaN"} {
		assert.Nil(t, soc.GetBatterySoC(entity("sensor.solax_battery_capacity", state, nil)), state)
	}
	assert.Nil(t, soc.GetBatterySoC(states{}))
	assert.Nil(t, soc.GetBatterySoC(nil))
}

func TestGenericSoCAttribute(t *testing.T) {
	soc := NewGenericSoC("sensor.inverter", "battery_level")

	v := soc.GetBatterySoC(entity("sensor.inverter", "on", map[string]any{"battery_level": 71}))
	require.NotNil(t, v)
	assert.Equal(t, 71.0, *v)

	// sentinel primary state wins over a valid attribute
	assert.Nil(t, soc.GetBatterySoC(entity("sensor.inverter", "unavailable", map[string]any{"battery_level": 71})))
	assert.Nil(t, soc.GetBatterySoC(entity("sensor.inverter", "on", map[string]any{"other": 71})))
	assert.Nil(t, soc.GetBatterySoC(entity("sensor.inverter", "on", map[string]any{"battery_level": "n/a"})))
}

func TestGenericSoCState(t *testing.T) {
	soc := NewGenericSoC("sensor.soc", "")
	v := soc.GetBatterySoC(entity("sensor.soc", "42", nil))
	require.NotNil(t, v)
	assert.Equal(t, 42.0, *v)
}

func TestGenericForecastNormalizes(t *testing.T) {
	src := NewGenericForecast("sensor.pv", DefaultForecastFieldMap(), false)
	st := entity("sensor.pv", "3.8", map[string]any{
		"forecasts": []any{
			map[string]any{"period_start": "2024-06-01T11:00:00+00:00", "pv_estimate": 0.5},
			"not a record",
			map[string]any{"period_start": "2024-06-01T11:30:00Z", "pv_estimate": "1.2"},
			map[string]any{"period_start": "garbage", "pv_estimate": 2.1},
			map[string]any{"period_start": "2024-06-01T12:30:00Z"},
		},
	})

	periods := src.GetForecast(st, now)
	require.Len(t, periods, 4)
	assert.True(t, periods[0].PeriodStart.Equal(time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.2, periods[1].PVEstimate)
	assert.Equal(t, now, periods[2].PeriodStart)
	assert.Equal(t, 0.0, periods[3].PVEstimate)

	today := src.GetSolarToday(st, now)
	require.NotNil(t, today)
	assert.InDelta(t, 1.9, *today, 1e-9)
}

func TestGenericForecastCustomFields(t *testing.T) {
	src := NewGenericForecast("sensor.pv", ForecastFieldMap{Attribute: "wh_hours", PeriodStartField: "start", PVEstimateField: "kw"}, true)
	st := entity("sensor.pv", "12.5", map[string]any{
		"wh_hours": []map[string]any{{"start": "2024-06-01 13:00:00", "kw": 3}},
	})

	periods := src.GetForecast(st, now)
	require.Len(t, periods, 1)
	assert.True(t, periods[0].PeriodStart.Equal(time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3.0, periods[0].PVEstimate)

	today := src.GetSolarToday(st, now)
	require.NotNil(t, today)
	assert.Equal(t, 12.5, *today)

	assert.Nil(t, src.GetSolarToday(entity("sensor.pv", "unknown", nil), now))
}

func TestForecastMissingData(t *testing.T) {
	src := NewGenericForecast("sensor.pv", DefaultForecastFieldMap(), false)

	assert.Empty(t, src.GetForecast(states{}, now))
	assert.Empty(t, src.GetForecast(entity("sensor.pv", "1", nil), now))
	assert.Empty(t, src.GetForecast(entity("sensor.pv", "1", map[string]any{"forecasts": "oops"}), now))
	assert.Nil(t, src.GetSolarToday(states{}, now))
	assert.Nil(t, src.GetSolarToday(entity("sensor.pv", "1", map[string]any{"forecasts": []any{}}), now))
}

func TestSolcastForecast(t *testing.T) {
	src := NewSolcastForecast("sensor.solcast_forecast_today")
	st := entity("sensor.solcast_forecast_today", "24.3", map[string]any{
		"detailedForecast": []any{
			map[string]any{"period_start": "2024-06-01T12:00:00+02:00", "pv_estimate": 2.4},
		},
		"forecasts": []any{
			map[string]any{"period_start": "2024-06-01T12:00:00+02:00", "pv_estimate": 9},
		},
	})

	periods := src.GetForecast(st, now)
	require.Len(t, periods, 1)
	assert.Equal(t, 2.4, periods[0].PVEstimate)
	assert.True(t, periods[0].PeriodStart.Equal(now))

	today := src.GetSolarToday(st, now)
	require.NotNil(t, today)
	assert.Equal(t, 24.3, *today)
}

func TestFrankEnergiePrice(t *testing.T) {
	src := NewFrankEnergiePrice("sensor.current_electricity_price")
	st := entity("sensor.current_electricity_price", "0.2215", map[string]any{
		"prices": []any{
			map[string]any{"from": "2024-06-01T10:00:00.000Z", "till": "2024-06-01T11:00:00.000Z", "price": 0.2215},
			map[string]any{"from": "2024-06-01T11:00:00.000Z", "price": "0.19"},
			42,
		},
	})

	prices := src.GetPrices(st, now)
	require.Len(t, prices, 2)
	assert.True(t, prices[0].PeriodStart.Equal(now))
	assert.Equal(t, 0.19, prices[1].Price)

	current := src.GetCurrentPrice(st)
	require.NotNil(t, current)
	assert.Equal(t, 0.2215, *current)

	assert.Nil(t, src.GetCurrentPrice(entity("sensor.current_electricity_price", "unavailable", nil)))
}

func TestGenericPriceCustomFields(t *testing.T) {
	src := NewGenericPrice("sensor.nordpool", PriceFieldMap{Attribute: "raw_today", PeriodStartField: "start", PriceField: "value"})
	st := entity("sensor.nordpool", "0.1", map[string]any{
		"raw_today": []any{
			map[string]any{"start": now, "value": 0.1},
			map[string]any{"start": "2024-06-01", "value": nil},
		},
	})

	prices := src.GetPrices(st, now)
	require.Len(t, prices, 2)
	assert.Equal(t, now, prices[0].PeriodStart)
	assert.True(t, prices[1].PeriodStart.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0.0, prices[1].Price)
}

func TestParseNumber(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{" 7 ", 7, true},
		{3, 3, true},
		{int64(4), 4, true},
		{float32(1.5), 1.5, true},
		{true, 1, true},
		{nil, 0, false},
		{"", 0, false},
		{"twelve", 0, false},
		{math.NaN(), 0, false},
		{[]any{1}, 0, false},
	} {
		got, ok := parseNumber(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestParseTimestamp(t *testing.T) {
	local := time.FixedZone("CEST", 2*3600)
	ref := time.Date(2024, 6, 1, 10, 0, 0, 0, local)

	assert.True(t, parseTimestamp("2024-06-01T08:00:00Z", ref).Equal(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, parseTimestamp("2024-06-01 10:30:00.123+02:00", ref).Equal(time.Date(2024, 6, 1, 10, 30, 0, 123000000, local)))
	assert.True(t, parseTimestamp("2024-06-01T10:30:00", ref).Equal(time.Date(2024, 6, 1, 10, 30, 0, 0, local)))
	assert.True(t, parseTimestamp("2024-06-02", ref).Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, local)))
	assert.Equal(t, ref, parseTimestamp("yesterday", ref))
	assert.Equal(t, ref, parseTimestamp(1717228800, ref))
	assert.Equal(t, ref, parseTimestamp(nil, ref))
}
