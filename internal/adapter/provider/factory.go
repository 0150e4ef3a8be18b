package provider

import (
	"github.com/berfenger/energyopt2mqtt/internal/core/port"

	"github.com/spf13/cast"
)

const (
	INVERTER_TYPE_SOLAX_MODBUS      = "solax_modbus"
	INVERTER_TYPE_GENERIC_STATE     = "generic_state"
	INVERTER_TYPE_GENERIC_ATTRIBUTE = "generic_attribute"

	FORECAST_TYPE_SOLCAST = "solcast"
	FORECAST_TYPE_GENERIC = "generic"

	PRICES_TYPE_FRANK_ENERGIE = "frank_energie"
	PRICES_TYPE_NORDPOOL      = "nordpool"
	PRICES_TYPE_TIBBER        = "tibber"
	PRICES_TYPE_AWATTAR       = "awattar"
	PRICES_TYPE_AMBER         = "amber"
	PRICES_TYPE_GENERIC       = "generic"
)

type Adapters struct {
	Soc      port.SocSource
	Forecast port.ForecastSource
	Prices   port.PriceSource
}

func BuildAdapters(data map[string]any) Adapters {
	return Adapters{
		Soc:      BuildSocSource(data),
		Forecast: BuildForecastSource(data),
		Prices:   BuildPriceSource(data),
	}
}

func BuildSocSource(data map[string]any) port.SocSource {
	inverterType := stringOr(data, "inverter_type", INVERTER_TYPE_SOLAX_MODBUS)
	entityId := firstNonEmpty(data, "inverter_entity", "solax_inverter_entity")

	switch inverterType {
	case INVERTER_TYPE_SOLAX_MODBUS:
		return NewSolaxModbusSoC(entityId)
	case INVERTER_TYPE_GENERIC_ATTRIBUTE:
		return NewGenericSoC(entityId, firstNonEmpty(data, "inverter_soc_attribute"))
	}
	return NewGenericSoC(entityId, "")
}

func BuildForecastSource(data map[string]any) port.ForecastSource {
	forecastType := stringOr(data, "forecast_type", FORECAST_TYPE_SOLCAST)
	entityId := firstNonEmpty(data, "forecast_entity", "solcast_entity")

	if forecastType == FORECAST_TYPE_SOLCAST {
		return NewSolcastForecast(entityId)
	}
	fields := ForecastFieldMap{
		Attribute:        nonEmptyOr(data, "forecast_attribute", DEFAULT_FORECAST_ATTRIBUTE),
		PeriodStartField: nonEmptyOr(data, "forecast_period_start_field", DEFAULT_FORECAST_PERIOD_START),
		PVEstimateField:  nonEmptyOr(data, "forecast_pv_estimate_field", DEFAULT_FORECAST_PV_ESTIMATE),
	}
	todayFromState := true
	if v, ok := data["forecast_today_from_state"]; ok && v != nil {
		todayFromState = cast.ToBool(v)
	}
	return NewGenericForecast(entityId, fields, todayFromState)
}

func BuildPriceSource(data map[string]any) port.PriceSource {
	pricesType := stringOr(data, "prices_type", PRICES_TYPE_FRANK_ENERGIE)
	entityId := firstNonEmpty(data, "prices_entity", "frank_energie_entity", "electricity_prices_entity")

	if pricesType == PRICES_TYPE_FRANK_ENERGIE {
		return NewFrankEnergiePrice(entityId)
	}
	return NewGenericPrice(entityId, PriceFieldMap{
		Attribute:        nonEmptyOr(data, "prices_attribute", DEFAULT_PRICES_ATTRIBUTE),
		PeriodStartField: nonEmptyOr(data, "prices_period_start_field", DEFAULT_PRICES_PERIOD_START),
		PriceField:       nonEmptyOr(data, "prices_price_field", DEFAULT_PRICES_PRICE),
	})
}

// stringOr only falls back when the key is absent.
func stringOr(data map[string]any, key string, fallback string) string {
	v, ok := data[key]
	if !ok {
		return fallback
	}
	return cast.ToString(v)
}

func nonEmptyOr(data map[string]any, key string, fallback string) string {
	if s := cast.ToString(data[key]); s != "" {
		return s
	}
	return fallback
}

func firstNonEmpty(data map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := cast.ToString(data[key]); s != "" {
			return s
		}
	}
	return ""
}
