package provider

import (
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"
)

// forecast periods are half-hourly, so kW estimates become kWh by halving
const FORECAST_PERIOD_HOURS = 0.5

const (
	DEFAULT_FORECAST_ATTRIBUTE    = "forecasts"
	DEFAULT_FORECAST_PERIOD_START = "period_start"
	DEFAULT_FORECAST_PV_ESTIMATE  = "pv_estimate"
	SOLCAST_FORECAST_ATTRIBUTE    = "detailedForecast"
)

type ForecastFieldMap struct {
	Attribute        string
	PeriodStartField string
	PVEstimateField  string
}

func DefaultForecastFieldMap() ForecastFieldMap {
	return ForecastFieldMap{
		Attribute:        DEFAULT_FORECAST_ATTRIBUTE,
		PeriodStartField: DEFAULT_FORECAST_PERIOD_START,
		PVEstimateField:  DEFAULT_FORECAST_PV_ESTIMATE,
	}
}

var _ port.ForecastSource = (*GenericForecast)(nil)
var _ port.ForecastSource = (*SolcastForecast)(nil)

// GenericForecast normalizes a list attribute of forecast records.
// The daily total is either the entity state or the sum of all periods.
type GenericForecast struct {
	EntityId            string
	Fields              ForecastFieldMap
	TodayTotalFromState bool
}

func NewGenericForecast(entityId string, fields ForecastFieldMap, todayFromState bool) *GenericForecast {
	return &GenericForecast{EntityId: entityId, Fields: fields, TodayTotalFromState: todayFromState}
}

func (f *GenericForecast) SourceEntityId() string {
	return f.EntityId
}

func (f *GenericForecast) GetForecast(states port.StateLookup, now time.Time) []domain.ForecastPeriod {
	records := listAttribute(states, f.EntityId, f.Fields.Attribute)
	periods := make([]domain.ForecastPeriod, 0, len(records))
	for _, rec := range records {
		periods = append(periods, domain.ForecastPeriod{
			PeriodStart: parseTimestamp(rec[f.Fields.PeriodStartField], now),
			PVEstimate:  numberOrZero(rec[f.Fields.PVEstimateField]),
		})
	}
	return periods
}

func (f *GenericForecast) GetSolarToday(states port.StateLookup, now time.Time) *float64 {
	if _, ok := lookup(states, f.EntityId); !ok {
		return nil
	}
	if f.TodayTotalFromState {
		return stateNumber(states, f.EntityId)
	}
	periods := f.GetForecast(states, now)
	if len(periods) == 0 {
		return nil
	}
	total := 0.0
	for _, p := range periods {
		total += p.PVEstimate * FORECAST_PERIOD_HOURS
	}
	return &total
}

// SolcastForecast reads the Solcast PV Forecast integration: detailed
// half-hourly periods in an attribute, today's total as the state.
type SolcastForecast struct {
	GenericForecast
}

func NewSolcastForecast(entityId string) *SolcastForecast {
	return &SolcastForecast{GenericForecast: GenericForecast{
		EntityId: entityId,
		Fields: ForecastFieldMap{
			Attribute:        SOLCAST_FORECAST_ATTRIBUTE,
			PeriodStartField: DEFAULT_FORECAST_PERIOD_START,
			PVEstimateField:  DEFAULT_FORECAST_PV_ESTIMATE,
		},
		TodayTotalFromState: true,
	}}
}
