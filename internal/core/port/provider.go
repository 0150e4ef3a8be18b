package port

import (
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
)

// StateLookup reads already-cached entity states. Implementations must not block.
type StateLookup interface {
	Lookup(entityId string) (domain.EntityState, bool)
}

type SocSource interface {
	SourceEntityId() string
	GetBatterySoC(states StateLookup) *float64
}

type ForecastSource interface {
	SourceEntityId() string
	GetForecast(states StateLookup, now time.Time) []domain.ForecastPeriod
	GetSolarToday(states StateLookup, now time.Time) *float64
}

type PriceSource interface {
	SourceEntityId() string
	GetPrices(states StateLookup, now time.Time) []domain.PricePeriod
	GetCurrentPrice(states StateLookup) *float64
}
