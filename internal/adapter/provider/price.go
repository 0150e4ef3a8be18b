package provider

import (
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"
)

const (
	DEFAULT_PRICES_ATTRIBUTE    = "prices"
	DEFAULT_PRICES_PERIOD_START = "from"
	DEFAULT_PRICES_PRICE        = "price"
)

type PriceFieldMap struct {
	Attribute        string
	PeriodStartField string
	PriceField       string
}

func DefaultPriceFieldMap() PriceFieldMap {
	return PriceFieldMap{
		Attribute:        DEFAULT_PRICES_ATTRIBUTE,
		PeriodStartField: DEFAULT_PRICES_PERIOD_START,
		PriceField:       DEFAULT_PRICES_PRICE,
	}
}

var _ port.PriceSource = (*GenericPrice)(nil)
var _ port.PriceSource = (*FrankEnergiePrice)(nil)

type GenericPrice struct {
	EntityId string
	Fields   PriceFieldMap
}

func NewGenericPrice(entityId string, fields PriceFieldMap) *GenericPrice {
	return &GenericPrice{EntityId: entityId, Fields: fields}
}

func (p *GenericPrice) SourceEntityId() string {
	return p.EntityId
}

func (p *GenericPrice) GetPrices(states port.StateLookup, now time.Time) []domain.PricePeriod {
	records := listAttribute(states, p.EntityId, p.Fields.Attribute)
	periods := make([]domain.PricePeriod, 0, len(records))
	for _, rec := range records {
		periods = append(periods, domain.PricePeriod{
			PeriodStart: parseTimestamp(rec[p.Fields.PeriodStartField], now),
			Price:       numberOrZero(rec[p.Fields.PriceField]),
		})
	}
	return periods
}

// GetCurrentPrice reads the entity state, which price integrations keep at
// the price of the running period.
func (p *GenericPrice) GetCurrentPrice(states port.StateLookup) *float64 {
	return stateNumber(states, p.EntityId)
}

// FrankEnergiePrice reads the Frank Energie integration's price list.
type FrankEnergiePrice struct {
	GenericPrice
}

func NewFrankEnergiePrice(entityId string) *FrankEnergiePrice {
	return &FrankEnergiePrice{GenericPrice: GenericPrice{EntityId: entityId, Fields: DefaultPriceFieldMap()}}
}
