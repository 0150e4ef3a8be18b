package domain

import (
	"fmt"
	"time"
)

type Action string

const (
	ACTION_CHARGE    Action = "charge"
	ACTION_DISCHARGE Action = "discharge"
	ACTION_IDLE      Action = "idle"
)

type Strategy string

const (
	STRATEGY_MINIMIZE_COST             Strategy = "minimize_cost"
	STRATEGY_MAXIMIZE_SELF_CONSUMPTION Strategy = "maximize_self_consumption"
	STRATEGY_GRID_INDEPENDENCE         Strategy = "grid_independence"
	STRATEGY_BALANCED                  Strategy = "balanced"
)

// Strategies lists the selectable strategies in display order.
var Strategies = []Strategy{
	STRATEGY_MINIMIZE_COST,
	STRATEGY_MAXIMIZE_SELF_CONSUMPTION,
	STRATEGY_GRID_INDEPENDENCE,
	STRATEGY_BALANCED,
}

func ParseStrategy(value string) (Strategy, error) {
	for _, s := range Strategies {
		if string(s) == value {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown strategy %q", value)
}

type PricePeriod struct {
	PeriodStart time.Time `json:"from"`
	Price       float64   `json:"price"`
}

type ForecastPeriod struct {
	PeriodStart time.Time `json:"period_start"`
	PVEstimate  float64   `json:"pv_estimate"`
}

const (
	ENTITY_STATE_UNAVAILABLE = "unavailable"
	ENTITY_STATE_UNKNOWN     = "unknown"
)

// EntityState mirrors a Home Assistant entity: a primary state string plus attributes.
type EntityState struct {
	EntityId    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastUpdated time.Time      `json:"last_updated"`
}

func (s EntityState) IsUnavailable() bool {
	switch s.State {
	case ENTITY_STATE_UNAVAILABLE, ENTITY_STATE_UNKNOWN, "":
		return true
	}
	return false
}

func (s EntityState) Attribute(name string) (any, bool) {
	if s.Attributes == nil {
		return nil, false
	}
	v, ok := s.Attributes[name]
	return v, ok
}
