package provider

import (
	"github.com/berfenger/energyopt2mqtt/internal/core/port"
)

var _ port.SocSource = (*SolaxModbusSoC)(nil)
var _ port.SocSource = (*GenericSoC)(nil)

// SolaxModbusSoC reads the battery level from the native state of a
// SolaX Modbus integration sensor.
type SolaxModbusSoC struct {
	EntityId string
}

func NewSolaxModbusSoC(entityId string) *SolaxModbusSoC {
	return &SolaxModbusSoC{EntityId: entityId}
}

func (s *SolaxModbusSoC) SourceEntityId() string {
	return s.EntityId
}

func (s *SolaxModbusSoC) GetBatterySoC(states port.StateLookup) *float64 {
	return stateNumber(states, s.EntityId)
}

// GenericSoC reads the battery level from an entity state, or from one of
// its attributes when Attribute is set.
type GenericSoC struct {
	EntityId  string
	Attribute string
}

func NewGenericSoC(entityId string, attribute string) *GenericSoC {
	return &GenericSoC{EntityId: entityId, Attribute: attribute}
}

func (s *GenericSoC) SourceEntityId() string {
	return s.EntityId
}

func (s *GenericSoC) GetBatterySoC(states port.StateLookup) *float64 {
	state, ok := lookup(states, s.EntityId)
	if !ok || state.IsUnavailable() {
		return nil
	}
	var raw any = state.State
	if s.Attribute != "" {
		if raw, ok = state.Attribute(s.Attribute); !ok {
			return nil
		}
	}
	f, ok := parseNumber(raw)
	if !ok {
		return nil
	}
	return &f
}
