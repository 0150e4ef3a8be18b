package provider

import (
	"math"
	"strings"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"
	"github.com/berfenger/energyopt2mqtt/internal/core/port"

	"github.com/spf13/cast"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
}

// layouts without a zone are read in the location of the cycle clock
var localTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.DateOnly,
}

// parseNumber accepts numbers, numeric strings and bools. NaN is rejected.
func parseNumber(value any) (float64, bool) {
	if value == nil {
		return 0, false
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
		if value == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(value)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func numberOrZero(value any) float64 {
	f, _ := parseNumber(value)
	return f
}

// parseTimestamp falls back to now when value is missing or malformed.
func parseTimestamp(value any, now time.Time) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		for _, layout := range localTimestampLayouts {
			if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
				return t
			}
		}
	}
	return now
}

// stateNumber reads the primary state of an entity as a number, treating
// missing entities and sentinel states as absent.
func stateNumber(states port.StateLookup, entityId string) *float64 {
	state, ok := lookup(states, entityId)
	if !ok || state.IsUnavailable() {
		return nil
	}
	f, ok := parseNumber(state.State)
	if !ok {
		return nil
	}
	return &f
}

// listAttribute returns the record items of a list-valued attribute. Anything
// that is not a list yields nil and items that are not records are skipped.
func listAttribute(states port.StateLookup, entityId string, attribute string) []map[string]any {
	state, ok := lookup(states, entityId)
	if !ok || len(state.Attributes) == 0 {
		return nil
	}
	var records []map[string]any
	switch items := state.Attributes[attribute].(type) {
	case []any:
		for _, item := range items {
			if rec, ok := item.(map[string]any); ok {
				records = append(records, rec)
			}
		}
	case []map[string]any:
		records = append(records, items...)
	}
	return records
}

func lookup(states port.StateLookup, entityId string) (domain.EntityState, bool) {
	if states == nil || entityId == "" {
		return domain.EntityState{}, false
	}
	return states.Lookup(entityId)
}
