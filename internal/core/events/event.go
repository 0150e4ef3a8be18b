package events

import (
	"time"

	. "github.com/berfenger/energyopt2mqtt/internal/core/domain"
)

// Home Assistant rejects sensor states longer than this
const MAX_STATE_LENGTH = 255

// SnapshotToUpdateEvents projects a snapshot onto the optimizer sensors.
func SnapshotToUpdateEvents(snap *Snapshot) []any {
	var events []any

	events = append(events, textEvent(SENSOR_ID_CURRENT_STRATEGY, string(snap.Strategy)))
	events = append(events, textEvent(SENSOR_ID_NEXT_ACTION, string(snap.NextAction)))
	events = append(events, timeEvent(SENSOR_ID_LAST_ACTION_TIME, snap.LastActionTime))
	events = append(events, timeEvent(SENSOR_ID_NEXT_UPDATE_TIME, &snap.NextUpdateTime))
	events = append(events, textEvent(SENSOR_ID_DECISION_REASON, truncate(snap.DecisionReason, MAX_STATE_LENGTH)))
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_UPDATE_COUNT,
		},
		Value:    float64(snap.UpdateCount),
		Decimals: 0,
	})
	events = append(events, optionalFloatEvent(SENSOR_ID_BATTERY_SOC, snap.BatterySoC, 1))
	events = append(events, optionalFloatEvent(SENSOR_ID_CURRENT_PRICE, snap.CurrentPrice, 4))
	events = append(events, optionalFloatEvent(SENSOR_ID_SOLAR_FORECAST_TODAY, snap.SolarForecastToday, 2))
	events = append(events, optionalFloatEvent(SENSOR_ID_TARGET_SOC, snap.TargetSoC, 0))

	for _, c := range []struct {
		id    string
		value float64
	}{
		{SENSOR_ID_DAILY_COST, snap.Counters.DailyCost},
		{SENSOR_ID_DAILY_SAVINGS, snap.Counters.DailySavings},
		{SENSOR_ID_MONTHLY_COST, snap.Counters.MonthlyCost},
		{SENSOR_ID_MONTHLY_SAVINGS, snap.Counters.MonthlySavings},
	} {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: c.id,
			},
			Value:    c.value,
			Decimals: 2,
		})
	}

	return events
}

// ControlsToUpdateEvents mirrors the user-editable settings to their entities.
func ControlsToUpdateEvents(cfg OptimizerConfig) []any {
	return []any{
		SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SWITCH_ID_AUTOMATION_ENABLED},
			Value:                  cfg.AutomationEnabled,
		},
		SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SWITCH_ID_MANUAL_OVERRIDE},
			Value:                  cfg.ManualOverride,
		},
		SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SWITCH_ID_DRY_RUN},
			Value:                  cfg.DryRun,
		},
		InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: INPUT_NUMBER_ID_MIN_SOC},
			Value:                  cfg.MinSoC,
			Decimals:               0,
		},
		InputNumberSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: INPUT_NUMBER_ID_MAX_SOC},
			Value:                  cfg.MaxSoC,
			Decimals:               0,
		},
		SelectSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SELECT_ID_STRATEGY},
			Value:                  string(cfg.Strategy),
		},
	}
}

func BridgeStateUpdateEvents(online bool) []any {
	return []any{
		BridgeStateUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_BRIDGE_STATE},
			Value:                  online,
		},
	}
}

func textEvent(id string, value string) any {
	return TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value: value,
	}
}

func timeEvent(id string, value *time.Time) any {
	if value == nil || value.IsZero() {
		return UnknownSensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}}
	}
	return textEvent(id, value.Format(time.RFC3339))
}

func optionalFloatEvent(id string, value *float64, decimals uint) any {
	if value == nil {
		return UnknownSensorUpdateEvent{SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id}}
	}
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: id,
		},
		Value:    *value,
		Decimals: decimals,
	}
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
