package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE         = "bridge"
	SENSOR_ID_CURRENT_STRATEGY     = "current_strategy"
	SENSOR_ID_NEXT_ACTION          = "next_action"
	SENSOR_ID_LAST_ACTION_TIME     = "last_action_time"
	SENSOR_ID_NEXT_UPDATE_TIME     = "next_update_time"
	SENSOR_ID_DECISION_REASON      = "decision_reason"
	SENSOR_ID_UPDATE_COUNT         = "update_count"
	SENSOR_ID_BATTERY_SOC          = "battery_soc"
	SENSOR_ID_CURRENT_PRICE        = "current_price"
	SENSOR_ID_SOLAR_FORECAST_TODAY = "solar_forecast_today"
	SENSOR_ID_TARGET_SOC           = "target_soc"
	SENSOR_ID_DAILY_COST           = "daily_cost"
	SENSOR_ID_DAILY_SAVINGS        = "daily_savings"
	SENSOR_ID_MONTHLY_COST         = "monthly_cost"
	SENSOR_ID_MONTHLY_SAVINGS      = "monthly_savings"
	SWITCH_ID_AUTOMATION_ENABLED   = "automation_enabled"
	SWITCH_ID_MANUAL_OVERRIDE      = "manual_override"
	SWITCH_ID_DRY_RUN              = "dry_run"
	INPUT_NUMBER_ID_MIN_SOC        = "min_soc"
	INPUT_NUMBER_ID_MAX_SOC        = "max_soc"
	SELECT_ID_STRATEGY             = "strategy"
	BUTTON_ID_TRIGGER_OPTIMIZATION = "trigger_optimization"
	STATE_CLASS_MEASUREMENT        = "measurement"
	STATE_CLASS_TOTAL              = "total"
	STATE_CLASS_TOTAL_INCREASING   = "total_increasing"
	DEVICE_CLASS_BATTERY           = "battery"
	DEVICE_CLASS_MONETARY          = "monetary"
	DEVICE_CLASS_TIMESTAMP         = "timestamp"
	DEVICE_CLASS_CONNECTIVITY      = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC        = "diagnostic"
	ENTITY_CLASS_CONFIG            = "config"
	SENSOR_TYPE_SENSOR             = "sensor"
	SENSOR_TYPE_BINARY             = "binary_sensor"
	INPUT_NUMBER_MODE_BOX          = "box"
	INPUT_NUMBER_MODE_SLIDER       = "slider"
	CURRENCY_EURO                  = "€"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("energyopt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "Energy Optimizer",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Energy Optimizer %s", md5HashShort(baseTopic)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Bridge state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

// OptimizerSensors are the read-only projections of the latest snapshot.
func OptimizerSensors(device Device) []GenericSensor {
	sensor := func(id, name, icon string) GenericSensor {
		return GenericSensor{
			Device:     IdDevice(device),
			Id:         id,
			SensorType: SENSOR_TYPE_SENSOR,
			Name:       name,
			Icon:       icon,
			UniqueId:   uniqueId(device.Id, id),
		}
	}

	currentStrategy := sensor(SENSOR_ID_CURRENT_STRATEGY, "Current strategy", "mdi:strategy")
	currentStrategy.Device = device

	nextAction := sensor(SENSOR_ID_NEXT_ACTION, "Next action", "mdi:flash-auto")

	lastActionTime := sensor(SENSOR_ID_LAST_ACTION_TIME, "Last action time", "")
	lastActionTime.DeviceClass = DEVICE_CLASS_TIMESTAMP

	nextUpdateTime := sensor(SENSOR_ID_NEXT_UPDATE_TIME, "Next update time", "")
	nextUpdateTime.DeviceClass = DEVICE_CLASS_TIMESTAMP

	reason := sensor(SENSOR_ID_DECISION_REASON, "Decision reason", "mdi:comment-question")

	updateCount := sensor(SENSOR_ID_UPDATE_COUNT, "Update count", "mdi:counter")
	updateCount.StateClass = STATE_CLASS_TOTAL_INCREASING
	updateCount.EntityCategory = ENTITY_CLASS_DIAGNOSTIC

	soc := sensor(SENSOR_ID_BATTERY_SOC, "Battery SOC", "mdi:battery")
	soc.UnitOfMeasurement = "%"
	soc.DeviceClass = DEVICE_CLASS_BATTERY
	soc.StateClass = STATE_CLASS_MEASUREMENT

	price := sensor(SENSOR_ID_CURRENT_PRICE, "Current electricity price", "mdi:currency-eur")
	price.UnitOfMeasurement = CURRENCY_EURO + "/kWh"
	price.StateClass = STATE_CLASS_MEASUREMENT

	solar := sensor(SENSOR_ID_SOLAR_FORECAST_TODAY, "Solar forecast today", "mdi:solar-power")
	solar.UnitOfMeasurement = "kWh"
	solar.StateClass = STATE_CLASS_MEASUREMENT

	target := sensor(SENSOR_ID_TARGET_SOC, "Target SOC", "mdi:battery-arrow-up")
	target.UnitOfMeasurement = "%"
	target.StateClass = STATE_CLASS_MEASUREMENT

	sensors := []GenericSensor{currentStrategy, nextAction, lastActionTime, nextUpdateTime, reason,
		updateCount, soc, price, solar, target}

	for _, c := range []struct{ id, name, icon string }{
		{SENSOR_ID_DAILY_COST, "Daily cost", ""},
		{SENSOR_ID_DAILY_SAVINGS, "Daily savings", "mdi:piggy-bank"},
		{SENSOR_ID_MONTHLY_COST, "Monthly cost", ""},
		{SENSOR_ID_MONTHLY_SAVINGS, "Monthly savings", "mdi:piggy-bank"},
	} {
		s := sensor(c.id, c.name, c.icon)
		s.DeviceClass = DEVICE_CLASS_MONETARY
		s.UnitOfMeasurement = CURRENCY_EURO
		s.StateClass = STATE_CLASS_TOTAL
		sensors = append(sensors, s)
	}
	return sensors
}

func OptimizerSwitches(device Device) []GenericSwitch {
	device = IdDevice(device)
	return []GenericSwitch{
		{
			Device:   device,
			Id:       SWITCH_ID_AUTOMATION_ENABLED,
			Name:     "Automation enabled",
			Icon:     "mdi:auto-mode",
			UniqueId: uniqueId(device.Id, SWITCH_ID_AUTOMATION_ENABLED),
		},
		{
			Device:   device,
			Id:       SWITCH_ID_MANUAL_OVERRIDE,
			Name:     "Manual override",
			Icon:     "mdi:hand-back-right",
			UniqueId: uniqueId(device.Id, SWITCH_ID_MANUAL_OVERRIDE),
		},
		{
			Device:         device,
			Id:             SWITCH_ID_DRY_RUN,
			Name:           "Dry run mode",
			Icon:           "mdi:test-tube",
			EntityCategory: ENTITY_CLASS_CONFIG,
			UniqueId:       uniqueId(device.Id, SWITCH_ID_DRY_RUN),
		},
	}
}

func OptimizerInputNumbers(device Device, cfg OptimizerConfig) []GenericInputNumber {
	device = IdDevice(device)
	return []GenericInputNumber{
		{
			Device:            device,
			Id:                INPUT_NUMBER_ID_MIN_SOC,
			Name:              "Minimum SOC",
			Icon:              "mdi:battery-low",
			Min:               0,
			Max:               100,
			Step:              1,
			Mode:              INPUT_NUMBER_MODE_SLIDER,
			UnitOfMeasurement: "%",
			InitialValue:      cfg.MinSoC,
			UniqueId:          uniqueId(device.Id, INPUT_NUMBER_ID_MIN_SOC),
		},
		{
			Device:            device,
			Id:                INPUT_NUMBER_ID_MAX_SOC,
			Name:              "Maximum SOC",
			Icon:              "mdi:battery-high",
			Min:               0,
			Max:               100,
			Step:              1,
			Mode:              INPUT_NUMBER_MODE_SLIDER,
			UnitOfMeasurement: "%",
			InitialValue:      cfg.MaxSoC,
			UniqueId:          uniqueId(device.Id, INPUT_NUMBER_ID_MAX_SOC),
		},
	}
}

func OptimizerSelects(device Device) []GenericSelect {
	options := make([]string, 0, len(Strategies))
	for _, s := range Strategies {
		options = append(options, string(s))
	}
	return []GenericSelect{
		{
			Device:   IdDevice(device),
			Id:       SELECT_ID_STRATEGY,
			Name:     "Strategy",
			Icon:     "mdi:strategy",
			Options:  options,
			UniqueId: uniqueId(device.Id, SELECT_ID_STRATEGY),
		},
	}
}

func OptimizerButtons(device Device) []GenericButton {
	return []GenericButton{
		{
			Device:   IdDevice(device),
			Id:       BUTTON_ID_TRIGGER_OPTIMIZATION,
			Name:     "Trigger optimization",
			Icon:     "mdi:play-circle",
			UniqueId: uniqueId(device.Id, BUTTON_ID_TRIGGER_OPTIMIZATION),
		},
	}
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[:6]
}

func uniqueId(deviceId string, id string) string {
	return fmt.Sprintf("%s_%s", deviceId, id)
}
