package util

import (
	"github.com/berfenger/energyopt2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:                 "localhost",
			Port:                 1883,
			BaseTopic:            "energyopt",
			HADiscoveryEnable:    true,
			HADiscoveryTopic:     "homeassistant",
			StatestreamBaseTopic: "homeassistant/statestream",
		},
		Optimizer: config.OptimizerConfig{
			BatteryCapacity:       10,
			MaxChargeRate:         5,
			MaxDischargeRate:      5,
			MinSoC:                20,
			MaxSoC:                95,
			Strategy:              "minimize_cost",
			DryRun:                true,
			AutomationEnabled:     true,
			UpdateIntervalSeconds: 300,
			CycleTimeoutMillis:    2000,
		},
		Providers: map[string]any{
			"inverter_type":        "solax_modbus",
			"inverter_entity":      "sensor.solax_battery_capacity",
			"forecast_type":        "solcast",
			"forecast_entity":      "sensor.solcast_pv_forecast_forecast_today",
			"prices_type":          "frank_energie",
			"frank_energie_entity": "sensor.current_electricity_price_all_in",
		},
		Modbus: config.ModbusConfig{
			Enable:             false,
			Host:               "-.-.-.-",
			Port:               502,
			UnitId:             1,
			PollIntervalMillis: 5000,
			SocEntity:          "sensor.sunspec_battery_soc",
		},
		Port: 8080,
	}
}
