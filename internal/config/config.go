package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel  zapcore.Level
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Optimizer OptimizerConfig `mapstructure:"optimizer"`
	Providers map[string]any  `mapstructure:"providers"`
	Modbus    ModbusConfig    `mapstructure:"modbus"`
	Port      uint            `mapstructure:"port"`
	HttpLog   bool            `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host                 string
	Port                 int
	Username             string
	Password             string
	BaseTopic            string `mapstructure:"base_topic"`
	HADiscoveryEnable    bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic     string `mapstructure:"ha_discovery_topic"`
	StatestreamBaseTopic string `mapstructure:"statestream_base_topic"`
}

type OptimizerConfig struct {
	BatteryCapacity       float64 `mapstructure:"battery_capacity"`
	MaxChargeRate         float64 `mapstructure:"max_charge_rate"`
	MaxDischargeRate      float64 `mapstructure:"max_discharge_rate"`
	MinSoC                float64 `mapstructure:"min_soc"`
	MaxSoC                float64 `mapstructure:"max_soc"`
	Strategy              string  `mapstructure:"strategy"`
	DryRun                bool    `mapstructure:"dry_run"`
	AutomationEnabled     bool    `mapstructure:"automation_enabled"`
	UpdateIntervalSeconds uint32  `mapstructure:"update_interval_seconds"`
	CycleTimeoutMillis    uint32  `mapstructure:"cycle_timeout_millis"`
}

// ModbusConfig enables the optional read-only SunSpec battery level poller.
type ModbusConfig struct {
	Enable             bool
	Host               string
	Port               uint
	UnitId             uint   `mapstructure:"unit_id"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	SocEntity          string `mapstructure:"soc_entity"`
}

func (c OptimizerConfig) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

func (c OptimizerConfig) CycleTimeout() time.Duration {
	return time.Duration(c.CycleTimeoutMillis) * time.Millisecond
}

// Controls builds the initial user-editable optimizer settings.
func (c OptimizerConfig) Controls() (domain.OptimizerConfig, error) {
	ctrl := domain.DefaultOptimizerConfig()
	ctrl.AutomationEnabled = c.AutomationEnabled
	ctrl.DryRun = c.DryRun
	ctrl.BatteryCapacityKWh = c.BatteryCapacity
	ctrl.MaxChargeRateKW = c.MaxChargeRate
	ctrl.MaxDischargeRateKW = c.MaxDischargeRate
	ctrl.MinSoC = c.MinSoC
	ctrl.MaxSoC = c.MaxSoC
	if c.Strategy != "" {
		var err error
		if ctrl, err = ctrl.WithStrategy(c.Strategy); err != nil {
			return ctrl, err
		}
	}
	return ctrl, ctrl.Validate()
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
