package domain

import (
	"errors"
	"fmt"
)

const (
	DEFAULT_MIN_SOC = 20
	DEFAULT_MAX_SOC = 95
)

var ErrInvalidSoCBounds = errors.New("soc bounds must satisfy 0 <= min_soc <= max_soc <= 100")

type OptimizerConfig struct {
	Strategy           Strategy `json:"strategy"`
	AutomationEnabled  bool     `json:"automation_enabled"`
	ManualOverride     bool     `json:"manual_override"`
	DryRun             bool     `json:"dry_run"`
	BatteryCapacityKWh float64  `json:"battery_capacity"`
	MaxChargeRateKW    float64  `json:"max_charge_rate"`
	MaxDischargeRateKW float64  `json:"max_discharge_rate"`
	MinSoC             float64  `json:"min_soc"`
	MaxSoC             float64  `json:"max_soc"`
}

// DefaultOptimizerConfig starts in dry run with automation on.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Strategy:          STRATEGY_MINIMIZE_COST,
		AutomationEnabled: true,
		ManualOverride:    false,
		DryRun:            true,
		MinSoC:            DEFAULT_MIN_SOC,
		MaxSoC:            DEFAULT_MAX_SOC,
	}
}

func (c OptimizerConfig) Validate() error {
	if c.MinSoC < 0 || c.MaxSoC > 100 || c.MinSoC > c.MaxSoC {
		return fmt.Errorf("%w (min_soc=%.0f, max_soc=%.0f)", ErrInvalidSoCBounds, c.MinSoC, c.MaxSoC)
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	return nil
}

func (c OptimizerConfig) WithMinSoC(value float64) (OptimizerConfig, error) {
	c.MinSoC = value
	return c, c.Validate()
}

func (c OptimizerConfig) WithMaxSoC(value float64) (OptimizerConfig, error) {
	c.MaxSoC = value
	return c, c.Validate()
}

func (c OptimizerConfig) WithStrategy(value string) (OptimizerConfig, error) {
	s, err := ParseStrategy(value)
	if err != nil {
		return c, err
	}
	c.Strategy = s
	return c, nil
}
