package config

import (
	"fmt"

	"github.com/newthinker/boxsim/internal/core"
)

// Preset names accepted by ApplyPreset.
const (
	PresetDefault      = "default"
	PresetAggressive   = "aggressive"
	PresetConservative = "conservative"
	PresetScalping     = "scalping"
)

var presets = map[string]func(*Config){
	PresetDefault: func(*Config) {},
	PresetAggressive: func(c *Config) {
		c.Strategy.DailyProfitTarget = 3000
		c.Strategy.Period1.MaxOrders = 20
		c.Strategy.Period2.MaxOrders = 15
		c.Strategy.Period3.MaxOrders = 20
	},
	PresetConservative: func(c *Config) {
		c.Strategy.DailyProfitTarget = 1000
		c.Strategy.Period1.MaxOrders = 10
		c.Strategy.Period2.MaxOrders = 6
		c.Strategy.Period3.MaxOrders = 10
		c.Strategy.StopLoss = 20000
	},
	PresetScalping: func(c *Config) {
		c.Backtest.Timeframe = "M1"
		c.Strategy.Period1.TakeProfit = 200
		c.Strategy.Period2.TakeProfit = 150
		c.Strategy.Period3.TakeProfit = 300
	},
}

// PresetNames lists the presets in display order.
func PresetNames() []string {
	return []string{PresetDefault, PresetAggressive, PresetConservative, PresetScalping}
}

// ApplyPreset overlays the named preset on c.
func (c *Config) ApplyPreset(name string) error {
	apply, ok := presets[name]
	if !ok {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown preset %q", name))
	}
	apply(c)
	return nil
}

// Preset returns Defaults with the named preset applied.
func Preset(name string) (*Config, error) {
	cfg := Defaults()
	if err := cfg.ApplyPreset(name); err != nil {
		return nil, err
	}
	return cfg, nil
}
