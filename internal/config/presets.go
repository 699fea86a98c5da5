package config

import (
	"sort"

	"github.com/san-kum/railsim/internal/train"
)

func preset(sim string, edit func(c *Config)) *Config {
	c := DefaultConfig()
	c.Sim = sim
	if edit != nil {
		edit(c)
	}
	return c
}

func single(kind string) func(c *Config) {
	return func(c *Config) { c.Consist.Locos = []string{kind} }
}

var Presets = map[string]map[string]*Config{
	SimConsist: {
		"default": preset(SimConsist, nil),
		"proportional": preset(SimConsist, func(c *Config) {
			c.Consist.Control = "Proportional"
		}),
		"front_and_back": preset(SimConsist, func(c *Config) {
			c.Consist.Control = "FrontAndBack"
		}),
		"all_conventional": preset(SimConsist, func(c *Config) {
			c.Consist.Locos = []string{"conventional", "conventional", "conventional", "conventional"}
			c.Consist.Control = "Proportional"
		}),
		"battery_heavy": preset(SimConsist, func(c *Config) {
			c.Consist.Locos = []string{"conventional", "battery_electric", "battery_electric", "conventional"}
		}),
	},
	SimLoco: {
		"conventional":     preset(SimLoco, single("conventional")),
		"battery_electric": preset(SimLoco, single("battery_electric")),
		"hybrid":           preset(SimLoco, single("hybrid")),
		"fleet": preset(SimLoco, func(c *Config) {
			c.Consist.Locos = []string{"conventional", "conventional", "conventional"}
			c.Parallel = true
		}),
	},
	SimTrain: {
		"default": preset(SimTrain, nil),
		"sparse": preset(SimTrain, func(c *Config) {
			c.SaveInterval = 10
		}),
		"passenger": preset(SimTrain, func(c *Config) {
			c.Train.Params.TrainType = train.Passenger
		}),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(sim, name string) *Config {
	presets, ok := Presets[sim]
	if !ok {
		return nil
	}
	cfg, ok := presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	c.Consist.Locos = append([]string(nil), cfg.Consist.Locos...)
	return &c
}

// ListPresets returns the preset names for sim in order.
func ListPresets(sim string) []string {
	presets, ok := Presets[sim]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sims lists the simulation kinds that have presets.
func Sims() []string {
	return []string{SimConsist, SimLoco, SimTrain}
}
