// Package config loads run scenarios from YAML over built-in defaults.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/train"
)

const (
	SimLoco    = "loco"
	SimConsist = "consist"
	SimTrain   = "train"
)

const (
	DefaultSaveInterval = 1
	DefaultOutputDir    = "runs"
	DefaultLogLevel     = "info"
)

type Config struct {
	Sim     string        `yaml:"sim"`
	Consist ConsistConfig `yaml:"consist"`
	// history is kept every SaveInterval steps, never when zero
	SaveInterval int          `yaml:"save_interval"`
	Traces       TraceConfig  `yaml:"traces"`
	Train        TrainConfig  `yaml:"train"`
	Buffers      BufferConfig `yaml:"buffers"`
	// walk every locomotive of the consist on its own, concurrently
	Parallel  bool   `yaml:"parallel"`
	OutputDir string `yaml:"output_dir"`
	LogLevel  string `yaml:"log_level"`
}

type ConsistConfig struct {
	// locomotive builder names, lead first
	Locos        []string `yaml:"locos"`
	Control      string   `yaml:"control"`
	AssertLimits bool     `yaml:"assert_limits"`
	// applied in order after the locomotives are built
	Traction []TractionOverride `yaml:"traction,omitempty"`
}

// TractionOverride sets the traction coefficient and/or max tractive force of the
// locomotive at Index. Side effects name the field that follows the change: mu
// defaults to ForceMax, force max to UpdateMu.
type TractionOverride struct {
	Index              int      `yaml:"index"`
	Mu                 *float64 `yaml:"mu,omitempty"`
	MuSideEffect       string   `yaml:"mu_side_effect,omitempty"`
	ForceMax           *float64 `yaml:"force_max,omitempty"`
	ForceMaxSideEffect string   `yaml:"force_max_side_effect,omitempty"`
}

// TraceConfig names CSV inputs. Empty paths select the built-in defaults.
type TraceConfig struct {
	Power string `yaml:"power,omitempty"`
	Speed string `yaml:"speed,omitempty"`
	Link  string `yaml:"link,omitempty"`
	// YAML list of links the link path refers to
	Network string `yaml:"network,omitempty"`
}

type TrainConfig struct {
	Params train.Params `yaml:"params"`
	// overrides the power trace's train mass, kg
	Mass *float64 `yaml:"mass,omitempty"`
	// constant train speed for power traces without one, m/s
	Speed *float64 `yaml:"speed,omitempty"`
}

// BufferConfig overrides the storage buffer speeds of every battery electric and
// hybrid locomotive, m/s.
type BufferConfig struct {
	DischargeSpeed *float64 `yaml:"discharge_speed,omitempty"`
	RegenSpeed     *float64 `yaml:"regen_speed,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Sim: SimConsist,
		Consist: ConsistConfig{
			Locos: []string{
				"conventional", "battery_electric", "hybrid",
				"conventional", "conventional", "conventional",
			},
			Control:      "RESGreedy",
			AssertLimits: true,
		},
		SaveInterval: DefaultSaveInterval,
		Train:        TrainConfig{Params: train.DefaultParams()},
		OutputDir:    DefaultOutputDir,
		LogLevel:     DefaultLogLevel,
	}
}

func (c *Config) Validate() error {
	switch c.Sim {
	case SimLoco, SimConsist, SimTrain:
	default:
		return errors.Errorf("config: unknown sim %q", c.Sim)
	}
	if len(c.Consist.Locos) == 0 {
		return errors.New("config: consist needs at least one locomotive")
	}
	for _, o := range c.Consist.Traction {
		if o.Index < 0 || o.Index >= len(c.Consist.Locos) {
			return errors.Errorf("config: traction override index %d out of range for %d locomotives", o.Index, len(c.Consist.Locos))
		}
	}
	if c.SaveInterval < 0 {
		return errors.Errorf("config: save interval %d must not be negative", c.SaveInterval)
	}
	return c.Train.Params.Validate()
}

// Interval is the save interval as the simulators take it.
func (c *Config) Interval() *int {
	if c.SaveInterval == 0 {
		return nil
	}
	n := c.SaveInterval
	return &n
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadNetwork reads a YAML list of links.
func LoadNetwork(path string) (train.Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "network")
	}
	var n train.Network
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, errors.Wrapf(err, "network: %s", path)
	}
	return n, nil
}
