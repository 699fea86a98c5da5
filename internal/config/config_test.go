package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/train"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, SimConsist, cfg.Sim)
	assert.Len(t, cfg.Consist.Locos, 6)
	assert.True(t, cfg.Consist.AssertLimits)
	assert.Equal(t, 1, *cfg.Interval())
}

func TestInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SaveInterval = 0
	assert.Nil(t, cfg.Interval())

	cfg.SaveInterval = 25
	assert.Equal(t, 25, *cfg.Interval())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(c *Config)
	}{
		{"unknown sim", func(c *Config) { c.Sim = "tram" }},
		{"no locomotives", func(c *Config) { c.Consist.Locos = nil }},
		{"negative interval", func(c *Config) { c.SaveInterval = -1 }},
		{"bad train params", func(c *Config) { c.Train.Params.AxleCount = 0 }},
		{"traction index out of range", func(c *Config) { c.Consist.Traction = []TractionOverride{{Index: len(c.Consist.Locos)}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := DefaultConfig()
	cfg.Train.Params.Length = 0
	assert.ErrorIs(t, cfg.Validate(), core.ErrInvariant)
}

func TestLoadOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	data := []byte(`
sim: train
consist:
  locos: [battery_electric, conventional]
  assert_limits: false
  traction:
    - index: 1
      mu: 0.35
      mu_side_effect: Mass
save_interval: 10
train:
  mass: 5.0e+6
buffers:
  regen_speed: 2.5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SimTrain, cfg.Sim)
	assert.Equal(t, []string{"battery_electric", "conventional"}, cfg.Consist.Locos)
	assert.False(t, cfg.Consist.AssertLimits)
	require.Len(t, cfg.Consist.Traction, 1)
	assert.Equal(t, 1, cfg.Consist.Traction[0].Index)
	assert.Equal(t, "Mass", cfg.Consist.Traction[0].MuSideEffect)
	assert.Nil(t, cfg.Consist.Traction[0].ForceMax)
	assert.Equal(t, "RESGreedy", cfg.Consist.Control, "unset fields keep defaults")
	assert.Equal(t, 10, cfg.SaveInterval)
	require.NotNil(t, cfg.Train.Mass)
	assert.InDelta(t, 5e6, *cfg.Train.Mass, 1e-9)
	assert.Equal(t, train.DefaultParams(), cfg.Train.Params)
	require.NotNil(t, cfg.Buffers.RegenSpeed)
	assert.Nil(t, cfg.Buffers.DischargeSpeed)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sim: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("sim: tram\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "unknown sim")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := GetPreset(SimLoco, "fleet")
	require.NotNil(t, cfg)

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.yaml")
	data := []byte(`
- idx: 7
  length: 1000
  grades: [{offset: 0, value: 0.01}]
  curves: [{offset: 0, value: 0}]
  speed_sets:
    - limits: [{offset: 0, limit: 15}]
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	n, err := LoadNetwork(path)
	require.NoError(t, err)
	require.Len(t, n, 1)
	assert.EqualValues(t, 7, n[0].Idx)
	assert.NoError(t, n[0].Validate())
	assert.Equal(t, []train.SpeedLimit{{Offset: 0, Limit: 15}}, n[0].SpeedSets[0].Limits)
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset(SimConsist, "proportional")
	require.NotNil(t, cfg)
	assert.Equal(t, "Proportional", cfg.Consist.Control)

	cfg.Consist.Locos[0] = "dummy"
	again := GetPreset(SimConsist, "proportional")
	assert.Equal(t, "conventional", again.Consist.Locos[0], "presets are copied")

	assert.Nil(t, GetPreset(SimConsist, "nonexistent"))
	assert.Nil(t, GetPreset("tram", "default"))
}

func TestListPresets(t *testing.T) {
	for _, sim := range Sims() {
		names := ListPresets(sim)
		require.NotEmpty(t, names, sim)
		for _, name := range names {
			cfg := GetPreset(sim, name)
			require.NotNil(t, cfg)
			assert.Equal(t, sim, cfg.Sim)
			assert.NoError(t, cfg.Validate(), "%s/%s", sim, name)
		}
	}
	assert.Nil(t, ListPresets("tram"))
	assert.Equal(t, []string{"all_conventional", "battery_heavy", "default", "front_and_back", "proportional"}, ListPresets(SimConsist))
}
