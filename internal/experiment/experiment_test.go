package experiment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/railsim/internal/config"
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/sim"
	"github.com/san-kum/railsim/internal/units"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, name := range r.ListLocos() {
		l, err := r.GetLoco(name)
		if err != nil {
			t.Fatalf("loco %s: %v", name, err)
		}
		if l == nil {
			t.Fatalf("loco %s: nil", name)
		}
	}
	if got := len(r.ListLocos()); got != 4 {
		t.Errorf("expected 4 locomotives, got %d", got)
	}
	if _, err := r.GetLoco("steam"); err == nil {
		t.Error("expected error for unknown locomotive")
	}

	for _, name := range r.ListControls() {
		if _, err := r.GetControl(name); err != nil {
			t.Errorf("control %s: %v", name, err)
		}
	}
	if _, err := r.GetControl("Random"); err == nil {
		t.Error("expected error for unknown control")
	}

	ms := r.DefaultMetrics()
	if len(ms) != len(r.ListMetrics()) {
		t.Fatalf("expected %d metrics, got %d", len(r.ListMetrics()), len(ms))
	}
	for i, name := range r.ListMetrics() {
		if ms[i].Name() != name {
			t.Errorf("metric %d: expected %s, got %s", i, name, ms[i].Name())
		}
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		sim      string
		preset   string
		runs     int
		samples  int
		parallel bool
	}{
		{config.SimConsist, "default", 1, 699, false},
		{config.SimLoco, "conventional", 1, 699, false},
		{config.SimLoco, "fleet", 3, 699, true},
		{config.SimTrain, "default", 1, 1100, false},
	}

	for _, tt := range tests {
		t.Run(tt.sim+"/"+tt.preset, func(t *testing.T) {
			cfg := config.GetPreset(tt.sim, tt.preset)
			if cfg.Parallel != tt.parallel {
				t.Fatalf("preset parallel = %v", cfg.Parallel)
			}
			res, err := New(cfg, NewRegistry(), nil).Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(res.Runs) != tt.runs {
				t.Fatalf("expected %d runs, got %d", tt.runs, len(res.Runs))
			}
			for _, r := range res.Runs {
				if len(r.Samples) != tt.samples {
					t.Errorf("%s: expected %d samples, got %d", r.Name, tt.samples, len(r.Samples))
				}
				if r.Metrics["deficit_free"] != 1 && tt.sim != config.SimTrain {
					t.Errorf("%s: unexpected deficits", r.Name)
				}
				if _, ok := r.Metrics["energy_out"]; !ok {
					t.Errorf("%s: missing energy_out metric", r.Name)
				}
			}
		})
	}
}

func TestRunFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pwr.csv")
	csv := "time,pwr\n0,0\n1,1e6\n2,1e9\n3,0\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Traces.Power = path
	mass := 1e6 * units.LB
	cfg.Train.Mass = &mass
	speed := 5.0
	cfg.Train.Speed = &speed

	res, err := New(cfg, NewRegistry(), nil).Run(context.Background())
	if !errors.Is(err, core.ErrPowerLimit) {
		t.Fatalf("expected power limit error, got %v", err)
	}
	if res == nil || len(res.Runs[0].Samples) != 1 {
		t.Fatalf("expected one recorded sample before the failure")
	}
	if err := res.Runs[0].Walker.TrimFailedSteps(); err != nil {
		t.Fatalf("trim: %v", err)
	}
	s := res.Runs[0].Walker.(*sim.ConsistSimulation)
	if s.PowerTrace.Len() != 2 {
		t.Errorf("expected 2 samples after trim, got %d", s.PowerTrace.Len())
	}
}

func TestBuildOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	disch, regen := 30.0, 2.0
	cfg.Buffers.DischargeSpeed = &disch
	cfg.Buffers.RegenSpeed = &regen
	cfg.Consist.AssertLimits = false

	e := New(cfg, NewRegistry(), nil)
	c, err := e.Consist()
	if err != nil {
		t.Fatal(err)
	}
	if c.AssertLimits() {
		t.Error("expected assert limits off")
	}
	for i, l := range c.Locos {
		b := l.Powertrain.Buffers()
		if b == nil {
			continue
		}
		if b.SpeedSocDischBuffer != disch || b.SpeedSocRegenBuffer != regen {
			t.Errorf("loco %d: buffers not applied", i)
		}
	}

	cfg.Consist.Locos = []string{"steam"}
	if _, err := e.Consist(); err == nil {
		t.Error("expected error for unknown locomotive")
	}
}

func TestTractionOverrides(t *testing.T) {
	mu := 0.3
	forceMax := 500e3

	tests := []struct {
		name     string
		override config.TractionOverride
		wantMu   float64
		wantErr  bool
	}{
		{"mu updates force max", config.TractionOverride{Index: 0, Mu: &mu}, mu, false},
		{"force max updates mu", config.TractionOverride{Index: 0, Mu: &mu, ForceMax: &forceMax}, forceMax / (195_000 * units.Gravity), false},
		{"unknown side effect", config.TractionOverride{Index: 0, Mu: &mu, MuSideEffect: "Ballast"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Consist.Traction = []config.TractionOverride{tt.override}
			locos, err := New(cfg, NewRegistry(), nil).Locos()
			if tt.wantErr {
				if !errors.Is(err, core.ErrInvariant) {
					t.Fatalf("expected invariant error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			got, err := locos[0].Mu()
			if err != nil {
				t.Fatal(err)
			}
			if got == nil || !core.AlmostEq(*got, tt.wantMu, 0) {
				t.Errorf("expected mu %v, got %v", tt.wantMu, got)
			}
			if other, _ := locos[1].Mu(); other != nil {
				t.Errorf("expected other locomotives untouched, got mu %v", *other)
			}
		})
	}
}

func TestPathFromFiles(t *testing.T) {
	dir := t.TempDir()
	network := filepath.Join(dir, "network.yaml")
	links := filepath.Join(dir, "links.csv")
	if err := os.WriteFile(network, []byte(`
- idx: 3
  length: 5000
  grades: [{offset: 0, value: 0}]
  curves: [{offset: 0, value: 0}]
  speed_sets: [{limits: [{offset: 0, limit: 20}]}]
`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(links, []byte("link_idx\n3\n3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Traces.Network = network
	cfg.Traces.Link = links
	p, err := New(cfg, NewRegistry(), nil).Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if p.OffsetEnd() != 10_000 {
		t.Errorf("expected path end 10000 m, got %.1f", p.OffsetEnd())
	}
}
