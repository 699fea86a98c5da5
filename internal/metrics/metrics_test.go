package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/railsim/internal/sim"
)

func TestMetricsObserve(t *testing.T) {
	samples := []sim.Sample{
		{Dt: 1, PwrOut: 1e6, PwrFuel: 2e6, PwrRES: 5e5},
		{Dt: 2, PwrOut: 2e6, PwrFuel: 4e6, PwrRES: 0, PwrOutDeficit: 3e5},
		{Dt: 1, PwrOut: -1e6, PwrFuel: 1e5, PwrRES: -4e5},
	}
	tests := []struct {
		metric sim.Metric
		want   float64
	}{
		{NewWheelEnergy(), 1e6 + 4e6 - 1e6},
		{NewFuelEnergy(), 2e6 + 8e6 + 1e5},
		{NewRESEnergy(), 5e5 - 4e5},
		{NewMaxDeficit(), 3e5},
		{NewDeficitFree(), 2.0 / 3.0},
		{NewRegenFraction(), 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			for _, s := range samples {
				tt.metric.Observe(s)
			}
			if got := tt.metric.Value(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func all() []sim.Metric {
	return []sim.Metric{
		NewWheelEnergy(),
		NewFuelEnergy(),
		NewRESEnergy(),
		NewMaxDeficit(),
		NewDeficitFree(),
		NewRegenFraction(),
	}
}

func TestMetricsReset(t *testing.T) {
	for _, m := range all() {
		t.Run(m.Name(), func(t *testing.T) {
			m.Observe(sim.Sample{Dt: 1, PwrOut: -1e6, PwrFuel: 1e6, PwrRES: -1e6, PwrOutDeficit: 1e3})
			m.Reset()
			want := 0.0
			if m.Name() == "deficit_free" {
				want = 1
			}
			if got := m.Value(); got != want {
				t.Errorf("expected %f after reset, got %f", want, got)
			}
		})
	}
}

func TestMetricsOnWalk(t *testing.T) {
	ms := all()
	opts := make([]sim.Option, len(ms))
	for i, m := range ms {
		opts[i] = sim.WithMetric(m)
	}
	s := sim.DefaultConsistSimulation(opts...)
	if err := s.Walk(context.Background()); err != nil {
		t.Fatalf("walk: %v", err)
	}

	got := s.Metrics()
	if want := s.Consist.State.EnergyOut; math.Abs(got["energy_out"]-want) > 1e-6*want {
		t.Errorf("expected wheel energy %.1f J, got %.1f J", want, got["energy_out"])
	}
	if want := s.Consist.State.EnergyFuel; math.Abs(got["energy_fuel"]-want) > 1e-6*want {
		t.Errorf("expected fuel energy %.1f J, got %.1f J", want, got["energy_fuel"])
	}
	if got["deficit_free"] != 1 {
		t.Errorf("expected no deficits, got fraction %f", got["deficit_free"])
	}
}
