package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/railsim/internal/consist"
	"github.com/san-kum/railsim/internal/locomotive"
	"github.com/san-kum/railsim/internal/metrics"
	"github.com/san-kum/railsim/internal/sim"
)

// Registry maps names used in configs and on the command line to builders.
type Registry struct {
	locos   map[string]func() *locomotive.Locomotive
	metrics map[string]func() sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		locos:   make(map[string]func() *locomotive.Locomotive),
		metrics: make(map[string]func() sim.Metric),
	}

	r.locos["conventional"] = locomotive.Default
	r.locos["battery_electric"] = locomotive.DefaultBatteryElectric
	r.locos["hybrid"] = locomotive.DefaultHybrid
	r.locos["dummy"] = locomotive.Dummy

	r.metrics["energy_out"] = func() sim.Metric { return metrics.NewWheelEnergy() }
	r.metrics["energy_fuel"] = func() sim.Metric { return metrics.NewFuelEnergy() }
	r.metrics["energy_res"] = func() sim.Metric { return metrics.NewRESEnergy() }
	r.metrics["max_pwr_out_deficit"] = func() sim.Metric { return metrics.NewMaxDeficit() }
	r.metrics["deficit_free"] = func() sim.Metric { return metrics.NewDeficitFree() }
	r.metrics["regen_fraction"] = func() sim.Metric { return metrics.NewRegenFraction() }

	return r
}

// RegisterLoco adds or replaces a locomotive builder.
func (r *Registry) RegisterLoco(name string, fn func() *locomotive.Locomotive) {
	r.locos[name] = fn
}

func (r *Registry) GetLoco(name string) (*locomotive.Locomotive, error) {
	fn, ok := r.locos[name]
	if !ok {
		return nil, fmt.Errorf("unknown locomotive: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetControl(name string) (consist.Control, error) {
	return consist.ParseControl(name)
}

func (r *Registry) GetMetric(name string) (sim.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListLocos() []string { return sortedKeys(r.locos) }

func (r *Registry) ListMetrics() []string { return sortedKeys(r.metrics) }

func (r *Registry) ListControls() []string {
	names := make([]string, len(consist.Controls))
	for i, c := range consist.Controls {
		names[i] = string(c)
	}
	return names
}

// DefaultMetrics returns a fresh instance of every registered metric.
func (r *Registry) DefaultMetrics() []sim.Metric {
	out := make([]sim.Metric, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		out = append(out, r.metrics[name]())
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
