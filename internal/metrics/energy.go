// Package metrics accumulates per-run figures from simulation samples.
package metrics

import (
	"github.com/san-kum/railsim/internal/sim"
)

// FuelEnergy integrates fuel power over the run, J.
type FuelEnergy struct {
	name  string
	total float64
}

func NewFuelEnergy() *FuelEnergy {
	return &FuelEnergy{name: "energy_fuel"}
}

func (e *FuelEnergy) Name() string { return e.name }

func (e *FuelEnergy) Observe(s sim.Sample) {
	e.total += s.PwrFuel * s.Dt
}

func (e *FuelEnergy) Value() float64 { return e.total }

func (e *FuelEnergy) Reset() { e.total = 0 }

// RESEnergy integrates the net chemical energy drawn from storage, J. Charging
// counts against it.
type RESEnergy struct {
	name  string
	total float64
}

func NewRESEnergy() *RESEnergy {
	return &RESEnergy{name: "energy_res"}
}

func (e *RESEnergy) Name() string { return e.name }

func (e *RESEnergy) Observe(s sim.Sample) {
	e.total += s.PwrRES * s.Dt
}

func (e *RESEnergy) Value() float64 { return e.total }

func (e *RESEnergy) Reset() { e.total = 0 }

// WheelEnergy integrates achieved wheel power, J.
type WheelEnergy struct {
	name  string
	total float64
}

func NewWheelEnergy() *WheelEnergy {
	return &WheelEnergy{name: "energy_out"}
}

func (e *WheelEnergy) Name() string { return e.name }

func (e *WheelEnergy) Observe(s sim.Sample) {
	e.total += s.PwrOut * s.Dt
}

func (e *WheelEnergy) Value() float64 { return e.total }

func (e *WheelEnergy) Reset() { e.total = 0 }
