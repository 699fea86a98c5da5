package metrics

import (
	"math"

	"github.com/san-kum/railsim/internal/sim"
)

// MaxDeficit is the largest traction demand storage could not cover, W.
type MaxDeficit struct {
	name string
	max  float64
}

func NewMaxDeficit() *MaxDeficit {
	return &MaxDeficit{name: "max_pwr_out_deficit"}
}

func (d *MaxDeficit) Name() string { return d.name }

func (d *MaxDeficit) Observe(s sim.Sample) {
	d.max = math.Max(d.max, s.PwrOutDeficit)
}

func (d *MaxDeficit) Value() float64 { return d.max }

func (d *MaxDeficit) Reset() { d.max = 0 }

// DeficitFree is the fraction of steps with no traction deficit.
type DeficitFree struct {
	name     string
	deficits int
	samples  int
}

func NewDeficitFree() *DeficitFree {
	return &DeficitFree{name: "deficit_free"}
}

func (d *DeficitFree) Name() string { return d.name }

func (d *DeficitFree) Observe(s sim.Sample) {
	d.samples++
	if s.PwrOutDeficit > 0 {
		d.deficits++
	}
}

func (d *DeficitFree) Value() float64 {
	if d.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(d.deficits)/float64(d.samples)
}

func (d *DeficitFree) Reset() {
	d.deficits = 0
	d.samples = 0
}
