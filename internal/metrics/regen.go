package metrics

import "github.com/san-kum/railsim/internal/sim"

// RegenFraction is the share of braking energy at the wheels that went back into
// storage.
type RegenFraction struct {
	name    string
	braking float64
	charged float64
}

func NewRegenFraction() *RegenFraction {
	return &RegenFraction{name: "regen_fraction"}
}

func (r *RegenFraction) Name() string { return r.name }

func (r *RegenFraction) Observe(s sim.Sample) {
	if s.PwrOut < 0 {
		r.braking -= s.PwrOut * s.Dt
	}
	if s.PwrRES < 0 {
		r.charged -= s.PwrRES * s.Dt
	}
}

func (r *RegenFraction) Value() float64 {
	if r.braking == 0 {
		return 0
	}
	return r.charged / r.braking
}

func (r *RegenFraction) Reset() {
	r.braking = 0
	r.charged = 0
}
