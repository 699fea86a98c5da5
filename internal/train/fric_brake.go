package train

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
	"github.com/san-kum/railsim/internal/units"
)

type FricBrakeState struct {
	I stale.Cell[int] `json:"i" yaml:"i"`
	// applied force
	Force        stale.Cell[float64] `json:"force" yaml:"force"`
	ForceMaxCurr stale.Cell[float64] `json:"force_max_curr" yaml:"force_max_curr"`
}

// FricBrake is the train's air brake system. Force builds up linearly over
// RampUpTime after application.
type FricBrake struct {
	ForceMax   float64 `json:"force_max" yaml:"force_max"`
	RampUpTime float64 `json:"ramp_up_time" yaml:"ramp_up_time"`
	// correction for the roughly linear brake build up
	RampUpCoeff  float64          `json:"ramp_up_coeff" yaml:"ramp_up_coeff"`
	State        FricBrakeState   `json:"state" yaml:"state"`
	History      []FricBrakeState `json:"history,omitempty" yaml:"history,omitempty"`
	SaveInterval *int             `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
}

func DefaultFricBrake() FricBrake {
	return NewFricBrake(600_000*units.LBF, 0, 0.6)
}

func NewFricBrake(forceMax, rampUpTime, rampUpCoeff float64) FricBrake {
	fb := FricBrake{ForceMax: forceMax, RampUpTime: rampUpTime, RampUpCoeff: rampUpCoeff}
	fb.State.ForceMaxCurr = stale.New(forceMax)
	return fb
}

// AdjRampUpTime is the braking lookahead time used by the braking curve.
func (fb *FricBrake) AdjRampUpTime() float64 { return fb.RampUpTime * fb.RampUpCoeff }

// SetCurForceMaxOut limits this step's brake force by the ramp from last step's force.
func (fb *FricBrake) SetCurForceMaxOut(dt float64) error {
	limit := fb.ForceMax
	if fb.RampUpTime > 0 {
		limit = math.Min(fb.ForceMax, fb.State.Force.GetStale()+fb.ForceMax/fb.RampUpTime*dt)
	}
	return fb.State.ForceMaxCurr.Update(limit, "fric_brake.force_max_curr")
}

// Apply sets the brake force for the step, bounded by this step's maximum.
func (fb *FricBrake) Apply(force float64) error {
	limit, err := fb.State.ForceMaxCurr.Get("fric_brake.force_max_curr")
	if err != nil {
		return err
	}
	return fb.State.Force.Update(core.Clamp(force, 0, limit), "fric_brake.force")
}

func (fb *FricBrake) Step() error { return stale.Increment(&fb.State.I, 1, "fric_brake.i") }

func (fb *FricBrake) SaveState() {
	if core.ShouldSave(fb.SaveInterval, fb.State.I.GetStale()) {
		fb.History = append(fb.History, fb.State)
	}
}

func (fb *FricBrake) CheckAndReset(loc string) error {
	return stale.CheckAndResetAll(loc+".fric_brake", &fb.State)
}
