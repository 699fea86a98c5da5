package train

import (
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
	"github.com/san-kum/railsim/internal/trace"
	"github.com/san-kum/railsim/internal/units"
)

// State is the per-step physical state of the train.
type State struct {
	I    stale.Cell[int]     `json:"i" yaml:"i"`
	Time stale.Cell[float64] `json:"time" yaml:"time"`
	Dt   stale.Cell[float64] `json:"dt" yaml:"dt"`

	// head-end offset along the path
	Offset       stale.Cell[float64]       `json:"offset" yaml:"offset"`
	OffsetBack   stale.Cell[float64]       `json:"offset_back" yaml:"offset_back"`
	TotalDist    stale.Cell[float64]       `json:"total_dist" yaml:"total_dist"`
	LinkIdxFront stale.Cell[trace.LinkIdx] `json:"link_idx_front" yaml:"link_idx_front"`
	OffsetInLink stale.Cell[float64]       `json:"offset_in_link" yaml:"offset_in_link"`

	Speed       stale.Cell[float64] `json:"speed" yaml:"speed"`
	SpeedLimit  stale.Cell[float64] `json:"speed_limit" yaml:"speed_limit"`
	SpeedTarget stale.Cell[float64] `json:"speed_target" yaml:"speed_target"`

	Length       stale.Cell[float64] `json:"length" yaml:"length"`
	MassStatic   stale.Cell[float64] `json:"mass_static" yaml:"mass_static"`
	MassRot      stale.Cell[float64] `json:"mass_rot" yaml:"mass_rot"`
	MassFreight  stale.Cell[float64] `json:"mass_freight" yaml:"mass_freight"`
	WeightStatic stale.Cell[float64] `json:"weight_static" yaml:"weight_static"`

	ResRolling stale.Cell[float64] `json:"res_rolling" yaml:"res_rolling"`
	ResBearing stale.Cell[float64] `json:"res_bearing" yaml:"res_bearing"`
	ResFlange  stale.Cell[float64] `json:"res_flange" yaml:"res_flange"`
	ResGrade   stale.Cell[float64] `json:"res_grade" yaml:"res_grade"`
	ResCurve   stale.Cell[float64] `json:"res_curve" yaml:"res_curve"`

	GradeFront stale.Cell[float64] `json:"grade_front" yaml:"grade_front"`
	GradeBack  stale.Cell[float64] `json:"grade_back" yaml:"grade_back"`
	ElevFront  stale.Cell[float64] `json:"elev_front" yaml:"elev_front"`
	ElevBack   stale.Cell[float64] `json:"elev_back" yaml:"elev_back"`

	PwrRes   stale.Cell[float64] `json:"pwr_res" yaml:"pwr_res"`
	PwrAccel stale.Cell[float64] `json:"pwr_accel" yaml:"pwr_accel"`
	// wheel power handed to the consist
	PwrWhlOut       stale.Cell[float64] `json:"pwr_whl_out" yaml:"pwr_whl_out" stale:"consume"`
	EnergyWhlOutPos stale.Cell[float64] `json:"energy_whl_out_pos" yaml:"energy_whl_out_pos"`
	EnergyWhlOutNeg stale.Cell[float64] `json:"energy_whl_out_neg" yaml:"energy_whl_out_neg"`
}

// NewState places a train of the given params with its tail at the start of the path.
// locoMass is the mass of the consist hauling it.
func NewState(p Params, locoMass, speed float64) State {
	mass := p.TowedMassStatic + locoMass
	return State{
		Offset:       stale.New(p.Length),
		Speed:        stale.New(speed),
		Length:       stale.New(p.Length),
		MassStatic:   stale.New(mass),
		MassRot:      stale.New(p.MassRot),
		MassFreight:  stale.New(p.MassFreight),
		WeightStatic: stale.New(mass * units.Gravity),
	}
}

// MassCompound is the effective mass for acceleration, including rotating inertia.
func (s *State) MassCompound() float64 {
	return s.MassStatic.GetStale() + s.MassRot.GetStale()
}

// ResNet is the sum of the resistance terms computed this step.
func (s *State) ResNet() (float64, error) {
	var total float64
	for _, c := range []struct {
		cell *stale.Cell[float64]
		loc  string
	}{
		{&s.ResRolling, "train.res_rolling"},
		{&s.ResBearing, "train.res_bearing"},
		{&s.ResFlange, "train.res_flange"},
		{&s.ResGrade, "train.res_grade"},
		{&s.ResCurve, "train.res_curve"},
	} {
		v, err := c.cell.Get(c.loc)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// MarkStaticFresh marks the fields that do not change while a train runs.
func (s *State) MarkStaticFresh(loc string) error {
	for _, c := range []*stale.Cell[float64]{&s.Length, &s.MassStatic, &s.MassRot, &s.MassFreight, &s.WeightStatic} {
		if err := c.MarkFresh(loc); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) CheckAndReset(loc string) error {
	return stale.CheckAndResetAll(loc+".train", s)
}

// Step advances the index.
func (s *State) Step() error {
	return stale.Increment(&s.I, 1, "train.i")
}

var _ core.CheckResetter = (*State)(nil)
