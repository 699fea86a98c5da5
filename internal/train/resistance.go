package train

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/units"
)

// Method selects where along the train track properties are sampled.
type Method string

const (
	// Point samples grade and curvature at the head end.
	Point Method = "point"
	// Strap averages grade and curvature over the length of the train.
	Strap Method = "strap"
)

// Rolling resistance is a fixed fraction of static weight.
type Rolling struct {
	Ratio float64 `json:"ratio" yaml:"ratio"`
}

// DavisB is journal bearing resistance, linear in speed.
type DavisB struct {
	Force float64 `json:"force" yaml:"force"`
	Coeff float64 `json:"coeff" yaml:"coeff"`
}

// Flange resistance is proportional to speed.
type Flange struct {
	Coeff float64 `json:"coeff" yaml:"coeff"`
}

// Res computes the resistive forces acting on the train.
type Res struct {
	Method  Method  `json:"method" yaml:"method"`
	Rolling Rolling `json:"rolling" yaml:"rolling"`
	Bearing DavisB  `json:"bearing" yaml:"bearing"`
	Flange  Flange  `json:"flange" yaml:"flange"`
}

func DefaultRes() Res {
	return Res{
		Method:  Strap,
		Rolling: Rolling{Ratio: 0.0008},
		Bearing: DavisB{Force: 40e3, Coeff: 400},
		Flange:  Flange{Coeff: 200},
	}
}

// Forces is the resistance breakdown at one train state, in newtons. Positive values
// oppose forward motion.
type Forces struct {
	Rolling    float64
	Bearing    float64
	Flange     float64
	Grade      float64
	Curve      float64
	GradeFront float64
	GradeBack  float64
}

func (f Forces) Net() float64 {
	return f.Rolling + f.Bearing + f.Flange + f.Grade + f.Curve
}

// Calc evaluates resistance for a train with its head at offset.
func (r *Res) Calc(path *PathTpc, p *Params, mass, offset, speed float64, dir core.Dir) (Forces, error) {
	weight := mass * units.Gravity
	back := offset - p.Length
	f := Forces{
		Rolling:    r.Rolling.Ratio * weight,
		Bearing:    r.Bearing.Force + r.Bearing.Coeff*speed,
		Flange:     r.Flange.Coeff * speed,
		GradeFront: path.Grade(offset, dir),
		GradeBack:  path.Grade(back, dir),
	}

	var grade, curve float64
	switch r.Method {
	case Point:
		grade, curve = f.GradeFront, path.Curve(offset, dir)
	case Strap:
		lo := math.Max(back, path.OffsetBegin())
		grade = mean(path.Grades, lo, offset, dir)
		curve = mean(path.Curves, lo, offset, dir)
	default:
		return Forces{}, core.Invariantf("train res: unknown method %q", r.Method)
	}
	f.Grade = weight * math.Sin(math.Atan(grade))
	f.Curve = (p.CurveCoeff0 + p.CurveCoeff1*speed + p.CurveCoeff2*speed*speed) * curve * weight
	return f, nil
}

// Update recomputes the resistance fields of s at its current offset and speed.
func (r *Res) Update(s *State, path *PathTpc, p *Params, dir core.Dir) error {
	offset, speed := s.Offset.GetStale(), s.Speed.GetStale()
	f, err := r.Calc(path, p, s.MassStatic.GetStale(), offset, speed, dir)
	if err != nil {
		return err
	}
	back := offset - p.Length
	for _, err := range []error{
		s.ResRolling.Update(f.Rolling, "train.res_rolling"),
		s.ResBearing.Update(f.Bearing, "train.res_bearing"),
		s.ResFlange.Update(f.Flange, "train.res_flange"),
		s.ResGrade.Update(f.Grade, "train.res_grade"),
		s.ResCurve.Update(f.Curve, "train.res_curve"),
		s.GradeFront.Update(f.GradeFront, "train.grade_front"),
		s.GradeBack.Update(f.GradeBack, "train.grade_back"),
		s.ElevFront.Update(path.Elev(offset), "train.elev_front"),
		s.ElevBack.Update(path.Elev(back), "train.elev_back"),
		s.OffsetBack.Update(back, "train.offset_back"),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
