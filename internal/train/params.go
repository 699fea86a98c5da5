// Package train models the train as a whole: its physical state, resistance, friction
// brakes, the path it runs over and the braking curve derived from that path.
package train

import (
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/units"
)

type Type string

const (
	Freight      Type = "freight"
	Passenger    Type = "passenger"
	Intermodal   Type = "intermodal"
	HighSpeed    Type = "high_speed"
	TiltTrain    Type = "tilt_train"
	Commuter     Type = "commuter"
	AnyTrainType Type = ""
)

// LimitType names the train property a speed parameter restricts.
type LimitType string

const (
	LimitMassTotal    LimitType = "mass_total"
	LimitMassPerBrake LimitType = "mass_per_brake"
	LimitAxleCount    LimitType = "axle_count"
)

type CompareType string

const (
	CompareNone           CompareType = "none"
	CompareEqual          CompareType = "equal"
	CompareGreaterThan    CompareType = "greater_than"
	CompareGreaterOrEqual CompareType = "greater_than_equal"
	CompareLessThan       CompareType = "less_than"
	CompareLessOrEqual    CompareType = "less_than_equal"
)

func (c CompareType) applies(v, limit float64) bool {
	switch c {
	case CompareEqual:
		return v == limit
	case CompareGreaterThan:
		return v > limit
	case CompareGreaterOrEqual:
		return v >= limit
	case CompareLessThan:
		return v < limit
	case CompareLessOrEqual:
		return v <= limit
	default:
		return true
	}
}

// SpeedParam is one condition a train must meet for a speed set to apply.
type SpeedParam struct {
	LimitVal    float64     `json:"limit_val" yaml:"limit_val"`
	LimitType   LimitType   `json:"limit_type" yaml:"limit_type"`
	CompareType CompareType `json:"compare_type" yaml:"compare_type"`
}

// Params are the static properties of the train consist and its cars.
type Params struct {
	Length          float64 `json:"length" yaml:"length"`
	SpeedMax        float64 `json:"speed_max" yaml:"speed_max"`
	TowedMassStatic float64 `json:"towed_mass_static" yaml:"towed_mass_static"`
	// rotating-inertia equivalent mass of wheels and axles
	MassRot      float64 `json:"mass_rot" yaml:"mass_rot"`
	MassFreight  float64 `json:"mass_freight" yaml:"mass_freight"`
	MassPerBrake float64 `json:"mass_per_brake" yaml:"mass_per_brake"`
	AxleCount    uint32  `json:"axle_count" yaml:"axle_count"`
	TrainType    Type    `json:"train_type" yaml:"train_type"`
	CurveCoeff0  float64 `json:"curve_coeff_0" yaml:"curve_coeff_0"`
	CurveCoeff1  float64 `json:"curve_coeff_1" yaml:"curve_coeff_1"`
	CurveCoeff2  float64 `json:"curve_coeff_2" yaml:"curve_coeff_2"`
}

// DefaultParams is a 100-car loaded freight train.
func DefaultParams() Params {
	return Params{
		Length:          2000,
		SpeedMax:        25,
		TowedMassStatic: 143 * 100 * units.Ton,
		MassRot:         100 * 4 * 450,
		MassFreight:     100 * 100 * units.Ton,
		MassPerBrake:    143 * units.Ton,
		AxleCount:       100 * 4,
		TrainType:       Freight,
		CurveCoeff0:     0.7,
	}
}

func (p *Params) Validate() error {
	switch {
	case p.Length <= 0:
		return core.Invariantf("train params: length %.1f m must be positive", p.Length)
	case p.SpeedMax <= 0:
		return core.Invariantf("train params: speed max %.2f m/s must be positive", p.SpeedMax)
	case p.TowedMassStatic <= 0:
		return core.Invariantf("train params: towed mass %.1f kg must be positive", p.TowedMassStatic)
	case p.MassRot < 0 || p.MassFreight < 0:
		return core.Invariantf("train params: rotational and freight mass must not be negative")
	case p.AxleCount == 0:
		return core.Invariantf("train params: axle count must be positive")
	}
	return nil
}

// SpeedSetApplies reports whether every parameter of the set holds for this train
// and the set targets this train type.
func (p *Params) SpeedSetApplies(set *SpeedSet) bool {
	if set.TrainType != AnyTrainType && set.TrainType != p.TrainType {
		return false
	}
	for _, sp := range set.SpeedParams {
		var v float64
		switch sp.LimitType {
		case LimitMassTotal:
			v = p.TowedMassStatic
		case LimitMassPerBrake:
			v = p.MassPerBrake
		case LimitAxleCount:
			v = float64(p.AxleCount)
		default:
			return false
		}
		if !sp.CompareType.applies(v, sp.LimitVal) {
			return false
		}
	}
	return true
}
