package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
)

// GeneratorState is the per-step state of a Generator.
type GeneratorState struct {
	I                 stale.Cell[int]     `json:"i" yaml:"i"`
	PwrElecOutMax     stale.Cell[float64] `json:"pwr_elec_out_max" yaml:"pwr_elec_out_max"`
	PwrElecPropOutMax stale.Cell[float64] `json:"pwr_elec_prop_out_max" yaml:"pwr_elec_prop_out_max"`
	PwrRateOutMax     stale.Cell[float64] `json:"pwr_rate_out_max" yaml:"pwr_rate_out_max"`
	Eta               stale.Cell[float64] `json:"eta" yaml:"eta"`
	PwrMechIn         stale.Cell[float64] `json:"pwr_mech_in" yaml:"pwr_mech_in"`
	PwrElecPropOut    stale.Cell[float64] `json:"pwr_elec_prop_out" yaml:"pwr_elec_prop_out"`
	PwrElecAux        stale.Cell[float64] `json:"pwr_elec_aux" yaml:"pwr_elec_aux"`
	PwrLoss           stale.Cell[float64] `json:"pwr_loss" yaml:"pwr_loss"`

	EnergyMechIn      stale.Cell[float64] `json:"energy_mech_in" yaml:"energy_mech_in"`
	EnergyElecPropOut stale.Cell[float64] `json:"energy_elec_prop_out" yaml:"energy_elec_prop_out"`
	EnergyElecAux     stale.Cell[float64] `json:"energy_elec_aux" yaml:"energy_elec_aux"`
	EnergyLoss        stale.Cell[float64] `json:"energy_loss" yaml:"energy_loss"`
}

// Generator converts fuel converter shaft power into electrical power for propulsion
// and auxiliary loads.
type Generator struct {
	State        GeneratorState   `json:"state" yaml:"state"`
	Mass         *float64         `json:"mass,omitempty" yaml:"mass,omitempty"`
	PwrOutMax    float64          `json:"pwr_out_max" yaml:"pwr_out_max"`
	EtaCurve     Curve            `json:"eta_curve" yaml:"eta_curve"`
	SaveInterval *int             `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
	History      []GeneratorState `json:"history,omitempty" yaml:"history,omitempty"`
}

func DefaultGenerator() Generator {
	return Generator{
		PwrOutMax: 5e6,
		EtaCurve: Curve{
			X: []float64{0, 0.1, 0.25, 0.5, 1},
			Y: []float64{0.88, 0.92, 0.94, 0.95, 0.96},
		},
	}
}

// SetCurPwrMaxOut sets electrical capability from the fuel converter's available
// brake power, reserving pwrAux for auxiliary loads. Capability is evaluated at the
// efficiency of the operating point it bounds, so output delivered last step stays
// reachable while brake power ramps.
func (g *Generator) SetCurPwrMaxOut(pwrInMax, pwrAux float64) error {
	out, err := g.EtaCurve.MaxOut(pwrInMax, g.PwrOutMax, g.PwrOutMax)
	if err != nil {
		return err
	}
	if err := g.State.PwrElecOutMax.Update(out, "gen.pwr_elec_out_max"); err != nil {
		return err
	}
	return g.State.PwrElecPropOutMax.Update(math.Max(0, out-pwrAux), "gen.pwr_elec_prop_out_max")
}

func (g *Generator) SetPwrRateOutMax(pwrRateInMax float64) error {
	return g.State.PwrRateOutMax.Update(pwrRateInMax*g.EtaCurve.Min(), "gen.pwr_rate_out_max")
}

// SetPwrInReq solves for the shaft power needed to supply propulsion and aux loads.
func (g *Generator) SetPwrInReq(pwrPropReq, pwrAux float64, engineOn, assertLimits bool) error {
	propMax, err := g.State.PwrElecPropOutMax.Get("gen.pwr_elec_prop_out_max")
	if err != nil {
		return err
	}
	if pwrPropReq < 0 {
		return core.Invariantf("gen: propulsion power %.1f W must be non-negative", pwrPropReq)
	}
	if assertLimits && !core.AlmostLE(pwrPropReq, propMax, 0) {
		return core.Limitf("gen: propulsion power %.1f W exceeds max %.1f W", pwrPropReq, propMax)
	}
	if !engineOn {
		pwrAux = 0
	}
	out := pwrPropReq + pwrAux
	eta, err := g.EtaCurve.At(out / g.PwrOutMax)
	if err != nil {
		return err
	}
	in := out / eta
	s := &g.State
	if err := s.Eta.Update(eta, "gen.eta"); err != nil {
		return err
	}
	if err := s.PwrElecPropOut.Update(pwrPropReq, "gen.pwr_elec_prop_out"); err != nil {
		return err
	}
	if err := s.PwrElecAux.Update(pwrAux, "gen.pwr_elec_aux"); err != nil {
		return err
	}
	if err := s.PwrMechIn.Update(in, "gen.pwr_mech_in"); err != nil {
		return err
	}
	return s.PwrLoss.Update(in-out, "gen.pwr_loss")
}

func (g *Generator) SetCumulative(dt float64) error {
	s := &g.State
	return integrate(dt, "gen",
		term{&s.EnergyMechIn, &s.PwrMechIn},
		term{&s.EnergyElecPropOut, &s.PwrElecPropOut},
		term{&s.EnergyElecAux, &s.PwrElecAux},
		term{&s.EnergyLoss, &s.PwrLoss},
	)
}

func (g *Generator) Step() { stepIndex(&g.State.I) }

func (g *Generator) CheckAndReset(loc string) error {
	return stale.CheckAndResetAll(loc+".gen", &g.State)
}

func (g *Generator) SaveState() {
	if core.ShouldSave(g.SaveInterval, g.State.I.GetStale()) {
		g.History = append(g.History, g.State)
	}
}
