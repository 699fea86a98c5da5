package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
)

// ElectricDrivetrainState is the per-step state of an ElectricDrivetrain.
type ElectricDrivetrainState struct {
	I               stale.Cell[int]     `json:"i" yaml:"i"`
	PwrMechOutMax   stale.Cell[float64] `json:"pwr_mech_out_max" yaml:"pwr_mech_out_max"`
	PwrMechRegenMax stale.Cell[float64] `json:"pwr_mech_regen_max" yaml:"pwr_mech_regen_max"`
	PwrRateOutMax   stale.Cell[float64] `json:"pwr_rate_out_max" yaml:"pwr_rate_out_max"`
	Eta             stale.Cell[float64] `json:"eta" yaml:"eta"`
	// electrical power drawn for propulsion; negative when regenerating
	PwrElecPropIn stale.Cell[float64] `json:"pwr_elec_prop_in" yaml:"pwr_elec_prop_in"`
	// mechanical power at the wheels through the traction path; negative when regenerating
	PwrMechPropOut stale.Cell[float64] `json:"pwr_mech_prop_out" yaml:"pwr_mech_prop_out"`
	// braking power dissipated in the resistor grid
	PwrMechDynBrake stale.Cell[float64] `json:"pwr_mech_dyn_brake" yaml:"pwr_mech_dyn_brake"`
	PwrLoss         stale.Cell[float64] `json:"pwr_loss" yaml:"pwr_loss"`

	EnergyElecPropIn   stale.Cell[float64] `json:"energy_elec_prop_in" yaml:"energy_elec_prop_in"`
	EnergyMechPropOut  stale.Cell[float64] `json:"energy_mech_prop_out" yaml:"energy_mech_prop_out"`
	EnergyMechDynBrake stale.Cell[float64] `json:"energy_mech_dyn_brake" yaml:"energy_mech_dyn_brake"`
	EnergyLoss         stale.Cell[float64] `json:"energy_loss" yaml:"energy_loss"`
}

// ElectricDrivetrain models inverters and traction motors. Its PwrOutMax also bounds
// dynamic braking.
type ElectricDrivetrain struct {
	State        ElectricDrivetrainState   `json:"state" yaml:"state"`
	PwrOutMax    float64                   `json:"pwr_out_max" yaml:"pwr_out_max"`
	EtaCurve     Curve                     `json:"eta_curve" yaml:"eta_curve"`
	SaveInterval *int                      `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
	History      []ElectricDrivetrainState `json:"history,omitempty" yaml:"history,omitempty"`
}

func DefaultElectricDrivetrain() ElectricDrivetrain {
	return ElectricDrivetrain{
		PwrOutMax: 5e6,
		EtaCurve: Curve{
			X: []float64{0, 0.1, 0.25, 0.5, 1},
			Y: []float64{0.9, 0.95, 0.97, 0.98, 0.98},
		},
	}
}

// SetCurPwrMaxOut sets traction and regen capability from the available electrical
// input. A nil regen input means the drivetrain cannot regenerate.
func (e *ElectricDrivetrain) SetCurPwrMaxOut(pwrInMax float64, pwrRegenInMax *float64) error {
	out, err := e.EtaCurve.MaxOut(pwrInMax, e.PwrOutMax, e.PwrOutMax)
	if err != nil {
		return err
	}
	if err := e.State.PwrMechOutMax.Update(out, "edrv.pwr_mech_out_max"); err != nil {
		return err
	}
	regen := 0.0
	if pwrRegenInMax != nil {
		regen = math.Min(e.PwrOutMax, math.Max(0, *pwrRegenInMax))
	}
	return e.State.PwrMechRegenMax.Update(regen, "edrv.pwr_mech_regen_max")
}

func (e *ElectricDrivetrain) SetPwrRateOutMax(rate float64) error {
	return e.State.PwrRateOutMax.Update(rate, "edrv.pwr_rate_out_max")
}

// SetPwrInReq solves for the electrical power required at the drivetrain input.
// Negative requests regenerate up to PwrMechRegenMax and dissipate the rest.
func (e *ElectricDrivetrain) SetPwrInReq(pwrOutReq float64, assertLimits bool) error {
	outMax, err := e.State.PwrMechOutMax.Get("edrv.pwr_mech_out_max")
	if err != nil {
		return err
	}
	regenMax, err := e.State.PwrMechRegenMax.Get("edrv.pwr_mech_regen_max")
	if err != nil {
		return err
	}
	if assertLimits {
		if !core.AlmostLE(pwrOutReq, outMax, 0) {
			return core.Limitf("edrv: output %.1f W exceeds max %.1f W", pwrOutReq, outMax)
		}
		if !core.AlmostLE(-pwrOutReq, e.PwrOutMax, 0) {
			return core.Limitf("edrv: braking %.1f W exceeds dynamic brake max %.1f W", -pwrOutReq, e.PwrOutMax)
		}
	}
	prop, dynBrake := pwrOutReq, 0.0
	if pwrOutReq < 0 {
		prop = math.Max(pwrOutReq, -regenMax)
		dynBrake = prop - pwrOutReq
	}
	eta, err := e.EtaCurve.At(math.Abs(prop) / e.PwrOutMax)
	if err != nil {
		return err
	}
	elecIn := prop / eta
	if prop < 0 {
		elecIn = prop * eta
	}
	s := &e.State
	if err := s.Eta.Update(eta, "edrv.eta"); err != nil {
		return err
	}
	if err := s.PwrMechPropOut.Update(prop, "edrv.pwr_mech_prop_out"); err != nil {
		return err
	}
	if err := s.PwrMechDynBrake.Update(dynBrake, "edrv.pwr_mech_dyn_brake"); err != nil {
		return err
	}
	if err := s.PwrElecPropIn.Update(elecIn, "edrv.pwr_elec_prop_in"); err != nil {
		return err
	}
	return s.PwrLoss.Update(elecIn-prop, "edrv.pwr_loss")
}

func (e *ElectricDrivetrain) SetCumulative(dt float64) error {
	s := &e.State
	return integrate(dt, "edrv",
		term{&s.EnergyElecPropIn, &s.PwrElecPropIn},
		term{&s.EnergyMechPropOut, &s.PwrMechPropOut},
		term{&s.EnergyMechDynBrake, &s.PwrMechDynBrake},
		term{&s.EnergyLoss, &s.PwrLoss},
	)
}

func (e *ElectricDrivetrain) Step() { stepIndex(&e.State.I) }

func (e *ElectricDrivetrain) CheckAndReset(loc string) error {
	return stale.CheckAndResetAll(loc+".edrv", &e.State)
}

func (e *ElectricDrivetrain) SaveState() {
	if core.ShouldSave(e.SaveInterval, e.State.I.GetStale()) {
		e.History = append(e.History, e.State)
	}
}
