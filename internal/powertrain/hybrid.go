package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
)

// Hybrid adds reversible energy storage to a diesel-electric powertrain. Traction is
// drawn from storage first; the engine covers the remainder and the aux load.
type Hybrid struct {
	FC       FuelConverter           `json:"fc" yaml:"fc"`
	Gen      Generator               `json:"gen" yaml:"gen"`
	RES      ReversibleEnergyStorage `json:"res" yaml:"res"`
	EDrv     ElectricDrivetrain      `json:"edrv" yaml:"edrv"`
	Controls BufferControls          `json:"controls" yaml:"controls"`
}

func DefaultHybrid() *Hybrid {
	res := DefaultReversibleEnergyStorage()
	res.EnergyCapacity /= 4
	res.PwrOutMax = 1.5e6
	return &Hybrid{
		FC:       DefaultFuelConverter(),
		Gen:      DefaultGenerator(),
		RES:      res,
		EDrv:     DefaultElectricDrivetrain(),
		Controls: DefaultBufferControls(),
	}
}

func (h *Hybrid) setCurPwrMaxOut(pwrAux, mass, speed, dt float64) error {
	disch, chrg := h.Controls.Buffers(mass, speed)
	if err := h.RES.SetCurPwrOutMax(dt, 0, disch, chrg); err != nil {
		return err
	}
	if err := h.FC.SetCurPwrOutMax(dt); err != nil {
		return err
	}
	fcMax, err := h.FC.State.PwrOutMax.Get("fc.pwr_out_max")
	if err != nil {
		return err
	}
	if err := h.Gen.SetCurPwrMaxOut(fcMax, pwrAux); err != nil {
		return err
	}
	rate := h.FC.RampRate()
	if math.IsInf(rate, 1) {
		rate = h.FC.PwrOutMax / dt
	}
	if err := h.Gen.SetPwrRateOutMax(rate); err != nil {
		return err
	}
	genMax, err := h.Gen.State.PwrElecPropOutMax.Get("gen.pwr_elec_prop_out_max")
	if err != nil {
		return err
	}
	resMax, err := h.RES.State.PwrPropMax.Get("res.pwr_prop_max")
	if err != nil {
		return err
	}
	regenMax, err := h.RES.State.PwrRegenMax.Get("res.pwr_regen_max")
	if err != nil {
		return err
	}
	if err := h.EDrv.SetCurPwrMaxOut(genMax+resMax, &regenMax); err != nil {
		return err
	}
	outMax, err := h.EDrv.State.PwrMechOutMax.Get("edrv.pwr_mech_out_max")
	if err != nil {
		return err
	}
	return h.EDrv.SetPwrRateOutMax(math.Max(0, outMax-h.EDrv.State.PwrMechPropOut.GetStale()) / dt)
}

func (h *Hybrid) solveEnergyConsumption(pwrOutReq, dt, pwrAux float64, assertLimits bool) error {
	if err := h.EDrv.SetPwrInReq(pwrOutReq, assertLimits); err != nil {
		return err
	}
	elecIn, err := h.EDrv.State.PwrElecPropIn.Get("edrv.pwr_elec_prop_in")
	if err != nil {
		return err
	}
	resMax, err := h.RES.State.PwrPropMax.Get("res.pwr_prop_max")
	if err != nil {
		return err
	}
	resShare, genShare := elecIn, 0.0
	if elecIn > 0 {
		resShare = math.Min(elecIn, resMax)
		genShare = elecIn - resShare
	}
	if err := h.RES.SolveEnergyConsumption(resShare, 0, dt, assertLimits); err != nil {
		return err
	}
	if err := h.Gen.SetPwrInReq(genShare, pwrAux, true, assertLimits); err != nil {
		return err
	}
	mechIn, err := h.Gen.State.PwrMechIn.Get("gen.pwr_mech_in")
	if err != nil {
		return err
	}
	return h.FC.SolveEnergyConsumption(mechIn, dt, true, assertLimits)
}

func (h *Hybrid) mass() (*float64, error) {
	return sumMasses("hybrid", h.FC.Mass, h.Gen.Mass, h.RES.Mass)
}

func (h *Hybrid) expungeMassFields() {
	h.FC.Mass, h.Gen.Mass, h.RES.Mass = nil, nil, nil
}

func requireMassSpeed(kind Kind, mass, speed *float64) (float64, float64, error) {
	if mass == nil {
		return 0, 0, core.Invariantf("%s: train mass must be provided at the consist level or below", kind)
	}
	if speed == nil {
		return 0, 0, core.Invariantf("%s: train speed must be provided at the consist level or below", kind)
	}
	return *mass, *speed, nil
}
