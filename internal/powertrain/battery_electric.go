package powertrain

import "math"

// BatteryElectric draws all traction and aux power from reversible energy storage.
type BatteryElectric struct {
	RES      ReversibleEnergyStorage `json:"res" yaml:"res"`
	EDrv     ElectricDrivetrain      `json:"edrv" yaml:"edrv"`
	Controls BufferControls          `json:"controls" yaml:"controls"`
}

func DefaultBatteryElectric() *BatteryElectric {
	return &BatteryElectric{
		RES:      DefaultReversibleEnergyStorage(),
		EDrv:     DefaultElectricDrivetrain(),
		Controls: DefaultBufferControls(),
	}
}

func (b *BatteryElectric) setCurPwrMaxOut(pwrAux, mass, speed, dt float64) error {
	disch, chrg := b.Controls.Buffers(mass, speed)
	if err := b.RES.SetCurPwrOutMax(dt, pwrAux, disch, chrg); err != nil {
		return err
	}
	propMax, err := b.RES.State.PwrPropMax.Get("res.pwr_prop_max")
	if err != nil {
		return err
	}
	regenMax, err := b.RES.State.PwrRegenMax.Get("res.pwr_regen_max")
	if err != nil {
		return err
	}
	if err := b.EDrv.SetCurPwrMaxOut(propMax, &regenMax); err != nil {
		return err
	}
	outMax, err := b.EDrv.State.PwrMechOutMax.Get("edrv.pwr_mech_out_max")
	if err != nil {
		return err
	}
	return b.EDrv.SetPwrRateOutMax(math.Max(0, outMax-b.EDrv.State.PwrMechPropOut.GetStale()) / dt)
}

func (b *BatteryElectric) solveEnergyConsumption(pwrOutReq, dt, pwrAux float64, assertLimits bool) error {
	if err := b.EDrv.SetPwrInReq(pwrOutReq, assertLimits); err != nil {
		return err
	}
	elecIn, err := b.EDrv.State.PwrElecPropIn.Get("edrv.pwr_elec_prop_in")
	if err != nil {
		return err
	}
	return b.RES.SolveEnergyConsumption(elecIn, pwrAux, dt, assertLimits)
}

func (b *BatteryElectric) mass() (*float64, error) {
	return sumMasses("battery electric", b.RES.Mass)
}

func (b *BatteryElectric) expungeMassFields() {
	b.RES.Mass = nil
}
