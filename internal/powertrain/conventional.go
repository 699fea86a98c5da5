package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
)

// Conventional is a diesel-electric powertrain: fuel converter, generator and
// electric drivetrain. It can dynamic-brake but not regenerate.
type Conventional struct {
	FC   FuelConverter      `json:"fc" yaml:"fc"`
	Gen  Generator          `json:"gen" yaml:"gen"`
	EDrv ElectricDrivetrain `json:"edrv" yaml:"edrv"`
}

func DefaultConventional() *Conventional {
	return &Conventional{
		FC:   DefaultFuelConverter(),
		Gen:  DefaultGenerator(),
		EDrv: DefaultElectricDrivetrain(),
	}
}

func (c *Conventional) setCurPwrMaxOut(pwrAux, dt float64) error {
	if err := c.FC.SetCurPwrOutMax(dt); err != nil {
		return err
	}
	fcMax, err := c.FC.State.PwrOutMax.Get("fc.pwr_out_max")
	if err != nil {
		return err
	}
	if err := c.Gen.SetCurPwrMaxOut(fcMax, pwrAux); err != nil {
		return err
	}
	rate := c.FC.RampRate()
	if math.IsInf(rate, 1) {
		rate = c.FC.PwrOutMax / dt
	}
	if err := c.Gen.SetPwrRateOutMax(rate); err != nil {
		return err
	}
	genMax, err := c.Gen.State.PwrElecPropOutMax.Get("gen.pwr_elec_prop_out_max")
	if err != nil {
		return err
	}
	if err := c.EDrv.SetCurPwrMaxOut(genMax, nil); err != nil {
		return err
	}
	outMax, err := c.EDrv.State.PwrMechOutMax.Get("edrv.pwr_mech_out_max")
	if err != nil {
		return err
	}
	return c.EDrv.SetPwrRateOutMax(math.Max(0, outMax-c.EDrv.State.PwrMechPropOut.GetStale()) / dt)
}

func (c *Conventional) solveEnergyConsumption(pwrOutReq, dt float64, engineOn bool, pwrAux float64, assertLimits bool) error {
	if err := c.EDrv.SetPwrInReq(pwrOutReq, assertLimits); err != nil {
		return err
	}
	elecIn, err := c.EDrv.State.PwrElecPropIn.Get("edrv.pwr_elec_prop_in")
	if err != nil {
		return err
	}
	if err := c.Gen.SetPwrInReq(math.Max(0, elecIn), pwrAux, engineOn, assertLimits); err != nil {
		return err
	}
	mechIn, err := c.Gen.State.PwrMechIn.Get("gen.pwr_mech_in")
	if err != nil {
		return err
	}
	return c.FC.SolveEnergyConsumption(mechIn, dt, engineOn, assertLimits)
}

func (c *Conventional) mass() (*float64, error) {
	return sumMasses("conventional", c.FC.Mass, c.Gen.Mass)
}

func (c *Conventional) expungeMassFields() {
	c.FC.Mass, c.Gen.Mass = nil, nil
}

// sumMasses returns the total when every mass is set, nil when none is, and an
// invariant error when only some are.
func sumMasses(loc string, masses ...*float64) (*float64, error) {
	var total float64
	set := 0
	for _, m := range masses {
		if m != nil {
			total += *m
			set++
		}
	}
	switch set {
	case 0:
		return nil, nil
	case len(masses):
		return &total, nil
	default:
		return nil, core.Invariantf("%s: component masses must all be set or all be nil (%d of %d set)", loc, set, len(masses))
	}
}
