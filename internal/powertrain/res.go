package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
	"github.com/san-kum/railsim/internal/units"
)

// ResState is the per-step state of a ReversibleEnergyStorage.
type ResState struct {
	I   stale.Cell[int]     `json:"i" yaml:"i"`
	Soc stale.Cell[float64] `json:"soc" yaml:"soc"`
	Eta stale.Cell[float64] `json:"eta" yaml:"eta"`

	// max total discharge and charge power at the terminals
	PwrDischMax  stale.Cell[float64] `json:"pwr_disch_max" yaml:"pwr_disch_max"`
	PwrChargeMax stale.Cell[float64] `json:"pwr_charge_max" yaml:"pwr_charge_max"`
	// max discharge power left for propulsion after aux loads
	PwrPropMax stale.Cell[float64] `json:"pwr_prop_max" yaml:"pwr_prop_max"`
	// max regen power propulsion may return, including what aux loads absorb
	PwrRegenMax stale.Cell[float64] `json:"pwr_regen_max" yaml:"pwr_regen_max"`

	// total electrical power; positive is discharging
	PwrOutElectrical stale.Cell[float64] `json:"pwr_out_electrical" yaml:"pwr_out_electrical"`
	PwrOutPropulsion stale.Cell[float64] `json:"pwr_out_propulsion" yaml:"pwr_out_propulsion"`
	PwrAux           stale.Cell[float64] `json:"pwr_aux" yaml:"pwr_aux"`
	PwrLoss          stale.Cell[float64] `json:"pwr_loss" yaml:"pwr_loss"`
	// chemical power; positive is discharging
	PwrOutChemical stale.Cell[float64] `json:"pwr_out_chemical" yaml:"pwr_out_chemical"`

	EnergyOutElectrical stale.Cell[float64] `json:"energy_out_electrical" yaml:"energy_out_electrical"`
	EnergyOutPropulsion stale.Cell[float64] `json:"energy_out_propulsion" yaml:"energy_out_propulsion"`
	EnergyAux           stale.Cell[float64] `json:"energy_aux" yaml:"energy_aux"`
	EnergyLoss          stale.Cell[float64] `json:"energy_loss" yaml:"energy_loss"`
	EnergyOutChemical   stale.Cell[float64] `json:"energy_out_chemical" yaml:"energy_out_chemical"`

	// SOC bounds after dynamic buffers are applied
	MaxSoc         stale.Cell[float64] `json:"max_soc" yaml:"max_soc"`
	SocHiRampStart stale.Cell[float64] `json:"soc_hi_ramp_start" yaml:"soc_hi_ramp_start"`
	MinSoc         stale.Cell[float64] `json:"min_soc" yaml:"min_soc"`
	SocLoRampStart stale.Cell[float64] `json:"soc_lo_ramp_start" yaml:"soc_lo_ramp_start"`

	TemperatureCelsius stale.Cell[float64] `json:"temperature_celsius" yaml:"temperature_celsius"`
}

// NewResState returns the initial storage state.
func NewResState() ResState {
	return ResState{
		Soc:                stale.New(0.95),
		MaxSoc:             stale.New(1.0),
		SocHiRampStart:     stale.New(1.0),
		TemperatureCelsius: stale.New(45.0),
	}
}

// ReversibleEnergyStorage is a technology-neutral battery model.
type ReversibleEnergyStorage struct {
	State ResState `json:"state" yaml:"state"`
	Mass  *float64 `json:"mass,omitempty" yaml:"mass,omitempty"`
	// total energy between SOC 0 and 1, J
	EnergyCapacity float64 `json:"energy_capacity" yaml:"energy_capacity"`
	// max discharge and charge power at the terminals, W
	PwrOutMax float64 `json:"pwr_out_max" yaml:"pwr_out_max"`
	MinSoc    float64 `json:"min_soc" yaml:"min_soc"`
	MaxSoc    float64 `json:"max_soc" yaml:"max_soc"`
	// SOC below which discharge power derates linearly to zero at MinSoc
	SocLoRampStart *float64 `json:"soc_lo_ramp_start,omitempty" yaml:"soc_lo_ramp_start,omitempty"`
	// SOC above which charge power derates linearly to zero at MaxSoc
	SocHiRampStart *float64 `json:"soc_hi_ramp_start,omitempty" yaml:"soc_hi_ramp_start,omitempty"`
	// round-trip-split efficiency as a function of SOC
	EtaCurve     Curve      `json:"eta_curve" yaml:"eta_curve"`
	SaveInterval *int       `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
	History      []ResState `json:"history,omitempty" yaml:"history,omitempty"`
}

func DefaultReversibleEnergyStorage() ReversibleEnergyStorage {
	lo, hi := 0.15, 0.85
	return ReversibleEnergyStorage{
		State:          NewResState(),
		EnergyCapacity: 3.5e3 * units.KWh,
		PwrOutMax:      3.5e6,
		MinSoc:         0.05,
		MaxSoc:         0.95,
		SocLoRampStart: &lo,
		SocHiRampStart: &hi,
		EtaCurve: Curve{
			X: []float64{0, 0.5, 1},
			Y: []float64{0.95, 0.97, 0.96},
		},
	}
}

// EnergyUsable is the energy between the hard SOC limits.
func (r *ReversibleEnergyStorage) EnergyUsable() float64 {
	return r.EnergyCapacity * (r.MaxSoc - r.MinSoc)
}

// SetCurPwrOutMax computes this step's charge and discharge capability. The
// discharge buffer raises the effective minimum SOC and the charge buffer lowers the
// effective maximum SOC, each by buffer energy over capacity.
func (r *ReversibleEnergyStorage) SetCurPwrOutMax(dt, pwrAux, dischBuffer, chrgBuffer float64) error {
	if r.EnergyCapacity <= 0 {
		return core.Invariantf("res: energy capacity %.1f J must be positive", r.EnergyCapacity)
	}
	if dt <= 0 {
		return core.Invariantf("res: dt %.3f s must be positive", dt)
	}
	soc := r.State.Soc.GetStale()
	eta, err := r.EtaCurve.At(soc)
	if err != nil {
		return err
	}

	floor := math.Min(r.MaxSoc, r.MinSoc+math.Max(0, dischBuffer)/r.EnergyCapacity)
	loRamp := floor
	if r.SocLoRampStart != nil {
		loRamp = floor + (*r.SocLoRampStart - r.MinSoc)
	}
	ceiling := math.Max(r.MinSoc, r.MaxSoc-math.Max(0, chrgBuffer)/r.EnergyCapacity)
	hiRamp := ceiling
	if r.SocHiRampStart != nil {
		hiRamp = ceiling - (r.MaxSoc - *r.SocHiRampStart)
	}

	disch := math.Min(r.PwrOutMax, math.Max(0, (soc-floor)*r.EnergyCapacity*eta/dt))
	if soc < loRamp && loRamp > floor {
		disch *= core.Clamp((soc-floor)/(loRamp-floor), 0, 1)
	}
	charge := math.Min(r.PwrOutMax, math.Max(0, (ceiling-soc)*r.EnergyCapacity/(eta*dt)))
	if soc > hiRamp && ceiling > hiRamp {
		charge *= core.Clamp((ceiling-soc)/(ceiling-hiRamp), 0, 1)
	}

	s := &r.State
	updates := []struct {
		cell *stale.Cell[float64]
		v    float64
		loc  string
	}{
		{&s.Eta, eta, "res.eta"},
		{&s.MinSoc, floor, "res.min_soc"},
		{&s.SocLoRampStart, loRamp, "res.soc_lo_ramp_start"},
		{&s.MaxSoc, ceiling, "res.max_soc"},
		{&s.SocHiRampStart, hiRamp, "res.soc_hi_ramp_start"},
		{&s.PwrDischMax, disch, "res.pwr_disch_max"},
		{&s.PwrChargeMax, charge, "res.pwr_charge_max"},
		{&s.PwrPropMax, math.Max(0, disch-pwrAux), "res.pwr_prop_max"},
		{&s.PwrRegenMax, charge + pwrAux, "res.pwr_regen_max"},
		{&s.TemperatureCelsius, s.TemperatureCelsius.GetStale(), "res.temperature_celsius"},
	}
	for _, u := range updates {
		if err := u.cell.Update(u.v, u.loc); err != nil {
			return err
		}
	}
	return nil
}

// SolveEnergyConsumption applies the propulsion and aux demand to the storage and
// advances SOC.
func (r *ReversibleEnergyStorage) SolveEnergyConsumption(pwrPropReq, pwrAuxReq, dt float64, assertLimits bool) error {
	s := &r.State
	eta, err := s.Eta.Get("res.eta")
	if err != nil {
		return err
	}
	elec := pwrPropReq + pwrAuxReq
	if assertLimits {
		dischMax, err := s.PwrDischMax.Get("res.pwr_disch_max")
		if err != nil {
			return err
		}
		chargeMax, err := s.PwrChargeMax.Get("res.pwr_charge_max")
		if err != nil {
			return err
		}
		if !core.AlmostLE(elec, dischMax, 0) {
			return core.Limitf("res: discharge %.1f W exceeds max %.1f W", elec, dischMax)
		}
		if !core.AlmostLE(-elec, chargeMax, 0) {
			return core.Limitf("res: charge %.1f W exceeds max %.1f W", -elec, chargeMax)
		}
	}
	chem := elec / eta
	if elec < 0 {
		chem = elec * eta
	}
	soc := s.Soc.GetStale() - chem*dt/r.EnergyCapacity
	if assertLimits && ((chem > 0 && soc < r.MinSoc-core.Epsilon) || (chem < 0 && soc > r.MaxSoc+core.Epsilon)) {
		return core.Limitf("res: soc %.6f outside [%.3f, %.3f]", soc, r.MinSoc, r.MaxSoc)
	}
	if err := s.Soc.Update(soc, "res.soc"); err != nil {
		return err
	}
	if err := s.PwrOutElectrical.Update(elec, "res.pwr_out_electrical"); err != nil {
		return err
	}
	if err := s.PwrOutPropulsion.Update(pwrPropReq, "res.pwr_out_propulsion"); err != nil {
		return err
	}
	if err := s.PwrAux.Update(pwrAuxReq, "res.pwr_aux"); err != nil {
		return err
	}
	if err := s.PwrOutChemical.Update(chem, "res.pwr_out_chemical"); err != nil {
		return err
	}
	return s.PwrLoss.Update(math.Abs(chem-elec), "res.pwr_loss")
}

func (r *ReversibleEnergyStorage) SetCumulative(dt float64) error {
	s := &r.State
	return integrate(dt, "res",
		term{&s.EnergyOutElectrical, &s.PwrOutElectrical},
		term{&s.EnergyOutPropulsion, &s.PwrOutPropulsion},
		term{&s.EnergyAux, &s.PwrAux},
		term{&s.EnergyLoss, &s.PwrLoss},
		term{&s.EnergyOutChemical, &s.PwrOutChemical},
	)
}

func (r *ReversibleEnergyStorage) Step() { stepIndex(&r.State.I) }

func (r *ReversibleEnergyStorage) CheckAndReset(loc string) error {
	return stale.CheckAndResetAll(loc+".res", &r.State)
}

func (r *ReversibleEnergyStorage) SaveState() {
	if core.ShouldSave(r.SaveInterval, r.State.I.GetStale()) {
		r.History = append(r.History, r.State)
	}
}
