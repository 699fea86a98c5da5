package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/stale"
)

// FuelConverterState is the per-step state of a FuelConverter.
type FuelConverterState struct {
	I stale.Cell[int] `json:"i" yaml:"i"`
	// max brake power achievable this step given ramp-up limits
	PwrOutMax   stale.Cell[float64] `json:"pwr_out_max" yaml:"pwr_out_max"`
	EngineOn    stale.Cell[bool]    `json:"engine_on" yaml:"engine_on"`
	Eta         stale.Cell[float64] `json:"eta" yaml:"eta"`
	PwrBrake    stale.Cell[float64] `json:"pwr_brake" yaml:"pwr_brake"`
	PwrFuel     stale.Cell[float64] `json:"pwr_fuel" yaml:"pwr_fuel"`
	PwrLoss     stale.Cell[float64] `json:"pwr_loss" yaml:"pwr_loss"`
	PwrIdleFuel stale.Cell[float64] `json:"pwr_idle_fuel" yaml:"pwr_idle_fuel"`

	EnergyBrake    stale.Cell[float64] `json:"energy_brake" yaml:"energy_brake"`
	EnergyFuel     stale.Cell[float64] `json:"energy_fuel" yaml:"energy_fuel"`
	EnergyLoss     stale.Cell[float64] `json:"energy_loss" yaml:"energy_loss"`
	EnergyIdleFuel stale.Cell[float64] `json:"energy_idle_fuel" yaml:"energy_idle_fuel"`
}

// FuelConverter models an engine turning fuel power into shaft (brake) power.
type FuelConverter struct {
	State FuelConverterState `json:"state" yaml:"state"`
	Mass  *float64           `json:"mass,omitempty" yaml:"mass,omitempty"`
	// rated brake power, W
	PwrOutMax float64 `json:"pwr_out_max" yaml:"pwr_out_max"`
	// brake power available immediately regardless of ramp, W
	PwrOutMaxInit float64 `json:"pwr_out_max_init" yaml:"pwr_out_max_init"`
	// time to ramp from zero to PwrOutMax, s
	PwrRampLag float64 `json:"pwr_ramp_lag" yaml:"pwr_ramp_lag"`
	// fuel power consumed at idle, W
	PwrIdleFuel float64 `json:"pwr_idle_fuel" yaml:"pwr_idle_fuel"`
	// efficiency as a function of brake power fraction
	EtaCurve     Curve                `json:"eta_curve" yaml:"eta_curve"`
	SaveInterval *int                 `json:"save_interval,omitempty" yaml:"save_interval,omitempty"`
	History      []FuelConverterState `json:"history,omitempty" yaml:"history,omitempty"`
}

// DefaultFuelConverter returns a Tier 4 freight engine.
func DefaultFuelConverter() FuelConverter {
	return FuelConverter{
		PwrOutMax:     3.255e6,
		PwrOutMaxInit: 3.255e5,
		PwrRampLag:    25,
		PwrIdleFuel:   1.97e4,
		EtaCurve: Curve{
			X: []float64{0, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
			Y: []float64{0.2, 0.3, 0.34, 0.39, 0.42, 0.43, 0.42},
		},
	}
}

// RampRate is the maximum rate of change of brake power, W/s.
func (fc *FuelConverter) RampRate() float64 {
	if fc.PwrRampLag <= 0 {
		return math.Inf(1)
	}
	return fc.PwrOutMax / fc.PwrRampLag
}

// SetCurPwrOutMax sets the brake power available this step from the previous step's
// output and the ramp rate.
func (fc *FuelConverter) SetCurPwrOutMax(dt float64) error {
	avail := fc.PwrOutMax
	if fc.PwrRampLag > 0 {
		avail = math.Min(fc.PwrOutMax, fc.State.PwrBrake.GetStale()+fc.RampRate()*dt)
	}
	avail = math.Max(avail, math.Min(fc.PwrOutMaxInit, fc.PwrOutMax))
	return fc.State.PwrOutMax.Update(avail, "fc.pwr_out_max")
}

// SolveEnergyConsumption computes fuel power for the requested brake power.
func (fc *FuelConverter) SolveEnergyConsumption(pwrOutReq, dt float64, engineOn, assertLimits bool) error {
	pwrMax, err := fc.State.PwrOutMax.Get("fc.pwr_out_max")
	if err != nil {
		return err
	}
	if pwrOutReq < 0 {
		return core.Invariantf("fc: brake power %.1f W must be non-negative", pwrOutReq)
	}
	if assertLimits && !core.AlmostLE(pwrOutReq, pwrMax, 0) {
		return core.Limitf("fc: brake power %.1f W exceeds max %.1f W", pwrOutReq, pwrMax)
	}
	if !engineOn && pwrOutReq > 0 {
		return core.Invariantf("fc: engine off but brake power %.1f W requested", pwrOutReq)
	}
	eta, err := fc.EtaCurve.At(pwrOutReq / fc.PwrOutMax)
	if err != nil {
		return err
	}
	var fuel, idle float64
	if engineOn {
		idle = fc.PwrIdleFuel
		fuel = math.Max(pwrOutReq/eta, idle)
	}
	s := &fc.State
	if err := s.EngineOn.Update(engineOn, "fc.engine_on"); err != nil {
		return err
	}
	if err := s.Eta.Update(eta, "fc.eta"); err != nil {
		return err
	}
	if err := s.PwrBrake.Update(pwrOutReq, "fc.pwr_brake"); err != nil {
		return err
	}
	if err := s.PwrFuel.Update(fuel, "fc.pwr_fuel"); err != nil {
		return err
	}
	if err := s.PwrIdleFuel.Update(idle, "fc.pwr_idle_fuel"); err != nil {
		return err
	}
	return s.PwrLoss.Update(fuel-pwrOutReq, "fc.pwr_loss")
}

func (fc *FuelConverter) SetCumulative(dt float64) error {
	s := &fc.State
	return integrate(dt, "fc",
		term{&s.EnergyBrake, &s.PwrBrake},
		term{&s.EnergyFuel, &s.PwrFuel},
		term{&s.EnergyLoss, &s.PwrLoss},
		term{&s.EnergyIdleFuel, &s.PwrIdleFuel},
	)
}

func (fc *FuelConverter) Step() { stepIndex(&fc.State.I) }

func (fc *FuelConverter) CheckAndReset(loc string) error {
	return stale.CheckAndResetAll(loc+".fc", &fc.State)
}

func (fc *FuelConverter) SaveState() {
	if core.ShouldSave(fc.SaveInterval, fc.State.I.GetStale()) {
		fc.History = append(fc.History, fc.State)
	}
}
