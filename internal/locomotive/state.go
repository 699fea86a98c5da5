package locomotive

import "github.com/san-kum/railsim/internal/stale"

// State is the per-step state of a Locomotive.
type State struct {
	I stale.Cell[int] `json:"i" yaml:"i"`
	// max forward propulsive power at the wheels
	PwrOutMax stale.Cell[float64] `json:"pwr_out_max" yaml:"pwr_out_max"`
	// max rate of increase of propulsive power, W/s
	PwrRateOutMax stale.Cell[float64] `json:"pwr_rate_out_max" yaml:"pwr_rate_out_max"`
	// max regen power absorbed at the wheels
	PwrRegenMax stale.Cell[float64] `json:"pwr_regen_max" yaml:"pwr_regen_max"`
	// achieved wheel power
	PwrOut stale.Cell[float64] `json:"pwr_out" yaml:"pwr_out"`
	// time-varying aux load
	PwrAux stale.Cell[float64] `json:"pwr_aux" yaml:"pwr_aux" stale:"consume"`

	EnergyOut stale.Cell[float64] `json:"energy_out" yaml:"energy_out"`
	EnergyAux stale.Cell[float64] `json:"energy_aux" yaml:"energy_aux"`
}

// Params bundles the locomotive-level parameters used by the builders.
type Params struct {
	PwrAuxOffset        float64  `json:"pwr_aux_offset" yaml:"pwr_aux_offset"`
	PwrAuxTractionCoeff float64  `json:"pwr_aux_traction_coeff" yaml:"pwr_aux_traction_coeff"`
	ForceMax            float64  `json:"force_max" yaml:"force_max"`
	Mass                *float64 `json:"mass,omitempty" yaml:"mass,omitempty"`
}

// DefaultParams describes a Tier 4 freight locomotive of 432,000 lb.
func DefaultParams() Params {
	mass := 195_000.0
	return Params{
		PwrAuxOffset:        8554.15,
		PwrAuxTractionCoeff: 0.000539638,
		ForceMax:            667.2e3,
		Mass:                &mass,
	}
}
