package consist

// State aggregates locomotive limits and achieved power for one step.
type State struct {
	I int `json:"i" yaml:"i"`

	// max forward propulsive power
	PwrOutMax float64 `json:"pwr_out_max" yaml:"pwr_out_max"`
	// max rate of increase of propulsive power, W/s
	PwrRateOutMax float64 `json:"pwr_rate_out_max" yaml:"pwr_rate_out_max"`
	// max regen power absorbed at the wheels
	PwrRegenMax float64 `json:"pwr_regen_max" yaml:"pwr_regen_max"`

	// max power from storage-equipped locomotives
	PwrOutMaxReves float64 `json:"pwr_out_max_reves" yaml:"pwr_out_max_reves"`
	// max power from locomotives without storage
	PwrOutMaxNonReves float64 `json:"pwr_out_max_non_reves" yaml:"pwr_out_max_non_reves"`
	// traction demand storage-equipped locomotives cannot meet
	PwrOutDeficit float64 `json:"pwr_out_deficit" yaml:"pwr_out_deficit"`
	// braking demand that cannot be absorbed as regen
	PwrRegenDeficit float64 `json:"pwr_regen_deficit" yaml:"pwr_regen_deficit"`
	// demand beyond aggregate capability, recorded when limits are not asserted
	PwrOutUnmet float64 `json:"pwr_out_unmet" yaml:"pwr_out_unmet"`
	// static dynamic braking capability, regen included
	PwrDynBrakeMax float64 `json:"pwr_dyn_brake_max" yaml:"pwr_dyn_brake_max"`
	PwrOutReq      float64 `json:"pwr_out_req" yaml:"pwr_out_req"`

	PwrOut   float64 `json:"pwr_out" yaml:"pwr_out"`
	PwrReves float64 `json:"pwr_reves" yaml:"pwr_reves"`
	PwrFuel  float64 `json:"pwr_fuel" yaml:"pwr_fuel"`

	EnergyOut float64 `json:"energy_out" yaml:"energy_out"`
	// energy out during zero or positive traction
	EnergyOutPos float64 `json:"energy_out_pos" yaml:"energy_out_pos"`
	// energy absorbed during braking, positive
	EnergyOutNeg float64 `json:"energy_out_neg" yaml:"energy_out_neg"`
	EnergyRes    float64 `json:"energy_res" yaml:"energy_res"`
	EnergyFuel   float64 `json:"energy_fuel" yaml:"energy_fuel"`
}
