package powertrain

import (
	"math"

	"github.com/san-kum/railsim/internal/units"
)

// BufferControls implements the RES-greedy-with-dynamic-buffers strategy. Below the
// discharge buffer speed, energy is held back to accelerate the train's share of mass
// back up to that speed. Above the regen buffer speed, headroom is held back to absorb
// braking energy from that speed down.
type BufferControls struct {
	// speed at which the discharge buffer reaches zero, m/s
	SpeedSocDischBuffer float64 `json:"speed_soc_disch_buffer" yaml:"speed_soc_disch_buffer"`
	// scales the discharge buffer, e.g. to account for drag and efficiency
	SpeedSocDischBufferCoeff float64 `json:"speed_soc_disch_buffer_coeff" yaml:"speed_soc_disch_buffer_coeff"`
	// speed at which the regen buffer reaches zero, m/s
	SpeedSocRegenBuffer float64 `json:"speed_soc_regen_buffer" yaml:"speed_soc_regen_buffer"`
	// scales the regen buffer
	SpeedSocRegenBufferCoeff float64 `json:"speed_soc_regen_buffer_coeff" yaml:"speed_soc_regen_buffer_coeff"`
}

func DefaultBufferControls() BufferControls {
	return BufferControls{
		SpeedSocDischBuffer:      40 * units.MPH,
		SpeedSocDischBufferCoeff: 1,
		SpeedSocRegenBuffer:      10 * units.MPH,
		SpeedSocRegenBufferCoeff: 1,
	}
}

// Buffers returns the discharge and charge energy buffers for the given mass and speed.
func (c BufferControls) Buffers(mass, speed float64) (disch, chrg float64) {
	v2 := speed * speed
	disch = math.Max(0, 0.5*mass*(c.SpeedSocDischBuffer*c.SpeedSocDischBuffer-v2)) * c.SpeedSocDischBufferCoeff
	chrg = math.Max(0, 0.5*mass*(v2-c.SpeedSocRegenBuffer*c.SpeedSocRegenBuffer)) * c.SpeedSocRegenBufferCoeff
	return disch, chrg
}
