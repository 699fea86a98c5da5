package locomotive

import "github.com/san-kum/railsim/internal/core"

// MassSideEffect selects what happens to mass-dependent fields when mass is set.
// Locomotives only accept MassSideEffectNone.
type MassSideEffect int

const (
	MassSideEffectNone MassSideEffect = iota
	MassSideEffectExtensive
	MassSideEffectIntensive
)

// ForceMaxSideEffect selects which dependent field follows a new force max.
type ForceMaxSideEffect int

const (
	// ForceMaxMass updates mass, keeping mu.
	ForceMaxMass ForceMaxSideEffect = iota
	// ForceMaxUpdateMu updates mu, keeping mass.
	ForceMaxUpdateMu
	ForceMaxSetMuToNone
	ForceMaxSetMassToNone
	ForceMaxSetMassAndMuToNone
)

var forceMaxNames = map[string]ForceMaxSideEffect{
	"Mass":               ForceMaxMass,
	"UpdateMu":           ForceMaxUpdateMu,
	"SetMuToNone":        ForceMaxSetMuToNone,
	"SetMassToNone":      ForceMaxSetMassToNone,
	"SetMassAndMuToNone": ForceMaxSetMassAndMuToNone,
}

func ParseForceMaxSideEffect(s string) (ForceMaxSideEffect, error) {
	if v, ok := forceMaxNames[s]; ok {
		return v, nil
	}
	return 0, core.Invariantf("force max side effect must be one of Mass, UpdateMu, SetMuToNone, SetMassToNone or SetMassAndMuToNone, got %q", s)
}

// MuSideEffect selects which dependent field follows a new traction coefficient.
type MuSideEffect int

const (
	MuMass MuSideEffect = iota
	MuForceMax
	MuSetMassToNone
)

var muNames = map[string]MuSideEffect{
	"Mass":          MuMass,
	"ForceMax":      MuForceMax,
	"SetMassToNone": MuSetMassToNone,
}

func ParseMuSideEffect(s string) (MuSideEffect, error) {
	if v, ok := muNames[s]; ok {
		return v, nil
	}
	return 0, core.Invariantf("mu side effect must be one of Mass, ForceMax or SetMassToNone, got %q", s)
}
