package core

import "math"

// Dir is the direction of travel relative to path offset.
type Dir int

const (
	Unaligned Dir = iota
	Fwd
	Bwd
)

func (d Dir) String() string {
	switch d {
	case Fwd:
		return "fwd"
	case Bwd:
		return "bwd"
	default:
		return "unaligned"
	}
}

// Stepper advances the step counter of a component and its children.
type Stepper interface {
	Step()
}

// StateSaver pushes the current state onto history when the save interval allows.
type StateSaver interface {
	SaveState()
}

// CheckResetter validates the step's state and resets it for the next step.
type CheckResetter interface {
	CheckAndReset(loc string) error
}

// SaveIntervaler exposes the history save interval that cascades down the ownership tree.
type SaveIntervaler interface {
	SaveInterval() *int
	SetSaveInterval(interval *int)
}

// Default tolerance for almost-equal comparisons.
const Epsilon = 1e-8

// AlmostEq reports whether a and b agree to within a relative (or, near zero,
// absolute) tolerance of eps. A non-positive eps selects Epsilon.
func AlmostEq(a, b, eps float64) bool {
	if eps <= 0 {
		eps = Epsilon
	}
	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}
	return diff <= eps*math.Max(math.Abs(a), math.Abs(b))
}

// AlmostLE reports a <= b within tolerance.
func AlmostLE(a, b, eps float64) bool {
	return a <= b || AlmostEq(a, b, eps)
}

// ShouldSave reports whether history should be recorded at step i.
func ShouldSave(interval *int, i int) bool {
	if interval == nil || *interval <= 0 {
		return false
	}
	return i%*interval == 0
}

// Interval is a convenience for building a save interval pointer.
func Interval(n int) *int {
	return &n
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
