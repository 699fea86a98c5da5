package consist

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/railsim/internal/core"
)

// Control selects how a consist splits one requested power across its locomotives.
// It is fixed at construction.
type Control string

const (
	// Proportional allocates in proportion to each locomotive's capability for the
	// requested sign.
	Proportional Control = "Proportional"
	// RESGreedy fills storage-equipped locomotives to their limits in list order, then
	// spreads the remainder proportionally across the others.
	RESGreedy Control = "RESGreedy"
	// FrontAndBack loads the lead and trailing locomotives first, proportionally and
	// up to their combined capability, then spreads the remainder over the interior.
	FrontAndBack Control = "FrontAndBack"
)

// Controls lists every distribution policy.
var Controls = []Control{Proportional, RESGreedy, FrontAndBack}

// ParseControl resolves a policy name.
func ParseControl(s string) (Control, error) {
	for _, c := range Controls {
		if string(c) == s {
			return c, nil
		}
	}
	return "", core.Invariantf("unknown power distribution control %q", s)
}

// Share is one locomotive's input to distribution.
type Share struct {
	// traction capability, W
	Pos float64
	// braking capability, W
	Neg float64
	// carries reversible energy storage
	RES bool
}

// Distribute splits req across shares. The result sums to req whenever req is within
// the aggregate capability for its sign. A zero request yields all zeros without
// consulting the policy.
func (c Control) Distribute(req float64, shares []Share) ([]float64, error) {
	out := make([]float64, len(shares))
	if req == 0 || len(shares) == 0 {
		return out, nil
	}
	caps := make([]float64, len(shares))
	for i, s := range shares {
		if req > 0 {
			caps[i] = math.Max(0, s.Pos)
		} else {
			caps[i] = math.Max(0, s.Neg)
		}
	}
	amount := math.Abs(req)
	all := indices(len(shares), func(int) bool { return true })

	switch c {
	case Proportional:
		amount -= proportional(amount, caps, all, out)
	case RESGreedy:
		for i, s := range shares {
			if !s.RES {
				continue
			}
			a := math.Min(caps[i], amount)
			out[i] = a
			amount -= a
		}
		rest := indices(len(shares), func(i int) bool { return !shares[i].RES })
		amount -= proportional(amount, caps, rest, out)
	case FrontAndBack:
		ends := []int{0}
		if n := len(shares); n > 1 {
			ends = append(ends, n-1)
		}
		var endCap float64
		for _, i := range ends {
			endCap += caps[i]
		}
		amount -= proportional(math.Min(amount, endCap), caps, ends, out)
		interior := indices(len(shares), func(i int) bool { return i != 0 && i != len(shares)-1 })
		amount -= proportional(amount, caps, interior, out)
	default:
		return nil, core.Invariantf("unknown power distribution control %q", c)
	}

	// leftovers go to whoever has capability
	if amount > 0 {
		amount -= proportional(amount, caps, all, out)
	}
	if amount > 0 {
		return nil, core.Limitf("%s: %.1f W could not be allocated, no capability", c, math.Copysign(amount, req))
	}
	if req < 0 {
		floats.Scale(-1, out)
	}
	return out, nil
}

// proportional adds amount to out[idx...] in proportion to caps and returns what it
// allocated.
func proportional(amount float64, caps []float64, idx []int, out []float64) float64 {
	if amount <= 0 || len(idx) == 0 {
		return 0
	}
	var total float64
	for _, i := range idx {
		total += caps[i]
	}
	if total <= 0 {
		return 0
	}
	for _, i := range idx {
		out[i] += amount * caps[i] / total
	}
	return amount
}

func indices(n int, keep func(int) bool) []int {
	var idx []int
	for i := 0; i < n; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	return idx
}
