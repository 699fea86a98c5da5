package powertrain

import (
	"github.com/san-kum/railsim/internal/stale"
)

// term pairs a cumulative energy with the power integrated into it.
type term struct {
	energy *stale.Cell[float64]
	pwr    *stale.Cell[float64]
}

// integrate advances every energy by its power over dt (forward Euler).
func integrate(dt float64, loc string, terms ...term) error {
	for _, t := range terms {
		p, err := t.pwr.Get(loc + ".pwr")
		if err != nil {
			return err
		}
		if err := stale.Increment(t.energy, p*dt, loc+".energy"); err != nil {
			return err
		}
	}
	return nil
}

func stepIndex(i *stale.Cell[int]) {
	i.UpdateUnchecked(i.GetStale() + 1)
}
