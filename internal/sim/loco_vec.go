package sim

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
)

// LocomotiveSimulationVec is a set of independent locomotive simulations.
type LocomotiveSimulationVec []*LocomotiveSimulation

func DefaultLocomotiveSimulationVec(opts ...Option) LocomotiveSimulationVec {
	return LocomotiveSimulationVec{
		DefaultLocomotiveSimulation(opts...),
		DefaultLocomotiveSimulation(opts...),
		DefaultLocomotiveSimulation(opts...),
	}
}

// Walk walks every simulation, concurrently when parallel is set. The first failure
// is returned with the index of the simulation that produced it.
func (v LocomotiveSimulationVec) Walk(ctx context.Context, parallel bool) error {
	walk := func(ctx context.Context, idx int) error {
		return errors.WithMessagef(v[idx].Walk(ctx), "loco_sim idx: %d", idx)
	}
	if parallel {
		return core.ParallelFor(ctx, len(v), walk)
	}
	for idx := range v {
		if err := walk(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func (v LocomotiveSimulationVec) SetSaveInterval(interval *int) {
	for _, s := range v {
		s.SetSaveInterval(interval)
	}
}
