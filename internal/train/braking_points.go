package train

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
)

type BrakingPoint struct {
	Offset      float64 `json:"offset" yaml:"offset"`
	SpeedLimit  float64 `json:"speed_limit" yaml:"speed_limit"`
	SpeedTarget float64 `json:"speed_target" yaml:"speed_target"`
}

// BrakingPoints is the braking curve of one path: points ordered by descending
// offset, and a cursor that only moves toward the end of the path.
type BrakingPoints struct {
	Points []BrakingPoint `json:"points" yaml:"points"`
	idx    int
}

// Cursor is the index of the point governing the last queried offset.
func (b *BrakingPoints) Cursor() int { return b.idx }

// Recalc rebuilds the curve for path. Starting from a stop at the end of the path
// it walks the speed limits backward, extending the curve one time step at a time
// with the deceleration available from full friction braking plus train resistance,
// until the curve meets each limit.
func (b *BrakingPoints) Recalc(s *State, p *Params, brake *FricBrake, res *Res, path *PathTpc, dt float64) error {
	if dt <= 0 {
		return core.Invariantf("braking points: time step %.3f s must be positive", dt)
	}
	mass, massCompound := s.MassStatic.GetStale(), s.MassCompound()
	if massCompound <= 0 {
		return core.Invariantf("braking points: train mass %.1f kg must be positive", massCompound)
	}

	pts := []BrakingPoint{{Offset: path.OffsetEnd()}}
	sp := path.SpeedPoints
	idx := len(sp)
	for idx > 0 {
		idx--
		if math.Abs(sp[idx].Limit) > pts[len(pts)-1].SpeedLimit {
			for {
				cur := pts[len(pts)-1]
				for idx > 0 && cur.Offset <= sp[idx].Offset {
					idx--
				}
				limit := math.Abs(sp[idx].Limit)

				f, err := res.Calc(path, p, mass, cur.Offset, cur.SpeedLimit, core.Bwd)
				if err != nil {
					return err
				}
				decel := brake.ForceMax + f.Net()
				if decel <= 0 {
					return core.Infeasiblef("braking points: brake force %.0f N plus resistance %.0f N cannot slow the train at offset %.1f m (grade force %.0f N, speed %.2f m/s)",
						brake.ForceMax, f.Net(), cur.Offset, f.Grade, cur.SpeedLimit)
				}
				dv := dt * decel / massCompound

				if limit < cur.SpeedLimit+dv {
					pts = append(pts, BrakingPoint{
						Offset:      cur.Offset - dt*limit,
						SpeedLimit:  limit,
						SpeedTarget: cur.SpeedTarget,
					})
					if cur.SpeedLimit == limit {
						break
					}
				} else {
					pts = append(pts, BrakingPoint{
						Offset:      cur.Offset - dt*(cur.SpeedLimit+0.5*dv),
						SpeedLimit:  cur.SpeedLimit + dv,
						SpeedTarget: cur.SpeedTarget,
					})
				}
				if pts[len(pts)-1].Offset < path.OffsetBegin() {
					break
				}
			}
		}
		limit := math.Abs(sp[idx].Limit)
		// the curve may already reach past this limit's start
		if sp[idx].Offset < pts[len(pts)-1].Offset {
			pts = append(pts, BrakingPoint{Offset: sp[idx].Offset, SpeedLimit: limit, SpeedTarget: limit})
		}
	}

	b.Points = pts
	b.idx = len(pts) - 1
	return nil
}

// CalcSpeeds advances the cursor to offset and returns the speed limit there and the
// lowest target within the lookahead distance speed*adjRampUpTime. Exceeding the
// limit is an error. The cursor never moves back toward the start of the path.
func (b *BrakingPoints) CalcSpeeds(offset, speed, adjRampUpTime float64) (limit, target float64, err error) {
	if len(b.Points) == 0 {
		return 0, 0, core.Invariantf("braking points: curve not computed")
	}
	if b.Points[0].Offset <= offset {
		b.idx = 0
	} else {
		for b.idx > 0 && b.Points[b.idx-1].Offset <= offset {
			b.idx--
		}
	}
	cur := b.Points[b.idx]
	if !core.AlmostLE(speed, cur.SpeedLimit, 0) {
		return 0, 0, errors.Wrapf(core.ErrSpeedLimit, "idx %d, offset %.2f m, speed %.3f m/s, speed limit %.3f m/s, speed target %.3f m/s",
			b.idx, cur.Offset, speed, cur.SpeedLimit, cur.SpeedTarget)
	}

	far := offset + speed*adjRampUpTime
	target = cur.SpeedTarget
	for i := b.idx; i >= 1 && b.Points[i-1].Offset <= far; i-- {
		target = math.Min(target, b.Points[i-1].SpeedTarget)
	}
	return cur.SpeedLimit, target, nil
}
