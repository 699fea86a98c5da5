package train

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/trace"
)

// Breakpoint starts a piecewise-constant section at Offset.
type Breakpoint struct {
	Offset float64 `json:"offset" yaml:"offset"`
	Value  float64 `json:"value" yaml:"value"`
}

// SpeedLimit starts a section with the given limit in m/s.
type SpeedLimit struct {
	Offset float64 `json:"offset" yaml:"offset"`
	Limit  float64 `json:"limit" yaml:"limit"`
}

// SpeedSet is a set of speed limits that applies to trains meeting its parameters.
type SpeedSet struct {
	TrainType   Type         `json:"train_type,omitempty" yaml:"train_type,omitempty"`
	SpeedParams []SpeedParam `json:"speed_params,omitempty" yaml:"speed_params,omitempty"`
	Limits      []SpeedLimit `json:"limits" yaml:"limits"`
}

// Link is one section of track. Offsets of grades, curves and limits are relative to
// the start of the link and each list starts at zero.
type Link struct {
	Idx    trace.LinkIdx `json:"idx" yaml:"idx"`
	Length float64       `json:"length" yaml:"length"`
	// rise over run
	Grades []Breakpoint `json:"grades" yaml:"grades"`
	// radians per meter
	Curves    []Breakpoint `json:"curves" yaml:"curves"`
	SpeedSets []SpeedSet   `json:"speed_sets" yaml:"speed_sets"`
}

func (l *Link) Validate() error {
	if l.Idx == 0 {
		return core.Invariantf("link: index 0 is reserved")
	}
	if l.Length <= 0 {
		return core.Invariantf("link %d: length %.1f m must be positive", l.Idx, l.Length)
	}
	if err := checkBreakpoints(l.Grades, l.Length); err != nil {
		return errors.WithMessagef(err, "link %d grades", l.Idx)
	}
	if err := checkBreakpoints(l.Curves, l.Length); err != nil {
		return errors.WithMessagef(err, "link %d curves", l.Idx)
	}
	if len(l.SpeedSets) == 0 {
		return core.Invariantf("link %d: no speed sets", l.Idx)
	}
	for _, set := range l.SpeedSets {
		bps := make([]Breakpoint, len(set.Limits))
		for i, sl := range set.Limits {
			if sl.Limit <= 0 {
				return core.Invariantf("link %d: speed limit %.2f m/s must be positive", l.Idx, sl.Limit)
			}
			bps[i] = Breakpoint{Offset: sl.Offset}
		}
		if err := checkBreakpoints(bps, l.Length); err != nil {
			return errors.WithMessagef(err, "link %d speed limits", l.Idx)
		}
	}
	return nil
}

func checkBreakpoints(bps []Breakpoint, length float64) error {
	if len(bps) == 0 || bps[0].Offset != 0 {
		return core.Invariantf("first breakpoint must be at offset 0")
	}
	for i := 1; i < len(bps); i++ {
		if bps[i].Offset <= bps[i-1].Offset || bps[i].Offset >= length {
			return core.Invariantf("breakpoint %d at %.2f m is unsorted or beyond length %.2f m", i, bps[i].Offset, length)
		}
	}
	return nil
}

// Network is the set of links a path is built from.
type Network []Link

// LinkPoint marks where a link starts along a path.
type LinkPoint struct {
	Offset  float64       `json:"offset" yaml:"offset"`
	LinkIdx trace.LinkIdx `json:"link_idx" yaml:"link_idx"`
}

// PathTpc holds the track properties of one path, concatenated from its links with
// offsets measured from the start of the path.
type PathTpc struct {
	LinkPoints  []LinkPoint  `json:"link_points" yaml:"link_points"`
	Grades      []Breakpoint `json:"grades" yaml:"grades"`
	Curves      []Breakpoint `json:"curves" yaml:"curves"`
	Elevs       []Breakpoint `json:"elevs" yaml:"elevs"`
	SpeedPoints []SpeedLimit `json:"speed_points" yaml:"speed_points"`
}

// NewPathTpc concatenates the links of path, choosing for each link the first speed
// set that applies to the train.
func NewPathTpc(network Network, path trace.LinkPath, params Params) (*PathTpc, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	byIdx := make(map[trace.LinkIdx]*Link, len(network))
	for i := range network {
		l := &network[i]
		if err := l.Validate(); err != nil {
			return nil, err
		}
		byIdx[l.Idx] = l
	}

	p := &PathTpc{}
	var offset, elev float64
	for _, idx := range path {
		l, ok := byIdx[idx]
		if !ok {
			return nil, core.Invariantf("path: link %d not in network", idx)
		}
		set, err := applicableSet(l, &params)
		if err != nil {
			return nil, err
		}
		p.LinkPoints = append(p.LinkPoints, LinkPoint{Offset: offset, LinkIdx: idx})
		for i, g := range l.Grades {
			p.Grades = appendBreakpoint(p.Grades, Breakpoint{Offset: offset + g.Offset, Value: g.Value})
			p.Elevs = append(p.Elevs, Breakpoint{Offset: offset + g.Offset, Value: elev})
			end := l.Length
			if i+1 < len(l.Grades) {
				end = l.Grades[i+1].Offset
			}
			elev += g.Value * (end - g.Offset)
		}
		for _, c := range l.Curves {
			p.Curves = appendBreakpoint(p.Curves, Breakpoint{Offset: offset + c.Offset, Value: c.Value})
		}
		for _, sl := range set.Limits {
			n := len(p.SpeedPoints)
			if n > 0 && p.SpeedPoints[n-1].Limit == sl.Limit {
				continue
			}
			p.SpeedPoints = append(p.SpeedPoints, SpeedLimit{Offset: offset + sl.Offset, Limit: sl.Limit})
		}
		offset += l.Length
	}
	p.LinkPoints = append(p.LinkPoints, LinkPoint{Offset: offset})
	p.Elevs = append(p.Elevs, Breakpoint{Offset: offset, Value: elev})
	return p, nil
}

func applicableSet(l *Link, params *Params) (*SpeedSet, error) {
	for i := range l.SpeedSets {
		if params.SpeedSetApplies(&l.SpeedSets[i]) {
			return &l.SpeedSets[i], nil
		}
	}
	return nil, core.Invariantf("link %d: no speed set applies to %s train", l.Idx, params.TrainType)
}

// appendBreakpoint drops a breakpoint that repeats the previous value.
func appendBreakpoint(bps []Breakpoint, bp Breakpoint) []Breakpoint {
	if n := len(bps); n > 0 && bps[n-1].Value == bp.Value {
		return bps
	}
	return append(bps, bp)
}

func (p *PathTpc) OffsetBegin() float64 { return p.LinkPoints[0].Offset }

func (p *PathTpc) OffsetEnd() float64 { return p.LinkPoints[len(p.LinkPoints)-1].Offset }

// LinkAt returns the link containing offset and the offset within it.
func (p *PathTpc) LinkAt(offset float64) (trace.LinkIdx, float64) {
	last := len(p.LinkPoints) - 2
	i := sort.Search(last+1, func(i int) bool { return p.LinkPoints[i].Offset > offset }) - 1
	i = max(0, min(i, last))
	return p.LinkPoints[i].LinkIdx, offset - p.LinkPoints[i].Offset
}

// section finds the breakpoint governing offset. Travelling backward, a breakpoint
// exactly at offset belongs to the section ahead, so the previous one governs.
func section(bps []Breakpoint, offset float64, dir core.Dir) int {
	i := sort.Search(len(bps), func(i int) bool {
		if dir == core.Bwd {
			return bps[i].Offset >= offset
		}
		return bps[i].Offset > offset
	}) - 1
	return max(0, i)
}

// At returns the piecewise-constant value at offset.
func at(bps []Breakpoint, offset float64, dir core.Dir) float64 {
	return bps[section(bps, offset, dir)].Value
}

// mean averages the piecewise-constant value over [lo, hi].
func mean(bps []Breakpoint, lo, hi float64, dir core.Dir) float64 {
	if hi-lo <= 0 {
		return at(bps, hi, dir)
	}
	var sum float64
	for i := section(bps, lo, core.Fwd); i < len(bps) && bps[i].Offset < hi; i++ {
		start := math.Max(lo, bps[i].Offset)
		end := hi
		if i+1 < len(bps) {
			end = math.Min(hi, bps[i+1].Offset)
		}
		sum += bps[i].Value * (end - start)
	}
	return sum / (hi - lo)
}

// Grade returns the grade at offset.
func (p *PathTpc) Grade(offset float64, dir core.Dir) float64 { return at(p.Grades, offset, dir) }

// Curve returns the curvature at offset in rad/m.
func (p *PathTpc) Curve(offset float64, dir core.Dir) float64 { return at(p.Curves, offset, dir) }

// Elev returns the elevation at offset relative to the start of the path.
func (p *PathTpc) Elev(offset float64) float64 {
	i := section(p.Elevs, offset, core.Fwd)
	e := p.Elevs[i]
	if i == len(p.Elevs)-1 {
		return e.Value
	}
	return e.Value + at(p.Grades, e.Offset, core.Fwd)*(offset-e.Offset)
}

// SpeedLimitAt returns the limit of the section containing offset.
func (p *PathTpc) SpeedLimitAt(offset float64) float64 {
	i := sort.Search(len(p.SpeedPoints), func(i int) bool { return p.SpeedPoints[i].Offset > offset }) - 1
	return p.SpeedPoints[max(0, i)].Limit
}

// DefaultNetwork is two straight 10 km links with a short climb and a curve.
func DefaultNetwork() Network {
	return Network{
		{
			Idx:    1,
			Length: 10_000,
			Grades: []Breakpoint{{0, 0}, {4_000, 0.002}, {6_000, 0}},
			Curves: []Breakpoint{{0, 0}},
			SpeedSets: []SpeedSet{
				{Limits: []SpeedLimit{{0, 25}}},
			},
		},
		{
			Idx:    2,
			Length: 10_000,
			Grades: []Breakpoint{{0, -0.001}},
			Curves: []Breakpoint{{0, 0}, {2_000, 3e-4}, {2_500, 0}},
			SpeedSets: []SpeedSet{
				{TrainType: Passenger, Limits: []SpeedLimit{{0, 35}}},
				{Limits: []SpeedLimit{{0, 25}, {5_000, 22}}},
			},
		},
	}
}

// DefaultPath runs over both links of DefaultNetwork.
func DefaultPath() (*PathTpc, error) {
	return NewPathTpc(DefaultNetwork(), trace.LinkPath{1, 2}, DefaultParams())
}
