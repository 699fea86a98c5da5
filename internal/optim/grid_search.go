// Package optim sweeps scenario parameters over a grid and ranks the runs by a metric.
package optim

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/config"
	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/experiment"
	"github.com/san-kum/railsim/internal/logging"
)

var setters = map[string]func(c *config.Config, v float64){
	"discharge_speed": func(c *config.Config, v float64) { c.Buffers.DischargeSpeed = &v },
	"regen_speed":     func(c *config.Config, v float64) { c.Buffers.RegenSpeed = &v },
	"mass":            func(c *config.Config, v float64) { c.Train.Mass = &v },
	"speed":           func(c *config.Config, v float64) { c.Train.Speed = &v },
}

// ParamNames lists the parameters a grid can sweep.
func ParamNames() []string {
	names := make([]string, 0, len(setters))
	for k := range setters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Point is one evaluated grid point. Err is set when its walk failed.
type Point struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	parallel   bool
}

func NewGridSearch(params []string, ranges [][]float64, parallel bool) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, errors.Errorf("grid: %d params but %d ranges", len(params), len(ranges))
	}
	for i, p := range params {
		if _, ok := setters[p]; !ok {
			return nil, errors.Errorf("grid: unknown param %q (available: %v)", p, ParamNames())
		}
		if len(ranges[i]) == 0 {
			return nil, errors.Errorf("grid: param %q has no values", p)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges, parallel: parallel}, nil
}

// Points enumerates the grid, last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.pointsRecursive(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) pointsRecursive(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		p := make(map[string]float64, len(current))
		for k, v := range current {
			p[k] = v
		}
		*out = append(*out, p)
		return
	}
	for _, val := range g.ranges[depth] {
		current[g.paramNames[depth]] = val
		g.pointsRecursive(depth+1, current, out)
	}
	delete(current, g.paramNames[depth])
}

// Search runs base with every grid point applied and returns the points ordered by
// metric, lowest first, with failed points last. The metric is summed over the runs
// of a point.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, reg *experiment.Registry, metric string) ([]Point, error) {
	if !contains(reg.ListMetrics(), metric) {
		return nil, errors.Errorf("grid: unknown metric %q", metric)
	}
	grid := g.Points()
	points := make([]Point, len(grid))

	eval := func(ctx context.Context, idx int) error {
		cfg := apply(base, grid[idx])
		points[idx] = Point{Params: grid[idx], Value: math.Inf(1)}

		res, err := experiment.New(cfg, reg, logging.Discard()).Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			points[idx].Err = err
			return nil
		}
		sum := 0.0
		for _, r := range res.Runs {
			sum += r.Metrics[metric]
		}
		points[idx].Value = sum
		return nil
	}

	if g.parallel {
		if err := core.ParallelFor(ctx, len(grid), eval); err != nil {
			return nil, err
		}
	} else {
		for i := range grid {
			if err := eval(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		if (points[i].Err == nil) != (points[j].Err == nil) {
			return points[i].Err == nil
		}
		return points[i].Value < points[j].Value
	})
	return points, nil
}

// apply copies base with params set. History is not kept during a sweep.
func apply(base *config.Config, params map[string]float64) *config.Config {
	c := *base
	c.Consist.Locos = append([]string(nil), base.Consist.Locos...)
	c.SaveInterval = 0
	for name, v := range params {
		setters[name](&c, v)
	}
	return &c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
