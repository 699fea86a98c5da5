// Package stale implements the per-step freshness discipline for simulation state.
//
// Every derived state quantity lives in a [Cell]. A cell must be written exactly once
// per step before it is read as fresh, and a step boundary ([Cell.CheckAndReset] or
// [CheckAndResetAll]) fails if a cell was never written. Cells tagged
// `stale:"consume"` must also have been read as fresh before the boundary.
//
// The zero value of a Cell is fresh and consumed, so a newly constructed state struct
// passes its first step boundary.
package stale

import (
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/core"
)

// Cell holds a value of type T plus its freshness for the current step.
type Cell[T any] struct {
	value  T
	stale  bool
	unread bool
}

// New returns a fresh cell holding v.
func New[T any](v T) Cell[T] {
	return Cell[T]{value: v}
}

// IsFresh reports whether the cell was written during the current step.
func (c *Cell[T]) IsFresh() bool { return !c.stale }

// Get returns the value if it is fresh, marking it consumed.
func (c *Cell[T]) Get(loc string) (T, error) {
	if c.stale {
		var zero T
		return zero, errors.Wrapf(core.ErrStaleRead, "%s", loc)
	}
	c.unread = false
	return c.value, nil
}

// GetStale returns the value without a freshness check. It is for reads that
// intentionally use the previous step's value.
func (c *Cell[T]) GetStale() T { return c.value }

// Update writes v and marks the cell fresh. Writing a cell twice in one step fails.
func (c *Cell[T]) Update(v T, loc string) error {
	if !c.stale {
		return errors.Wrapf(core.ErrDoubleWrite, "%s", loc)
	}
	c.UpdateUnchecked(v)
	return nil
}

// UpdateUnchecked writes v and marks the cell fresh regardless of its current status.
func (c *Cell[T]) UpdateUnchecked(v T) {
	c.value = v
	c.stale = false
	c.unread = true
}

// MarkFresh records that the cell is deliberately left unchanged this step.
func (c *Cell[T]) MarkFresh(loc string) error {
	if !c.stale {
		return errors.Wrapf(core.ErrDoubleWrite, "%s: mark fresh", loc)
	}
	c.stale = false
	c.unread = false
	return nil
}

// CheckConsumed fails if the cell was written this step but never read as fresh.
func (c *Cell[T]) CheckConsumed(loc string) error {
	if c.unread {
		return errors.Wrapf(core.ErrUnconsumed, "%s", loc)
	}
	return nil
}

// CheckAndReset fails if the cell was not written this step, then marks it stale.
func (c *Cell[T]) CheckAndReset(loc string) error {
	if c.stale {
		return errors.Wrapf(core.ErrStaleRead, "%s: not updated this step", loc)
	}
	c.stale = true
	c.unread = false
	return nil
}

func (c Cell[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.value)
}

func (c *Cell[T]) UnmarshalJSON(data []byte) error {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = New(v)
	return nil
}

func (c Cell[T]) MarshalYAML() (any, error) {
	return c.value, nil
}

func (c *Cell[T]) UnmarshalYAML(node *yaml.Node) error {
	var v T
	if err := node.Decode(&v); err != nil {
		return err
	}
	*c = New(v)
	return nil
}

// Number is the set of types that support Increment.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Increment adds delta to the stale value and marks the cell fresh.
func Increment[T Number](c *Cell[T], delta T, loc string) error {
	return c.Update(c.value+delta, loc)
}
