package stale

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/core"
)

type tracked interface {
	CheckConsumed(loc string) error
	CheckAndReset(loc string) error
}

// CheckAndResetAll runs CheckAndReset on every Cell field of the struct that state
// points to. Fields tagged `stale:"consume"` are also required to have been read.
func CheckAndResetAll(loc string, state any) error {
	rv := reflect.ValueOf(state)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return errors.Wrapf(core.ErrInvariant, "%s: expected pointer to struct, got %T", loc, state)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		cell, ok := rv.Field(i).Addr().Interface().(tracked)
		if !ok {
			continue
		}
		fieldLoc := loc + "." + f.Name
		if f.Tag.Get("stale") == "consume" {
			if err := cell.CheckConsumed(fieldLoc); err != nil {
				return err
			}
		}
		if err := cell.CheckAndReset(fieldLoc); err != nil {
			return err
		}
	}
	return nil
}

// MarkFreshAll marks every still-stale Cell field of the struct fresh. It is used by
// components that are idle for a step.
func MarkFreshAll(loc string, state any) error {
	rv := reflect.ValueOf(state)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return errors.Wrapf(core.ErrInvariant, "%s: expected pointer to struct, got %T", loc, state)
	}
	rv = rv.Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if !rt.Field(i).IsExported() {
			continue
		}
		cell, ok := rv.Field(i).Addr().Interface().(interface {
			IsFresh() bool
			MarkFresh(loc string) error
		})
		if !ok || cell.IsFresh() {
			continue
		}
		if err := cell.MarkFresh(loc + "." + rt.Field(i).Name); err != nil {
			return err
		}
	}
	return nil
}
