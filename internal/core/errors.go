package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// Domain errors for simulation operations.
var (
	// ErrStaleRead indicates a state value was read before it was computed this step.
	ErrStaleRead = errors.New("railsim: stale read")

	// ErrDoubleWrite indicates a state value was written twice within one step.
	ErrDoubleWrite = errors.New("railsim: state already updated this step")

	// ErrUnconsumed indicates a state value was computed but never read as fresh.
	ErrUnconsumed = errors.New("railsim: state computed but never consumed")

	// ErrPowerLimit indicates requested power exceeds available capability.
	ErrPowerLimit = errors.New("railsim: power limit exceeded")

	// ErrBalance indicates a power balance residual exceeded tolerance.
	ErrBalance = errors.New("railsim: power balance violated")

	// ErrSpeedLimit indicates the train exceeded the braking curve at its position.
	ErrSpeedLimit = errors.New("railsim: speed limit violated")

	// ErrInvariant indicates inconsistent model parameters or data.
	ErrInvariant = errors.New("railsim: invariant violated")

	// ErrInfeasible indicates a configuration that cannot satisfy its constraints.
	ErrInfeasible = errors.New("railsim: infeasible configuration")

	// ErrTraceData indicates malformed or empty trace input.
	ErrTraceData = errors.New("railsim: invalid trace data")
)

// StepError wraps an error with the time step at which it occurred.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("time step: %d (t=%.1f s): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// Limitf builds an ErrPowerLimit carrying the offending quantities.
func Limitf(format string, args ...any) error {
	return errors.Wrapf(ErrPowerLimit, format, args...)
}

// Invariantf builds an ErrInvariant carrying the offending quantities.
func Invariantf(format string, args ...any) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}

// Infeasiblef builds an ErrInfeasible carrying the offending quantities.
func Infeasiblef(format string, args ...any) error {
	return errors.Wrapf(ErrInfeasible, format, args...)
}
