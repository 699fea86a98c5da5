// Package core provides primitives shared by every railsim component.
//
// It defines the error taxonomy used across the engine:
//
//   - [ErrStaleRead], [ErrDoubleWrite], [ErrUnconsumed]: staleness discipline violations
//   - [ErrPowerLimit], [ErrBalance]: physical limit violations
//   - [ErrInvariant], [ErrTraceData]: inconsistent parameters or input data
//   - [ErrInfeasible]: configurations that cannot meet their constraints
//
// Simulators wrap per-step failures in [StepError] so callers can recover the
// offending step with errors.As.
//
// # Thread Safety
//
// Nothing in this package holds mutable state. Components built on it are NOT
// thread-safe; [ParallelFor] is meant for independent instances only.
package core
