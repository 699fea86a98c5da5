// Package sim drives locomotives, consists and trains through a trace one time step
// at a time and records their history.
package sim

import (
	"context"
	"log/slog"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/logging"
)

// Sample is the outcome of one completed time step.
type Sample struct {
	I    int     `json:"i" yaml:"i"`
	Time float64 `json:"time" yaml:"time"`
	Dt   float64 `json:"dt" yaml:"dt"`
	// requested and achieved wheel power
	PwrOutReq float64 `json:"pwr_out_req" yaml:"pwr_out_req"`
	PwrOut    float64 `json:"pwr_out" yaml:"pwr_out"`
	PwrFuel   float64 `json:"pwr_fuel" yaml:"pwr_fuel"`
	// chemical power out of storage, negative while charging
	PwrRES          float64 `json:"pwr_res" yaml:"pwr_res"`
	PwrOutDeficit   float64 `json:"pwr_out_deficit" yaml:"pwr_out_deficit"`
	PwrRegenDeficit float64 `json:"pwr_regen_deficit" yaml:"pwr_regen_deficit"`
	Speed           float64 `json:"speed" yaml:"speed"`
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

// Walker is implemented by every single-trace simulation.
type Walker interface {
	Walk(ctx context.Context) error
	Step() error
	TrimFailedSteps() error
	core.SaveIntervaler
	Metrics() map[string]float64
}

type Option func(*hooks)

// WithLogger routes walk progress to l. Steps are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(h *hooks) { h.logger = l }
}

func WithMetric(m Metric) Option {
	return func(h *hooks) { h.metrics = append(h.metrics, m) }
}

func WithObserver(o Observer) Option {
	return func(h *hooks) { h.observers = append(h.observers, o) }
}

type hooks struct {
	name      string
	logger    *slog.Logger
	metrics   []Metric
	observers []Observer
}

func newHooks(name string, opts []Option) hooks {
	h := hooks{name: name, logger: logging.Discard()}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Apply adds options to an existing simulation.
func (h *hooks) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(h)
	}
}

func (h *hooks) start(n int) {
	for _, m := range h.metrics {
		m.Reset()
	}
	h.logger.Info("walk started", "sim", h.name, "steps", n)
}

func (h *hooks) notify(s Sample) {
	for _, m := range h.metrics {
		m.Observe(s)
	}
	for _, o := range h.observers {
		o.OnStep(s)
	}
	h.logger.Debug("step", "sim", h.name, "i", s.I, "t", s.Time,
		"pwr_out_req", s.PwrOutReq, "pwr_out", s.PwrOut, "pwr_fuel", s.PwrFuel)
	if h.logger.Enabled(context.Background(), logging.LevelTrace) {
		h.logger.Log(context.Background(), logging.LevelTrace, "sample", "sim", h.name, "sample", s)
	}
}

func (h *hooks) finish(i int) {
	attrs := []any{"sim", h.name, "i", i}
	for _, m := range h.metrics {
		attrs = append(attrs, m.Name(), m.Value())
	}
	h.logger.Info("walk finished", attrs...)
}

// Metrics reports the value of every registered metric by name.
func (h *hooks) Metrics() map[string]float64 {
	out := make(map[string]float64, len(h.metrics))
	for _, m := range h.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}
