package trace

import (
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/railsim/internal/core"
	"github.com/san-kum/railsim/internal/units"
)

// PowerTrace prescribes the output power of a locomotive or consist over time.
type PowerTrace struct {
	Time []float64 `json:"time" yaml:"time"`
	Pwr  []float64 `json:"pwr" yaml:"pwr"`
	// nil entries leave the engine state to the model
	EngineOn []*bool `json:"engine_on" yaml:"engine_on"`
	// only needed by locomotives with speed-dependent storage buffers
	TrainSpeed []float64 `json:"train_speed,omitempty" yaml:"train_speed,omitempty"`
	TrainMass  *float64  `json:"train_mass,omitempty" yaml:"train_mass,omitempty"`
}

// DefaultPowerTrace ramps from zero to 1.5 MW over 300 samples, holds for 100 and
// ramps back down, at one sample per second.
func DefaultPowerTrace() PowerTrace {
	const pwrMax = 1.5e6
	ramp := floats.Span(make([]float64, 300), 0, pwrMax)
	pwr := make([]float64, 0, 700)
	pwr = append(pwr, ramp...)
	for range 100 {
		pwr = append(pwr, pwrMax)
	}
	for i := len(ramp) - 1; i >= 0; i-- {
		pwr = append(pwr, ramp[i])
	}

	n := len(pwr)
	pt := PowerTrace{
		Time:       make([]float64, n),
		Pwr:        pwr,
		EngineOn:   make([]*bool, n),
		TrainSpeed: make([]float64, n),
	}
	on := true
	for i := range n {
		pt.Time[i] = float64(i)
		pt.EngineOn[i] = &on
		pt.TrainSpeed[i] = 10 * units.MPH
	}
	mass := 1e6 * units.LB
	pt.TrainMass = &mass
	return pt
}

func (p *PowerTrace) Len() int { return len(p.Time) }

// Dt is the time step ending at sample i.
func (p *PowerTrace) Dt(i int) float64 { return p.Time[i] - p.Time[i-1] }

// Speed returns the train speed at sample i, or nil when the trace carries none.
func (p *PowerTrace) Speed(i int) *float64 {
	if len(p.TrainSpeed) == 0 {
		return nil
	}
	v := p.TrainSpeed[i]
	return &v
}

// Engine returns the engine state at sample i, or nil when unspecified.
func (p *PowerTrace) Engine(i int) *bool {
	if len(p.EngineOn) == 0 {
		return nil
	}
	return p.EngineOn[i]
}

// Validate checks column lengths and time ordering.
func (p *PowerTrace) Validate() error {
	n := p.Len()
	if n == 0 {
		return errors.Wrap(core.ErrTraceData, "power trace is empty")
	}
	if len(p.Pwr) != n {
		return errors.Wrapf(core.ErrTraceData, "power trace: %d power samples for %d times", len(p.Pwr), n)
	}
	if len(p.EngineOn) != 0 && len(p.EngineOn) != n {
		return errors.Wrapf(core.ErrTraceData, "power trace: %d engine_on samples for %d times", len(p.EngineOn), n)
	}
	if len(p.TrainSpeed) != 0 && len(p.TrainSpeed) != n {
		return errors.Wrapf(core.ErrTraceData, "power trace: %d train_speed samples for %d times", len(p.TrainSpeed), n)
	}
	return checkIncreasing("power trace", p.Time)
}

// Trim keeps the half-open sample range [start, end). Nil bounds default to the
// ends of the trace.
func (p *PowerTrace) Trim(start, end *int) error {
	s, e, err := bounds("power trace", start, end, p.Len())
	if err != nil {
		return err
	}
	p.Time = p.Time[s:e:e]
	p.Pwr = p.Pwr[s:e:e]
	if len(p.EngineOn) != 0 {
		p.EngineOn = p.EngineOn[s:e:e]
	}
	if len(p.TrainSpeed) != 0 {
		p.TrainSpeed = p.TrainSpeed[s:e:e]
	}
	return nil
}

// ReadPowerTrace parses the time, pwr, engine_on and optional train_speed columns.
func ReadPowerTrace(r io.Reader) (PowerTrace, error) {
	t, err := readTable(r, "power trace")
	if err != nil {
		return PowerTrace{}, err
	}
	timeCol, err := t.require("time", "time_seconds")
	if err != nil {
		return PowerTrace{}, err
	}
	pwrCol, err := t.require("pwr", "pwr_watts")
	if err != nil {
		return PowerTrace{}, err
	}
	engineCol, hasEngine := t.index("engine_on")
	speedCol, hasSpeed := t.index("train_speed", "train_speed_meters_per_second")

	var pt PowerTrace
	for n, row := range t.rows {
		line := n + 2
		tm, err := t.float(row, timeCol, line, "time")
		if err != nil {
			return PowerTrace{}, err
		}
		pwr, err := t.float(row, pwrCol, line, "pwr")
		if err != nil {
			return PowerTrace{}, err
		}
		pt.Time = append(pt.Time, tm)
		pt.Pwr = append(pt.Pwr, pwr)

		var on *bool
		if hasEngine {
			if on, err = t.optBool(row, engineCol, line, "engine_on"); err != nil {
				return PowerTrace{}, err
			}
		}
		pt.EngineOn = append(pt.EngineOn, on)

		if hasSpeed && cell(row, speedCol) != "" {
			v, err := t.float(row, speedCol, line, "train_speed")
			if err != nil {
				return PowerTrace{}, err
			}
			pt.TrainSpeed = append(pt.TrainSpeed, v)
		}
	}
	if err := pt.Validate(); err != nil {
		return PowerTrace{}, err
	}
	return pt, nil
}

func LoadPowerTrace(path string) (PowerTrace, error) {
	f, err := openFile(path)
	if err != nil {
		return PowerTrace{}, err
	}
	defer f.Close()
	pt, err := ReadPowerTrace(f)
	return pt, errors.WithMessage(err, path)
}

func (p *PowerTrace) WriteCSV(w io.Writer) error {
	header := []string{"time", "pwr", "engine_on"}
	if len(p.TrainSpeed) != 0 {
		header = append(header, "train_speed")
	}
	return writeRows(w, header, p.Len(), func(i int) []string {
		row := []string{formatFloat(p.Time[i]), formatFloat(p.Pwr[i]), formatOptBool(p.Engine(i))}
		if len(p.TrainSpeed) != 0 {
			row = append(row, formatFloat(p.TrainSpeed[i]))
		}
		return row
	})
}

func (p *PowerTrace) SaveCSV(path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return p.WriteCSV(f)
}
