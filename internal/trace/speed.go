package trace

import (
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/railsim/internal/core"
)

// SpeedTrace prescribes train speed over time.
type SpeedTrace struct {
	Time     []float64 `json:"time" yaml:"time"`
	Speed    []float64 `json:"speed" yaml:"speed"`
	EngineOn []bool    `json:"engine_on,omitempty" yaml:"engine_on,omitempty"`
}

// DefaultSpeedTrace accelerates to 20 m/s over 800 s, cruises for 100 s, then stops
// over 200 s.
func DefaultSpeedTrace() SpeedTrace {
	speed := floats.Span(make([]float64, 800), 0, 20)
	for range 100 {
		speed = append(speed, 20)
	}
	speed = append(speed, floats.Span(make([]float64, 200), 20, 0)...)
	speed = append(speed, 0)

	st := SpeedTrace{Time: make([]float64, len(speed)), Speed: speed}
	for i := range st.Time {
		st.Time[i] = float64(i)
	}
	return st
}

func (s *SpeedTrace) Len() int { return len(s.Time) }

func (s *SpeedTrace) Dt(i int) float64 { return s.Time[i] - s.Time[i-1] }

// Mean is the average speed over the step ending at sample i.
func (s *SpeedTrace) Mean(i int) float64 { return 0.5 * (s.Speed[i] + s.Speed[i-1]) }

// Acc is the mean acceleration over the step ending at sample i.
func (s *SpeedTrace) Acc(i int) float64 { return (s.Speed[i] - s.Speed[i-1]) / s.Dt(i) }

func (s *SpeedTrace) Engine(i int) *bool {
	if len(s.EngineOn) == 0 {
		return nil
	}
	v := s.EngineOn[i]
	return &v
}

func (s *SpeedTrace) Validate() error {
	n := s.Len()
	if n == 0 {
		return errors.Wrap(core.ErrTraceData, "speed trace is empty")
	}
	if len(s.Speed) != n {
		return errors.Wrapf(core.ErrTraceData, "speed trace: %d speed samples for %d times", len(s.Speed), n)
	}
	if len(s.EngineOn) != 0 && len(s.EngineOn) != n {
		return errors.Wrapf(core.ErrTraceData, "speed trace: %d engine_on samples for %d times", len(s.EngineOn), n)
	}
	for i, v := range s.Speed {
		if v < 0 {
			return errors.Wrapf(core.ErrTraceData, "speed trace: negative speed %g at sample %d", v, i)
		}
	}
	return checkIncreasing("speed trace", s.Time)
}

// Trim keeps the half-open sample range [start, end).
func (s *SpeedTrace) Trim(start, end *int) error {
	lo, hi, err := bounds("speed trace", start, end, s.Len())
	if err != nil {
		return err
	}
	s.Time = s.Time[lo:hi:hi]
	s.Speed = s.Speed[lo:hi:hi]
	if len(s.EngineOn) != 0 {
		s.EngineOn = s.EngineOn[lo:hi:hi]
	}
	return nil
}

// ReadSpeedTrace parses time_seconds, speed_meters_per_second and an optional
// engine_on column. The short names time and speed are accepted too. The engine
// column must be filled on every row or on none.
func ReadSpeedTrace(r io.Reader) (SpeedTrace, error) {
	t, err := readTable(r, "speed trace")
	if err != nil {
		return SpeedTrace{}, err
	}
	timeCol, err := t.require("time_seconds", "time")
	if err != nil {
		return SpeedTrace{}, err
	}
	speedCol, err := t.require("speed_meters_per_second", "speed")
	if err != nil {
		return SpeedTrace{}, err
	}
	engineCol, hasEngine := t.index("engine_on")

	var st SpeedTrace
	for n, row := range t.rows {
		line := n + 2
		tm, err := t.float(row, timeCol, line, "time_seconds")
		if err != nil {
			return SpeedTrace{}, err
		}
		v, err := t.float(row, speedCol, line, "speed_meters_per_second")
		if err != nil {
			return SpeedTrace{}, err
		}
		st.Time = append(st.Time, tm)
		st.Speed = append(st.Speed, v)
		if !hasEngine {
			continue
		}
		on, err := t.optBool(row, engineCol, line, "engine_on")
		if err != nil {
			return SpeedTrace{}, err
		}
		switch {
		case on != nil && len(st.EngineOn) == n:
			st.EngineOn = append(st.EngineOn, *on)
		case on == nil && len(st.EngineOn) == 0:
		default:
			return SpeedTrace{}, errors.Wrapf(core.ErrTraceData, "speed trace line %d: engine_on must be set on every row or none", line)
		}
	}
	if err := st.Validate(); err != nil {
		return SpeedTrace{}, err
	}
	return st, nil
}

func LoadSpeedTrace(path string) (SpeedTrace, error) {
	f, err := openFile(path)
	if err != nil {
		return SpeedTrace{}, err
	}
	defer f.Close()
	st, err := ReadSpeedTrace(f)
	return st, errors.WithMessage(err, path)
}

func (s *SpeedTrace) WriteCSV(w io.Writer) error {
	return writeRows(w, []string{"time_seconds", "speed_meters_per_second", "engine_on"}, s.Len(), func(i int) []string {
		engine := ""
		if len(s.EngineOn) != 0 {
			engine = strconv.FormatBool(s.EngineOn[i])
		}
		return []string{formatFloat(s.Time[i]), formatFloat(s.Speed[i]), engine}
	})
}

func (s *SpeedTrace) SaveCSV(path string) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.WriteCSV(f)
}
