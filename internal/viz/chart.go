package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/sim"
)

// Field is one plottable column of a sample, in display units.
type Field struct {
	Name  string
	Unit  string
	Scale float64
	get   func(sim.Sample) float64
}

var Fields = []Field{
	{"pwr_out", "MW", 1e-6, func(s sim.Sample) float64 { return s.PwrOut }},
	{"pwr_out_req", "MW", 1e-6, func(s sim.Sample) float64 { return s.PwrOutReq }},
	{"pwr_fuel", "MW", 1e-6, func(s sim.Sample) float64 { return s.PwrFuel }},
	{"pwr_res", "MW", 1e-6, func(s sim.Sample) float64 { return s.PwrRES }},
	{"pwr_out_deficit", "MW", 1e-6, func(s sim.Sample) float64 { return s.PwrOutDeficit }},
	{"pwr_regen_deficit", "MW", 1e-6, func(s sim.Sample) float64 { return s.PwrRegenDeficit }},
	{"speed", "m/s", 1, func(s sim.Sample) float64 { return s.Speed }},
}

func FieldByName(name string) (Field, error) {
	for _, f := range Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, errors.Errorf("unknown field %q (available: %s)", name, strings.Join(FieldNames(), ", "))
}

func FieldNames() []string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.Name
	}
	return names
}

func (f Field) Label() string { return fmt.Sprintf("%s (%s)", f.Name, f.Unit) }

// Series extracts the field from every sample, scaled to display units.
func (f Field) Series(samples []sim.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = f.get(s) * f.Scale
	}
	return out
}

func Times(samples []sim.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Time
	}
	return out
}

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan, asciigraph.Yellow, asciigraph.Green, asciigraph.Red, asciigraph.Magenta,
}

// Chart plots the named fields on one terminal chart.
func Chart(samples []sim.Sample, names []string, width, height int) (string, error) {
	if len(samples) == 0 {
		return "", errors.New("no samples to plot")
	}
	if len(names) == 0 {
		names = []string{"pwr_out"}
	}

	data := make([][]float64, len(names))
	labels := make([]string, len(names))
	for i, name := range names {
		f, err := FieldByName(name)
		if err != nil {
			return "", err
		}
		data[i] = f.Series(samples)
		labels[i] = f.Label()
	}

	colors := make([]asciigraph.AnsiColor, len(data))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}

	caption := fmt.Sprintf("%s vs step, t=%.0f..%.0f s", strings.Join(labels, ", "),
		samples[0].Time, samples[len(samples)-1].Time)
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	), nil
}
