// Package store exports runs and simulation objects as JSON or YAML.
package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/railsim/internal/experiment"
	"github.com/san-kum/railsim/internal/sim"
)

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case JSON, YAML:
		return Format(s), nil
	case "yml":
		return YAML, nil
	}
	return "", errors.Errorf("unknown export format %q (want json or yaml)", s)
}

type ExportData struct {
	Sim     string             `json:"sim" yaml:"sim"`
	Name    string             `json:"name" yaml:"name"`
	Steps   int                `json:"steps" yaml:"steps"`
	Error   string             `json:"error,omitempty" yaml:"error,omitempty"`
	Metrics map[string]float64 `json:"metrics" yaml:"metrics"`
	Samples []sim.Sample       `json:"samples" yaml:"samples"`
	// final object graph of the simulation, history included
	State sim.Walker `json:"state,omitempty" yaml:"state,omitempty"`
}

// FromResult flattens an experiment result. walkErr, when set, is recorded on
// every run since a failed walk leaves all of them partial.
func FromResult(res *experiment.Result, walkErr error, withState bool) []ExportData {
	out := make([]ExportData, len(res.Runs))
	for i, r := range res.Runs {
		d := ExportData{
			Sim:     res.Sim,
			Name:    r.Name,
			Steps:   len(r.Samples),
			Metrics: r.Metrics,
			Samples: r.Samples,
		}
		if walkErr != nil {
			d.Error = walkErr.Error()
		}
		if withState {
			d.State = r.Walker
		}
		out[i] = d
	}
	return out
}

func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encode json")
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encode yaml")
		}
		return enc.Close()
	}
	return errors.Errorf("unknown export format %q", f)
}

func Export(path string, f Format, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return Encode(file, f, v)
}

func ExportStdout(f Format, v any) error {
	return Encode(os.Stdout, f, v)
}
