// Package storage keeps finished runs on disk: one directory per run with its
// metadata and samples, indexed by a SQLite catalog.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/railsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string             `json:"id"`
	Sim       string             `json:"sim"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Steps     int                `json:"steps"`
	Metrics   map[string]float64 `json:"metrics"`
	// walk failure, empty on success
	Error string `json:"error,omitempty"`
}

var sampleHeader = []string{
	"i", "time", "dt", "pwr_out_req", "pwr_out", "pwr_fuel", "pwr_res",
	"pwr_out_deficit", "pwr_regen_deficit", "speed",
}

// Save writes a run directory and returns the run ID.
func (s *Store) Save(meta RunMetadata, samples []sim.Sample) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%s_%d", meta.Sim, meta.Name, now.UnixNano())
	meta.Timestamp = now
	meta.Steps = len(samples)
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(sampleHeader); err != nil {
		return "", err
	}
	for _, smp := range samples {
		row := []string{strconv.Itoa(smp.I)}
		for _, v := range []float64{
			smp.Time, smp.Dt, smp.PwrOutReq, smp.PwrOut, smp.PwrFuel, smp.PwrRES,
			smp.PwrOutDeficit, smp.PwrRegenDeficit, smp.Speed,
		} {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", runID)
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for line, rec := range records[1:] {
		if len(rec) != len(sampleHeader) {
			return nil, errors.Errorf("run %s: line %d has %d fields", runID, line+2, len(rec))
		}
		i, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, errors.Wrapf(err, "run %s: line %d", runID, line+2)
		}
		vals := make([]float64, len(rec)-1)
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, errors.Wrapf(err, "run %s: line %d, %s", runID, line+2, sampleHeader[j+1])
			}
		}
		samples = append(samples, sim.Sample{
			I: i, Time: vals[0], Dt: vals[1], PwrOutReq: vals[2], PwrOut: vals[3],
			PwrFuel: vals[4], PwrRES: vals[5], PwrOutDeficit: vals[6],
			PwrRegenDeficit: vals[7], Speed: vals[8],
		})
	}
	return samples, nil
}
