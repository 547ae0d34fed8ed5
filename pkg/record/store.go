package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/logging"
)

// Store persists DatapointRecords to an output directory, one JSON file per
// fiducial. Adapted from the teacher's pkg/reporting.Storage: directory
// creation up front, KeepLastN pruning after every write. Unlike the
// teacher, records are keyed by fiducial (stable across reruns of the same
// dataset) instead of a start-timestamp, and the write goes through a
// temp-file-plus-rename so a worker crash mid-write never leaves a
// truncated record for the master to pick up.
type Store struct {
	outputDir string
	keepLastN int
	log       *logging.Logger
}

// NewStore creates a Store, creating outputDir if necessary.
func NewStore(outputDir string, keepLastN int, log *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, &errs.IOError{Path: outputDir, Cause: err}
	}
	return &Store{outputDir: outputDir, keepLastN: keepLastN, log: log}, nil
}

func (s *Store) filename(fiducial float64) string {
	return fmt.Sprintf("datapoint-%s.json", strconv.FormatFloat(fiducial, 'f', -1, 64))
}

// Save writes rec for fiducial, via a temp file in the same directory
// followed by a rename (atomic on the same filesystem).
func (s *Store) Save(fiducial float64, rec *DatapointRecord) (string, error) {
	path := filepath.Join(s.outputDir, s.filename(fiducial))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", &errs.IOError{Path: path, Cause: err}
	}

	tmp, err := os.CreateTemp(s.outputDir, "datapoint-*.tmp")
	if err != nil {
		return "", &errs.IOError{Path: path, Cause: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", &errs.IOError{Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", &errs.IOError{Path: path, Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", &errs.IOError{Path: path, Cause: err}
	}

	s.log.Info("datapoint record saved", "path", path, "fiducial", fiducial)

	if s.keepLastN > 0 {
		if err := s.cleanupOldest(); err != nil {
			s.log.Warn("failed to prune old records", "error", err)
		}
	}
	return path, nil
}

// Load reads back the record for fiducial.
func (s *Store) Load(fiducial float64) (*DatapointRecord, error) {
	path := filepath.Join(s.outputDir, s.filename(fiducial))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IOError{Path: path, Cause: err}
	}
	var rec DatapointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &errs.IOError{Path: path, Cause: err}
	}
	return &rec, nil
}

// summary pairs a record's path with its fiducial and mtime, for pruning.
type summary struct {
	path     string
	fiducial float64
	modTime  int64
}

func (s *Store) listSummaries() ([]summary, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return nil, &errs.IOError{Path: s.outputDir, Cause: err}
	}
	out := make([]summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "datapoint-") || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		fid, err := fiducialFromFilename(e.Name())
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, summary{path: filepath.Join(s.outputDir, e.Name()), fiducial: fid, modTime: info.ModTime().UnixNano()})
	}
	return out, nil
}

func fiducialFromFilename(name string) (float64, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "datapoint-"), ".json")
	return strconv.ParseFloat(trimmed, 64)
}

// cleanupOldest removes the oldest-written records beyond keepLastN, the
// same prune rule as the teacher's cleanupOldReports but ordered by
// modification time instead of a StartTime field (a record carries no
// run-timestamp of its own; fiducial is its stable identity).
func (s *Store) cleanupOldest() error {
	summaries, err := s.listSummaries()
	if err != nil {
		return err
	}
	if len(summaries) <= s.keepLastN {
		return nil
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].modTime > summaries[j].modTime })
	for _, sum := range summaries[s.keepLastN:] {
		if err := os.Remove(sum.path); err != nil {
			s.log.Warn("failed to delete old record", "path", sum.path, "error", err)
		} else {
			s.log.Debug("deleted old record", "path", sum.path)
		}
	}
	return nil
}

// ListFiducials returns every fiducial with a record currently on disk.
func (s *Store) ListFiducials() ([]float64, error) {
	summaries, err := s.listSummaries()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(summaries))
	for i, sum := range summaries {
		out[i] = sum.fiducial
	}
	sort.Float64s(out)
	return out, nil
}
