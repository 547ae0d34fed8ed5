// Package config parses the inversion run's two plain-text inputs: the
// options file (spec.md §6 "evaluated as key=value records") and the
// system file (spec.md §6's frequency/loop-geometry table). Adapted from
// the teacher's pkg/scenario/parser.Parser + pkg/scenario/validator.Validator
// (read file -> parse -> validate required fields, errors and warnings
// collected separately) but for a key=value options format instead of
// YAML, since spec.md names that format explicitly rather than leaving it
// open the way the rest of the ambient stack is.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
)

// Options is the parsed options file (spec.md §6).
type Options struct {
	DataType       string
	DataFilename   string
	SystemFilename string

	NMarkovChains   int
	InteractivePlot bool
	UpdatePlotEvery int
	SavePNG         bool
	SaveHDF5        bool
	SolveParameter  bool
	SolveGradient   bool

	MaximumNumberOfLayers int
	MinimumDepth          float64
	MaximumDepth          float64

	ProbabilityOfBirth    float64
	ProbabilityOfDeath    float64
	ProbabilityOfPerturb  float64
	ProbabilityOfNoChange float64

	MinimumThickness          float64 // optional
	Factor                    float64 // optional, default 10
	GradientStandardDeviation float64 // optional, default 1.5
	Multiplier                float64 // optional, default 1.0
	CovarianceScaling         float64 // optional, default 1.0

	MaximumHeightChange float64
	MaximumPitchChange  float64
	MaximumRollChange   float64
	MaximumYawChange    float64
}

// requiredKeys are the options file's mandatory keys, per spec.md §6.
var requiredKeys = []string{
	"data_type", "data_filename", "system_filename", "n_markov_chains",
	"interactive_plot", "update_plot_every", "save_png", "save_hdf5",
	"solve_parameter", "solve_gradient", "maximum_number_of_layers",
	"minimum_depth", "maximum_depth", "probability_of_birth",
	"probability_of_death", "probability_of_perturb", "probability_of_no_change",
}

// Parser reads an options file into Options, collecting non-fatal
// warnings for unrecognised lines the same way the teacher's
// scenario.Validator separates Warnings from Errors.
type Parser struct {
	Warnings []string
}

// New creates a Parser.
func New() *Parser { return &Parser{} }

// ParseFile reads and parses the options file at path.
func (p *Parser) ParseFile(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.ConfigError{Reason: "cannot open options file", Cause: err}
	}
	defer f.Close()
	return p.Parse(f)
}

// Parse reads key=value records from r, one per line; blank lines and
// lines starting with '#' are ignored.
func (p *Parser) Parse(r io.Reader) (*Options, error) {
	raw := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			p.Warnings = append(p.Warnings, fmt.Sprintf("ignoring malformed line: %q", line))
			continue
		}
		raw[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.ConfigError{Reason: "failed to read options file", Cause: err}
	}

	if err := p.validateRequired(raw); err != nil {
		return nil, err
	}

	opts := &Options{
		DataType:                  raw["data_type"],
		DataFilename:              raw["data_filename"],
		SystemFilename:            raw["system_filename"],
		NMarkovChains:             intOr(raw, "n_markov_chains", 0),
		InteractivePlot:           boolOr(raw, "interactive_plot", false),
		UpdatePlotEvery:           intOr(raw, "update_plot_every", 0),
		SavePNG:                   boolOr(raw, "save_png", false),
		SaveHDF5:                  boolOr(raw, "save_hdf5", false),
		SolveParameter:            boolOr(raw, "solve_parameter", false),
		SolveGradient:             boolOr(raw, "solve_gradient", false),
		MaximumNumberOfLayers:     intOr(raw, "maximum_number_of_layers", 0),
		MinimumDepth:              floatOr(raw, "minimum_depth", 0),
		MaximumDepth:              floatOr(raw, "maximum_depth", 0),
		ProbabilityOfBirth:        floatOr(raw, "probability_of_birth", 0),
		ProbabilityOfDeath:        floatOr(raw, "probability_of_death", 0),
		ProbabilityOfPerturb:      floatOr(raw, "probability_of_perturb", 0),
		ProbabilityOfNoChange:     floatOr(raw, "probability_of_no_change", 0),
		MinimumThickness:          floatOr(raw, "minimum_thickness", 0),
		Factor:                    floatOr(raw, "factor", 10),
		GradientStandardDeviation: floatOr(raw, "gradient_standard_deviation", 1.5),
		Multiplier:                floatOr(raw, "multiplier", 1.0),
		CovarianceScaling:         floatOr(raw, "covariance_scaling", 1.0),
		MaximumHeightChange:       floatOr(raw, "maximum_height_change", 0),
		MaximumPitchChange:        floatOr(raw, "maximum_pitch_change", 0),
		MaximumRollChange:         floatOr(raw, "maximum_roll_change", 0),
		MaximumYawChange:          floatOr(raw, "maximum_yaw_change", 0),
	}
	return opts, nil
}

func (p *Parser) validateRequired(raw map[string]string) error {
	var missing []string
	for _, key := range requiredKeys {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &errs.ConfigError{Reason: fmt.Sprintf("missing required keys: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func intOr(raw map[string]string, key string, def int) int {
	v, ok := raw[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatOr(raw map[string]string, key string, def float64) float64 {
	v, ok := raw[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolOr(raw map[string]string, key string, def bool) bool {
	v, ok := raw[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
