package config_test

import (
	"strings"
	"testing"

	"github.com/geoinv/aem-rjmcmc/pkg/config"
)

const validOptions = `
data_type = frequency_domain
data_filename = data.csv
system_filename = system.stm
n_markov_chains = 50000
interactive_plot = false
update_plot_every = 1000
save_png = false
save_hdf5 = true
solve_parameter = true
solve_gradient = false
maximum_number_of_layers = 20
minimum_depth = 1
maximum_depth = 150
probability_of_birth = 0.25
probability_of_death = 0.25
probability_of_perturb = 0.25
probability_of_no_change = 0.25
factor = 12
`

func TestParseParsesValidOptions(t *testing.T) {
	p := config.New()
	opts, err := p.Parse(strings.NewReader(validOptions))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.NMarkovChains != 50000 {
		t.Errorf("expected n_markov_chains 50000, got %d", opts.NMarkovChains)
	}
	if opts.MaximumNumberOfLayers != 20 {
		t.Errorf("expected maximum_number_of_layers 20, got %d", opts.MaximumNumberOfLayers)
	}
	if opts.Factor != 12 {
		t.Errorf("expected factor override 12, got %v", opts.Factor)
	}
	if opts.GradientStandardDeviation != 1.5 {
		t.Errorf("expected default gradient_standard_deviation 1.5, got %v", opts.GradientStandardDeviation)
	}
	if !opts.SaveHDF5 || !opts.SolveParameter {
		t.Errorf("expected save_hdf5 and solve_parameter true, got %+v", opts)
	}
}

func TestParseRejectsMissingRequiredKey(t *testing.T) {
	p := config.New()
	missing := strings.Replace(validOptions, "n_markov_chains = 50000\n", "", 1)
	if _, err := p.Parse(strings.NewReader(missing)); err == nil {
		t.Fatal("expected an error for a missing required key")
	}
}

func TestParseIgnoresCommentsAndBlankLines(t *testing.T) {
	p := config.New()
	withComments := "# a comment\n\n" + validOptions
	opts, err := p.Parse(strings.NewReader(withComments))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.DataType != "frequency_domain" {
		t.Errorf("expected data_type frequency_domain, got %q", opts.DataType)
	}
}
