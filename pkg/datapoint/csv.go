package datapoint

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
)

// ReadCSV reads one sounding per row: line, fiducial, x, y, z, elevation,
// d_1..d_C, sigma_1..sigma_C (spec.md §6 "Data CSV"). numChannels is C,
// known in advance from the system file.
func ReadCSV(r io.Reader, numChannels int, system *fdem.System) ([]*Datapoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &errs.ConfigError{Reason: "cannot read data CSV", Cause: err}
	}

	wantCols := 6 + 2*numChannels
	points := make([]*Datapoint, 0, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if len(row) < wantCols {
			return nil, &errs.DataError{Reason: "data CSV row has too few columns", Cause: nil}
		}

		fields := make([]float64, len(row))
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, &errs.DataError{Reason: "data CSV row contains a non-numeric field", Cause: err}
			}
			fields[j] = v
		}

		d := &Datapoint{
			LineNumber: fields[0],
			Fiducial:   fields[1],
			X:          fields[2],
			Y:          fields[3],
			Z:          fields[4],
			Elevation:  fields[5],
			Observed:   append([]float64(nil), fields[6:6+numChannels]...),
			Sigma:      append([]float64(nil), fields[6+numChannels:6+2*numChannels]...),
			Active:     make([]bool, numChannels),
			Predicted:  make([]float64, numChannels),
			System:     system,
		}
		for c := range d.Active {
			d.Active[c] = d.Sigma[c] > 0
		}
		if err := d.validate(); err != nil {
			return nil, err
		}
		points = append(points, d)
		_ = i
	}
	return points, nil
}
