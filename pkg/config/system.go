package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/geoinv/aem-rjmcmc/pkg/errs"
	"github.com/geoinv/aem-rjmcmc/pkg/fdem"
)

// systemColumns is the fixed column order of spec.md §6's system file:
// "freq tor tmom tx ty tz ror rmom rx ry rz".
const systemColumns = 11

// ReadSystemFile parses the whitespace-delimited system-file table at path
// into an *fdem.System: one row per frequency, each giving a transmitter
// loop (orientation/moment/offset) and a receiver loop. The first line is
// a header and is required to contain "freq" (spec.md §6); its actual
// column names are otherwise ignored since the column order is fixed.
// tor/ror are letter codes ("x", "y" or "z"; any other code reads as
// "z"), matching
// original_source/geobipy's FdemSystem.read, not numeric indices.
func ReadSystemFile(path string) (*fdem.System, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &errs.ConfigError{Reason: "cannot open system file", Cause: err}
	}
	defer f.Close()
	return parseSystem(f)
}

func parseSystem(r io.Reader) (*fdem.System, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		return nil, &errs.ConfigError{Reason: "system file is empty"}
	}
	header := strings.Fields(strings.ToLower(scanner.Text()))
	if len(header) == 0 || !contains(header, "freq") {
		return nil, &errs.ConfigError{Reason: "system file header does not contain 'freq'"}
	}

	var freqs []float64
	var tx, rx []fdem.Loop
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != systemColumns {
			return nil, &errs.ConfigError{Reason: "system file row does not have " + strconv.Itoa(systemColumns) + " columns: " + line}
		}

		freq, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &errs.ConfigError{Reason: "non-numeric frequency: " + fields[0], Cause: err}
		}
		tmom, err := parseRow(fields[2], fields[3], fields[4], fields[5])
		if err != nil {
			return nil, err
		}
		rmom, err := parseRow(fields[7], fields[8], fields[9], fields[10])
		if err != nil {
			return nil, err
		}

		freqs = append(freqs, freq)
		tx = append(tx, fdem.Loop{Orientation: fdem.ParseOrientation(fields[1]), Moment: tmom[0], X: tmom[1], Y: tmom[2], Z: tmom[3]})
		rx = append(rx, fdem.Loop{Orientation: fdem.ParseOrientation(fields[6]), Moment: rmom[0], X: rmom[1], Y: rmom[2], Z: rmom[3]})
	}
	if err := scanner.Err(); err != nil {
		return nil, &errs.ConfigError{Reason: "failed to read system file", Cause: err}
	}
	if len(freqs) == 0 {
		return nil, &errs.ConfigError{Reason: "system file has no frequency rows"}
	}

	return fdem.NewSystem(freqs, tx, rx)
}

// parseRow parses the (moment, x, y, z) quartet shared by the tx/rx loop
// columns.
func parseRow(moment, x, y, z string) ([4]float64, error) {
	var out [4]float64
	for i, field := range []string{moment, x, y, z} {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return out, &errs.ConfigError{Reason: "non-numeric system file field: " + field, Cause: err}
		}
		out[i] = v
	}
	return out, nil
}

func contains(fields []string, target string) bool {
	for _, f := range fields {
		if f == target {
			return true
		}
	}
	return false
}
