// Package errs implements the error taxonomy of spec.md §7: ConfigError,
// DataError, NumericError, IOError. Each is a distinct type so the driver
// and the sampler can switch on class (abort vs skip-and-record-failed vs
// reject-the-proposal-and-continue) with a plain type switch, no sentinel
// string matching.
package errs

import "fmt"

// ConfigError signals a bad options file or missing input file. The
// process aborts — there is no datapoint to skip to.
type ConfigError struct {
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// DataError signals a non-finite observation or a zero standard deviation
// on an active channel. The driver skips the offending datapoint and
// records Failed=true; nothing else is affected.
type DataError struct {
	Fiducial float64
	Reason   string
	Cause    error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error on fiducial %g: %s", e.Fiducial, e.Reason)
}

func (e *DataError) Unwrap() error { return e.Cause }

// NumericError signals a singular local covariance, Hankel overflow, or a
// Cholesky failure inside the Stochastic-Newton proposal. The sampler
// rejects the proposal silently and continues — it never retries or
// aborts on this class.
type NumericError struct {
	Reason string
	Cause  error
}

func (e *NumericError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("numeric error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("numeric error: %s", e.Reason)
}

func (e *NumericError) Unwrap() error { return e.Cause }

// IOError signals a failure writing a result record. The dispatcher logs
// it, marks that datapoint "failed" in the manifest and moves on to the
// next one; the datapoint is not reassigned or retried.
type IOError struct {
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error writing %q: %v", e.Path, e.Cause)
}

func (e *IOError) Unwrap() error { return e.Cause }
