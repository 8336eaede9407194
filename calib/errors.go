package calib

import (
	"errors"
	"fmt"
)

// ErrIncompatiblePRWC is returned when absorbing constraints aimed at different curves.
var ErrIncompatiblePRWC = errors.New("calib: constraints target different curves")

// CalibrationInputError reports a bad or missing instrument, quote or adapter.
// It is raised before any segment is solved for that instrument.
type CalibrationInputError struct {
	InstrumentID string
	Reason       string
	Err          error
}

func (e *CalibrationInputError) Error() string {
	msg := "calibration input"
	if e.InstrumentID != "" {
		msg += " " + e.InstrumentID
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalibrationInputError) Unwrap() error { return e.Err }

func inputErr(id string, err error, format string, args ...any) error {
	return &CalibrationInputError{InstrumentID: id, Reason: fmt.Sprintf(format, args...), Err: err}
}

// CalibrationFailure reports an instrument that could not be repriced within
// tolerance after Newton iteration and the root-finder fallback.
type CalibrationFailure struct {
	InstrumentID string
	Tolerance    float64
	Residual     float64
	Iterations   int
	Err          error
}

func (e *CalibrationFailure) Error() string {
	msg := fmt.Sprintf("calibration failed for %s: residual %.3e exceeds tolerance %.3e after %d iterations",
		e.InstrumentID, e.Residual, e.Tolerance, e.Iterations)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CalibrationFailure) Unwrap() error { return e.Err }
