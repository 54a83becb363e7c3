package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicatePrediction is returned when a record with the same (ticker, date, horizon) key exists.
	ErrDuplicatePrediction = errors.New("prediction already exists")
	// ErrPredictionNotFound is returned when a record key is not present in the store.
	ErrPredictionNotFound = errors.New("prediction not found")
	// ErrStalePrediction is returned when a replacement is based on an outdated version.
	ErrStalePrediction = errors.New("prediction was modified concurrently")
	// ErrInvalidParameter marks a request parameter that passed tag validation but cannot be used.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// InsufficientDataError reports that a series is too short for the requested model or window.
// Callers recover by choosing a shorter window or a different model.
type InsufficientDataError struct {
	Ticker    string
	Operation string
	Required  int
	Got       int
	Cause     error
}

func (e *InsufficientDataError) Error() string {
	var b strings.Builder
	b.WriteString("insufficient data")
	if e.Operation != "" {
		fmt.Fprintf(&b, " for %s", e.Operation)
	}
	if e.Ticker != "" {
		fmt.Fprintf(&b, " (%s)", e.Ticker)
	}
	if e.Required > 0 {
		fmt.Fprintf(&b, ": need %d observations, got %d", e.Required, e.Got)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *InsufficientDataError) Unwrap() error { return e.Cause }

// ConvergenceFailure is raised inside model fitting. Engines recover it with a deterministic fallback.
type ConvergenceFailure struct {
	Model string
	Order string
	Cause error
}

func (e *ConvergenceFailure) Error() string {
	msg := e.Model
	if e.Order != "" {
		msg += e.Order
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s did not converge: %v", msg, e.Cause)
	}
	return msg + " did not converge"
}

func (e *ConvergenceFailure) Unwrap() error { return e.Cause }

// UnknownSignalError is returned for a signal name outside the supported set.
type UnknownSignalError struct {
	Name  string
	Known []string
}

func (e *UnknownSignalError) Error() string {
	return fmt.Sprintf("unknown signal %q (supported: %s, or <indicator><op><threshold>)", e.Name, strings.Join(e.Known, ", "))
}

// LookAheadViolation signals a defect: a signal read a bar after its evaluation date.
type LookAheadViolation struct {
	Signal string
	Index  int
	Limit  int
}

func (e *LookAheadViolation) Error() string {
	return fmt.Sprintf("look-ahead violation in %s: read bar %d while evaluating bar %d", e.Signal, e.Index, e.Limit)
}

// IsInsufficientData reports whether err carries an InsufficientDataError.
func IsInsufficientData(err error) bool {
	var ide *InsufficientDataError
	return errors.As(err, &ide)
}
