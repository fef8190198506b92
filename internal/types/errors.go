package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the analysis pipeline. Every error returned by a
// core function classifies under exactly one of these via KindOf.
var (
	ErrInsufficientData    = errors.New("insufficient data for analysis")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrUpstreamUnavailable = errors.New("upstream data store unavailable")
	ErrNotFound            = errors.New("user not found")
)

// ErrorKind is the pattern-matchable classification of a pipeline error.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInsufficientData
	KindMalformedRecord
	KindInvariantViolation
	KindUpstreamUnavailable
	KindNotFound
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInsufficientData:
		return "insufficient_data"
	case KindMalformedRecord:
		return "malformed_record"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrMalformedRecord):
		return KindMalformedRecord
	case errors.Is(err, ErrInvariantViolation):
		return KindInvariantViolation
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// InvariantError reports a computed value outside its defined bounds.
type InvariantError struct {
	Metric Metric
	Field  string
	Value  float64
	Min    float64
	Max    float64
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("%s.%s = %v outside [%v, %v]", e.Metric, e.Field, e.Value, e.Min, e.Max)
	}
	return fmt.Sprintf("%s = %v outside [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

// Unwrap returns ErrInvariantViolation for errors.Is() compatibility.
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// RecordError describes a stored record that failed shape validation.
type RecordError struct {
	Kind   string
	ID     string
	Reason string
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Reason)
}

// Unwrap returns ErrMalformedRecord for errors.Is() compatibility.
func (e *RecordError) Unwrap() error {
	return ErrMalformedRecord
}
