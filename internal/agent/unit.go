package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Unit is one named processing step. It turns a task and the running
// context into a result string.
//
// Implementations must tolerate being retried: the layer below may call the
// model more than once for a single Process call.
type Unit interface {
	Name() string
	Process(ctx context.Context, task, context string) (string, error)
}

// Kind classifies a unit failure.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindInvalidResponse Kind = "invalid_response"
	KindExternalFailure Kind = "external_failure"
)

// UnitError is the only error a Unit should return.
type UnitError struct {
	Unit   string
	Kind   Kind
	Detail string
	Err    error
}

func (e *UnitError) Error() string {
	msg := fmt.Sprintf("unit %s: %s", e.Unit, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnitError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline or client timeout.
func (e *UnitError) Timeout() bool { return e.Kind == KindTimeout }

// NewUnitError builds a UnitError, classifying err when kind is empty.
func NewUnitError(unit string, kind Kind, detail string, err error) *UnitError {
	if kind == "" {
		kind = Classify(err)
	}
	return &UnitError{Unit: unit, Kind: kind, Detail: detail, Err: err}
}

// AsUnitError returns err as a UnitError attributed to unit. Errors that
// already are UnitErrors pass through untouched.
func AsUnitError(unit string, err error) *UnitError {
	if err == nil {
		return nil
	}
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue
	}
	return NewUnitError(unit, "", "", err)
}

// Classify maps a collaborator error onto a Kind.
func Classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, ErrMalformedResponse) {
		return KindInvalidResponse
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindExternalFailure
}

// Descriptor describes a unit before it is built. Disabled descriptors never
// reach a Registry.
type Descriptor struct {
	Name    string
	Enabled bool
	Config  map[string]any
}
