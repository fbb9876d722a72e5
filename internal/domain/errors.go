package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error kinds. Every failure surfaced by the pipeline wraps exactly one of these.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrUpstream      = errors.New("upstream error")
	// ErrTimeout is an upstream failure caused by an exceeded deadline.
	// errors.Is(err, ErrUpstream) also holds for timeouts.
	ErrTimeout = errors.New("upstream timeout")
)

// Stable kind strings reported to callers.
const (
	KindConfiguration = "configuration_error"
	KindValidation    = "validation_error"
	KindUpstream      = "upstream_error"
	KindTimeout       = "timeout_error"
	KindInternal      = "internal_error"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind    error  // one of the Err* kinds above
	Op      string // component that failed, e.g. "nominatim.resolve"
	Message string
	Status  int // upstream HTTP status, 0 when not applicable
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is reports timeouts as upstream failures too.
func (e *Error) Is(target error) bool {
	return e.Kind == ErrTimeout && target == ErrUpstream
}

// Configuration reports a missing or unusable credential/endpoint.
func Configuration(op, format string, args ...any) error {
	return &Error{Kind: ErrConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input. The message names the violated constraint.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Upstream reports a non-success response from an external dependency.
func Upstream(op string, status int, err error) error {
	return &Error{Kind: ErrUpstream, Op: op, Status: status, Err: err}
}

// Timeout reports an upstream call that exceeded its deadline.
func Timeout(op string, err error) error {
	return &Error{
		Kind:    ErrTimeout,
		Op:      op,
		Message: "request timed out; try a smaller radius or a more specific location",
		Err:     err,
	}
}

// TransportFailure classifies an error returned by an HTTP round trip:
// deadline and network timeouts become Timeout, everything else Upstream.
func TransportFailure(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(op, err)
	}
	return Upstream(op, 0, err)
}

// StatusOf returns the upstream HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// KindOf maps an error to its stable kind string.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindInternal
	}
}
