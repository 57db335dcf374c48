// Package faults defines the failure taxonomy shared by all analyzers.
//
// Analyzer boundaries never propagate these as panics or fatal errors: a
// fault at the top of an analyzer degrades that analyzer's document (error
// field set, primary collection empty), per-record faults are skipped, and
// missing data is reported as a zero-valued document.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a run fault.
type Kind int

const (
	// MissingCredential means a required secret or identifier is absent.
	MissingCredential Kind = iota
	// UpstreamUnavailable means a provider call failed (network, timeout,
	// or non-2xx status).
	UpstreamUnavailable
	// MalformedRecord means a single input record could not be parsed.
	MalformedRecord
	// InsufficientData means zero usable records were available.
	InsufficientData
)

func (k Kind) String() string {
	switch k {
	case MissingCredential:
		return "missing_credential"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case MalformedRecord:
		return "malformed_record"
	case InsufficientData:
		return "insufficient_data"
	}
	return "unknown"
}

// Fault is a classified error.
type Fault struct {
	Kind Kind
	Msg  string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Msg, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}

func (f *Fault) Unwrap() error { return f.Err }

// Is matches faults by kind, so errors.Is(err, &Fault{Kind: k}) works with
// the sentinel helpers below.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	if !ok {
		return false
	}
	return t.Kind == f.Kind
}

// New creates a fault of the given kind.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a fault of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is (or wraps) a fault of the given kind.
func IsKind(err error, kind Kind) bool {
	return errors.Is(err, &Fault{Kind: kind})
}
