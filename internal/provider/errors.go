package provider

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures so the shell can tell a
// permission problem from a retryable one.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindAccessDenied
	KindTimeout
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAccessDenied:
		return "access denied"
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a typed provider failure.
type Error struct {
	Op   string // "list", "stat", "get", "put", "head"
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a classified provider failure.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the failure kind from an error chain, KindUnknown
// when the error did not come from a provider.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// Retryable reports whether a failure is worth retrying as-is, as
// opposed to one needing caller action (bad path, credentials).
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindTransient:
		return true
	}
	return false
}
