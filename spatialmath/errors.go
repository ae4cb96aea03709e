package spatialmath

import (
	"github.com/pkg/errors"
)

var (
	// ErrDomain marks degenerate geometry: too few samples, zero-magnitude vectors or
	// shapes that do not fit the operation.
	ErrDomain = errors.New("domain error")
	// ErrInputMismatch marks paired inputs whose counts disagree.
	ErrInputMismatch = errors.New("input mismatch")
)

// NewDomainError wraps ErrDomain with a formatted message.
func NewDomainError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDomain, format, args...)
}

// NewInputMismatchError returns an ErrInputMismatch describing two counts that should agree.
func NewInputMismatchError(what string, a, b int) error {
	return errors.Wrapf(ErrInputMismatch, "%s: %d != %d", what, a, b)
}
