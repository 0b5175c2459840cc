package protocols

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/vybium/vybium-recursion/internal/vybium-recursion/core"
)

// ErrorKind classifies pipeline failures
type ErrorKind int

const (
	// ErrUnknown represents an unknown error
	ErrUnknown ErrorKind = iota

	// ErrDigestMismatch means a recomputed public value digest differs from
	// the claimed one. Fatal for the run.
	ErrDigestMismatch

	// ErrCapabilityMismatch means a prover binding does not support the
	// constraint system its stage requires. Raised before any proving.
	ErrCapabilityMismatch

	// ErrProvingFailure wraps a backend prove error
	ErrProvingFailure

	// ErrIOFailure wraps program loading and persistence errors
	ErrIOFailure

	// ErrPublicValuesMismatch means two proofs joined by compression do not
	// describe adjacent executions
	ErrPublicValuesMismatch

	// ErrInvalidProof means a backend rejected a proof it was asked to verify
	ErrInvalidProof

	// ErrInvalidConfig represents an invalid configuration error
	ErrInvalidConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDigestMismatch:
		return "digest mismatch"
	case ErrCapabilityMismatch:
		return "capability mismatch"
	case ErrProvingFailure:
		return "proving failure"
	case ErrIOFailure:
		return "io failure"
	case ErrPublicValuesMismatch:
		return "public values mismatch"
	case ErrInvalidProof:
		return "invalid proof"
	case ErrInvalidConfig:
		return "invalid config"
	default:
		return "unknown"
	}
}

// ErrResourceExhausted is returned by backends that refuse a trace larger
// than their working memory budget.
var ErrResourceExhausted = errors.New("resource exhausted")

// Error is a stage-attributed pipeline error
type Error struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Cause   error
}

// NewError builds an Error
func NewError(kind ErrorKind, stage Stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Cause: cause}
}

// Error returns the error message
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("vybium-recursion ")
	b.WriteString(e.Kind.String())
	if e.Stage != StageUnknown {
		fmt.Fprintf(&b, " at %s stage", e.Stage)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// IsKind reports whether err wraps an *Error of kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// DigestMismatchError records every element where a claimed digest differs
// from the recomputed one.
type DigestMismatchError struct {
	Expected   core.Digest
	Actual     core.Digest
	Mismatched *bitset.BitSet
}

func newDigestMismatch(expected, actual core.Digest) *DigestMismatchError {
	mismatched := bitset.New(core.DigestWidth)
	for i := range expected {
		if !expected[i].Equal(actual[i]) {
			mismatched.Set(uint(i))
		}
	}
	if mismatched.None() {
		return nil
	}
	return &DigestMismatchError{Expected: expected, Actual: actual, Mismatched: mismatched}
}

// Indices returns the mismatching element indices in increasing order.
func (e *DigestMismatchError) Indices() []int {
	if e.Mismatched == nil {
		return nil
	}
	out := make([]int, 0, e.Mismatched.Count())
	for i, ok := e.Mismatched.NextSet(0); ok; i, ok = e.Mismatched.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

func (e *DigestMismatchError) Error() string {
	idx := e.Indices()
	if len(idx) == 0 {
		return fmt.Sprintf("digest mismatch: expected %s, got %s", e.Expected, e.Actual)
	}
	first := idx[0]
	msg := fmt.Sprintf("digest element %d: expected %s, got %s",
		first, e.Expected[first].String(), e.Actual[first].String())
	if len(idx) > 1 {
		msg += fmt.Sprintf(" (%d more elements differ: %v)", len(idx)-1, idx[1:])
	}
	return msg
}
