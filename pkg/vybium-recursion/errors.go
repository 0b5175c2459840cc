package vybiumrecursion

import "github.com/vybium/vybium-recursion/internal/vybium-recursion/protocols"

// Error is a stage-attributed error
type Error = protocols.Error

// ErrorKind classifies errors
type ErrorKind = protocols.ErrorKind

// Stage identifies a pipeline stage
type Stage = protocols.Stage

// DigestMismatchError lists the digest elements that differ
type DigestMismatchError = protocols.DigestMismatchError

// Error kinds
const (
	ErrUnknown              = protocols.ErrUnknown
	ErrDigestMismatch       = protocols.ErrDigestMismatch
	ErrCapabilityMismatch   = protocols.ErrCapabilityMismatch
	ErrProvingFailure       = protocols.ErrProvingFailure
	ErrIOFailure            = protocols.ErrIOFailure
	ErrPublicValuesMismatch = protocols.ErrPublicValuesMismatch
	ErrInvalidProof         = protocols.ErrInvalidProof
	ErrInvalidConfig        = protocols.ErrInvalidConfig
)

// Stages
const (
	StageCore     = protocols.StageCore
	StageCompress = protocols.StageCompress
	StageShrink   = protocols.StageShrink
	StageRoot     = protocols.StageRoot
)

// ErrResourceExhausted is returned when a trace exceeds the backend budget
var ErrResourceExhausted = protocols.ErrResourceExhausted

// IsKind reports whether err is an Error of kind
func IsKind(err error, kind ErrorKind) bool {
	return protocols.IsKind(err, kind)
}
