// Package errors defines stable error codes for all Biofilter failure modes.
// Recoverable conditions (resolution misses, ambiguous members, malformed
// intervals, degenerate permutation targets) carry a code so callers can tally
// and report them without aborting the run; fatal conditions abort the phase.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigInvalid indicates contradictory or out-of-range run options
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// ResolutionMiss indicates an identifier matched zero entities
	ResolutionMiss ErrorCode = "RESOLUTION_MISS"
	// AmbiguityUnresolved indicates no single winner after ambiguity heuristics
	AmbiguityUnresolved ErrorCode = "AMBIGUITY_UNRESOLVED"
	// MatchData indicates a malformed interval record (e.g. start > stop)
	MatchData ErrorCode = "MATCH_DATA"
	// PermutationDegenerate indicates a group or gene with zero features
	PermutationDegenerate ErrorCode = "PERMUTATION_DEGENERATE"
	// KnowledgeUnavailable indicates the knowledge store is unreachable or corrupt
	KnowledgeUnavailable ErrorCode = "KNOWLEDGE_UNAVAILABLE"
	// BinningEmpty indicates genome-wide binning found zero features anywhere
	BinningEmpty ErrorCode = "BINNING_EMPTY"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Fatal reports whether an error code aborts the current phase rather than
// being tallied and skipped.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ConfigInvalid, KnowledgeUnavailable, BinningEmpty, InternalError:
		return true
	}
	return false
}

// BioError represents a Biofilter error with a stable code and optional cause
type BioError struct {
	Code    ErrorCode
	Message string
	cause   error
}

// New creates a new BioError
func New(code ErrorCode, message string, cause error) *BioError {
	return &BioError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new BioError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *BioError {
	return &BioError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *BioError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *BioError) Unwrap() error {
	return e.cause
}

// CodeOf extracts the error code from an error chain, or InternalError
// when the chain contains no BioError.
func CodeOf(err error) ErrorCode {
	var be *BioError
	if errors.As(err, &be) {
		return be.Code
	}
	return InternalError
}

// IsFatal reports whether an error should abort the current phase.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return CodeOf(err).Fatal()
}
