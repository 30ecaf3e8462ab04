package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent pipeline failures.
// Adapters wrap them with %w so callers can match with errors.Is.
var (
	// ErrInvalidConfiguration indicates bad chunk parameters, a missing
	// template placeholder, an unknown backend name or a bad backend option.
	// It is fatal at startup and never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates a backend could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrEmbedding indicates the embedder rejected its input or
	// returned a malformed response.
	ErrEmbedding = errors.New("embedding error")

	// ErrDimensionMismatch indicates a vector whose length differs from
	// the collection dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed caller input, such as an empty
	// question or source ref.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRetrievalFailed is matched by every *RetrievalError.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrGenerationFailed is matched by every *GenerationError.
	ErrGenerationFailed = errors.New("generation failed")
)

// RetrievalCause identifies which stage of retrieval failed.
type RetrievalCause string

// Retrieval failure causes.
const (
	CauseEmbedding RetrievalCause = "embedding"
	CauseSearch    RetrievalCause = "search"
)

// RetrievalError reports a failed retrieval with the stage and backend
// that triggered it.
type RetrievalError struct {
	Cause   RetrievalCause
	Backend string
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed (%s via %s): %v", e.Cause, e.Backend, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Is matches ErrRetrievalFailed.
func (e *RetrievalError) Is(target error) bool {
	return target == ErrRetrievalFailed
}

// GenerationError reports a failed language model call.
type GenerationError struct {
	Backend string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Backend, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}
