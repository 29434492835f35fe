package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrProvider is returned when candidate retrieval from a search backend fails
	ErrProvider = errors.New("candidate provider failure")

	// ErrPrecondition is returned when an operation is invoked with input it cannot accept
	ErrPrecondition = errors.New("precondition violated")

	// ErrDegenerateScore is returned when a relevance score cannot be used as a divisor
	ErrDegenerateScore = errors.New("degenerate relevance score")

	// ErrDuplicateOrigin is returned when an origin identifier is supplied more than once
	ErrDuplicateOrigin = errors.New("duplicate origin identifier")

	// ErrCollectionNotFound is returned when a target collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)

// ProviderError represents a failed candidate retrieval with context.
// Transient marks failures worth retrying (timeouts, unavailable backend).
type ProviderError struct {
	Collection string
	Op         string
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s failed for collection '%s'", e.Op, e.Collection)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new non-transient ProviderError
func NewProviderError(collection, op string, err error) *ProviderError {
	return &ProviderError{Collection: collection, Op: op, Err: err}
}

// NewTransientProviderError creates a new ProviderError that may succeed on retry
func NewTransientProviderError(collection, op string, err error) *ProviderError {
	return &ProviderError{Collection: collection, Op: op, Transient: true, Err: err}
}

// IsTransient reports whether err carries a transient ProviderError.
func IsTransient(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}
	return false
}

// PreconditionError represents a call made with input the callee does not accept
type PreconditionError struct {
	Operation string
	Message   string
	Err       error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %s", e.Operation, e.Message)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// NewPreconditionError creates a new PreconditionError
func NewPreconditionError(operation, message string) *PreconditionError {
	return &PreconditionError{Operation: operation, Message: message}
}

// DegenerateScoreError represents a zero, negative or NaN score met during score-drop computation
type DegenerateScoreError struct {
	Index int
	Score float64
}

func (e *DegenerateScoreError) Error() string {
	return fmt.Sprintf("candidate at rank %d has degenerate score %v", e.Index, e.Score)
}

func (e *DegenerateScoreError) Is(target error) bool {
	return target == ErrDegenerateScore
}

// NewDegenerateScoreError creates a new DegenerateScoreError
func NewDegenerateScoreError(index int, score float64) *DegenerateScoreError {
	return &DegenerateScoreError{Index: index, Score: score}
}

// DuplicateOriginError represents an origin identifier supplied more than once
type DuplicateOriginError struct {
	OriginID string
}

func (e *DuplicateOriginError) Error() string {
	return fmt.Sprintf("origin identifier '%s' supplied more than once", e.OriginID)
}

func (e *DuplicateOriginError) Is(target error) bool {
	return target == ErrDuplicateOrigin
}

// NewDuplicateOriginError creates a new DuplicateOriginError
func NewDuplicateOriginError(originID string) *DuplicateOriginError {
	return &DuplicateOriginError{OriginID: originID}
}

// CollectionNotFoundError represents a missing target collection with context
type CollectionNotFoundError struct {
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection named '%s' not found", e.Collection)
}

func (e *CollectionNotFoundError) Is(target error) bool {
	return target == ErrCollectionNotFound
}

// NewCollectionNotFoundError creates a new CollectionNotFoundError
func NewCollectionNotFoundError(collection string) *CollectionNotFoundError {
	return &CollectionNotFoundError{Collection: collection}
}

// JobNotFoundError represents a job not found error with context
type JobNotFoundError struct {
	JobID string
}

func (e *JobNotFoundError) Error() string {
	return fmt.Sprintf("job with ID '%s' not found", e.JobID)
}

func (e *JobNotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// NewJobNotFoundError creates a new JobNotFoundError
func NewJobNotFoundError(jobID string) *JobNotFoundError {
	return &JobNotFoundError{JobID: jobID}
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
