package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("mag_titles", "query", cause)

	expectedMsg := "provider query failed for collection 'mag_titles': connection refused"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	if !errors.Is(err, ErrProvider) {
		t.Error("Expected error to match ErrProvider sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected error to unwrap to its cause")
	}
	if errors.Is(err, ErrPrecondition) {
		t.Error("Error should not match ErrPrecondition")
	}
	if IsTransient(err) {
		t.Error("Expected non-transient provider error")
	}
}

func TestTransientProviderError(t *testing.T) {
	err := NewTransientProviderError("mag_titles", "query", context.DeadlineExceeded)

	if !IsTransient(err) {
		t.Error("Expected transient provider error")
	}

	wrapped := fmt.Errorf("origin 12: %w", err)
	if !IsTransient(wrapped) {
		t.Error("Expected wrapped transient error to stay transient")
	}
	if !errors.Is(wrapped, context.DeadlineExceeded) {
		t.Error("Expected wrapped error to match context.DeadlineExceeded")
	}
	if IsTransient(errors.New("plain")) {
		t.Error("Plain errors are never transient")
	}
}

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("score", "candidate list is empty")

	expectedMsg := "precondition failed for score: candidate list is empty"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, ErrPrecondition) {
		t.Error("Expected error to match ErrPrecondition sentinel")
	}
}

func TestDuplicateOriginWrappedInPrecondition(t *testing.T) {
	err := &PreconditionError{
		Operation: "new collection matcher",
		Message:   "duplicate origin identifiers",
		Err:       NewDuplicateOriginError("42"),
	}

	if !errors.Is(err, ErrPrecondition) {
		t.Error("Expected error to match ErrPrecondition sentinel")
	}
	if !errors.Is(err, ErrDuplicateOrigin) {
		t.Error("Expected error to match ErrDuplicateOrigin through Unwrap")
	}

	var dupErr *DuplicateOriginError
	if !errors.As(err, &dupErr) {
		t.Fatal("Expected to be able to unwrap to DuplicateOriginError")
	}
	if dupErr.OriginID != "42" {
		t.Errorf("Expected origin ID '42', got '%s'", dupErr.OriginID)
	}
}

func TestDegenerateScoreError(t *testing.T) {
	err := NewDegenerateScoreError(3, 0)

	expectedMsg := "candidate at rank 3 has degenerate score 0"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, ErrDegenerateScore) {
		t.Error("Expected error to match ErrDegenerateScore sentinel")
	}
}

func TestCollectionNotFoundError(t *testing.T) {
	err := NewCollectionNotFoundError("wos")

	expectedMsg := "collection named 'wos' not found"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	providerErr := NewProviderError("wos", "query", err)
	if !errors.Is(providerErr, ErrCollectionNotFound) {
		t.Error("Expected provider error to expose ErrCollectionNotFound")
	}
}

func TestJobNotFoundError(t *testing.T) {
	err := NewJobNotFoundError("job-456")

	expectedMsg := "job with ID 'job-456' not found"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
	if !errors.Is(err, ErrJobNotFound) {
		t.Error("Expected error to match ErrJobNotFound sentinel")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("score_threshold", "must not be negative")

	expectedMsg := "validation error for field 'score_threshold': must not be negative"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, err.Error())
	}

	err2 := NewValidationError("", "cannot be empty")
	if err2.Error() != "validation error: cannot be empty" {
		t.Errorf("Unexpected message without field: '%s'", err2.Error())
	}

	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err2, ErrInvalidInput) {
		t.Error("Expected validation errors to match ErrInvalidInput sentinel")
	}
}
