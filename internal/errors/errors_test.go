package errors

import (
	"fmt"
	"testing"
)

func TestQwError_Error(t *testing.T) {
	err := &QwError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "record not found",
	}

	expected := "NOT_FOUND: record not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("stage is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "stage is required" {
		t.Errorf("Message = %q, want %q", err.Message, "stage is required")
	}
}

func TestNewDecodeFailed(t *testing.T) {
	err := NewDecodeFailed("invalid json")

	if err.Code != ErrDecodeFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrDecodeFailed)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
}

func TestNewCategoryMismatch(t *testing.T) {
	err := NewCategoryMismatch("requirement", "design-output")

	if err.Code != ErrCategoryMismatch {
		t.Errorf("Code = %q, want %q", err.Code, ErrCategoryMismatch)
	}
	if err.Details["self"] != "requirement" {
		t.Errorf("Details[self] = %v, want %q", err.Details["self"], "requirement")
	}
	if err.Details["other"] != "design-output" {
		t.Errorf("Details[other] = %v, want %q", err.Details["other"], "design-output")
	}
}

func TestNewUnsupportedService(t *testing.T) {
	err := NewUnsupportedService("gitlab")

	if err.Code != ErrUnsupportedService {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnsupportedService)
	}
	want := "Do not know how to connect to the gitlab service!"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("requirement/3")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "requirement/3" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "requirement/3")
	}
}

func TestNewValidationFailed(t *testing.T) {
	err := NewValidationFailed("requirement", "description")

	if err.Code != ErrValidationFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidationFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["field"] != "description" {
		t.Errorf("Details[field] = %v, want %q", err.Details["field"], "description")
	}
}

func TestNewNotInitialized(t *testing.T) {
	err := NewNotInitialized("Configuration is corrupt. Please run `qw init`")

	if err.Code != ErrNotInitialized {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotInitialized)
	}
	if err.Status != 412 {
		t.Errorf("Status = %d, want 412", err.Status)
	}
}

func TestNewRemoteFailed(t *testing.T) {
	err := NewRemoteFailed(fmt.Errorf("connection refused"))

	if err.Code != ErrRemoteFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrRemoteFailed)
	}
	if err.Message != "connection refused" {
		t.Errorf("Message = %q, want %q", err.Message, "connection refused")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		originalErr := fmt.Errorf("database connection failed")
		err := NewInternal(originalErr)

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
		// Message should be generic (not leak internal details)
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "database connection failed" {
			t.Errorf("Details[internal_error] = %q, want %q", err.Details["internal_error"], "database connection failed")
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrAlreadyExists) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-QwError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-QwError")
		}
	})

	t.Run("wrapped QwError", func(t *testing.T) {
		inner := NewDecodeFailed("bad")
		wrapped := fmt.Errorf("line 3: %w", inner)
		if !Is(wrapped, ErrDecodeFailed) {
			t.Error("Is() = false, want true for wrapped QwError")
		}
		if _, ok := As(wrapped); !ok {
			t.Error("As() = false, want true for wrapped QwError")
		}
	})
}
