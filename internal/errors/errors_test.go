package errors

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestBoltError_Error(t *testing.T) {
	err := &BoltError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "code state not found",
	}

	expected := "NOT_FOUND: code state not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("session name is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "session name is required" {
		t.Errorf("Message = %q, want %q", err.Message, "session name is required")
	}
}

func TestNewUnauthenticated(t *testing.T) {
	err := NewUnauthenticated()

	if err.Code != ErrUnauthenticated {
		t.Errorf("Code = %q, want %q", err.Code, ErrUnauthenticated)
	}
	if err.Status != 401 {
		t.Errorf("Status = %d, want 401", err.Status)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("sandbox", "01ABC")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["kind"] != "sandbox" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "sandbox")
	}
	if err.Details["identifier"] != "01ABC" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "01ABC")
	}
}

func TestNewContentTooLarge(t *testing.T) {
	err := NewContentTooLarge(1024, 2048)

	if err.Code != ErrContentTooLarge {
		t.Errorf("Code = %q, want %q", err.Code, ErrContentTooLarge)
	}
	if err.Status != 413 {
		t.Errorf("Status = %d, want 413", err.Status)
	}
	if err.Details["max_bytes"] != 1024 {
		t.Errorf("Details[max_bytes] = %v, want 1024", err.Details["max_bytes"])
	}
	if err.Details["actual_bytes"] != 2048 {
		t.Errorf("Details[actual_bytes] = %v, want 2048", err.Details["actual_bytes"])
	}
}

func TestNewStoreFailure(t *testing.T) {
	cause := fmt.Errorf("disk I/O error")
	err := NewStoreFailure("save code state", cause)

	if err.Code != ErrStoreFailure {
		t.Errorf("Code = %q, want %q", err.Code, ErrStoreFailure)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Message != "save code state failed: disk I/O error" {
		t.Errorf("Message = %q", err.Message)
	}
	if !stderrors.Is(err, cause) {
		t.Error("StoreFailure should unwrap to its cause")
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("entropy source exhausted"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Message != "an internal error occurred" {
			t.Errorf("Message = %q, want %q", err.Message, "an internal error occurred")
		}
		if err.Details["internal_error"] != "entropy source exhausted" {
			t.Errorf("Details[internal_error] = %v", err.Details["internal_error"])
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)
		if err.Details == nil {
			t.Error("Details should not be nil")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		if !Is(NewUnauthenticated(), ErrUnauthenticated) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		if Is(NewUnauthenticated(), ErrNotFound) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if Is(sql.ErrNoRows, ErrNotFound) {
			t.Error("Is() = true, want false for non-BoltError")
		}
	})

	t.Run("wrapped BoltError", func(t *testing.T) {
		wrapped := fmt.Errorf("load: %w", NewNotFound("code state", "/main.js"))
		if !Is(wrapped, ErrNotFound) {
			t.Error("Is() = false, want true for wrapped BoltError")
		}
	})
}

func TestCodeOfAndStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"unauthenticated", NewUnauthenticated(), ErrUnauthenticated, 401},
		{"store failure", NewStoreFailure("list sandboxes", nil), ErrStoreFailure, 500},
		{"wrapped invalid", fmt.Errorf("x: %w", NewInvalidRequest("bad")), ErrInvalidRequest, 400},
		{"plain", fmt.Errorf("boom"), ErrInternal, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.code {
				t.Errorf("CodeOf() = %q, want %q", got, tt.code)
			}
			if got := StatusOf(tt.err); got != tt.status {
				t.Errorf("StatusOf() = %d, want %d", got, tt.status)
			}
		})
	}
}
