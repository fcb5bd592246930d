package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Room"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Booking", "b1"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad interval", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad limit"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("missing token"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("not owner"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("overlap"), CodeConflict, http.StatusConflict},
		{"invalid state", InvalidState("already cancelled"), CodeInvalidState, http.StatusConflict},
		{"busy", Busy("room locked", time.Second), CodeBusy, http.StatusServiceUnavailable},
		{"internal", Internal("boom", errors.New("db down")), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Rooms service"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "room not found"},
			expected: "NOT_FOUND: room not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("connection reset"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	originalErr := errors.New("write conflict")
	wrapped := Wrap(originalErr, CodeConflict, "slot taken", http.StatusConflict)

	if errors.Unwrap(wrapped) != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Errorf("errors.Is should see through AppError")
	}
}

func TestBusy_RetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		delay time.Duration
		want  time.Duration
	}{
		{"rounds up sub-second", 300 * time.Millisecond, time.Second},
		{"zero clamps to one second", 0, time.Second},
		{"whole seconds", 3 * time.Second, 3 * time.Second},
		{"fractional seconds round up", 2500 * time.Millisecond, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Busy("busy", tt.delay).RetryAfter()
			if !ok {
				t.Fatal("expected retry hint")
			}
			if got != tt.want {
				t.Errorf("RetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, ok := Conflict("overlap").RetryAfter(); ok {
		t.Error("conflict errors must not carry a retry hint")
	}
}

func TestWithDetails(t *testing.T) {
	err := Conflict("overlap").WithDetails(map[string]any{
		"conflicts": []string{"b1", "b2"},
	})

	conflicts, ok := err.Details["conflicts"].([]string)
	if !ok || len(conflicts) != 2 {
		t.Errorf("expected two conflicts in details, got %v", err.Details["conflicts"])
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Booking")
	regularErr := errors.New("regular error")

	if AsAppError(appErr) != appErr {
		t.Errorf("AsAppError() should return same AppError")
	}

	wrapped := fmt.Errorf("service layer: %w", appErr)
	if AsAppError(wrapped) != appErr {
		t.Errorf("AsAppError() should find an AppError wrapped with %%w")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should keep the original error")
	}
}

func TestIsAppErrorAndHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InvalidState("already cancelled"))

	if !IsAppError(err) {
		t.Error("IsAppError() should return true for wrapped AppError")
	}
	if IsAppError(errors.New("plain")) {
		t.Error("IsAppError() should return false for regular error")
	}
	if !HasCode(err, CodeInvalidState) {
		t.Error("HasCode() should match INVALID_STATE")
	}
	if HasCode(err, CodeConflict) {
		t.Error("HasCode() should not match CONFLICT")
	}
}
