package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"seryvo/internal/core/domain"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}
	if !errors.Is(err, originalErr) {
		t.Errorf("errors.Is should see the cause through Unwrap")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("booking_id", "42").WithContext("attempt", 2)

	if err.Context["booking_id"] != "42" {
		t.Errorf("Context[booking_id] = %v, want '42'", err.Context["booking_id"])
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("Context[attempt] = %v, want 2", err.Context["attempt"])
	}
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"booking not found", domain.ErrBookingNotFound, ErrCodeNotFound, http.StatusNotFound},
		{"claim conflict", domain.ErrBookingClaimed, ErrCodeConflict, http.StatusConflict},
		{"invalid transition", domain.ErrInvalidTransition, ErrCodeInvalidInput, http.StatusBadRequest},
		{"forbidden", domain.ErrForbidden, ErrCodeForbidden, http.StatusForbidden},
		{"unknown", errors.New("disk on fire"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := FromDomain(tt.err)
			if appErr.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", appErr.Code, tt.wantCode)
			}
			if appErr.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %v, want %v", appErr.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestFromDomain_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("claim booking 42: %w", domain.ErrBookingClaimed)
	appErr := FromDomain(wrapped)
	if appErr.Code != ErrCodeConflict {
		t.Errorf("Code = %v, want %v", appErr.Code, ErrCodeConflict)
	}
}

func TestFromDomain_Nil(t *testing.T) {
	if FromDomain(nil) != nil {
		t.Error("FromDomain(nil) should be nil")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewConflictError("already claimed")
	wrapped := fmt.Errorf("transition failed: %w", appErr)

	if got := GetAppError(wrapped); got != appErr {
		t.Errorf("GetAppError = %v, want %v", got, appErr)
	}
	if got := GetAppError(errors.New("plain")); got != nil {
		t.Errorf("GetAppError on plain error = %v, want nil", got)
	}
}
