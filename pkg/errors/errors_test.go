package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestWrap(t *testing.T) {
	originalErr := errors.New("ledger write failed")
	wrapped := Wrap(originalErr, CodePersistence, "persistence error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if wrapped.Code != CodePersistence {
		t.Errorf("expected code %s, got %s", CodePersistence, wrapped.Code)
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "booking not found",
			},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeGatewayUnavailable,
				Message: "gateway unreachable",
				Err:     errors.New("dial tcp: i/o timeout"),
			},
			expected: "GATEWAY_UNAVAILABLE: gateway unreachable (caused by: dial tcp: i/o timeout)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := GatewayUnavailable("verify timed out", originalErr)

	if unwrapped := errors.Unwrap(appErr); unwrapped != originalErr {
		t.Errorf("Unwrap() should return original error")
	}
}

func TestGatewayConstructors(t *testing.T) {
	unavailable := GatewayUnavailable("timeout", errors.New("timeout"))
	if unavailable.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", unavailable.HTTPStatus)
	}

	rejected := GatewayRejected("bad parameters")
	if rejected.HTTPStatus != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rejected.HTTPStatus)
	}
	if rejected.Code != CodeGatewayRejected {
		t.Errorf("expected code %s, got %s", CodeGatewayRejected, rejected.Code)
	}
}

func TestHasCode(t *testing.T) {
	err := InvalidSelection("no stall type selected")

	if !HasCode(err, CodeInvalidSelection) {
		t.Errorf("expected HasCode to match %s", CodeInvalidSelection)
	}
	if HasCode(err, CodeNotFound) {
		t.Errorf("HasCode should not match %s", CodeNotFound)
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode should be false for non-AppError")
	}
}
