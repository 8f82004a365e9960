package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFrom(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"plain error", base, http.StatusInternalServerError, "internal"},
		{"api error", New(http.StatusNotFound, "not_found", "Topic not found", base), http.StatusNotFound, "not_found"},
		{"wrapped api error", fmt.Errorf("handler: %w", New(http.StatusBadRequest, "validation", "bad", nil)), http.StatusBadRequest, "validation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := From(tt.err)
			if got.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", got.Status, tt.wantStatus)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	base := errors.New("store down")
	err := New(http.StatusServiceUnavailable, "store_unavailable", "Try again later", base)
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
	if err.Error() != "store down" {
		t.Errorf("Error() = %q, want %q", err.Error(), "store down")
	}
}

func TestError_MessageFallback(t *testing.T) {
	err := New(http.StatusUnauthorized, "unauthorized", "please sign in", nil)
	if err.Error() != "please sign in" {
		t.Errorf("Error() = %q, want %q", err.Error(), "please sign in")
	}
}
