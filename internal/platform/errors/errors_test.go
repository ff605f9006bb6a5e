package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "error with cause",
			err: Wrap(KindUpstream, "badge.scan", "failed to fetch badges",
				errors.New("status 502")),
			contains: []string{"[upstream:badge.scan]", "failed to fetch badges", "status 502"},
		},
		{
			name:     "error without cause",
			err:      New(KindInput, "preview.address", "address is required"),
			contains: []string{"[input:preview.address]", "address is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(errStr, substr) {
					t.Errorf("error string %q does not contain %q", errStr, substr)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := Wrap(KindRender, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := New(KindAuth, "preview.secret", "shared key mismatch")
	outer := Wrap(KindRender, "preview.render", "render failed", fmt.Errorf("ctx: %w", inner))

	if outer.Kind != KindAuth {
		t.Fatalf("expected kind %s, got %s", KindAuth, outer.Kind)
	}
}

func TestIsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{
			name:     "direct error kind match",
			err:      New(KindConfig, "test", "message"),
			kind:     KindConfig,
			expected: true,
		},
		{
			name:     "wrapped error kind match",
			err:      fmt.Errorf("outer: %w", Wrap(KindUpload, "test", "message", errors.New("cause"))),
			kind:     KindUpload,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindInput,
			expected: false,
		},
		{
			name:     "non-typed error",
			err:      errors.New("plain error"),
			kind:     KindConfig,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsKind(tt.err, tt.kind)
			if result != tt.expected {
				t.Errorf("IsKind() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(KindInput, "op", "m"), http.StatusBadRequest},
		{New(KindAuth, "op", "m"), http.StatusUnauthorized},
		{New(KindMethod, "op", "m"), http.StatusMethodNotAllowed},
		{New(KindPayload, "op", "m"), http.StatusRequestEntityTooLarge},
		{New(KindUpstream, "op", "m"), http.StatusInternalServerError},
		{New(KindRender, "op", "m"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
