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
			err: Wrap(KindConfig, "load", "failed to load config",
				errors.New("file not found")),
			contains: []string{"[config:load]", "failed to load config", "file not found"},
		},
		{
			name:     "error without cause",
			err:      New(KindInvalidInput, "analyze.upload", "No image provided"),
			contains: []string{"[invalid_input:analyze.upload]", "No image provided"},
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
	wrappedErr := Wrap(KindUpstream, "test", "wrapped", originalErr)

	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Unwrap should return the original error")
	}
}

func TestWrap_KeepsInnerKind(t *testing.T) {
	inner := New(KindInvalidInput, "image.validate", "Invalid image")
	outer := Wrap(KindInternal, "analyze", "wrapped", fmt.Errorf("context: %w", inner))

	if outer.Kind != KindInvalidInput {
		t.Errorf("Wrap() kind = %s, expected %s", outer.Kind, KindInvalidInput)
	}
	if Wrap(KindInternal, "noop", "nil", nil) != nil {
		t.Error("Wrap(nil) should return nil")
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
			err:      Wrap(KindUpstream, "test", "message", errors.New("cause")),
			kind:     KindUpstream,
			expected: true,
		},
		{
			name:     "fmt wrapped typed error",
			err:      fmt.Errorf("outer: %w", New(KindMalformedOutput, "extract", "message")),
			kind:     KindMalformedOutput,
			expected: true,
		},
		{
			name:     "error kind mismatch",
			err:      New(KindConfig, "test", "message"),
			kind:     KindDomain,
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
		name     string
		err      error
		expected int
	}{
		{"invalid input", New(KindInvalidInput, "op", "bad"), http.StatusBadRequest},
		{"upstream", New(KindUpstream, "op", "down"), http.StatusBadGateway},
		{"internal", New(KindInternal, "op", "boom"), http.StatusInternalServerError},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("HTTPStatus() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	typed := Wrap(KindInternal, "op", "Failed to process request", errors.New("secret detail"))
	if got := PublicMessage(typed, "fallback"); got != "Failed to process request" {
		t.Errorf("PublicMessage() = %q", got)
	}
	if got := PublicMessage(errors.New("secret detail"), "fallback"); got != "fallback" {
		t.Errorf("PublicMessage() = %q, expected fallback", got)
	}
}
