package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("FM-TEST-1000", KindInput, "test message"),
			expected: "[FM-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("FM-TEST-1001", KindInput, "test message").WithDetails("extra info"),
			expected: "[FM-TEST-1001] test message: extra info",
		},
		{
			name:     "error with cause",
			err:      NewDomainError("FM-TEST-1002", KindState, "test message").WithCause(errors.New("disk full")),
			expected: "[FM-TEST-1002] test message: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("FM-TEST-1000", KindInput, "message 1")
	err2 := NewDomainError("FM-TEST-1000", KindInput, "message 2")
	err3 := NewDomainError("FM-TEST-1001", KindInput, "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("join: %w", ErrConfigMismatch.WithDetails("stored differs"))
	if !errors.Is(wrapped, ErrConfigMismatch) {
		t.Error("errors.Is should see through fmt wrapping and details")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := ErrNetwork.WithCause(cause)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause should be reachable via errors.Is")
	}
	if ErrNetwork.Cause != nil {
		t.Error("WithCause must not mutate the sentinel")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"invalid mnemonic", ErrInvalidMnemonic, ExitInput},
		{"ambiguous federation", fmt.Errorf("dispatch: %w", ErrAmbiguousFederation), ExitInput},
		{"already locked", ErrAlreadyLocked, ExitState},
		{"corrupt store", ErrCorruptStore.WithDetails("truncated"), ExitState},
		{"network", ErrNetwork, ExitFederation},
		{"config mismatch", ErrConfigMismatch, ExitFederation},
		{"module", ErrModule.WithCause(errors.New("boom")), ExitFederation},
		{"plain error", errors.New("plain"), ExitInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(fmt.Errorf("x: %w", ErrUnknownModule)); got != "FM-MOD-1001" {
		t.Errorf("GetErrorCode() = %q", got)
	}
	if got := GetErrorCode(errors.New("x")); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
	if !IsDomainError(ErrIO, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
}
