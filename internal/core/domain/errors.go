// Package domain defines the core domain models for the fedimint client CLI.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error for reporting and exit codes.
type ErrorKind string

const (
	// KindInput covers bad arguments and ambiguous selections.
	KindInput ErrorKind = "input"
	// KindState covers lock contention and store corruption.
	KindState ErrorKind = "state"
	// KindNetwork covers unreachable guardians.
	KindNetwork ErrorKind = "network"
	// KindConfig covers mismatched or untrusted federation configs.
	KindConfig ErrorKind = "config"
	// KindModule covers opaque failures reported by module clients.
	KindModule ErrorKind = "module"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitInput      = 1
	ExitState      = 2
	ExitFederation = 3
)

// ExitCode maps the kind to the process exit code.
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindInput:
		return ExitInput
	case KindState:
		return ExitState
	case KindNetwork, KindConfig, KindModule:
		return ExitFederation
	default:
		return ExitInput
	}
}

// DomainError represents a domain error with a structured error code.
// Codes follow the format FM-<AREA>-<NNNN>.
type DomainError struct {
	Code    string    // Error code (e.g., "FM-FED-3001")
	Kind    ErrorKind // Taxonomy bucket
	Message string    // Human-readable message
	Details string    // Optional additional details
	Cause   error     // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code, kind and message.
func NewDomainError(code string, kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the taxonomy kind of err. Errors outside the taxonomy are
// reported as input errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) && de.Kind != "" {
		return de.Kind
	}
	return KindInput
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return KindOf(err).ExitCode()
}

// ============================================================================
// Secret Root Errors (SEC)
// ============================================================================

var (
	// ErrInvalidMnemonic indicates the word list failed validation or its checksum.
	ErrInvalidMnemonic = NewDomainError("FM-SEC-1001", KindInput, "invalid mnemonic")

	// ErrDecryptionFailed indicates the passphrase does not open the secret envelope.
	ErrDecryptionFailed = NewDomainError("FM-SEC-1002", KindInput, "decryption failed - wrong passphrase")

	// ErrPassphraseTooWeak indicates a passphrase below the minimum length.
	ErrPassphraseTooWeak = NewDomainError("FM-SEC-1003", KindInput, "passphrase too weak")

	// ErrAlreadyInitialized indicates the working directory already holds a root secret.
	ErrAlreadyInitialized = NewDomainError("FM-SEC-2001", KindState, "working directory already initialized")

	// ErrNotInitialized indicates the working directory holds no root secret.
	ErrNotInitialized = NewDomainError("FM-SEC-2002", KindState, "working directory not initialized")
)

// ============================================================================
// Storage and Lock Errors (STOR, LOCK)
// ============================================================================

var (
	// ErrCorruptStore indicates on-disk invariants are violated.
	ErrCorruptStore = NewDomainError("FM-STOR-2001", KindState, "corrupt state store")

	// ErrIO indicates an underlying filesystem failure.
	ErrIO = NewDomainError("FM-STOR-2002", KindState, "state store io error")

	// ErrAlreadyLocked indicates another process holds the working directory lock.
	ErrAlreadyLocked = NewDomainError("FM-LOCK-2001", KindState, "working directory locked by another process")
)

// ============================================================================
// Federation Errors (FED, NET)
// ============================================================================

var (
	// ErrUnknownFederation indicates no config is stored for the federation.
	ErrUnknownFederation = NewDomainError("FM-FED-1001", KindInput, "unknown federation")

	// ErrAmbiguousFederation indicates several federations are registered and none was selected.
	ErrAmbiguousFederation = NewDomainError("FM-FED-1002", KindInput, "ambiguous federation, use --federation")

	// ErrNoFederation indicates no federation has been joined yet.
	ErrNoFederation = NewDomainError("FM-FED-1003", KindInput, "no federation joined")

	// ErrInvalidInvite indicates the invite code does not decode.
	ErrInvalidInvite = NewDomainError("FM-FED-1004", KindInput, "invalid invite code")

	// ErrConfigMismatch indicates a fetched config differs from the stored one.
	ErrConfigMismatch = NewDomainError("FM-FED-3001", KindConfig, "federation config mismatch")

	// ErrUntrustedConfig indicates the fetched config failed verification.
	ErrUntrustedConfig = NewDomainError("FM-FED-3002", KindConfig, "untrusted federation config")

	// ErrNetwork indicates the guardians could not be reached.
	ErrNetwork = NewDomainError("FM-NET-3001", KindNetwork, "federation unreachable")
)

// ============================================================================
// Module Errors (MOD)
// ============================================================================

var (
	// ErrUnknownModule indicates the federation does not run the named module.
	ErrUnknownModule = NewDomainError("FM-MOD-1001", KindInput, "unknown module")

	// ErrUnknownOperation indicates the module has no such operation.
	ErrUnknownOperation = NewDomainError("FM-MOD-1002", KindInput, "unknown operation")

	// ErrModule wraps an opaque module client failure.
	ErrModule = NewDomainError("FM-MOD-3001", KindModule, "module operation failed")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("FM-ARG-1001", KindInput, "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("FM-ARG-1002", KindInput, "missing required argument")
)
