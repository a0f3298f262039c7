// Package common provides shared constants, types, and utilities
// used across the VPN Panel application.
package common

import "errors"

// Sentinel errors for VPN operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Backend failure kinds.
	ErrNetwork            = errors.New("network error")
	ErrMissingCertificate = errors.New("missing VPN certificate")
	ErrAuth               = errors.New("authentication required")
	ErrPolicyAgentMissing = errors.New("no policy authentication agent")
	ErrInstall            = errors.New("helper installation failed")
	ErrEnable             = errors.New("enabling VPN failed")
	ErrStart              = errors.New("starting VPN failed")
	ErrNotRunning         = errors.New("VPN is not running")
	ErrUnknownStatus      = errors.New("unknown VPN status")

	// Controller errors.
	ErrCommandUnavailable = errors.New("command not available in current state")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrClosed             = errors.New("controller closed")
	ErrTimeout            = errors.New("operation timed out")

	// Credential errors.
	ErrTokenNotFound = errors.New("API token not found")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
