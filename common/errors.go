// Package common provides shared constants, types, and utilities
// used across the VPN settings backend.
package common

import "errors"

// Sentinel errors for VPN operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Connection errors.
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrServiceUnavailable  = errors.New("connman vpn service unavailable")
	ErrUnsupportedType     = errors.New("unsupported connection type")
	ErrMissingProperties   = errors.New("missing required connection properties")
	ErrPreexistingIdentity = errors.New("connection already has an identity")

	// Stored credential errors.
	ErrInvalidVersion = errors.New("invalid credentials version")
	ErrTruncated      = errors.New("truncated credentials data")

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
