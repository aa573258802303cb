package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the adapter layer matches exactly one
// of these through errors.Is.
var (
	ErrMissingParameter      = errors.New("missing parameter")
	ErrAuthExpired           = errors.New("authentication expired")
	ErrRefreshFailed         = errors.New("token refresh failed")
	ErrMediaRejected         = errors.New("media rejected")
	ErrMediaProcessingFailed = errors.New("media processing failed")
	ErrProcessingTimeout     = errors.New("processing timeout")
	ErrNetwork               = errors.New("network error")
	ErrPlatformRejected      = errors.New("platform rejected request")
	ErrNoRecipients          = errors.New("no recipients")
	ErrUnsupported           = errors.New("operation not supported")
	ErrNotImplemented        = errors.New("not yet implemented")
)

// PlatformError carries the platform's native error object inside the kind taxonomy.
type PlatformError struct {
	Kind     error
	Platform Platform
	Code     string
	Message  string
	Cause    error
}

func (e *PlatformError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code %s)", msg, e.Code)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PlatformError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// NewError builds a PlatformError of the given kind.
func NewError(kind error, platform Platform, message string) *PlatformError {
	return &PlatformError{Kind: kind, Platform: platform, Message: message}
}

// WrapError builds a PlatformError of the given kind around a lower-level cause.
func WrapError(kind error, platform Platform, message string, cause error) *PlatformError {
	return &PlatformError{Kind: kind, Platform: platform, Message: message, Cause: cause}
}

// Rejected builds a PlatformRejected error from the platform's own error object.
func Rejected(platform Platform, code, message string) *PlatformError {
	return &PlatformError{Kind: ErrPlatformRejected, Platform: platform, Code: code, Message: message}
}

// MissingParameter reports a required input that was absent or empty.
func MissingParameter(platform Platform, names ...string) *PlatformError {
	return &PlatformError{Kind: ErrMissingParameter, Platform: platform, Message: fmt.Sprintf("missing required parameter: %v", names)}
}

// KindOf returns the kind sentinel carried by err, or nil.
func KindOf(err error) error {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	for _, k := range []error{ErrMissingParameter, ErrAuthExpired, ErrRefreshFailed, ErrMediaRejected,
		ErrMediaProcessingFailed, ErrProcessingTimeout, ErrNetwork, ErrPlatformRejected,
		ErrNoRecipients, ErrUnsupported, ErrNotImplemented} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
