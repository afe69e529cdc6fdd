package schemas

import (
	"fmt"
	"strings"
)

// LoginError reports rejected credentials or an unmatched membership
// selector. Details carries structured context for the API layer.
type LoginError struct {
	Message string
	Details map[string]any
}

func (e *LoginError) Error() string {
	return e.Message
}

// NewLoginError builds a LoginError with optional detail pairs.
func NewLoginError(message string, details map[string]any) *LoginError {
	return &LoginError{Message: message, Details: details}
}

// NavigationError reports a navigation timeout or failure. The partially
// created session is always torn down before this propagates.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("navigation failed: %v", e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// BrowserNotReadyError means the shared browser process is not running or
// not responsive. Maps to 503 at the HTTP boundary.
type BrowserNotReadyError struct {
	Reason string
}

func (e *BrowserNotReadyError) Error() string {
	if e.Reason == "" {
		return "browser is not ready"
	}
	return "browser is not ready: " + e.Reason
}

// SessionNotFoundError references an unknown or expired session id.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return "session not found: " + e.SessionID
}

// UnknownExtractorError is returned by the registry for an unregistered
// name; Available lists every valid choice.
type UnknownExtractorError struct {
	Name      string
	Available []string
}

func (e *UnknownExtractorError) Error() string {
	return fmt.Sprintf("unknown extractor %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
