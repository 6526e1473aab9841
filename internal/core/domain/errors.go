package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAdminRequired    = errors.New("admin role required")
	ErrNotInRoom        = errors.New("not in a room")
	ErrJoinTimeout      = errors.New("timed out waiting for room snapshot")
	ErrJoinAborted      = errors.New("join aborted")
	ErrLinkNotFound     = errors.New("peer link not found")
	ErrChannelClosed    = errors.New("signaling channel closed")
	ErrNotPermitted     = errors.New("not permitted in this room")
	ErrRemoved          = errors.New("removed from room")
)

const (
	AuthInvalidCredentials = "invalid_credentials"
	AuthNetwork            = "network"
	AuthTokenInvalid       = "token_invalid"
	AuthNoSession          = "no_session"
)

// AuthError covers bad credentials and expired or revoked tokens.
type AuthError struct {
	Reason string
	Cause  error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error: %s: %v", e.Reason, e.Cause)
	}
	return "auth error: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Cause }

func NewAuthError(reason string, cause error) *AuthError {
	return &AuthError{Reason: reason, Cause: cause}
}

// NetworkError is a failed or timed out request.
type NetworkError struct {
	Op     string
	Status int
	Cause  error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Cause != nil:
		return fmt.Sprintf("network error: %s: status %d: %v", e.Op, e.Status, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("network error: %s: status %d", e.Op, e.Status)
	case e.Cause != nil:
		return fmt.Sprintf("network error: %s: %v", e.Op, e.Cause)
	}
	return "network error: " + e.Op
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ValidationError is malformed user input caught before anything is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Error lets a ChannelError event be returned as an error as well.
func (e ChannelError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("channel error: %s: %s", e.Code, e.Message)
	}
	return "channel error: " + e.Code
}

// MediaError is a camera, microphone or display-capture failure.
type MediaError struct {
	Device string
	Cause  error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media error: %s: %v", e.Device, e.Cause)
}

func (e *MediaError) Unwrap() error { return e.Cause }

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsChannelError(err error) bool {
	var ce ChannelError
	return errors.As(err, &ce)
}

func IsMediaError(err error) bool {
	var me *MediaError
	return errors.As(err, &me)
}
