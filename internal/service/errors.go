package service

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown email and wrong password both produce it.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail is returned when attempting to register an email that is already taken.
	ErrDuplicateEmail = errors.New("email is already registered")
	// ErrUserNotFound is returned when the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenInvalid is the caller-visible outcome for every rejected session token.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrTokenExpired, ErrTokenMalformed and ErrTokenUserGone refine ErrTokenInvalid.
	ErrTokenExpired   = tokenError("session token expired")
	ErrTokenMalformed = tokenError("session token malformed")
	ErrTokenUserGone  = tokenError("session token references a deleted user")
)

type tokenReason struct{ msg string }

func tokenError(msg string) error { return &tokenReason{msg: msg} }

func (e *tokenReason) Error() string { return e.msg }

func (e *tokenReason) Unwrap() error { return ErrTokenInvalid }

// ValidationError reports bad input. Each message is safe to show to the user.
type ValidationError struct {
	Messages []string
}

func newValidationError(msgs ...string) *ValidationError {
	return &ValidationError{Messages: msgs}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}
