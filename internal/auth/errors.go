package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when email and password do not match an account.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailInUse is returned when signing up with an email that already has an account.
	ErrEmailInUse = errors.New("email already exists")
	// ErrInvalidToken is returned for malformed, expired, revoked or used tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound is returned when a token refers to a deleted account.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotAuthenticated is returned by Session operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not signed in")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrorKind classifies the error for status mapping.
func (e *ValidationError) ErrorKind() string { return "validation" }
