package errors

import (
	"errors"
	"fmt"
)

// Common error types for the storefront client
var (
	// Credential errors
	ErrAuthExpired     = errors.New("session expired, please log in again")
	ErrNoAccessToken   = errors.New("no access token")
	ErrDecode          = errors.New("token could not be decoded")
	ErrInvalidResponse = errors.New("invalid response from server")

	// Cart errors
	ErrInvalidQuantity = errors.New("invalid quantity")

	// Storage errors
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnsupportedStorage = errors.New("unsupported storage backend")
)

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
