package sitehost

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedFileType is returned when an upload is neither HTML nor ZIP
	ErrUnsupportedFileType = fmt.Errorf("%w: unsupported file type", ErrInvalidInput)
	// ErrUnauthorized is returned when authentication fails or is missing
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when an authenticated principal lacks a required role
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateIdentifier is returned when a site identifier is held by another owner
	ErrDuplicateIdentifier = errors.New("site name already exists")
	// ErrBlobExists is returned when a non-overwriting write hits an existing key
	ErrBlobExists = errors.New("blob already exists")
	// ErrBlobChanged is returned by a conditional delete when the blob was rewritten
	ErrBlobChanged = errors.New("blob changed since it was listed")
	// ErrAlreadyRegistered is returned when an account email is taken
	ErrAlreadyRegistered = errors.New("user already registered")
	// ErrWeakPassword is returned when a password is below the minimum length
	ErrWeakPassword = errors.New("password too short")
	// ErrInvalidCredentials is returned when email and password do not match
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrAlreadySetUp is returned by Bootstrap once an administrator exists
	ErrAlreadySetUp = errors.New("setup already completed")
)

// BlobCleanupError reports a blob that could not be removed after its
// registry record was deleted. It is logged, never propagated to callers.
type BlobCleanupError struct {
	Key string
	Err error
}

func (e *BlobCleanupError) Error() string {
	return fmt.Sprintf("blob cleanup %s: %v", e.Key, e.Err)
}

func (e *BlobCleanupError) Unwrap() error {
	return e.Err
}
