// Package errs holds the sentinel errors shared across photo-mood packages.
package errs

import sterrors "errors"

var (
	ErrPublisherRequired      = sterrors.New("photo-mood: publisher is required")
	ErrCompletionHookRequired = sterrors.New("photo-mood: completion hook is required")
	ErrNoExpectedServices     = sterrors.New("photo-mood: at least one expected service is required")
	ErrDuplicateCorrelationID = sterrors.New("photo-mood: correlation id already registered")
	ErrTableClosed            = sterrors.New("photo-mood: pending request table is shut down")
	ErrMissingRequestID       = sterrors.New("photo-mood: result message has no request id")
	ErrEmptyUpload            = sterrors.New("photo-mood: uploaded image is empty")
)
