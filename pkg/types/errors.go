package types

import "errors"

// Validation errors shared across components.
var (
	ErrInvalidRole         = errors.New("role must be 'teacher' or 'student'")
	ErrInvalidLanguageCode = errors.New("invalid language code")
	ErrInvalidEventType    = errors.New("unknown event type")
)
