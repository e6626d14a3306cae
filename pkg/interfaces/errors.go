package interfaces

import "errors"

// Errors shared across storage implementations and their consumers.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStoreClosed     = errors.New("session store is closed")
	ErrInvalidUpdate   = errors.New("session update violates end-time invariant")
)
