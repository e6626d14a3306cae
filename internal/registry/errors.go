package registry

import "errors"

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timed out")
	ErrInvalidPayload   = errors.New("payload is not marshalable JSON")
)

// Registry errors.
var (
	ErrNilConnection     = errors.New("connection cannot be nil")
	ErrConnectionRemoved = errors.New("connection was removed and cannot be re-added")
	ErrRoleAlreadySet    = errors.New("connection role cannot change once set")
)
