package router

import "errors"

// Routing errors. Each one describes a problem with the sender's own
// input and is only ever reported to that connection.
var (
	ErrNotTeacher              = errors.New("only teacher connections can broadcast")
	ErrEmptyTranscription      = errors.New("transcription text cannot be empty")
	ErrInvalidAudioPayload     = errors.New("audio payload must be non-empty base64")
	ErrEmptySettings           = errors.New("settings event carried no settings")
	ErrStudentLanguageRequired = errors.New("students must register with a language code")
	ErrRateLimitExceeded       = errors.New("rate limit exceeded")
)
