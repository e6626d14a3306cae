package interfaces

import (
	"context"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// SessionUpdate is a partial update applied to a stored session. Nil fields
// are left untouched. Setting IsActive to false without an EndTime (or the
// reverse) is rejected by implementations to keep the session invariant:
// EndTime is set if and only if the session is inactive.
type SessionUpdate struct {
	TeacherLanguage *string
	IsActive        *bool
	EndTime         *time.Time
	Quality         *types.QualityTier
	QualityReason   *string
	LastActivityAt  *time.Time
}

// SessionStore is the persistence collaborator consumed by the router, the
// lifecycle classifier and the session count cache. Implementations must be
// safe for concurrent use.
type SessionStore interface {
	// CreateSession persists a new active session row.
	CreateSession(ctx context.Context, session *types.Session) error

	// GetSessionByID returns one session or ErrSessionNotFound.
	GetSessionByID(ctx context.Context, sessionID string) (*types.Session, error)

	// GetAllActiveSessions returns every session with IsActive set.
	GetAllActiveSessions(ctx context.Context) ([]*types.Session, error)

	// UpdateSession applies a partial update to an existing session.
	UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) error

	// AddStudent increments the session's student counter and touches its
	// activity timestamp.
	AddStudent(ctx context.Context, sessionID string) error

	// AddTranslations adds delivered translation events to the session's
	// counters and folds the observed latency into the running average.
	AddTranslations(ctx context.Context, sessionID string, count int, latency time.Duration) error

	// RecordTranscript stores one final teacher utterance.
	RecordTranscript(ctx context.Context, transcript *types.Transcript) error

	// GetTranscriptCountBySession returns the number of transcripts stored
	// for a session.
	GetTranscriptCountBySession(ctx context.Context, sessionID string) (int, error)

	// GetRecentSessionActivity returns per-session activity summaries for
	// sessions that saw traffic in the last 24 hours.
	GetRecentSessionActivity(ctx context.Context) ([]*types.SessionActivity, error)

	// CountActiveSessions returns the number of active sessions.
	CountActiveSessions(ctx context.Context) (int, error)

	// TouchActivity bumps the session's LastActivityAt to now.
	TouchActivity(ctx context.Context, sessionID string) error

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
