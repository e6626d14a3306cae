// Package lifecycle decides what a session was worth. The classifier turns
// accumulated activity counters into a quality tier; the sweeper ends and
// classifies sessions that went quiet; the count cache keeps the active
// session count off the storage hot path.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// Dead-session reasons, in rule precedence order.
const (
	ReasonNoStudents = "no_students"
	ReasonNoActivity = "no_activity"
	ReasonTooShort   = "too_short"
)

// MinViableSessionDuration is the shortest session that can count as used.
const MinViableSessionDuration = 30 * time.Second

// Engagement score weights and tier thresholds. More of any input never
// lowers the score, which keeps classification monotonic.
const (
	weightStudents     = 5.0
	weightTranslations = 2.0
	weightTranscripts  = 1.0
	weightInteractions = 1.0

	scoreActive   = 20.0
	scoreComplete = 60.0
)

// Metrics are the accumulated counters for one session.
type Metrics struct {
	StudentsCount           int
	TranslationCount        int
	TranscriptCount         int
	TeacherInteractionCount int
	Duration                time.Duration
}

// Classification is the ephemeral result of classifying one session. Only
// the tier and reason are ever persisted.
type Classification struct {
	IsReal  bool
	Tier    types.QualityTier
	Reason  string
	Metrics Metrics
}

// Classify assigns a quality tier. Rules apply in precedence order, first
// match wins: no students, then no activity, then too short; anything past
// those gates is scored. Duration falls back to time since createdAt when
// the metrics carry none.
func Classify(m Metrics, createdAt time.Time) Classification {
	duration := m.Duration
	if duration <= 0 {
		duration = time.Since(createdAt)
	}
	m.Duration = duration

	if m.StudentsCount == 0 {
		return Classification{Tier: types.TierDead, Reason: ReasonNoStudents, Metrics: m}
	}
	if m.TranslationCount == 0 && m.TranscriptCount == 0 {
		return Classification{Tier: types.TierDead, Reason: ReasonNoActivity, Metrics: m}
	}
	if duration < MinViableSessionDuration {
		return Classification{Tier: types.TierDead, Reason: ReasonTooShort, Metrics: m}
	}

	score := duration.Minutes() +
		weightStudents*float64(m.StudentsCount) +
		weightTranslations*float64(m.TranslationCount) +
		weightTranscripts*float64(m.TranscriptCount) +
		weightInteractions*float64(m.TeacherInteractionCount)

	tier := types.TierMinimal
	switch {
	case score >= scoreComplete:
		tier = types.TierComplete
	case score >= scoreActive:
		tier = types.TierActive
	}

	return Classification{
		IsReal:  true,
		Tier:    tier,
		Reason:  fmt.Sprintf("engagement score %.1f", score),
		Metrics: m,
	}
}

// ShouldCleanupSession reports whether the session should be ended now:
// dead sessions always, live ones only once their inactivity gap reaches
// the timeout.
func ShouldCleanupSession(c Classification, inactiveFor, timeout time.Duration) bool {
	if c.Tier == types.TierDead {
		return true
	}
	return inactiveFor >= timeout
}

// ShouldIncludeInAnalytics reports whether the tier is trustworthy enough
// for analytics aggregates.
func ShouldIncludeInAnalytics(tier types.QualityTier) bool {
	return tier == types.TierActive || tier == types.TierComplete
}

// ShouldAutoCleanup reports whether the session can be ended without any
// grace period.
func ShouldAutoCleanup(tier types.QualityTier) bool {
	return tier == types.TierDead
}
