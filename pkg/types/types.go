package types

import (
	"time"
)

// Connection roles. A connection's role is set once at registration and
// never changes for the lifetime of the connection.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Wire event types exchanged over the WebSocket transport.
const (
	EventRegister      = "register"
	EventTranscription = "transcription"
	EventAudio         = "audio"
	EventSettings      = "settings"
	EventConnection    = "connection"
	EventTranslation   = "translation"
	EventError         = "error"
)

// Envelope is the inbound wire frame. Fields are populated depending on
// the event type; unused fields stay at their zero value.
type Envelope struct {
	Type         string                 `json:"type"`
	Role         string                 `json:"role,omitempty"`
	LanguageCode string                 `json:"languageCode,omitempty"`
	Text         string                 `json:"text,omitempty"`
	Data         string                 `json:"data,omitempty"` // base64 audio payload
	Timestamp    int64                  `json:"timestamp,omitempty"`
	IsFinal      bool                   `json:"isFinal,omitempty"`
	Settings     map[string]interface{} `json:"settings,omitempty"`
}

// ConnectionAck acknowledges a successful registration.
type ConnectionAck struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// TranslationMessage is the outbound event delivered to each student whose
// language matched a teacher transcription.
type TranslationMessage struct {
	Type           string `json:"type"`
	SourceText     string `json:"sourceText"`
	TranslatedText string `json:"translatedText"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Audio          []byte `json:"audio,omitempty"`
	AudioFormat    string `json:"audioFormat,omitempty"`
	Provider       string `json:"provider,omitempty"`
	LatencyMs      int64  `json:"latencyMs,omitempty"`
}

// ErrorMessage reports a problem with the sender's own input. It is only
// ever delivered to the connection that caused it.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// QualityTier classifies how genuinely a session was used, in ascending
// order of confidence. A session stays TierUnknown until the lifecycle
// classifier runs for it.
type QualityTier int

const (
	TierUnknown QualityTier = iota
	TierDead
	TierMinimal
	TierActive
	TierComplete
)

// String returns the persisted form of the tier.
func (t QualityTier) String() string {
	switch t {
	case TierDead:
		return "dead"
	case TierMinimal:
		return "minimal"
	case TierActive:
		return "active"
	case TierComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ParseQualityTier maps a persisted tier string back to its enum value.
// Unrecognized values come back as TierUnknown.
func ParseQualityTier(s string) QualityTier {
	switch s {
	case "dead":
		return TierDead
	case "minimal":
		return TierMinimal
	case "active":
		return TierActive
	case "complete":
		return TierComplete
	default:
		return TierUnknown
	}
}

// Session is a logical classroom instance keyed by session ID. It outlives
// any single connection; a teacher may reconnect into the same session.
// EndTime is set if and only if IsActive is false.
type Session struct {
	ID                string      `json:"id"`
	TeacherLanguage   string      `json:"teacherLanguage"`
	StudentsCount     int         `json:"studentsCount"`
	TotalTranslations int         `json:"totalTranslations"`
	AverageLatency    float64     `json:"averageLatency"` // milliseconds
	StartTime         time.Time   `json:"startTime"`
	EndTime           *time.Time  `json:"endTime,omitempty"`
	IsActive          bool        `json:"isActive"`
	Quality           QualityTier `json:"-"`
	QualityReason     string      `json:"qualityReason"`
	LastActivityAt    time.Time   `json:"lastActivityAt"`
}

// Transcript is one recorded utterance from a teacher.
type Transcript struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Language  string    `json:"language"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionActivity is the per-session summary returned by the storage
// collaborator for analytics and lifecycle classification.
type SessionActivity struct {
	SessionID         string
	TeacherLanguage   string
	StudentsCount     int
	TotalTranslations int
	TranscriptCount   int
	StartTime         time.Time
	EndTime           *time.Time
	LastActivityAt    time.Time
}
