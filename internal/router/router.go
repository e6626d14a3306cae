// Package router consumes inbound events from one connection and fans the
// resulting work out to the right subset of student connections. All
// capability calls go through fallback chains, so a provider outage
// degrades the output instead of stalling the classroom.
package router

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/fallback"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/lifecycle"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/providers"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/registry"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// SettingTTSProvider is the per-connection settings key naming a student's
// preferred synthesis provider.
const SettingTTSProvider = "ttsServiceType"

// SettingVoice is the per-connection settings key naming a synthesis voice.
const SettingVoice = "ttsVoice"

// Router routes one connection's events. Registry queries return
// snapshots, so no lock is held while providers are invoked or sockets
// written; a student vanishing between resolution and send is a silent
// skip.
type Router struct {
	registry    *registry.Registry
	store       interfaces.SessionStore
	translator  *fallback.Invoker[providers.TranslationRequest, providers.Translation]
	transcriber *fallback.Invoker[providers.TranscriptionRequest, providers.Transcription]
	synthesis   *providers.SynthesisChains
	countCache  *lifecycle.SessionCountCache
	limiter     *RateLimiter
}

// NewRouter wires the router's collaborators. countCache may be nil.
func NewRouter(
	reg *registry.Registry,
	store interfaces.SessionStore,
	translator *fallback.Invoker[providers.TranslationRequest, providers.Translation],
	transcriber *fallback.Invoker[providers.TranscriptionRequest, providers.Transcription],
	synthesis *providers.SynthesisChains,
	countCache *lifecycle.SessionCountCache,
) *Router {
	return &Router{
		registry:    reg,
		store:       store,
		translator:  translator,
		transcriber: transcriber,
		synthesis:   synthesis,
		countCache:  countCache,
		limiter:     NewRateLimiter(),
	}
}

// Route dispatches one inbound event. The returned error always describes
// a problem with the sender's own input and is reported to that connection
// alone; provider and storage failures never surface here.
func (r *Router) Route(ctx context.Context, conn *registry.Connection, env *types.Envelope) error {
	switch env.Type {
	case types.EventRegister:
		return r.handleRegister(ctx, conn, env)
	case types.EventTranscription:
		return r.handleTranscription(ctx, conn, env.Text, env.IsFinal)
	case types.EventAudio:
		return r.handleAudio(ctx, conn, env)
	case types.EventSettings:
		return r.handleSettings(conn, env)
	default:
		return types.ErrInvalidEventType
	}
}

// handleRegister validates and registers the connection, creates the
// session row for teachers, and acknowledges with the session ID.
func (r *Router) handleRegister(ctx context.Context, conn *registry.Connection, env *types.Envelope) error {
	if !types.IsValidRole(env.Role) {
		return types.ErrInvalidRole
	}
	if env.Role == types.RoleStudent && env.LanguageCode == "" {
		return ErrStudentLanguageRequired
	}

	conn, err := r.registry.Add(conn, env.Role, env.LanguageCode)
	if err != nil {
		return err
	}
	sessionID := conn.SessionID()

	switch env.Role {
	case types.RoleTeacher:
		now := time.Now()
		err := r.store.CreateSession(ctx, &types.Session{
			ID:              sessionID,
			TeacherLanguage: env.LanguageCode,
			StartTime:       now,
			IsActive:        true,
			LastActivityAt:  now,
		})
		if err != nil {
			// A reconnecting teacher reuses an existing row.
			log.Printf("Session row not created: session=%s err=%v", sessionID, err)
		}
		r.invalidateCountCache(ctx)
	case types.RoleStudent:
		if err := r.store.AddStudent(ctx, sessionID); err != nil {
			log.Printf("Failed to count student: session=%s err=%v", sessionID, err)
		}
	}

	return conn.WriteJSON(types.ConnectionAck{
		Type:      types.EventConnection,
		SessionID: sessionID,
		Status:    "connected",
	})
}

// handleTranscription fans a teacher utterance out to every student
// language group.
func (r *Router) handleTranscription(ctx context.Context, conn *registry.Connection, text string, isFinal bool) error {
	if conn.Role() != types.RoleTeacher {
		return ErrNotTeacher
	}
	if text == "" {
		return ErrEmptyTranscription
	}
	if !r.limiter.Allow(conn.SessionID()) {
		return ErrRateLimitExceeded
	}

	sessionID := conn.SessionID()
	if isFinal {
		err := r.store.RecordTranscript(ctx, &types.Transcript{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			Language:  conn.Language(),
			Text:      text,
			CreatedAt: time.Now(),
		})
		if err != nil {
			log.Printf("Failed to record transcript: session=%s err=%v", sessionID, err)
		}
	}
	if err := r.store.TouchActivity(ctx, sessionID); err != nil {
		log.Printf("Failed to touch session activity: session=%s err=%v", sessionID, err)
	}

	r.fanOut(ctx, conn, text)
	return nil
}

// handleAudio transcribes a teacher audio payload and then follows the
// transcription path. A degraded (empty) transcript means there is nothing
// to broadcast.
func (r *Router) handleAudio(ctx context.Context, conn *registry.Connection, env *types.Envelope) error {
	if conn.Role() != types.RoleTeacher {
		return ErrNotTeacher
	}
	audio, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil || len(audio) == 0 {
		return ErrInvalidAudioPayload
	}

	result := r.transcriber.Run(ctx, providers.TranscriptionRequest{
		Audio:    audio,
		Language: conn.Language(),
	})
	if result.Value.Text == "" {
		log.Printf("Transcription yielded no text: session=%s provider=%s", conn.SessionID(), result.Provider)
		return nil
	}
	return r.handleTranscription(ctx, conn, result.Value.Text, env.IsFinal)
}

// handleSettings merges the event's settings into the connection. No
// rebroadcast.
func (r *Router) handleSettings(conn *registry.Connection, env *types.Envelope) error {
	if len(env.Settings) == 0 {
		return ErrEmptySettings
	}
	r.registry.UpdateSettings(conn, env.Settings)
	return nil
}

// fanOut resolves the student snapshot, translates once per distinct target
// language, synthesizes once per (language, preferred provider) group, and
// dispatches to every matching student. Send failures are per-connection
// no-ops. Students connecting after the snapshot receive nothing for this
// event.
func (r *Router) fanOut(ctx context.Context, teacher *registry.Connection, text string) {
	groups := r.registry.StudentsByLanguage()
	if len(groups) == 0 {
		return
	}

	sourceLanguage := teacher.Language()
	sessionID := teacher.SessionID()
	start := time.Now()
	delivered := 0

	for language, students := range groups {
		translation := r.translator.Run(ctx, providers.TranslationRequest{
			Text:           text,
			SourceLanguage: sourceLanguage,
			TargetLanguage: language,
		})
		if translation.Degraded {
			log.Printf("Translation degraded: session=%s language=%s attempts=%d",
				sessionID, language, len(translation.Attempts))
		}

		for preferred, group := range groupByTTSPreference(students) {
			synth := r.synthesizeFor(ctx, preferred, translation.Value.Text, language)

			msg := types.TranslationMessage{
				Type:           types.EventTranslation,
				SourceText:     text,
				TranslatedText: translation.Value.Text,
				SourceLanguage: sourceLanguage,
				TargetLanguage: language,
				Audio:          synth.Value.Audio,
				AudioFormat:    synth.Value.Format,
				Provider:       translation.Provider,
				LatencyMs:      time.Since(start).Milliseconds(),
			}
			for _, student := range group {
				if err := student.WriteJSON(msg); err != nil {
					// The student disconnected between snapshot and send.
					log.Printf("Skipped delivery: language=%s err=%v", language, err)
					continue
				}
				delivered++
			}
		}
	}

	if err := r.store.AddTranslations(ctx, sessionID, delivered, time.Since(start)); err != nil {
		log.Printf("Failed to record translation stats: session=%s err=%v", sessionID, err)
	}
}

// synthesizeFor runs the synthesis chain with the student group's preferred
// provider first. Voice selection rides along for providers that use it.
func (r *Router) synthesizeFor(ctx context.Context, preferred, text, language string) fallback.Result[providers.Synthesis] {
	chain := r.synthesis.ChainFor(preferred)
	result := chain.Run(ctx, providers.SynthesisRequest{
		Text:     text,
		Language: language,
	})
	if result.Degraded && len(result.Attempts) > 0 {
		log.Printf("Synthesis degraded: language=%s preferred=%q attempts=%d",
			language, preferred, len(result.Attempts))
	}
	return result
}

// groupByTTSPreference splits a language group by each student's preferred
// synthesis provider so the chain runs once per (language, provider) pair.
func groupByTTSPreference(students []*registry.Connection) map[string][]*registry.Connection {
	groups := make(map[string][]*registry.Connection)
	for _, s := range students {
		pref := s.SettingString(SettingTTSProvider)
		groups[pref] = append(groups[pref], s)
	}
	return groups
}

func (r *Router) invalidateCountCache(ctx context.Context) {
	if r.countCache == nil {
		return
	}
	if err := r.countCache.Invalidate(ctx); err != nil {
		log.Printf("Warning: session count refresh failed: %v", err)
	}
}
