// Package api exposes the read-only diagnostics and analytics surface.
// No business logic lives here; handlers translate HTTP to collaborator
// calls and JSON.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/lifecycle"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/registry"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
)

// Server serves the REST endpoints.
type Server struct {
	store      interfaces.SessionStore
	registry   *registry.Registry
	countCache *lifecycle.SessionCountCache
	router     *mux.Router
}

// NewServer wires the routes.
func NewServer(store interfaces.SessionStore, reg *registry.Registry, countCache *lifecycle.SessionCountCache) *Server {
	s := &Server{
		store:      store,
		registry:   reg,
		countCache: countCache,
		router:     mux.NewRouter(),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/active/count", s.handleActiveCount).Methods(http.MethodGet)
	s.router.HandleFunc("/api/sessions/{id}", s.handleSessionByID).Methods(http.MethodGet)
	s.router.HandleFunc("/api/analytics/sessions", s.handleAnalytics).Methods(http.MethodGet)
	s.router.HandleFunc("/api/languages", s.handleLanguages).Methods(http.MethodGet)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := s.store.HealthCheck(ctx); err != nil {
		log.Printf("Health check failed: %v", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":      status,
		"connections": s.registry.Stats(),
		"timestamp":   time.Now(),
	})
}

// handleActiveCount serves the cached count; this endpoint is polled and
// must not reach storage per request.
func (s *Server) handleActiveCount(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"activeSessions": s.countCache.Get(),
		"refreshedAt":    s.countCache.RefreshedAt(),
	})
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.store.GetSessionByID(r.Context(), sessionID)
	if err == interfaces.ErrSessionNotFound {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("Session lookup failed: session=%s err=%v", sessionID, err)
		s.writeError(w, http.StatusInternalServerError, "session lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, session)
}

// handleAnalytics reports recent sessions whose quality tier is
// trustworthy enough for aggregates.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	activities, err := s.store.GetRecentSessionActivity(r.Context())
	if err != nil {
		log.Printf("Activity query failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "activity query failed")
		return
	}

	type entry struct {
		SessionID         string  `json:"sessionId"`
		TeacherLanguage   string  `json:"teacherLanguage"`
		StudentsCount     int     `json:"studentsCount"`
		TotalTranslations int     `json:"totalTranslations"`
		TranscriptCount   int     `json:"transcriptCount"`
		DurationSeconds   float64 `json:"durationSeconds"`
		Tier              string  `json:"tier"`
		Reason            string  `json:"reason"`
	}

	entries := make([]entry, 0, len(activities))
	for _, a := range activities {
		end := time.Now()
		if a.EndTime != nil {
			end = *a.EndTime
		}
		c := lifecycle.Classify(lifecycle.Metrics{
			StudentsCount:    a.StudentsCount,
			TranslationCount: a.TotalTranslations,
			TranscriptCount:  a.TranscriptCount,
			Duration:         end.Sub(a.StartTime),
		}, a.StartTime)

		if !lifecycle.ShouldIncludeInAnalytics(c.Tier) {
			continue
		}
		entries = append(entries, entry{
			SessionID:         a.SessionID,
			TeacherLanguage:   a.TeacherLanguage,
			StudentsCount:     a.StudentsCount,
			TotalTranslations: a.TotalTranslations,
			TranscriptCount:   a.TranscriptCount,
			DurationSeconds:   end.Sub(a.StartTime).Seconds(),
			Tier:              c.Tier.String(),
			Reason:            c.Reason,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": entries})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"studentLanguages": s.registry.StudentLanguages(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{"error": message})
}
