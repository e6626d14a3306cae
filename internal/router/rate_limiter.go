package router

import (
	"sync"
	"time"
)

// rateLimit is the per-session transcription budget. Live captioning at
// speaking pace stays well under it.
const (
	rateLimit       = 120
	rateWindow      = time.Minute
	rateStaleWindow = 5 * time.Minute
)

// RateLimiter caps transcription events per session with a fixed
// per-minute window.
type RateLimiter struct {
	mu       sync.Mutex
	sessions map[string]*windowCount
}

type windowCount struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates an empty rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{sessions: make(map[string]*windowCount)}
}

// Allow reports whether the session may send another transcription event.
func (rl *RateLimiter) Allow(sessionID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.sessions[sessionID]
	if !ok || now.Sub(w.windowStart) >= rateWindow {
		rl.sessions[sessionID] = &windowCount{count: 1, windowStart: now}
		return true
	}
	if w.count >= rateLimit {
		return false
	}
	w.count++
	return true
}

// Cleanup drops sessions idle for several windows. Called periodically to
// keep the map from accumulating ended sessions.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for id, w := range rl.sessions {
		if now.Sub(w.windowStart) > rateStaleWindow {
			delete(rl.sessions, id)
		}
	}
}
