package lifecycle

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
)

// SessionCountCache keeps the active-session count out of the storage hot
// path. The count is read on every new-connection decision but changes
// rarely; up to one refresh interval of staleness is acceptable. A failed
// refresh keeps the previous value; the only observable side effect is a
// warning in the log.
type SessionCountCache struct {
	store    interfaces.SessionStore
	interval time.Duration

	mu          sync.RWMutex
	count       int
	refreshedAt time.Time
}

// NewSessionCountCache creates the cache. It holds zero until the first
// refresh.
func NewSessionCountCache(store interfaces.SessionStore, interval time.Duration) *SessionCountCache {
	return &SessionCountCache{store: store, interval: interval}
}

// Get returns the last successfully cached count.
func (c *SessionCountCache) Get() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// RefreshedAt returns when the count was last successfully refreshed.
func (c *SessionCountCache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// Invalidate refreshes synchronously before returning. On failure the
// previous value is retained and the error reported to the caller.
func (c *SessionCountCache) Invalidate(ctx context.Context) error {
	return c.refresh(ctx)
}

// Start refreshes immediately and then on every interval tick until ctx is
// cancelled.
func (c *SessionCountCache) Start(ctx context.Context) {
	if err := c.refresh(ctx); err != nil {
		log.Printf("Warning: initial session count refresh failed: %v", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				log.Printf("Warning: session count refresh failed, keeping previous value: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *SessionCountCache) refresh(ctx context.Context) error {
	count, err := c.store.CountActiveSessions(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.count = count
	c.refreshedAt = time.Now()
	c.mu.Unlock()
	return nil
}
