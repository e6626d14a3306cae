package heartbeat

import (
	"context"
	"log"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/registry"
)

// Monitor periodically probes every registered connection and evicts the
// ones that failed to answer within one interval. Eviction terminates the
// transport, removes the connection from the registry and fires the
// optional onTerminate hook exactly once per connection. Per-connection
// failures are logged and never stop the sweep for the rest.
type Monitor struct {
	registry    *registry.Registry
	interval    time.Duration
	onTerminate func(*registry.Connection)
}

// NewMonitor creates a heartbeat monitor over the given registry.
// onTerminate may be nil.
func NewMonitor(reg *registry.Registry, interval time.Duration, onTerminate func(*registry.Connection)) *Monitor {
	return &Monitor{
		registry:    reg,
		interval:    interval,
		onTerminate: onTerminate,
	}
}

// Start runs the probe loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			log.Println("Heartbeat monitor stopped")
			return
		}
	}
}

// Sweep performs one probe pass and returns how many connections were
// evicted. Connections still pending from the previous pass missed a full
// interval and are evicted; everyone else gets a fresh probe. A probe-send
// failure means the transport is already broken and evicts immediately.
func (m *Monitor) Sweep() int {
	evicted := 0
	for _, conn := range m.registry.All() {
		if conn.ProbePending() {
			log.Printf("Evicting unresponsive connection: role=%s session=%s last_seen=%s",
				conn.Role(), conn.SessionID(), conn.LastSeen().Format(time.RFC3339))
			m.evict(conn)
			evicted++
			continue
		}
		if err := conn.Probe(); err != nil {
			log.Printf("Heartbeat probe failed, evicting: role=%s session=%s err=%v",
				conn.Role(), conn.SessionID(), err)
			m.evict(conn)
			evicted++
		}
	}
	return evicted
}

func (m *Monitor) evict(conn *registry.Connection) {
	m.registry.Remove(conn)
	if err := conn.Close(); err != nil {
		log.Printf("Error closing evicted connection: %v", err)
	}
	if m.onTerminate != nil && conn.BeginTermination() {
		m.onTerminate(conn)
	}
}
