package registry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the transport surface a Connection writes to. *websocket.Conn
// satisfies it; tests substitute an in-memory fake.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Heartbeat states. A connection is alive until a probe is sent; it stays
// pending-pong until a liveness response arrives.
const (
	hbAlive int32 = iota
	hbPendingPong
)

// Connection wraps one live duplex socket together with its registry
// metadata. All socket writes go through a single writer goroutine so
// concurrent broadcasts never interleave frames.
type Connection struct {
	sock         Socket
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once

	mu           sync.RWMutex
	role         string
	languageCode string
	sessionID    string
	settings     map[string]interface{}

	hbState    atomic.Int32
	lastSeen   atomic.Int64 // unix nanos of last liveness confirmation
	removed    atomic.Bool  // set by Registry.Remove; removal is final
	terminated atomic.Bool  // guards the heartbeat onTerminate hook
}

// NewConnection wraps a socket with a buffered write channel and starts the
// writer goroutine.
func NewConnection(sock Socket, writeBuffer int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		sock:         sock,
		writeCh:      make(chan []byte, writeBuffer),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		settings:     make(map[string]interface{}),
	}
	c.lastSeen.Store(time.Now().UnixNano())
	go c.writeLoop()
	return c
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues v for delivery. It never blocks longer than the write
// timeout; a closed connection returns ErrConnectionClosed.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidPayload
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close terminates the transport. Safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.sock.Close()
	})
	return err
}

// Closed reports whether the connection has been closed.
func (c *Connection) Closed() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Probe marks the connection pending-pong and sends a liveness probe. A
// send failure means the transport is already broken.
func (c *Connection) Probe() error {
	c.hbState.Store(hbPendingPong)
	return c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// ProbePending reports whether a probe is still unanswered.
func (c *Connection) ProbePending() bool {
	return c.hbState.Load() == hbPendingPong
}

// MarkAlive records a liveness confirmation. Called on pong frames and on
// any inbound data frame.
func (c *Connection) MarkAlive() {
	c.hbState.Store(hbAlive)
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the time of the last liveness confirmation.
func (c *Connection) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// BeginTermination returns true exactly once per connection, so the
// heartbeat monitor's onTerminate hook cannot fire twice.
func (c *Connection) BeginTermination() bool {
	return c.terminated.CompareAndSwap(false, true)
}

// Role returns the connection's role, empty until registration.
func (c *Connection) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Language returns the connection's language tag.
func (c *Connection) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.languageCode
}

// SessionID returns the session this connection belongs to, empty before
// registration.
func (c *Connection) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Settings returns a copy of the connection's settings map.
func (c *Connection) Settings() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.settings))
	for k, v := range c.settings {
		out[k] = v
	}
	return out
}

// SettingString returns a single settings value as a string, or "" when the
// key is absent or not a string.
func (c *Connection) SettingString(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.settings[key].(string); ok {
		return v
	}
	return ""
}
