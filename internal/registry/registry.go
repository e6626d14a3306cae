package registry

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// Registry owns the set of live connections and their metadata. It is the
// only mutable shared structure in the core; one mutex guards the maps and
// every query returns a point-in-time copy, so no caller ever dispatches
// while holding the lock. Callers must tolerate a connection disappearing
// between query and send.
type Registry struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
	byRole      map[string]map[*Connection]struct{}
	byLanguage  map[string]map[*Connection]struct{}

	// teacherSession is the session students join when they register while
	// a teacher is live. It survives a teacher disconnect so late students
	// still land in the right classroom.
	teacherSession string
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[*Connection]struct{}),
		byRole:      make(map[string]map[*Connection]struct{}),
		byLanguage:  make(map[string]map[*Connection]struct{}),
	}
}

// Add registers a connection with its role and language and assigns a
// session ID if the connection does not carry one. Students registering
// while a teacher session exists join that session. Returns the enriched
// connection. A removed connection can never be re-added.
func (r *Registry) Add(conn *Connection, role, language string) (*Connection, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if conn.removed.Load() {
		return nil, ErrConnectionRemoved
	}
	if role != "" && !types.IsValidRole(role) {
		return nil, types.ErrInvalidRole
	}
	if language != "" && !types.IsValidLanguageCode(language) {
		return nil, types.ErrInvalidLanguageCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn.mu.Lock()
	if role != "" {
		if conn.role != "" && conn.role != role {
			conn.mu.Unlock()
			return nil, ErrRoleAlreadySet
		}
		conn.role = role
	}
	if language != "" {
		conn.languageCode = language
	}
	if conn.sessionID == "" {
		if role == types.RoleStudent && r.teacherSession != "" {
			conn.sessionID = r.teacherSession
		} else {
			conn.sessionID = uuid.New().String()
		}
	}
	if role == types.RoleTeacher {
		r.teacherSession = conn.sessionID
	}
	sessionID := conn.sessionID
	conn.mu.Unlock()

	r.connections[conn] = struct{}{}
	r.indexLocked(conn, role, language)

	log.Printf("Connection registered: role=%s language=%s session=%s", role, language, sessionID)
	return conn, nil
}

// indexLocked files the connection under its role and language buckets.
// Caller holds r.mu.
func (r *Registry) indexLocked(conn *Connection, role, language string) {
	if role != "" {
		if r.byRole[role] == nil {
			r.byRole[role] = make(map[*Connection]struct{})
		}
		r.byRole[role][conn] = struct{}{}
	}
	if language != "" {
		if r.byLanguage[language] == nil {
			r.byLanguage[language] = make(map[*Connection]struct{})
		}
		r.byLanguage[language][conn] = struct{}{}
	}
}

// unindexLocked removes the connection from a bucket map, dropping empty
// buckets so the maps do not accumulate stale keys. Caller holds r.mu.
func unindexLocked(buckets map[string]map[*Connection]struct{}, key string, conn *Connection) {
	if key == "" {
		return
	}
	if bucket, ok := buckets[key]; ok {
		delete(bucket, conn)
		if len(bucket) == 0 {
			delete(buckets, key)
		}
	}
}

// Remove purges a connection and all its metadata. Idempotent; removing a
// connection twice is a no-op. Removal is final.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}
	conn.removed.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[conn]; !ok {
		return
	}
	delete(r.connections, conn)
	unindexLocked(r.byRole, conn.Role(), conn)
	unindexLocked(r.byLanguage, conn.Language(), conn)
}

// SetRole sets the role of an already-registered connection. A role, once
// set, does not change.
func (r *Registry) SetRole(conn *Connection, role string) error {
	if !types.IsValidRole(role) {
		return types.ErrInvalidRole
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.mu.Lock()
	if conn.role != "" && conn.role != role {
		conn.mu.Unlock()
		return ErrRoleAlreadySet
	}
	conn.role = role
	conn.mu.Unlock()

	r.indexLocked(conn, role, "")
	return nil
}

// SetLanguage updates the language of a registered connection and re-files
// it under the new language bucket.
func (r *Registry) SetLanguage(conn *Connection, language string) error {
	if !types.IsValidLanguageCode(language) {
		return types.ErrInvalidLanguageCode
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.mu.Lock()
	old := conn.languageCode
	conn.languageCode = language
	conn.mu.Unlock()

	if old != language {
		unindexLocked(r.byLanguage, old, conn)
		r.indexLocked(conn, "", language)
	}
	return nil
}

// UpdateSettings merges partial into the connection's settings map.
// The merge is shallow; later keys win.
func (r *Registry) UpdateSettings(conn *Connection, partial map[string]interface{}) {
	if conn == nil || len(partial) == 0 {
		return
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	for k, v := range partial {
		conn.settings[k] = v
	}
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, 0, len(r.connections))
	for conn := range r.connections {
		out = append(out, conn)
	}
	return out
}

// ByRole returns a snapshot of connections with the given role.
func (r *Registry) ByRole(role string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.byRole[role]
	out := make([]*Connection, 0, len(bucket))
	for conn := range bucket {
		out = append(out, conn)
	}
	return out
}

// ByLanguage returns a snapshot of connections with the given language.
func (r *Registry) ByLanguage(language string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.byLanguage[language]
	out := make([]*Connection, 0, len(bucket))
	for conn := range bucket {
		out = append(out, conn)
	}
	return out
}

// StudentLanguages returns the distinct languages of connected students.
func (r *Registry) StudentLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	for conn := range r.byRole[types.RoleStudent] {
		if lang := conn.Language(); lang != "" {
			seen[lang] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	return out
}

// StudentsByLanguage returns student connections grouped by language. The
// grouping is a snapshot; dispatch happens without holding the lock.
func (r *Registry) StudentsByLanguage() map[string][]*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]*Connection)
	for conn := range r.byRole[types.RoleStudent] {
		lang := conn.Language()
		if lang == "" {
			continue
		}
		out[lang] = append(out[lang], conn)
	}
	return out
}

// TeacherSession returns the session students currently join, empty when no
// teacher has registered yet.
func (r *Registry) TeacherSession() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.teacherSession
}

// Stats returns registry counters for diagnostics.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]int{
		"total_connections": len(r.connections),
		"teachers":          len(r.byRole[types.RoleTeacher]),
		"students":          len(r.byRole[types.RoleStudent]),
		"languages":         len(r.byLanguage),
	}
}
