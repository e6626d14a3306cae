package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// Store implements interfaces.SessionStore over SQLite. All writes funnel
// through one goroutine; SQLite handles a single writer well and WAL keeps
// reads concurrent.
type Store struct {
	db       *sql.DB
	writeCh  chan writeOp
	shutdown chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ interfaces.SessionStore = (*Store)(nil)

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

// NewStore opens (or creates) the database at path and applies the schema.
func NewStore(path string, timeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(timeout)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:       db,
		writeCh:  make(chan writeOp, 100),
		shutdown: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.fn(s.db)
		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{fn: fn, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timed out")
	case <-s.shutdown:
		return interfaces.ErrStoreClosed
	}
}

// CreateSession persists a new active session row.
func (s *Store) CreateSession(ctx context.Context, session *types.Session) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO sessions (session_id, teacher_language, students_count,
				total_translations, average_latency, start_time, is_active,
				quality, quality_reason, last_activity_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)`,
			session.ID,
			session.TeacherLanguage,
			session.StudentsCount,
			session.TotalTranslations,
			session.AverageLatency,
			session.StartTime,
			session.Quality.String(),
			session.QualityReason,
			session.LastActivityAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

func scanSession(scan func(...interface{}) error) (*types.Session, error) {
	var session types.Session
	var endTime sql.NullTime
	var isActive int
	var quality string

	err := scan(
		&session.ID,
		&session.TeacherLanguage,
		&session.StudentsCount,
		&session.TotalTranslations,
		&session.AverageLatency,
		&session.StartTime,
		&endTime,
		&isActive,
		&quality,
		&session.QualityReason,
		&session.LastActivityAt,
	)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		session.EndTime = &endTime.Time
	}
	session.IsActive = isActive != 0
	session.Quality = types.ParseQualityTier(quality)
	return &session, nil
}

const sessionColumns = `session_id, teacher_language, students_count,
	total_translations, average_latency, start_time, end_time, is_active,
	quality, quality_reason, last_activity_at`

// GetSessionByID returns one session or interfaces.ErrSessionNotFound.
func (s *Store) GetSessionByID(ctx context.Context, sessionID string) (*types.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return session, nil
}

// GetAllActiveSessions returns every active session, most recent first.
func (s *Store) GetAllActiveSessions(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE is_active = 1 ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*types.Session
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

// UpdateSession applies a partial update. Deactivating without an end time
// (or ending without deactivating) violates the session invariant and is
// rejected.
func (s *Store) UpdateSession(ctx context.Context, sessionID string, update interfaces.SessionUpdate) error {
	if (update.IsActive != nil && !*update.IsActive) != (update.EndTime != nil) {
		return interfaces.ErrInvalidUpdate
	}

	return s.executeWrite(func(db *sql.DB) error {
		set := ""
		var args []interface{}
		appendSet := func(col string, val interface{}) {
			if set != "" {
				set += ", "
			}
			set += col + " = ?"
			args = append(args, val)
		}

		if update.TeacherLanguage != nil {
			appendSet("teacher_language", *update.TeacherLanguage)
		}
		if update.IsActive != nil {
			active := 0
			if *update.IsActive {
				active = 1
			}
			appendSet("is_active", active)
		}
		if update.EndTime != nil {
			appendSet("end_time", *update.EndTime)
		}
		if update.Quality != nil {
			appendSet("quality", update.Quality.String())
		}
		if update.QualityReason != nil {
			appendSet("quality_reason", *update.QualityReason)
		}
		if update.LastActivityAt != nil {
			appendSet("last_activity_at", *update.LastActivityAt)
		}
		if set == "" {
			return nil
		}

		args = append(args, sessionID)
		res, err := db.ExecContext(ctx, "UPDATE sessions SET "+set+" WHERE session_id = ?", args...)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return interfaces.ErrSessionNotFound
		}
		return nil
	})
}

// AddStudent increments the student counter and touches activity.
func (s *Store) AddStudent(ctx context.Context, sessionID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			UPDATE sessions
			SET students_count = students_count + 1, last_activity_at = ?
			WHERE session_id = ?`, time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("failed to add student: %w", err)
		}
		return nil
	})
}

// AddTranslations folds delivered translations and their latency into the
// session counters. The running average stays exact because the previous
// total is part of the same write.
func (s *Store) AddTranslations(ctx context.Context, sessionID string, count int, latency time.Duration) error {
	if count <= 0 {
		return nil
	}
	return s.executeWrite(func(db *sql.DB) error {
		latencyMs := float64(latency.Milliseconds())
		_, err := db.ExecContext(ctx, `
			UPDATE sessions
			SET average_latency = (average_latency * total_translations + ? * ?)
					/ (total_translations + ?),
				total_translations = total_translations + ?,
				last_activity_at = ?
			WHERE session_id = ?`,
			latencyMs, count, count, count, time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("failed to record translations: %w", err)
		}
		return nil
	})
}

// RecordTranscript stores one final teacher utterance.
func (s *Store) RecordTranscript(ctx context.Context, transcript *types.Transcript) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO transcripts (id, session_id, language, text, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			transcript.ID,
			transcript.SessionID,
			transcript.Language,
			transcript.Text,
			transcript.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transcript: %w", err)
		}
		return nil
	})
}

// GetTranscriptCountBySession returns the stored transcript count.
func (s *Store) GetTranscriptCountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transcripts WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transcripts: %w", err)
	}
	return count, nil
}

// GetRecentSessionActivity summarizes sessions active in the last 24 hours.
func (s *Store) GetRecentSessionActivity(ctx context.Context) ([]*types.SessionActivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.teacher_language, s.students_count,
			s.total_translations, COUNT(t.id), s.start_time, s.end_time,
			s.last_activity_at
		FROM sessions s
		LEFT JOIN transcripts t ON t.session_id = s.session_id
		WHERE s.last_activity_at >= ?
		GROUP BY s.session_id
		ORDER BY s.last_activity_at DESC`,
		time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to query session activity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var activities []*types.SessionActivity
	for rows.Next() {
		var a types.SessionActivity
		var endTime sql.NullTime
		err := rows.Scan(
			&a.SessionID,
			&a.TeacherLanguage,
			&a.StudentsCount,
			&a.TotalTranslations,
			&a.TranscriptCount,
			&a.StartTime,
			&endTime,
			&a.LastActivityAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		if endTime.Valid {
			a.EndTime = &endTime.Time
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}
	return activities, nil
}

// CountActiveSessions returns the number of active sessions.
func (s *Store) CountActiveSessions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE is_active = 1").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

// TouchActivity bumps the session's activity timestamp.
func (s *Store) TouchActivity(ctx context.Context, sessionID string) error {
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"UPDATE sessions SET last_activity_at = ? WHERE session_id = ?",
			time.Now(), sessionID)
		if err != nil {
			return fmt.Errorf("failed to touch session activity: %w", err)
		}
		return nil
	})
}

// HealthCheck validates connectivity and a basic read.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// Close drains the writer goroutine and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("Session store closed")
	return nil
}
