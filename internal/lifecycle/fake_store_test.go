package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// fakeStore is an in-memory SessionStore for exercising the sweeper and
// the count cache without SQLite.
type fakeStore struct {
	mu          sync.Mutex
	sessions    map[string]*types.Session
	transcripts map[string]int

	onScan       func()
	countErr     error
	countCalls   int
	updateCalls  int
	transcriptQs int
}

var _ interfaces.SessionStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:    make(map[string]*types.Session),
		transcripts: make(map[string]int),
	}
}

func (f *fakeStore) put(s *types.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := *s
	f.sessions[s.ID] = &dup
}

func (f *fakeStore) get(id string) *types.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		dup := *s
		return &dup
	}
	return nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *types.Session) error {
	f.put(s)
	return nil
}

func (f *fakeStore) GetSessionByID(_ context.Context, id string) (*types.Session, error) {
	if s := f.get(id); s != nil {
		return s, nil
	}
	return nil, interfaces.ErrSessionNotFound
}

func (f *fakeStore) GetAllActiveSessions(context.Context) ([]*types.Session, error) {
	f.mu.Lock()
	var out []*types.Session
	for _, s := range f.sessions {
		if s.IsActive {
			dup := *s
			out = append(out, &dup)
		}
	}
	onScan := f.onScan
	f.mu.Unlock()
	if onScan != nil {
		onScan()
	}
	return out, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, id string, u interfaces.SessionUpdate) error {
	if (u.IsActive != nil && !*u.IsActive) != (u.EndTime != nil) {
		return interfaces.ErrInvalidUpdate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	s, ok := f.sessions[id]
	if !ok {
		return interfaces.ErrSessionNotFound
	}
	if u.TeacherLanguage != nil {
		s.TeacherLanguage = *u.TeacherLanguage
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if u.EndTime != nil {
		s.EndTime = u.EndTime
	}
	if u.Quality != nil {
		s.Quality = *u.Quality
	}
	if u.QualityReason != nil {
		s.QualityReason = *u.QualityReason
	}
	if u.LastActivityAt != nil {
		s.LastActivityAt = *u.LastActivityAt
	}
	return nil
}

func (f *fakeStore) AddStudent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.StudentsCount++
		s.LastActivityAt = time.Now()
	}
	return nil
}

func (f *fakeStore) AddTranslations(_ context.Context, id string, count int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.TotalTranslations += count
		s.LastActivityAt = time.Now()
	}
	return nil
}

func (f *fakeStore) RecordTranscript(_ context.Context, tr *types.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[tr.SessionID]++
	return nil
}

func (f *fakeStore) GetTranscriptCountBySession(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcriptQs++
	return f.transcripts[id], nil
}

func (f *fakeStore) GetRecentSessionActivity(context.Context) ([]*types.SessionActivity, error) {
	return nil, nil
}

func (f *fakeStore) CountActiveSessions(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, s := range f.sessions {
		if s.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) TouchActivity(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.LastActivityAt = time.Now()
	}
	return nil
}

func (f *fakeStore) HealthCheck(context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func (f *fakeStore) setCountErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countErr = err
}
