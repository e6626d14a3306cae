package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// fakeSocket records delivered frames so tests can observe fan-out.
type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	f.frames = append(f.frames, buf)
	return nil
}

func (f *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }
func (f *fakeSocket) SetWriteDeadline(time.Time) error          { return nil }
func (f *fakeSocket) Close() error                              { return nil }

func (f *fakeSocket) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

// decodedFrames unmarshals every recorded frame into a generic map.
func (f *fakeSocket) decodedFrames(t *testing.T) []map[string]interface{} {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(f.frames))
	for _, frame := range f.frames {
		var m map[string]interface{}
		if err := json.Unmarshal(frame, &m); err != nil {
			t.Fatalf("undecodable frame %q: %v", frame, err)
		}
		out = append(out, m)
	}
	return out
}

func waitForFrames(t *testing.T, sock *fakeSocket, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sock.frameCount() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d frames, got %d", n, sock.frameCount())
}

// fakeStore is the minimal in-memory SessionStore the router needs.
type fakeStore struct {
	mu                sync.Mutex
	sessions          map[string]*types.Session
	transcripts       []*types.Transcript
	students          map[string]int
	translationCalls  int
	translationCounts []int
	touchCalls        int
	countCalls        int
}

var _ interfaces.SessionStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]*types.Session),
		students: make(map[string]int),
	}
}

func (f *fakeStore) CreateSession(_ context.Context, s *types.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := *s
	f.sessions[s.ID] = &dup
	return nil
}

func (f *fakeStore) GetSessionByID(_ context.Context, id string) (*types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		dup := *s
		return &dup, nil
	}
	return nil, interfaces.ErrSessionNotFound
}

func (f *fakeStore) GetAllActiveSessions(context.Context) ([]*types.Session, error) {
	return nil, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, _ string, _ interfaces.SessionUpdate) error {
	return nil
}

func (f *fakeStore) AddStudent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[id]++
	return nil
}

func (f *fakeStore) AddTranslations(_ context.Context, _ string, count int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translationCalls++
	f.translationCounts = append(f.translationCounts, count)
	return nil
}

func (f *fakeStore) RecordTranscript(_ context.Context, tr *types.Transcript) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts = append(f.transcripts, tr)
	return nil
}

func (f *fakeStore) GetTranscriptCountBySession(context.Context, string) (int, error) {
	return 0, nil
}

func (f *fakeStore) GetRecentSessionActivity(context.Context) ([]*types.SessionActivity, error) {
	return nil, nil
}

func (f *fakeStore) CountActiveSessions(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return len(f.sessions), nil
}

func (f *fakeStore) TouchActivity(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchCalls++
	return nil
}

func (f *fakeStore) HealthCheck(context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func (f *fakeStore) transcriptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcripts)
}
