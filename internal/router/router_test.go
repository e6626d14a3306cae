package router

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/internal/fallback"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/providers"
	"github.com/yogami/AIVoiceTranslator-sub012/internal/registry"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// countingTranslator returns "[lang] text" and counts invocations per
// target language.
type countingTranslator struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingTranslator() *countingTranslator {
	return &countingTranslator{calls: make(map[string]int)}
}

func (c *countingTranslator) chain() *fallback.Invoker[providers.TranslationRequest, providers.Translation] {
	return fallback.NewInvoker(
		"translation",
		func(req providers.TranslationRequest) providers.Translation {
			return providers.Translation{Text: req.Text}
		},
		[]fallback.Provider[providers.TranslationRequest, providers.Translation]{{
			Name: "stub",
			Invoke: func(_ context.Context, req providers.TranslationRequest) (providers.Translation, error) {
				c.mu.Lock()
				c.calls[req.TargetLanguage]++
				c.mu.Unlock()
				return providers.Translation{Text: "[" + req.TargetLanguage + "] " + req.Text}, nil
			},
		}},
	)
}

func (c *countingTranslator) callsFor(lang string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[lang]
}

func stubTranscriber(text string) *fallback.Invoker[providers.TranscriptionRequest, providers.Transcription] {
	return fallback.NewInvoker(
		"transcription",
		func(providers.TranscriptionRequest) providers.Transcription { return providers.Transcription{} },
		[]fallback.Provider[providers.TranscriptionRequest, providers.Transcription]{{
			Name: "stub",
			Invoke: func(context.Context, providers.TranscriptionRequest) (providers.Transcription, error) {
				return providers.Transcription{Text: text}, nil
			},
		}},
	)
}

type routerFixture struct {
	router     *Router
	registry   *registry.Registry
	store      *fakeStore
	translator *countingTranslator
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()
	reg := registry.NewRegistry()
	store := newFakeStore()
	translator := newCountingTranslator()
	r := NewRouter(reg, store, translator.chain(), stubTranscriber(""),
		providers.NewSynthesisChains(providers.Config{}), nil)
	return &routerFixture{router: r, registry: reg, store: store, translator: translator}
}

func (fx *routerFixture) connect(t *testing.T, role, language string) (*registry.Connection, *fakeSocket) {
	t.Helper()
	sock := &fakeSocket{}
	conn := registry.NewConnection(sock, 16, time.Second)
	t.Cleanup(func() { _ = conn.Close() })

	err := fx.router.Route(context.Background(), conn, &types.Envelope{
		Type:         types.EventRegister,
		Role:         role,
		LanguageCode: language,
	})
	if err != nil {
		t.Fatalf("register %s/%s failed: %v", role, language, err)
	}
	waitForFrames(t, sock, 1) // registration ack
	return conn, sock
}

func TestBroadcastFansOutPerLanguage(t *testing.T) {
	fx := newFixture(t)
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")
	_, es1 := fx.connect(t, types.RoleStudent, "es")
	_, es2 := fx.connect(t, types.RoleStudent, "es")
	_, fr := fx.connect(t, types.RoleStudent, "fr")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type:    types.EventTranscription,
		Text:    "Hello",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("transcription failed: %v", err)
	}

	// Each student gets exactly one translation event after the ack.
	for _, sock := range []*fakeSocket{es1, es2, fr} {
		waitForFrames(t, sock, 2)
		if n := sock.frameCount(); n != 2 {
			t.Errorf("student received %d frames, want 2", n)
		}
	}

	// One provider call per distinct language, not per student.
	if got := fx.translator.callsFor("es"); got != 1 {
		t.Errorf("es translated %d times, want 1", got)
	}
	if got := fx.translator.callsFor("fr"); got != 1 {
		t.Errorf("fr translated %d times, want 1", got)
	}

	frames := es1.decodedFrames(t)
	msg := frames[1]
	if msg["type"] != types.EventTranslation {
		t.Errorf("frame type = %v, want translation", msg["type"])
	}
	if msg["translatedText"] != "[es] Hello" {
		t.Errorf("translatedText = %v", msg["translatedText"])
	}
	if msg["sourceLanguage"] != "en-US" || msg["targetLanguage"] != "es" {
		t.Errorf("language pair = %v -> %v", msg["sourceLanguage"], msg["targetLanguage"])
	}

	frFrames := fr.decodedFrames(t)
	if frFrames[1]["translatedText"] != "[fr] Hello" {
		t.Errorf("fr translatedText = %v", frFrames[1]["translatedText"])
	}

	// Delivery stats recorded once for the whole fan-out.
	fx.store.mu.Lock()
	calls, counts := fx.store.translationCalls, fx.store.translationCounts
	fx.store.mu.Unlock()
	if calls != 1 || len(counts) != 1 || counts[0] != 3 {
		t.Errorf("AddTranslations calls=%d counts=%v, want one call with 3", calls, counts)
	}
}

func TestStudentsShareTeacherSession(t *testing.T) {
	fx := newFixture(t)
	teacher, teacherSock := fx.connect(t, types.RoleTeacher, "en-US")
	student, studentSock := fx.connect(t, types.RoleStudent, "es")

	if student.SessionID() != teacher.SessionID() {
		t.Errorf("student session %q, want teacher session %q", student.SessionID(), teacher.SessionID())
	}

	for _, sock := range []*fakeSocket{teacherSock, studentSock} {
		ack := sock.decodedFrames(t)[0]
		if ack["type"] != types.EventConnection || ack["status"] != "connected" {
			t.Errorf("unexpected ack: %v", ack)
		}
		if ack["sessionId"] != teacher.SessionID() {
			t.Errorf("ack session = %v, want %q", ack["sessionId"], teacher.SessionID())
		}
	}

	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	if len(fx.store.sessions) != 1 {
		t.Errorf("session rows = %d, want 1", len(fx.store.sessions))
	}
	if fx.store.students[teacher.SessionID()] != 1 {
		t.Errorf("student count = %d, want 1", fx.store.students[teacher.SessionID()])
	}
}

func TestRegisterValidation(t *testing.T) {
	fx := newFixture(t)
	sock := &fakeSocket{}
	conn := registry.NewConnection(sock, 16, time.Second)
	defer func() { _ = conn.Close() }()

	err := fx.router.Route(context.Background(), conn, &types.Envelope{
		Type: types.EventRegister,
		Role: "admin",
	})
	if !errors.Is(err, types.ErrInvalidRole) {
		t.Errorf("bad role: got %v", err)
	}

	err = fx.router.Route(context.Background(), conn, &types.Envelope{
		Type: types.EventRegister,
		Role: types.RoleStudent,
	})
	if !errors.Is(err, ErrStudentLanguageRequired) {
		t.Errorf("student without language: got %v", err)
	}
}

func TestOnlyTeachersBroadcast(t *testing.T) {
	fx := newFixture(t)
	fx.connect(t, types.RoleTeacher, "en-US")
	student, _ := fx.connect(t, types.RoleStudent, "es")

	err := fx.router.Route(context.Background(), student, &types.Envelope{
		Type: types.EventTranscription,
		Text: "Hola",
	})
	if !errors.Is(err, ErrNotTeacher) {
		t.Errorf("student broadcast: got %v", err)
	}
	if got := fx.translator.callsFor("es"); got != 0 {
		t.Errorf("student broadcast reached the translator %d times", got)
	}
}

func TestEmptyTranscriptionRejected(t *testing.T) {
	fx := newFixture(t)
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type: types.EventTranscription,
	})
	if !errors.Is(err, ErrEmptyTranscription) {
		t.Errorf("empty transcription: got %v", err)
	}
}

func TestInterimTranscriptionNotRecorded(t *testing.T) {
	fx := newFixture(t)
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")
	fx.connect(t, types.RoleStudent, "es")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type:    types.EventTranscription,
		Text:    "partial...",
		IsFinal: false,
	})
	if err != nil {
		t.Fatalf("interim transcription failed: %v", err)
	}
	if got := fx.store.transcriptCount(); got != 0 {
		t.Errorf("interim transcript was recorded, count = %d", got)
	}

	err = fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type:    types.EventTranscription,
		Text:    "complete sentence",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("final transcription failed: %v", err)
	}
	if got := fx.store.transcriptCount(); got != 1 {
		t.Errorf("final transcript count = %d, want 1", got)
	}
}

func TestBroadcastWithoutStudents(t *testing.T) {
	fx := newFixture(t)
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type:    types.EventTranscription,
		Text:    "anyone there?",
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("broadcast without students failed: %v", err)
	}

	fx.store.mu.Lock()
	defer fx.store.mu.Unlock()
	if fx.store.translationCalls != 0 {
		t.Error("no delivery stats expected without students")
	}
}

func TestAudioEventTranscribesAndFansOut(t *testing.T) {
	reg := registry.NewRegistry()
	store := newFakeStore()
	translator := newCountingTranslator()
	r := NewRouter(reg, store, translator.chain(), stubTranscriber("spoken words"),
		providers.NewSynthesisChains(providers.Config{}), nil)
	fx := &routerFixture{router: r, registry: reg, store: store, translator: translator}

	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")
	_, studentSock := fx.connect(t, types.RoleStudent, "es")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type:    types.EventAudio,
		Data:    base64.StdEncoding.EncodeToString([]byte("fake-audio")),
		IsFinal: true,
	})
	if err != nil {
		t.Fatalf("audio event failed: %v", err)
	}

	waitForFrames(t, studentSock, 2)
	msg := studentSock.decodedFrames(t)[1]
	if msg["translatedText"] != "[es] spoken words" {
		t.Errorf("translatedText = %v", msg["translatedText"])
	}
}

func TestAudioEventWithDegradedTranscription(t *testing.T) {
	fx := newFixture(t) // transcriber stub yields empty text
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")
	_, studentSock := fx.connect(t, types.RoleStudent, "es")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{
		Type: types.EventAudio,
		Data: base64.StdEncoding.EncodeToString([]byte("unintelligible")),
	})
	if err != nil {
		t.Fatalf("audio event failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if n := studentSock.frameCount(); n != 1 {
		t.Errorf("empty transcript should broadcast nothing, student has %d frames", n)
	}
}

func TestAudioEventRejectsBadPayload(t *testing.T) {
	fx := newFixture(t)
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")

	for _, data := range []string{"", "not-base64!!!"} {
		err := fx.router.Route(context.Background(), teacher, &types.Envelope{
			Type: types.EventAudio,
			Data: data,
		})
		if !errors.Is(err, ErrInvalidAudioPayload) {
			t.Errorf("data %q: got %v", data, err)
		}
	}
}

func TestSettingsEventMerges(t *testing.T) {
	fx := newFixture(t)
	student, _ := fx.connect(t, types.RoleStudent, "es")

	err := fx.router.Route(context.Background(), student, &types.Envelope{
		Type:     types.EventSettings,
		Settings: map[string]interface{}{SettingTTSProvider: "elevenlabs"},
	})
	if err != nil {
		t.Fatalf("settings event failed: %v", err)
	}
	if got := student.SettingString(SettingTTSProvider); got != "elevenlabs" {
		t.Errorf("setting = %q, want elevenlabs", got)
	}

	err = fx.router.Route(context.Background(), student, &types.Envelope{Type: types.EventSettings})
	if !errors.Is(err, ErrEmptySettings) {
		t.Errorf("empty settings: got %v", err)
	}
}

func TestUnknownEventType(t *testing.T) {
	fx := newFixture(t)
	teacher, _ := fx.connect(t, types.RoleTeacher, "en-US")

	err := fx.router.Route(context.Background(), teacher, &types.Envelope{Type: "bogus"})
	if !errors.Is(err, types.ErrInvalidEventType) {
		t.Errorf("unknown event: got %v", err)
	}
}

func TestGroupByTTSPreference(t *testing.T) {
	reg := registry.NewRegistry()
	mk := func(pref string) *registry.Connection {
		conn := registry.NewConnection(&fakeSocket{}, 4, time.Second)
		conn, _ = reg.Add(conn, types.RoleStudent, "es")
		if pref != "" {
			reg.UpdateSettings(conn, map[string]interface{}{SettingTTSProvider: pref})
		}
		return conn
	}
	a, b, c := mk("openai"), mk("openai"), mk("")

	groups := groupByTTSPreference([]*registry.Connection{a, b, c})
	if len(groups["openai"]) != 2 {
		t.Errorf("openai group = %d, want 2", len(groups["openai"]))
	}
	if len(groups[""]) != 1 {
		t.Errorf("default group = %d, want 1", len(groups[""]))
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter()
	for i := 0; i < rateLimit; i++ {
		if !rl.Allow("s1") {
			t.Fatalf("request %d denied inside the window", i)
		}
	}
	if rl.Allow("s1") {
		t.Error("request past the limit should be denied")
	}
	if !rl.Allow("s2") {
		t.Error("another session has its own budget")
	}

	rl.mu.Lock()
	rl.sessions["s1"].windowStart = time.Now().Add(-2 * rateWindow)
	rl.mu.Unlock()
	if !rl.Allow("s1") {
		t.Error("expired window should reset the budget")
	}

	rl.mu.Lock()
	rl.sessions["s2"].windowStart = time.Now().Add(-2 * rateStaleWindow)
	rl.mu.Unlock()
	rl.Cleanup()
	rl.mu.Lock()
	_, ok := rl.sessions["s2"]
	rl.mu.Unlock()
	if ok {
		t.Error("stale session should be dropped by Cleanup")
	}
}
