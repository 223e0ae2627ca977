package recognition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-caption-service/internal/models"
	"live-caption-service/internal/service/speech"
)

type fakeSession struct {
	mu      sync.Mutex
	frames  int
	stopped bool
	events  chan speech.Event
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan speech.Event, 16)}
}

func (s *fakeSession) Events() <-chan speech.Event { return s.events }

func (s *fakeSession) WriteAudio(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *fakeSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.events <- speech.Event{Kind: speech.EventStopped}
	close(s.events)
	return nil
}

func (s *fakeSession) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *fakeSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeRecognizer struct {
	mu         sync.Mutex
	failLangs  map[string]bool
	startDelay time.Duration
	starts     int
	sessions   map[string]*fakeSession
	configs    []speech.SessionConfig
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{sessions: make(map[string]*fakeSession)}
}

func (r *fakeRecognizer) StartContinuous(ctx context.Context, cfg speech.SessionConfig) (speech.Session, error) {
	if r.startDelay > 0 {
		time.Sleep(r.startDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	r.configs = append(r.configs, cfg)
	if r.failLangs[cfg.Language] {
		return nil, errors.New("backend unavailable")
	}
	s := newFakeSession()
	r.sessions[cfg.Language] = s
	return s, nil
}

func (r *fakeRecognizer) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type captureHandler struct {
	mu       sync.Mutex
	interims []models.Utterance
	finals   []models.Utterance
}

func (h *captureHandler) HandleInterim(ctx context.Context, u models.Utterance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interims = append(h.interims, u)
}

func (h *captureHandler) HandleFinal(ctx context.Context, u models.Utterance) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finals = append(h.finals, u)
}

func (h *captureHandler) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.interims), len(h.finals)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func frame() []byte { return make([]byte, 320) }

func TestManager_LazyStartPerLanguage(t *testing.T) {
	rec := newFakeRecognizer()
	m := NewManager(rec, &captureHandler{}, Config{
		SourceLanguages: []string{"en-US", "zh-CN"},
	}, zerolog.Nop(), nil)

	if m.State() != StateIdle {
		t.Fatalf("expected IDLE before audio, got %s", m.State())
	}

	m.AppendAudio(context.Background(), frame(), "")

	if m.State() != StateRunning {
		t.Errorf("expected RUNNING, got %s", m.State())
	}
	if rec.startCount() != 2 {
		t.Errorf("expected 2 sessions, got %d", rec.startCount())
	}
	for lang, s := range rec.sessions {
		if s.frameCount() != 1 {
			t.Errorf("session %s: expected 1 frame, got %d", lang, s.frameCount())
		}
	}
}

func TestManager_SingleStartGuard(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startDelay = 20 * time.Millisecond
	m := NewManager(rec, &captureHandler{}, Config{
		SourceLanguages: []string{"en-US"},
	}, zerolog.Nop(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AppendAudio(context.Background(), frame(), "")
		}()
	}
	wg.Wait()

	if rec.startCount() != 1 {
		t.Errorf("expected exactly 1 session start, got %d", rec.startCount())
	}
	if rec.sessions["en-US"].frameCount() != 10 {
		t.Errorf("expected all 10 frames delivered, got %d", rec.sessions["en-US"].frameCount())
	}
}

func TestManager_AutoDetectSingleSession(t *testing.T) {
	rec := newFakeRecognizer()
	m := NewManager(rec, &captureHandler{}, Config{
		SourceLanguages: []string{"en-US", "zh-CN", "ja-JP"},
		AutoDetect:      true,
	}, zerolog.Nop(), nil)

	m.AppendAudio(context.Background(), frame(), "")

	if rec.startCount() != 1 {
		t.Fatalf("expected 1 detecting session, got %d", rec.startCount())
	}
	cfg := rec.configs[0]
	if cfg.Language != speech.LanguageAuto {
		t.Errorf("expected auto language, got %q", cfg.Language)
	}
	if len(cfg.CandidateLanguages) != 3 {
		t.Errorf("expected 3 candidate languages, got %d", len(cfg.CandidateLanguages))
	}
}

func TestManager_PartialStartFailure(t *testing.T) {
	rec := newFakeRecognizer()
	rec.failLangs = map[string]bool{"zh-CN": true}
	m := NewManager(rec, &captureHandler{}, Config{
		SourceLanguages: []string{"en-US", "zh-CN"},
	}, zerolog.Nop(), nil)

	m.AppendAudio(context.Background(), frame(), "")

	if m.State() != StateRunning {
		t.Errorf("expected RUNNING with the surviving session, got %s", m.State())
	}
	if rec.sessions["en-US"].frameCount() != 1 {
		t.Errorf("expected the surviving session to get the frame")
	}
}

func TestManager_AllStartsFailStaysIdle(t *testing.T) {
	rec := newFakeRecognizer()
	rec.failLangs = map[string]bool{"en-US": true}
	m := NewManager(rec, &captureHandler{}, Config{
		SourceLanguages: []string{"en-US"},
	}, zerolog.Nop(), nil)

	m.AppendAudio(context.Background(), frame(), "")
	if m.State() != StateIdle {
		t.Errorf("expected IDLE after failed start, got %s", m.State())
	}

	// a later frame retries the start
	m.AppendAudio(context.Background(), frame(), "")
	if rec.startCount() != 2 {
		t.Errorf("expected a retry on the next frame, got %d starts", rec.startCount())
	}
}

func TestManager_InterimThrottling(t *testing.T) {
	rec := newFakeRecognizer()
	h := &captureHandler{}
	m := NewManager(rec, h, Config{SourceLanguages: []string{"en-US"}}, zerolog.Nop(), nil)
	m.AppendAudio(context.Background(), frame(), "")

	s := rec.sessions["en-US"]
	s.events <- speech.Event{Kind: speech.EventInterim, Text: "hello"}
	s.events <- speech.Event{Kind: speech.EventInterim, Text: "hello wor"}

	waitFor(t, func() bool {
		interims, _ := h.counts()
		return interims >= 1
	})
	// give the second event time to be (wrongly) delivered
	time.Sleep(50 * time.Millisecond)

	interims, _ := h.counts()
	if interims != 1 {
		t.Errorf("expected 1 interim after throttling, got %d", interims)
	}
}

func TestManager_EmptyTextSkipped(t *testing.T) {
	rec := newFakeRecognizer()
	h := &captureHandler{}
	m := NewManager(rec, h, Config{SourceLanguages: []string{"en-US"}}, zerolog.Nop(), nil)
	m.AppendAudio(context.Background(), frame(), "")

	s := rec.sessions["en-US"]
	s.events <- speech.Event{Kind: speech.EventInterim, Text: ""}
	s.events <- speech.Event{Kind: speech.EventFinal, Text: ""}
	s.events <- speech.Event{Kind: speech.EventFinal, Text: "done"}

	waitFor(t, func() bool {
		_, finals := h.counts()
		return finals == 1
	})
	interims, _ := h.counts()
	if interims != 0 {
		t.Errorf("expected empty interim to be skipped, got %d", interims)
	}
}

func TestManager_FinalCarriesSessionLanguage(t *testing.T) {
	rec := newFakeRecognizer()
	h := &captureHandler{}
	m := NewManager(rec, h, Config{SourceLanguages: []string{"zh-CN"}}, zerolog.Nop(), nil)
	m.AppendAudio(context.Background(), frame(), "")

	rec.sessions["zh-CN"].events <- speech.Event{
		Kind:        speech.EventFinal,
		Text:        "你好",
		OffsetTicks: 50_000_000,
		Duration:    2 * time.Second,
		Language:    "cmn-Hans-CN", // backend spelling is ignored for fixed sessions
	}

	waitFor(t, func() bool {
		_, finals := h.counts()
		return finals == 1
	})

	h.mu.Lock()
	u := h.finals[0]
	h.mu.Unlock()
	if u.SourceLang != "zh-CN" {
		t.Errorf("expected sourceLang zh-CN, got %q", u.SourceLang)
	}
	if u.OffsetTicks != 50_000_000 || u.Duration != 2*time.Second || !u.IsFinal {
		t.Errorf("utterance fields not carried through: %+v", u)
	}
}

func TestManager_AutoDetectFallsBackToPrimaryLanguage(t *testing.T) {
	rec := newFakeRecognizer()
	h := &captureHandler{}
	m := NewManager(rec, h, Config{
		SourceLanguages: []string{"zh-CN", "en-US"},
		AutoDetect:      true,
	}, zerolog.Nop(), nil)
	m.AppendAudio(context.Background(), frame(), "")

	s := rec.sessions[speech.LanguageAuto]
	s.events <- speech.Event{Kind: speech.EventFinal, Text: "detected", Language: "en-US"}
	s.events <- speech.Event{Kind: speech.EventFinal, Text: "undetected"} // no language reported

	waitFor(t, func() bool {
		_, finals := h.counts()
		return finals == 2
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finals[0].SourceLang != "en-US" {
		t.Errorf("detected language must be kept, got %q", h.finals[0].SourceLang)
	}
	if h.finals[1].SourceLang != "zh-CN" {
		t.Errorf("expected fallback to the primary candidate, got %q", h.finals[1].SourceLang)
	}
}

func TestManager_CancelledSessionDetaches(t *testing.T) {
	rec := newFakeRecognizer()
	m := NewManager(rec, &captureHandler{}, Config{
		SourceLanguages: []string{"en-US", "zh-CN"},
	}, zerolog.Nop(), nil)
	m.AppendAudio(context.Background(), frame(), "")

	dead := rec.sessions["zh-CN"]
	dead.events <- speech.Event{Kind: speech.EventCancelled, Err: errors.New("quota"), Code: "RESOURCE_EXHAUSTED"}

	// wait for the detach before sending more audio
	waitFor(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, ok := m.sessions["zh-CN"]
		return !ok
	})

	before := dead.frameCount()
	m.AppendAudio(context.Background(), frame(), "")

	if m.State() != StateRunning {
		t.Errorf("surviving session should keep the manager RUNNING, got %s", m.State())
	}
	if dead.frameCount() != before {
		t.Error("audio still flowing to a cancelled session")
	}
	if rec.sessions["en-US"].frameCount() != 2 {
		t.Errorf("expected surviving session to get both frames, got %d", rec.sessions["en-US"].frameCount())
	}
	if rec.startCount() != 2 {
		t.Errorf("cancelled session must not be restarted, got %d starts", rec.startCount())
	}
}

func TestManager_ShutdownIsIdempotent(t *testing.T) {
	rec := newFakeRecognizer()
	m := NewManager(rec, &captureHandler{}, Config{SourceLanguages: []string{"en-US"}}, zerolog.Nop(), nil)
	m.AppendAudio(context.Background(), frame(), "")

	m.Shutdown(context.Background())
	m.Shutdown(context.Background())

	if m.State() != StateStopped {
		t.Errorf("expected STOPPED, got %s", m.State())
	}
	if !rec.sessions["en-US"].isStopped() {
		t.Error("session not stopped")
	}

	// audio after shutdown is dropped, never restarts a session
	m.AppendAudio(context.Background(), frame(), "")
	if rec.startCount() != 1 {
		t.Errorf("expected no restart after shutdown, got %d starts", rec.startCount())
	}
}

func TestManager_SpeakerHintFlowsToUtterance(t *testing.T) {
	rec := newFakeRecognizer()
	h := &captureHandler{}
	m := NewManager(rec, h, Config{SourceLanguages: []string{"en-US"}}, zerolog.Nop(), nil)

	loud := make([]byte, 320)
	for i := 0; i < len(loud); i += 2 {
		loud[i] = 0xE8
		loud[i+1] = 0x03 // 1000 in int16 LE
	}
	m.AppendAudio(context.Background(), loud, "alice")

	rec.sessions["en-US"].events <- speech.Event{Kind: speech.EventFinal, Text: "hi"}
	waitFor(t, func() bool {
		_, finals := h.counts()
		return finals == 1
	})

	h.mu.Lock()
	u := h.finals[0]
	h.mu.Unlock()
	if u.SpeakerID != "alice" {
		t.Errorf("expected speaker alice, got %q", u.SpeakerID)
	}
}
