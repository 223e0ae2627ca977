// Package recognition owns the continuous-recognition sessions for one call
// and relays their interim/final events into the caption pipeline.
package recognition

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/service/attribution"
	"live-caption-service/internal/service/speech"
)

// Handler consumes recognized utterances. Implementations must not block for
// long; translation and distribution run on the handler's side.
type Handler interface {
	HandleInterim(ctx context.Context, u models.Utterance)
	HandleFinal(ctx context.Context, u models.Utterance)
}

// Config describes the sessions a Manager creates.
type Config struct {
	// SourceLanguages lists the languages to recognize. One session is
	// created per language. With AutoDetect set, a single session is
	// created instead, detecting across SourceLanguages.
	SourceLanguages []string
	AutoDetect      bool
	SampleRateHz    int32
}

// Manager drives recognition for one call. Sessions are created lazily on
// the first audio frame and run until Shutdown; a failed session is logged
// and left stopped, never restarted.
type Manager struct {
	recognizer speech.Recognizer
	handler    Handler
	cfg        Config
	log        zerolog.Logger
	metrics    *metrics.Metrics

	tracker  *attribution.Tracker
	throttle *Throttle

	mu        sync.Mutex
	state     State
	sessions  map[string]speech.Session
	startDone chan struct{}
	loops     sync.WaitGroup
}

func NewManager(recognizer speech.Recognizer, handler Handler, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.Default
	}
	return &Manager{
		recognizer: recognizer,
		handler:    handler,
		cfg:        cfg,
		log:        log,
		metrics:    m,
		tracker:    attribution.NewTracker(),
		throttle:   NewThrottle(MinInterimInterval),
		state:      StateIdle,
		sessions:   make(map[string]speech.Session),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentSpeaker returns the sticky attributed speaker id.
func (m *Manager) CurrentSpeaker() string { return m.tracker.Current() }

// AppendAudio ingests one PCM frame with an optional active-speaker hint.
// The first call starts the sessions; concurrent first frames are serialized
// by the single-start guard. Downstream failures never propagate to the
// caller.
func (m *Manager) AppendAudio(ctx context.Context, frame []byte, hintedSpeakerID string) {
	if len(frame) == 0 {
		return
	}
	if !m.ensureStarted(ctx) {
		return
	}

	if err := m.tracker.Observe(hintedSpeakerID, frame); err != nil {
		m.log.Debug().Err(err).Msg("energy computation failed, accepted speaker hint as-is")
	}

	// the media layer reuses its frame buffer; forward a copy
	buf := make([]byte, len(frame))
	copy(buf, frame)

	m.metrics.RecordAudioReceived(len(buf))

	m.mu.Lock()
	sessions := make(map[string]speech.Session, len(m.sessions))
	for lang, s := range m.sessions {
		sessions[lang] = s
	}
	m.mu.Unlock()

	for lang, s := range sessions {
		if err := s.WriteAudio(buf); err != nil {
			m.log.Warn().Err(err).Str("sourceLang", lang).Msg("audio write failed")
		}
	}
}

// ensureStarted transitions Idle→Starting→Running on the first frame and
// makes late arrivals wait for the in-flight start. Returns false when the
// manager is draining or stopped, or when no session could be created.
func (m *Manager) ensureStarted(ctx context.Context) bool {
	m.mu.Lock()
	switch m.state {
	case StateRunning:
		m.mu.Unlock()
		return true
	case StateDraining, StateStopped:
		m.mu.Unlock()
		return false
	case StateStarting:
		done := m.startDone
		m.mu.Unlock()
		<-done
		return m.State() == StateRunning
	}

	// Idle: this goroutine owns the start
	m.state = StateStarting
	m.startDone = make(chan struct{})
	done := m.startDone
	m.mu.Unlock()

	started := m.startSessions(ctx)

	m.mu.Lock()
	if started == 0 {
		// unable to create any session: log happened per-language; the
		// pipeline stays idle so a later frame may retry
		m.state = StateIdle
	} else if m.state == StateStarting {
		m.state = StateRunning
	}
	m.mu.Unlock()
	close(done)
	return started > 0
}

func (m *Manager) startSessions(ctx context.Context) int {
	configs := make(map[string]speech.SessionConfig)
	if m.cfg.AutoDetect {
		configs[speech.LanguageAuto] = speech.SessionConfig{
			Language:           speech.LanguageAuto,
			CandidateLanguages: m.cfg.SourceLanguages,
			SampleRateHz:       m.cfg.SampleRateHz,
		}
	} else {
		for _, lang := range m.cfg.SourceLanguages {
			configs[lang] = speech.SessionConfig{
				Language:     lang,
				SampleRateHz: m.cfg.SampleRateHz,
			}
		}
	}

	started := 0
	for lang, cfg := range configs {
		s, err := m.recognizer.StartContinuous(ctx, cfg)
		if err != nil {
			m.log.Error().Err(err).Str("sourceLang", lang).Msg("failed to create recognition session")
			m.metrics.RecordSessionFailed()
			continue
		}
		m.mu.Lock()
		m.sessions[lang] = s
		m.mu.Unlock()
		m.metrics.RecordSessionStart()

		m.loops.Add(1)
		go m.eventLoop(lang, s)
		started++
	}
	return started
}

// eventLoop consumes one session's event stream until its terminal event.
func (m *Manager) eventLoop(lang string, s speech.Session) {
	defer m.loops.Done()
	log := m.log.With().Str("sourceLang", lang).Logger()

	for ev := range s.Events() {
		switch ev.Kind {
		case speech.EventInterim:
			m.onInterim(lang, ev)
		case speech.EventFinal:
			m.onFinal(lang, ev)
		case speech.EventCancelled:
			log.Error().Err(ev.Err).Str("code", ev.Code).Msg("recognition session cancelled")
			m.metrics.RecordSessionFailed()
			m.detach(lang)
		case speech.EventStopped:
			log.Info().Msg("recognition session stopped")
			m.detach(lang)
		}
	}
}

// detach removes a dead session so audio stops flowing to it. Other
// sessions are unaffected.
func (m *Manager) detach(lang string) {
	m.mu.Lock()
	if _, ok := m.sessions[lang]; ok {
		delete(m.sessions, lang)
		m.metrics.RecordSessionEnd()
	}
	m.mu.Unlock()
}

func (m *Manager) onInterim(sessionLang string, ev speech.Event) {
	if ev.Text == "" {
		return
	}
	speaker := m.tracker.Current()
	if !m.throttle.Allow(speaker) {
		m.metrics.RecordInterimThrottled()
		return
	}
	m.handler.HandleInterim(context.Background(), m.utterance(sessionLang, ev, false))
}

func (m *Manager) onFinal(sessionLang string, ev speech.Event) {
	if ev.Text == "" {
		return
	}
	m.handler.HandleFinal(context.Background(), m.utterance(sessionLang, ev, true))
}

func (m *Manager) utterance(sessionLang string, ev speech.Event, final bool) models.Utterance {
	lang := ev.Language
	if sessionLang != speech.LanguageAuto {
		lang = sessionLang
	} else if (lang == "" || lang == speech.LanguageAuto) && len(m.cfg.SourceLanguages) > 0 {
		// detecting session without a reported language: the first candidate
		// is the primary, never the auto marker
		lang = m.cfg.SourceLanguages[0]
	}
	return models.Utterance{
		Text:        ev.Text,
		SourceLang:  lang,
		OffsetTicks: ev.OffsetTicks,
		Duration:    ev.Duration,
		SpeakerID:   m.tracker.Current(),
		IsFinal:     final,
	}
}

// Shutdown stops every session and waits for their event loops to finish.
// Idempotent; waits for an in-flight start so a session created after
// shutdown began cannot leak.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	startDone := m.startDone
	starting := m.state == StateStarting
	m.state = StateDraining
	m.mu.Unlock()

	if starting && startDone != nil {
		<-startDone
	}

	m.mu.Lock()
	sessions := make([]speech.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	// each stop individually guarded: one failure must not block the rest
	for _, s := range sessions {
		if err := s.Stop(ctx); err != nil {
			m.log.Warn().Err(err).Msg("session stop failed")
		}
	}

	m.loops.Wait()

	m.mu.Lock()
	m.sessions = make(map[string]speech.Session)
	m.state = StateStopped
	m.mu.Unlock()

	m.log.Info().Msg("recognition manager stopped")
}
