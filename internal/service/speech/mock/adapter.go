// Package mock provides a scripted recognition backend for tests and for
// running the service without cloud credentials. It simulates realistic
// behavior: progressive interim results as audio arrives and exactly one
// final per utterance.
package mock

import (
	"context"
	"sync"
	"time"

	"live-caption-service/internal/service/speech"
)

// ScriptedUtterance is one utterance the adapter plays back.
type ScriptedUtterance struct {
	Partials []string
	Final    string
	Language string
}

// DefaultScript provides sample utterances for simulation.
var DefaultScript = []ScriptedUtterance{
	{
		Partials: []string{"Good", "Good morning", "Good morning every"},
		Final:    "Good morning everyone",
		Language: "en-US",
	},
	{
		Partials: []string{"Let's", "Let's start with"},
		Final:    "Let's start with the status update",
		Language: "en-US",
	},
	{
		Partials: []string{"大家", "大家好"},
		Final:    "大家好，我们开始吧",
		Language: "zh-CN",
	},
}

// Recognizer implements speech.Recognizer with scripted sessions.
type Recognizer struct {
	// Script overrides DefaultScript when set.
	Script []ScriptedUtterance
	// Delay before each emitted event. Zero means synchronous emission,
	// which tests rely on.
	Delay time.Duration
}

func New() *Recognizer { return &Recognizer{} }

func (r *Recognizer) StartContinuous(ctx context.Context, cfg speech.SessionConfig) (speech.Session, error) {
	script := r.Script
	if script == nil {
		script = DefaultScript
	}
	return &session{
		script: script,
		lang:   cfg.Language,
		delay:  r.Delay,
		events: make(chan speech.Event, 64),
	}, nil
}

type session struct {
	script []ScriptedUtterance
	lang   string
	delay  time.Duration
	events chan speech.Event

	mu           sync.Mutex
	utterance    int
	partialIndex int
	stopped      bool
	ticks        uint64
}

func (s *session) Events() <-chan speech.Event { return s.events }

// WriteAudio advances the script: one interim per frame, then the final once
// all partials for the current utterance have been sent.
func (s *session) WriteAudio(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.utterance >= len(s.script) {
		return nil
	}

	utt := s.script[s.utterance]
	lang := utt.Language
	if lang == "" {
		lang = s.lang
	}

	// 20ms of audio per frame at 16kHz/16-bit, in 100ns ticks
	const frameTicks = 20 * 10_000

	if s.partialIndex < len(utt.Partials) {
		ev := speech.Event{
			Kind:        speech.EventInterim,
			Text:        utt.Partials[s.partialIndex],
			OffsetTicks: s.ticks,
			Duration:    time.Duration(s.partialIndex+1) * frameTicks * 100 * time.Nanosecond,
			Language:    lang,
		}
		s.partialIndex++
		s.emit(ev)
		return nil
	}

	ev := speech.Event{
		Kind:        speech.EventFinal,
		Text:        utt.Final,
		OffsetTicks: s.ticks,
		Duration:    time.Duration(len(utt.Partials)+1) * frameTicks * 100 * time.Nanosecond,
		Language:    lang,
	}
	s.ticks += uint64(len(utt.Partials)+1) * frameTicks
	s.utterance++
	s.partialIndex = 0
	s.emit(ev)
	return nil
}

func (s *session) emit(ev speech.Event) {
	if s.delay > 0 {
		go func() {
			time.Sleep(s.delay)
			s.mu.Lock()
			defer s.mu.Unlock()
			if !s.stopped {
				s.events <- ev
			}
		}()
		return
	}
	select {
	case s.events <- ev:
	default:
		// full buffer: drop rather than block the writer
	}
}

func (s *session) Stop(ctx context.Context) error {
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
