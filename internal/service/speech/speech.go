// Package speech defines the interface to continuous speech recognition
// backends.
//
// A session is a push-style audio sink paired with an event stream. The
// stream carries a closed set of variants (Interim, Final, Cancelled and
// Stopped) consumed via a message loop, so there is no handler
// subscribe/unsubscribe across session restarts. Cancelled and Stopped are
// terminal; the backend closes the channel after emitting one of them.
package speech

import (
	"context"
	"time"
)

// EventKind enumerates the recognition event variants.
type EventKind int

const (
	// EventInterim is recognized-so-far text that may still change.
	EventInterim EventKind = iota
	// EventFinal is a confirmed complete utterance.
	EventFinal
	// EventCancelled reports a backend error; the session is dead.
	EventCancelled
	// EventStopped reports a clean end of the session.
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventCancelled:
		return "cancelled"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is one message from a recognition session.
//
// OffsetTicks is the span's start offset in 100ns ticks, measured from the
// start of the session's audio stream, so it is not comparable across
// sessions. Language is the detected source language when the backend
// reports one.
type Event struct {
	Kind        EventKind
	Text        string
	OffsetTicks uint64
	Duration    time.Duration
	Language    string
	Err         error
	Code        string
}

// SessionConfig selects the language behavior of one session.
type SessionConfig struct {
	// Language is the fixed source language, or LanguageAuto for detection
	// across CandidateLanguages.
	Language           string
	CandidateLanguages []string
	SampleRateHz       int32
}

// LanguageAuto requests language auto-detection for a session.
const LanguageAuto = "auto"

// Session is one live continuous-recognition stream.
type Session interface {
	// WriteAudio pushes raw PCM bytes into the session's sink.
	WriteAudio(p []byte) error

	// Events returns the session's event stream. The channel is closed
	// after a Cancelled or Stopped event.
	Events() <-chan Event

	// Stop ends the session. The backend emits Stopped (or Cancelled) and
	// closes the event channel. Idempotent.
	Stop(ctx context.Context) error
}

// Recognizer creates continuous recognition sessions.
type Recognizer interface {
	StartContinuous(ctx context.Context, cfg SessionConfig) (Session, error)
}
