// Package models defines the data structures shared across the caption pipeline.
package models

import "time"

// CaptionPayload is the wire shape delivered to viewers. Field names are part
// of the contract with connected clients and must not change.
type CaptionPayload struct {
	Type        string            `json:"type"`
	MeetingID   string            `json:"meetingId"`
	Speaker     string            `json:"speaker"`
	SpeakerID   string            `json:"speakerId"`
	SourceLang  string            `json:"sourceLang"`
	Text        map[string]string `json:"text"`
	IsFinal     bool              `json:"isFinal"`
	StartMs     int64             `json:"startMs"`
	EndMs       int64             `json:"endMs"`
	RealStartMs int64             `json:"realStartMs"`
}

// Participant is a resolved speaker identity. Cached in the TTL store under
// "{meetingId}-{audioSourceId}" by the media layer when a participant joins.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Utterance is a recognized span as reported by one recognition session.
// OffsetTicks is the engine time offset in 100ns ticks, valid only within the
// session that produced it.
type Utterance struct {
	Text        string
	SourceLang  string
	OffsetTicks uint64
	Duration    time.Duration
	SpeakerID   string
	IsFinal     bool
}

// AuthMessage is the first message a viewer sends after connecting.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// SubscribeMessage selects the meeting and the viewer's preferred language.
// The server acknowledges it before delivering any caption event.
type SubscribeMessage struct {
	Type       string `json:"type"`
	MeetingID  string `json:"meetingId"`
	TargetLang string `json:"targetLang"`
}

// AudioMeta precedes a binary synthesized-audio frame on the viewer socket.
type AudioMeta struct {
	Type        string `json:"type"`
	MeetingID   string `json:"meetingId"`
	AudioID     string `json:"audioId"`
	SpeakerID   string `json:"speakerId"`
	Lang        string `json:"lang"`
	ContentType string `json:"contentType"`
	Length      int    `json:"length"`
	IsFinal     bool   `json:"isFinal"`
}
