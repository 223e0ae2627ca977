// Package schema checks caption events against the wire contract before
// they leave the service.
package schema

import (
	"errors"
	"fmt"

	"live-caption-service/internal/models"
)

var (
	ErrMissingMeeting    = errors.New("caption missing meetingId")
	ErrMissingSourceText = errors.New("caption missing source language text")
	ErrInvalidWindow     = errors.New("caption endMs precedes startMs")
)

// ValidateCaption verifies the invariants downstream consumers rely on: the
// source language slot always holds text and the time window is well formed.
func ValidateCaption(p models.CaptionPayload) error {
	if p.Type != "caption" {
		return fmt.Errorf("unexpected event type %q", p.Type)
	}
	if p.MeetingID == "" {
		return ErrMissingMeeting
	}
	if p.SourceLang == "" || p.Text[p.SourceLang] == "" {
		return ErrMissingSourceText
	}
	if p.EndMs < p.StartMs {
		return ErrInvalidWindow
	}
	return nil
}
