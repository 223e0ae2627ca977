// Package google provides a Google Cloud Speech-to-Text continuous
// recognition backend.
package google

import (
	"context"
	"io"
	"sync"
	"time"

	speechapi "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/status"

	"live-caption-service/internal/service/speech"
)

// Adapter implements speech.Recognizer using Google Cloud streaming
// recognition. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
type Adapter struct {
	client *speechapi.Client
}

func New(ctx context.Context) (*Adapter, error) {
	c, err := speechapi.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: c}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

// StartContinuous opens a streaming session and sends the initial config.
// With cfg.Language == speech.LanguageAuto the first candidate becomes the
// primary language and the rest are offered as alternatives for detection.
func (a *Adapter) StartContinuous(ctx context.Context, cfg speech.SessionConfig) (speech.Session, error) {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, err
	}

	lang := cfg.Language
	var alternatives []string
	if lang == speech.LanguageAuto && len(cfg.CandidateLanguages) > 0 {
		lang = cfg.CandidateLanguages[0]
		alternatives = cfg.CandidateLanguages[1:]
	}
	sampleRate := cfg.SampleRateHz
	if sampleRate == 0 {
		sampleRate = 16000
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            sampleRate,
					LanguageCode:               lang,
					AlternativeLanguageCodes:   alternatives,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	// lang is the resolved primary, never the auto marker, so events without
	// a detected language still carry a real language code
	s := &session{
		stream: stream,
		lang:   lang,
		events: make(chan speech.Event, 32),
	}
	go s.listen()
	return s, nil
}

type session struct {
	stream speechpb.Speech_StreamingRecognizeClient
	lang   string
	events chan speech.Event

	mu      sync.Mutex
	stopped bool
	stop    sync.Once

	// end tick of the last final result; the next span starts here
	lastEndTicks uint64
}

func (s *session) Events() <-chan speech.Event { return s.events }

func (s *session) WriteAudio(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: p,
		},
	})
}

func (s *session) Stop(ctx context.Context) error {
	var err error
	s.stop.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		err = s.stream.CloseSend()
	})
	return err
}

// listen relays backend responses into the event channel until the stream
// ends, then emits the terminal event and closes the channel.
func (s *session) listen() {
	defer close(s.events)

	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			s.events <- speech.Event{Kind: speech.EventStopped}
			return
		}
		if err != nil {
			st, _ := status.FromError(err)
			s.events <- speech.Event{
				Kind: speech.EventCancelled,
				Err:  err,
				Code: st.Code().String(),
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}

			endTicks := durationToTicks(r.ResultEndTime.AsDuration())
			offset := s.lastEndTicks
			if endTicks < offset {
				offset = endTicks
			}

			lang := r.LanguageCode
			if lang == "" {
				lang = s.lang
			}

			kind := speech.EventInterim
			if r.IsFinal {
				kind = speech.EventFinal
				s.lastEndTicks = endTicks
			}

			s.events <- speech.Event{
				Kind:        kind,
				Text:        alt.Transcript,
				OffsetTicks: offset,
				Duration:    ticksToDuration(endTicks - offset),
				Language:    lang,
			}
		}
	}
}

// 1ms = 10,000 ticks (100ns units)
func durationToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / (100 * time.Nanosecond))
}

func ticksToDuration(t uint64) time.Duration {
	return time.Duration(t) * 100 * time.Nanosecond
}
