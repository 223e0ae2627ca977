// Package synthesis voices final captions for listeners who asked for audio
// in their language.
package synthesis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
)

// Synthesizer renders text to compressed audio using a named voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, voice string) (audio []byte, contentType string, err error)
}

// AudioPublisher routes a synthesized frame to the listeners of one call.
// The speaker is always excluded so nobody hears their own words voiced back.
type AudioPublisher interface {
	// ListenerLangs reports the languages at least one eligible listener
	// wants audio in, excluding the given participant.
	ListenerLangs(meetingID, excludeID string) []string
	BroadcastAudio(meetingID, lang, excludeID string, meta models.AudioMeta, audio []byte) error
}

// VoiceMap picks the synthesis voice for a language.
type VoiceMap struct {
	Voices  map[string]string
	Default string
}

func (v VoiceMap) Voice(lang string) string {
	if name, ok := v.Voices[lang]; ok {
		return name
	}
	return v.Default
}

// Fanout speaks one final caption per listener language, concurrently, with
// failures isolated per language.
type Fanout struct {
	synth   Synthesizer
	pub     AudioPublisher
	voices  VoiceMap
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewFanout(synth Synthesizer, pub AudioPublisher, voices VoiceMap, log zerolog.Logger, m *metrics.Metrics) *Fanout {
	if m == nil {
		m = metrics.Default
	}
	return &Fanout{synth: synth, pub: pub, voices: voices, log: log, metrics: m}
}

// Speak voices the caption in every language some listener other than the
// speaker subscribed to. Languages without caption text are skipped; one
// language failing never blocks the others.
func (f *Fanout) Speak(ctx context.Context, p models.CaptionPayload) {
	langs := f.pub.ListenerLangs(p.MeetingID, p.SpeakerID)
	if len(langs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, lang := range langs {
		text := p.Text[lang]
		if text == "" {
			continue
		}
		wg.Add(1)
		go func(lang, text string) {
			defer wg.Done()
			f.speakOne(ctx, p, lang, text)
		}(lang, text)
	}
	wg.Wait()
}

func (f *Fanout) speakOne(ctx context.Context, p models.CaptionPayload, lang, text string) {
	start := time.Now()
	audio, contentType, err := f.synth.Synthesize(ctx, text, lang, f.voices.Voice(lang))
	f.metrics.RecordSynthesis(lang, err, time.Since(start).Seconds())
	if err != nil {
		f.log.Warn().Err(err).Str("lang", lang).Str("meetingId", p.MeetingID).Msg("synthesis failed")
		return
	}

	meta := models.AudioMeta{
		Type:        "audio",
		MeetingID:   p.MeetingID,
		AudioID:     uuid.NewString(),
		SpeakerID:   p.SpeakerID,
		Lang:        lang,
		ContentType: contentType,
		Length:      len(audio),
		IsFinal:     p.IsFinal,
	}
	err = f.pub.BroadcastAudio(p.MeetingID, lang, p.SpeakerID, meta, audio)
	f.metrics.RecordPublish("audio", err)
	if err != nil {
		f.log.Warn().Err(err).Str("lang", lang).Str("meetingId", p.MeetingID).Msg("audio broadcast failed")
	}
}
