// Package pipeline assembles and tracks the per-call caption pipelines.
package pipeline

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"live-caption-service/internal/cache"
	"live-caption-service/internal/observability/metrics"
	"live-caption-service/internal/service/caption"
	"live-caption-service/internal/service/recognition"
	"live-caption-service/internal/service/speech"
	"live-caption-service/internal/service/synthesis"
	"live-caption-service/internal/service/translate"
)

// Factory holds the shared dependencies every per-call pipeline is built
// from. Exporter and Synth may be nil to disable export and synthesis.
type Factory struct {
	Recognizer speech.Recognizer
	Translator translate.Client
	Routing    translate.Routing
	Store      cache.Store
	Publisher  caption.Publisher
	Exporter   caption.Exporter
	Synth      synthesis.Synthesizer
	AudioPub   synthesis.AudioPublisher
	Voices     synthesis.VoiceMap

	SourceLanguages []string
	TargetLanguages []string
	AutoDetect      bool
	SampleRateHz    int32

	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Pipeline is the recognition-to-distribution chain of one call.
type Pipeline struct {
	meetingID string
	manager   *recognition.Manager
}

// AppendAudio forwards one PCM frame with an optional speaker hint.
func (p *Pipeline) AppendAudio(ctx context.Context, frame []byte, hintedSpeakerID string) {
	p.manager.AppendAudio(ctx, frame, hintedSpeakerID)
}

// Shutdown stops the call's recognition sessions.
func (p *Pipeline) Shutdown(ctx context.Context) {
	p.manager.Shutdown(ctx)
}

func (f *Factory) build(meetingID string) *Pipeline {
	log := f.Log.With().Str("meetingId", meetingID).Logger()

	dist := caption.NewDistributor(f.Store, f.Publisher, log, f.Metrics)
	if f.Exporter != nil {
		dist.WithExporter(f.Exporter)
	}
	if f.Synth != nil && f.AudioPub != nil {
		dist.WithVoicer(synthesis.NewFanout(f.Synth, f.AudioPub, f.Voices, log, f.Metrics))
	}

	batch := translate.NewBatch(f.Translator, f.Routing, f.Metrics)
	proc := caption.NewProcessor(meetingID, caption.NewAssembler(f.TargetLanguages), batch, dist, f.TargetLanguages, log)

	mgr := recognition.NewManager(f.Recognizer, proc, recognition.Config{
		SourceLanguages: f.SourceLanguages,
		AutoDetect:      f.AutoDetect,
		SampleRateHz:    f.SampleRateHz,
	}, log, f.Metrics)

	return &Pipeline{meetingID: meetingID, manager: mgr}
}

// Registry hands out one Pipeline per call, refcounted across the media
// connections feeding it. The last release shuts the pipeline down.
type Registry struct {
	factory *Factory

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	pipe *Pipeline
	refs int
}

func NewRegistry(f *Factory) *Registry {
	return &Registry{factory: f, entries: make(map[string]*entry)}
}

// Acquire returns the call's pipeline, creating it on first use.
func (r *Registry) Acquire(meetingID string) *Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[meetingID]
	if !ok {
		e = &entry{pipe: r.factory.build(meetingID)}
		r.entries[meetingID] = e
		r.factory.Log.Info().Str("meetingId", meetingID).Msg("pipeline created")
	}
	e.refs++
	return e.pipe
}

// Release drops one reference. The pipeline shuts down when the last media
// connection of the call goes away.
func (r *Registry) Release(ctx context.Context, meetingID string) {
	r.mu.Lock()
	e, ok := r.entries[meetingID]
	if ok {
		e.refs--
		if e.refs <= 0 {
			delete(r.entries, meetingID)
		} else {
			e = nil
		}
	}
	r.mu.Unlock()

	if e != nil && ok {
		e.pipe.Shutdown(ctx)
		r.factory.Log.Info().Str("meetingId", meetingID).Msg("pipeline released")
	}
}

// Shutdown stops every live pipeline, regardless of refcounts.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		e.pipe.Shutdown(ctx)
		r.factory.Log.Info().Str("meetingId", id).Msg("pipeline stopped")
	}
}
