package caption

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"live-caption-service/internal/cache"
	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
)

// HistoryTTL bounds how long a finished call's caption history survives in
// the shared store.
const HistoryTTL = time.Hour

// nameCacheLimit caps the in-process identity cache. The map is cleared, not
// evicted, once this many lookups have been served from it.
const nameCacheLimit = 100

// HistoryKey is the store key holding a call's ordered final captions.
func HistoryKey(meetingID string) string {
	return "list:" + meetingID
}

// ParticipantKey is the store key mapping an audio source to a participant.
// The media layer writes it when a participant joins.
func ParticipantKey(meetingID, audioSourceID string) string {
	return meetingID + "-" + audioSourceID
}

// Publisher delivers a caption to every viewer subscribed to a call.
type Publisher interface {
	BroadcastCaption(meetingID string, p models.CaptionPayload) error
}

// Exporter mirrors captions to an external stream. Implementations must not
// block the caption path on broker latency.
type Exporter interface {
	ExportCaption(ctx context.Context, p models.CaptionPayload)
}

// Voicer speaks a final caption to listeners who want audio in their
// language. Runs detached from the publish path.
type Voicer interface {
	Speak(ctx context.Context, p models.CaptionPayload)
}

// Distributor shapes utterances into wire captions and pushes them to
// viewers, the history store, the export stream, and synthesis.
type Distributor struct {
	store    cache.Store
	pub      Publisher
	exporter Exporter
	voicer   Voicer
	log      zerolog.Logger
	metrics  *metrics.Metrics

	now func() time.Time

	// identity cache, shared by every recognition session's event loop
	mu      sync.Mutex
	names   map[string]string
	lookups int
}

func NewDistributor(store cache.Store, pub Publisher, log zerolog.Logger, m *metrics.Metrics) *Distributor {
	if m == nil {
		m = metrics.Default
	}
	return &Distributor{
		store:   store,
		pub:     pub,
		log:     log,
		metrics: m,
		now:     time.Now,
		names:   make(map[string]string),
	}
}

// WithExporter attaches an export stream for published captions.
func (d *Distributor) WithExporter(e Exporter) *Distributor {
	d.exporter = e
	return d
}

// WithVoicer attaches a synthesis fan-out for final captions.
func (d *Distributor) WithVoicer(v Voicer) *Distributor {
	d.voicer = v
	return d
}

// Distribute publishes one caption for an utterance. Timing converts from
// 100ns ticks to milliseconds; realStartMs records wall-clock receipt so
// clients can order captions across speakers whose media clocks differ.
func (d *Distributor) Distribute(ctx context.Context, meetingID string, u models.Utterance, text map[string]string) {
	startMs := int64(u.OffsetTicks / 10_000)
	durationMs := u.Duration.Milliseconds()

	p := models.CaptionPayload{
		Type:        "caption",
		MeetingID:   meetingID,
		Speaker:     d.resolveName(ctx, meetingID, u.SpeakerID),
		SpeakerID:   u.SpeakerID,
		SourceLang:  u.SourceLang,
		Text:        text,
		IsFinal:     u.IsFinal,
		StartMs:     startMs,
		EndMs:       startMs + durationMs,
		RealStartMs: d.now().UnixMilli(),
	}

	err := d.pub.BroadcastCaption(meetingID, p)
	d.metrics.RecordPublish("caption", err)
	if err != nil {
		d.log.Warn().Err(err).Str("meetingId", meetingID).Msg("caption broadcast failed")
	}
	d.metrics.RecordCaption(p.IsFinal)

	if !p.IsFinal {
		return
	}

	d.appendHistory(ctx, meetingID, p)

	if d.exporter != nil {
		d.exporter.ExportCaption(ctx, p)
	}
	if d.voicer != nil {
		// detached: synthesis latency must not delay the next caption
		go d.voicer.Speak(context.WithoutCancel(ctx), p)
	}
}

func (d *Distributor) appendHistory(ctx context.Context, meetingID string, p models.CaptionPayload) {
	err := d.store.AppendList(ctx, HistoryKey(meetingID), p, HistoryTTL)
	d.metrics.RecordHistoryWrite(err)
	if err != nil {
		d.log.Warn().Err(err).Str("meetingId", meetingID).Msg("caption history append failed")
	}
}

// resolveName maps an audio source id to the participant's display name.
// Hits are served from an in-process map that is periodically cleared so a
// renamed participant is picked up; misses fall back to the shared store and
// finally to a synthetic name.
func (d *Distributor) resolveName(ctx context.Context, meetingID, speakerID string) string {
	if speakerID == "" {
		return "Unknown"
	}

	key := ParticipantKey(meetingID, speakerID)

	d.mu.Lock()
	d.lookups++
	if d.lookups > nameCacheLimit {
		d.names = make(map[string]string)
		d.lookups = 1
	}
	if name, ok := d.names[key]; ok {
		d.mu.Unlock()
		return name
	}
	d.mu.Unlock()

	// store fetch runs outside the lock; concurrent misses for the same key
	// both fetch and the second insert wins
	name := fmt.Sprintf("Speaker-%s", speakerID)
	var part models.Participant
	ok, err := d.store.GetJSON(ctx, key, &part)
	if err != nil {
		d.log.Debug().Err(err).Str("key", key).Msg("participant lookup failed")
	} else if ok && part.DisplayName != "" {
		name = part.DisplayName
	}

	d.mu.Lock()
	d.names[key] = name
	d.mu.Unlock()
	return name
}
