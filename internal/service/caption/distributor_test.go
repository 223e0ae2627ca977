package caption

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"live-caption-service/internal/cache"
	"live-caption-service/internal/models"
)

type fakePublisher struct {
	mu       sync.Mutex
	captions []models.CaptionPayload
	err      error
}

func (p *fakePublisher) BroadcastCaption(meetingID string, c models.CaptionPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, c)
	return p.err
}

func (p *fakePublisher) last(t *testing.T) models.CaptionPayload {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.captions) == 0 {
		t.Fatal("no caption published")
	}
	return p.captions[len(p.captions)-1]
}

type fakeExporter struct {
	mu    sync.Mutex
	count int
}

func (e *fakeExporter) ExportCaption(ctx context.Context, p models.CaptionPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
}

type fakeVoicer struct {
	mu    sync.Mutex
	count int
}

func (v *fakeVoicer) Speak(ctx context.Context, p models.CaptionPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.count++
}

func (v *fakeVoicer) spoken() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.count
}

func testDistributor() (*Distributor, *cache.Memory, *fakePublisher) {
	store := cache.NewMemory()
	pub := &fakePublisher{}
	d := NewDistributor(store, pub, zerolog.Nop(), nil)
	return d, store, pub
}

func TestDistributor_TimingConversion(t *testing.T) {
	d, _, pub := testDistributor()
	fixed := time.UnixMilli(1_700_000_000_000)
	d.now = func() time.Time { return fixed }

	d.Distribute(context.Background(), "m1", models.Utterance{
		Text:        "hello",
		SourceLang:  "en-US",
		OffsetTicks: 50_000_000, // 5s in 100ns ticks
		Duration:    2 * time.Second,
		SpeakerID:   "s1",
		IsFinal:     false,
	}, map[string]string{"en-US": "hello"})

	p := pub.last(t)
	if p.StartMs != 5000 {
		t.Errorf("expected startMs 5000, got %d", p.StartMs)
	}
	if p.EndMs != 7000 {
		t.Errorf("expected endMs 7000, got %d", p.EndMs)
	}
	if p.RealStartMs != fixed.UnixMilli() {
		t.Errorf("expected realStartMs %d, got %d", fixed.UnixMilli(), p.RealStartMs)
	}
	if p.Type != "caption" || p.MeetingID != "m1" || p.IsFinal {
		t.Errorf("payload fields wrong: %+v", p)
	}
}

func TestDistributor_ResolvesDisplayName(t *testing.T) {
	d, store, pub := testDistributor()
	ctx := context.Background()

	part := models.Participant{ID: "s1", DisplayName: "Alice"}
	if err := store.SetJSON(ctx, ParticipantKey("m1", "s1"), part, time.Hour); err != nil {
		t.Fatal(err)
	}

	d.Distribute(ctx, "m1", models.Utterance{Text: "hi", SourceLang: "en-US", SpeakerID: "s1"}, map[string]string{"en-US": "hi"})
	if got := pub.last(t).Speaker; got != "Alice" {
		t.Errorf("expected Alice, got %q", got)
	}
}

func TestDistributor_FallbackSpeakerName(t *testing.T) {
	d, _, pub := testDistributor()
	d.Distribute(context.Background(), "m1", models.Utterance{Text: "hi", SourceLang: "en-US", SpeakerID: "s9"}, map[string]string{"en-US": "hi"})
	if got := pub.last(t).Speaker; got != "Speaker-s9" {
		t.Errorf("expected Speaker-s9, got %q", got)
	}

	d.Distribute(context.Background(), "m1", models.Utterance{Text: "hi", SourceLang: "en-US"}, map[string]string{"en-US": "hi"})
	if got := pub.last(t).Speaker; got != "Unknown" {
		t.Errorf("expected Unknown for missing speaker id, got %q", got)
	}
}

func TestDistributor_NameCachePicksUpRename(t *testing.T) {
	d, store, _ := testDistributor()
	ctx := context.Background()

	key := ParticipantKey("m1", "s1")
	_ = store.SetJSON(ctx, key, models.Participant{ID: "s1", DisplayName: "Alice"}, time.Hour)
	if got := d.resolveName(ctx, "m1", "s1"); got != "Alice" {
		t.Fatalf("expected Alice, got %q", got)
	}

	// rename while the local cache still holds the old entry
	_ = store.SetJSON(ctx, key, models.Participant{ID: "s1", DisplayName: "Alicia"}, time.Hour)
	for i := 0; i < nameCacheLimit-1; i++ {
		if got := d.resolveName(ctx, "m1", "s1"); got != "Alice" {
			t.Fatalf("cache dropped too early on lookup %d: %q", i, got)
		}
	}
	if got := d.resolveName(ctx, "m1", "s1"); got != "Alicia" {
		t.Errorf("expected rename to surface after cache clear, got %q", got)
	}
}

func TestDistributor_ConcurrentSessionsShareNameCache(t *testing.T) {
	d, store, pub := testDistributor()
	ctx := context.Background()
	_ = store.SetJSON(ctx, ParticipantKey("m1", "s1"), models.Participant{ID: "s1", DisplayName: "Alice"}, time.Hour)

	// one distributor serves every recognition session of a call; two
	// language sessions publish through it at the same time
	const perSession = 200
	var wg sync.WaitGroup
	for _, lang := range []string{"en-US", "zh-CN"} {
		wg.Add(1)
		go func(lang string) {
			defer wg.Done()
			for i := 0; i < perSession; i++ {
				d.Distribute(ctx, "m1", models.Utterance{
					Text:       "hi",
					SourceLang: lang,
					SpeakerID:  "s1",
				}, map[string]string{lang: "hi"})
			}
		}(lang)
	}
	wg.Wait()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.captions) != 2*perSession {
		t.Fatalf("expected %d captions, got %d", 2*perSession, len(pub.captions))
	}
	for _, c := range pub.captions {
		if c.Speaker != "Alice" {
			t.Fatalf("wrong speaker resolution under concurrency: %q", c.Speaker)
		}
	}
}

func TestDistributor_FinalAppendsHistory(t *testing.T) {
	d, store, _ := testDistributor()
	ctx := context.Background()

	d.Distribute(ctx, "m1", models.Utterance{Text: "partial", SourceLang: "en-US", SpeakerID: "s1"}, map[string]string{"en-US": "partial"})
	d.Distribute(ctx, "m1", models.Utterance{Text: "final", SourceLang: "en-US", SpeakerID: "s1", IsFinal: true}, map[string]string{"en-US": "final"})

	entries, err := store.GetList(ctx, HistoryKey("m1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final in history, got %d entries", len(entries))
	}
	var p models.CaptionPayload
	if err := json.Unmarshal(entries[0], &p); err != nil {
		t.Fatal(err)
	}
	if p.Text["en-US"] != "final" || !p.IsFinal {
		t.Errorf("wrong history entry: %+v", p)
	}
}

func TestDistributor_FinalTriggersExportAndSynthesis(t *testing.T) {
	d, _, _ := testDistributor()
	exp := &fakeExporter{}
	voc := &fakeVoicer{}
	d.WithExporter(exp).WithVoicer(voc)

	d.Distribute(context.Background(), "m1", models.Utterance{Text: "hi", SourceLang: "en-US", IsFinal: true}, map[string]string{"en-US": "hi"})

	deadline := time.Now().Add(2 * time.Second)
	for voc.spoken() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if voc.spoken() != 1 {
		t.Error("synthesis fan-out not triggered for final")
	}
	exp.mu.Lock()
	defer exp.mu.Unlock()
	if exp.count != 1 {
		t.Errorf("expected 1 export, got %d", exp.count)
	}
}

func TestDistributor_PublishFailureStillWritesHistory(t *testing.T) {
	d, store, pub := testDistributor()
	pub.err = errors.New("socket gone")

	d.Distribute(context.Background(), "m1", models.Utterance{Text: "hi", SourceLang: "en-US", IsFinal: true}, map[string]string{"en-US": "hi"})

	entries, err := store.GetList(context.Background(), HistoryKey("m1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("history must not depend on publish success, got %d entries", len(entries))
	}
}
