// Package translate converts finalized utterance text into every configured
// target language before the caption is published.
package translate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"live-caption-service/internal/observability/metrics"
)

// BatchTimeout bounds one whole fan-out. Every per-target request shares this
// single deadline.
const BatchTimeout = 10 * time.Second

// Client translates a single text into one target language. Category selects
// a domain-tuned model and may be empty.
type Client interface {
	Translate(ctx context.Context, text, to, category string) (string, error)
}

// Routing maps target language -> source language -> translation category.
// A missing entry means no category.
type Routing map[string]map[string]string

// Category resolves the model category for a source/target pair.
func (r Routing) Category(sourceLang, targetLang string) string {
	if r == nil {
		return ""
	}
	return r[targetLang][sourceLang]
}

// Batch fans one text out to a set of target languages concurrently.
type Batch struct {
	client  Client
	routing Routing
	metrics *metrics.Metrics
}

func NewBatch(client Client, routing Routing, m *metrics.Metrics) *Batch {
	if m == nil {
		m = metrics.Default
	}
	return &Batch{client: client, routing: routing, metrics: m}
}

// Translate requests text in every target language. All-or-nothing: if any
// target fails, the whole batch fails and the caller must not publish a
// partially translated caption. Targets equal to the source are returned
// verbatim without a request.
func (b *Batch) Translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error) {
	start := time.Now()
	out, err := b.translate(ctx, text, sourceLang, targetLangs)
	b.metrics.RecordTranslation(sourceLang, err, time.Since(start).Seconds())
	return out, err
}

func (b *Batch) translate(ctx context.Context, text, sourceLang string, targetLangs []string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, BatchTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		out      = make(map[string]string, len(targetLangs)+1)
	)
	out[sourceLang] = text

	for _, target := range targetLangs {
		if target == sourceLang {
			continue
		}
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			translated, err := b.client.Translate(ctx, text, target, b.routing.Category(sourceLang, target))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("translate to %s: %w", target, err)
				}
				return
			}
			out[target] = translated
		}(target)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
