// Package viewer reconciles the partial/final caption stream into the stable
// display list a client renders. cmd/viewerclient uses it directly; it also
// documents the merge contract connected UIs are expected to implement.
package viewer

import (
	"sort"

	"live-caption-service/internal/models"
)

// MaxEntries bounds the merged display list.
const MaxEntries = 100

// Merge folds one incoming caption into the display list and returns the new
// list. Finals deduplicate on (speakerId, startMs); partials replace the
// previous partial for the same (speakerId, sourceLang) in place so a burst
// of partials occupies one slot per active speaker and language.
func Merge(prev []models.CaptionPayload, in models.CaptionPayload) []models.CaptionPayload {
	if in.IsFinal && in.EndMs >= in.StartMs {
		out := make([]models.CaptionPayload, 0, len(prev)+1)
		for _, c := range prev {
			if c.SpeakerID == in.SpeakerID && c.StartMs == in.StartMs {
				continue
			}
			out = append(out, c)
		}
		out = append(out, in)
		sortCaptions(out)
		return truncate(out)
	}

	for i, c := range prev {
		if !c.IsFinal && c.SpeakerID == in.SpeakerID && c.SourceLang == in.SourceLang {
			out := make([]models.CaptionPayload, len(prev))
			copy(out, prev)
			out[i] = in
			return out
		}
	}

	out := make([]models.CaptionPayload, 0, len(prev)+1)
	out = append(out, prev...)
	out = append(out, in)
	sortCaptions(out)
	return truncate(out)
}

// sortCaptions orders finals before partials, then by ascending start and
// end time.
func sortCaptions(list []models.CaptionPayload) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.IsFinal != b.IsFinal {
			return a.IsFinal
		}
		if a.StartMs != b.StartMs {
			return a.StartMs < b.StartMs
		}
		return a.EndMs < b.EndMs
	})
}

// truncate keeps the most recent MaxEntries entries, dropping oldest first.
func truncate(list []models.CaptionPayload) []models.CaptionPayload {
	if len(list) <= MaxEntries {
		return list
	}
	return list[len(list)-MaxEntries:]
}
