package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"live-caption-service/internal/cache"
	"live-caption-service/internal/service/caption"
)

// History serves the stored final captions of a call so a late viewer can
// backfill before live events arrive.
type History struct {
	store cache.Store
	log   zerolog.Logger
}

func NewHistory(store cache.Store, log zerolog.Logger) *History {
	return &History{store: store, log: log}
}

func (h *History) ServeHistory(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if meetingID == "" {
		http.Error(w, "missing meetingID", http.StatusBadRequest)
		return
	}

	entries, err := h.store.GetList(r.Context(), caption.HistoryKey(meetingID))
	if err != nil {
		h.log.Error().Err(err).Str("meetingId", meetingID).Msg("history read failed")
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	// entries are already serialized captions; splice them into one array
	out := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, json.RawMessage(e))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.log.Debug().Err(err).Msg("history write failed")
	}
}
