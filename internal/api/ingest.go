package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-caption-service/internal/cache"
	"live-caption-service/internal/models"
	"live-caption-service/internal/service/caption"
	"live-caption-service/internal/service/pipeline"
)

// maxFrameSize bounds one ingest message. 64 KiB fits two seconds of 16kHz
// 16-bit mono with headroom.
const maxFrameSize = 64 << 10

// ingestControl is a text frame on the ingest socket. Binary frames are raw
// PCM audio; text frames carry speaker hints and participant registration.
type ingestControl struct {
	Type        string `json:"type"`
	SpeakerID   string `json:"speakerId,omitempty"`
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Ingest accepts media-layer connections that feed call audio into the
// pipeline. One call may have several media connections; the pipeline lives
// until the last one disconnects.
type Ingest struct {
	registry *pipeline.Registry
	store    cache.Store
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewIngest(registry *pipeline.Registry, store cache.Store, log zerolog.Logger) *Ingest {
	return &Ingest{
		registry: registry,
		store:    store,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxFrameSize,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// releaseContext bounds the session drain that runs when the last media
// connection of a call goes away.
func releaseContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

// ServeIngest upgrades a media connection for one call and pumps its frames
// into the call's pipeline.
func (i *Ingest) ServeIngest(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingID")
	if meetingID == "" {
		http.Error(w, "missing meetingID", http.StatusBadRequest)
		return
	}

	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.log.Warn().Err(err).Msg("ingest upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	log := i.log.With().Str("meetingId", meetingID).Logger()
	log.Info().Msg("media connection opened")

	pipe := i.registry.Acquire(meetingID)
	defer func() {
		ctx, cancel := releaseContext()
		defer cancel()
		i.registry.Release(ctx, meetingID)
		log.Info().Msg("media connection closed")
	}()

	// sticky per-connection speaker hint, forwarded with every audio frame
	hint := ""

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("media connection error")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			pipe.AppendAudio(r.Context(), data, hint)
		case websocket.TextMessage:
			hint = i.handleControl(r, meetingID, data, hint, log)
		}
	}
}

func (i *Ingest) handleControl(r *http.Request, meetingID string, data []byte, hint string, log zerolog.Logger) string {
	var msg ingestControl
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Msg("bad control message")
		return hint
	}

	switch msg.Type {
	case "speaker":
		return msg.SpeakerID
	case "participant":
		if msg.ID == "" {
			return hint
		}
		part := models.Participant{ID: msg.ID, DisplayName: msg.DisplayName}
		key := caption.ParticipantKey(meetingID, msg.ID)
		if err := i.store.SetJSON(r.Context(), key, part, caption.HistoryTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("participant registration failed")
		}
	default:
		log.Debug().Str("type", msg.Type).Msg("unknown control message")
	}
	return hint
}
