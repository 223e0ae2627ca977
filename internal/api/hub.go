// Package api exposes the websocket surfaces of the service: the viewer hub
// captions are broadcast on, the media ingest socket, and the history
// backfill endpoint.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"live-caption-service/internal/models"
	"live-caption-service/internal/observability/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 75 * time.Second
	pingPeriod     = 30 * time.Second
	handshakeWait  = 10 * time.Second
	maxControlSize = 4 << 10
)

// Hub tracks viewer connections grouped by call and fans captions and
// synthesized audio out to them. It implements caption.Publisher and
// synthesis.AudioPublisher.
type Hub struct {
	verifier *TokenVerifier
	log      zerolog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	viewers map[string]map[*viewerConn]struct{}
}

func NewHub(verifier *TokenVerifier, log zerolog.Logger, m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.Default
	}
	return &Hub{
		verifier: verifier,
		log:      log,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the hub authenticates via the token handshake, not the Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		viewers: make(map[string]map[*viewerConn]struct{}),
	}
}

// viewerConn is one subscribed viewer. Writes are serialized by mu; gorilla
// allows at most one concurrent writer per connection.
type viewerConn struct {
	conn       *websocket.Conn
	id         string
	meetingID  string
	targetLang string

	mu sync.Mutex
}

func (c *viewerConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *viewerConn) writeRaw(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

type ackMessage struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// ServeCaptions upgrades a viewer connection and runs the handshake: an auth
// message answered with auth_ok, then a subscribe answered with subscribed.
// Only then does the viewer receive caption events.
func (h *Hub) ServeCaptions(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("viewer upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxControlSize)

	v, err := h.handshake(conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("viewer handshake failed")
		_ = writeClosedAck(conn, err)
		return
	}

	h.register(v)
	defer h.unregister(v)

	h.log.Info().
		Str("meetingId", v.meetingID).
		Str("viewerId", v.id).
		Str("targetLang", v.targetLang).
		Msg("viewer subscribed")

	h.readLoop(v)
}

func writeClosedAck(conn *websocket.Conn, err error) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ackMessage{Type: "error", Error: err.Error()})
}

func (h *Hub) handshake(conn *websocket.Conn) (*viewerConn, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))

	var auth models.AuthMessage
	if err := conn.ReadJSON(&auth); err != nil {
		return nil, err
	}
	if auth.Type != "auth" {
		return nil, errors.New("expected auth message")
	}
	id, err := h.verifier.Verify(auth.Token)
	if err != nil {
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ackMessage{Type: "auth_ok"}); err != nil {
		return nil, err
	}

	var sub models.SubscribeMessage
	if err := conn.ReadJSON(&sub); err != nil {
		return nil, err
	}
	if sub.Type != "subscribe" || sub.MeetingID == "" {
		return nil, errors.New("expected subscribe message with meetingId")
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ackMessage{Type: "subscribed"}); err != nil {
		return nil, err
	}

	return &viewerConn{
		conn:       conn,
		id:         id,
		meetingID:  sub.MeetingID,
		targetLang: sub.TargetLang,
	}, nil
}

// readLoop drains the connection so pings and close frames are processed.
// Viewers send nothing after the handshake.
func (h *Hub) readLoop(v *viewerConn) {
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go h.pingLoop(v, stop)

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) pingLoop(v *viewerConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := v.writeRaw(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

func (h *Hub) register(v *viewerConn) {
	h.mu.Lock()
	group, ok := h.viewers[v.meetingID]
	if !ok {
		group = make(map[*viewerConn]struct{})
		h.viewers[v.meetingID] = group
	}
	group[v] = struct{}{}
	h.mu.Unlock()
	h.metrics.ViewersActive.Inc()
}

func (h *Hub) unregister(v *viewerConn) {
	h.mu.Lock()
	if group, ok := h.viewers[v.meetingID]; ok {
		if _, member := group[v]; member {
			delete(group, v)
			h.metrics.ViewersActive.Dec()
		}
		if len(group) == 0 {
			delete(h.viewers, v.meetingID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) snapshot(meetingID string) []*viewerConn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	group := h.viewers[meetingID]
	out := make([]*viewerConn, 0, len(group))
	for v := range group {
		out = append(out, v)
	}
	return out
}

// BroadcastCaption delivers one caption to every viewer of the call. A slow
// or dead viewer only loses its own delivery.
func (h *Hub) BroadcastCaption(meetingID string, p models.CaptionPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var firstErr error
	for _, v := range h.snapshot(meetingID) {
		if err := v.writeRaw(websocket.TextMessage, data); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			h.log.Debug().Err(err).Str("viewerId", v.id).Msg("caption delivery failed")
		}
	}
	return firstErr
}

// ListenerLangs reports the distinct languages viewers of the call want
// audio in, excluding the speaker themselves.
func (h *Hub) ListenerLangs(meetingID, excludeID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for v := range h.viewers[meetingID] {
		if v.id == excludeID || v.targetLang == "" {
			continue
		}
		if _, dup := seen[v.targetLang]; dup {
			continue
		}
		seen[v.targetLang] = struct{}{}
		out = append(out, v.targetLang)
	}
	return out
}

// BroadcastAudio delivers a synthesized frame to viewers of the call who
// subscribed with the given language, never to the original speaker. The
// JSON meta message precedes the binary frame so clients can attribute it.
func (h *Hub) BroadcastAudio(meetingID, lang, excludeID string, meta models.AudioMeta, audio []byte) error {
	var firstErr error
	for _, v := range h.snapshot(meetingID) {
		if v.targetLang != lang || v.id == excludeID {
			continue
		}
		if err := v.writeJSON(meta); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := v.writeRaw(websocket.BinaryMessage, audio); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
