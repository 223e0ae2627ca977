// viewerclient subscribes to a call's caption stream and renders the merged
// display list in the terminal.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"live-caption-service/internal/models"
	"live-caption-service/internal/viewer"
)

func main() {
	serverAddr := flag.String("server", "localhost:8080", "Service address")
	meetingID := flag.String("meeting", "demo", "Meeting ID to subscribe to")
	targetLang := flag.String("lang", "en", "Preferred caption language")
	token := flag.String("token", "", "Viewer token")
	tail := flag.Int("tail", 8, "Number of captions to render")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws/captions"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer conn.Close()

	if err := handshake(conn, *meetingID, *targetLang, *token); err != nil {
		log.Fatalf("handshake failed: %v", err)
	}
	log.Printf("subscribed to %s (%s)", *meetingID, *targetLang)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var list []models.CaptionPayload
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				log.Printf("connection closed: %v", err)
				return
			}
			if messageType != websocket.TextMessage {
				// synthesized audio frames are ignored in the terminal client
				continue
			}

			var p models.CaptionPayload
			if err := json.Unmarshal(data, &p); err != nil || p.Type != "caption" {
				continue
			}
			list = viewer.Merge(list, p)
			render(list, *targetLang, *tail)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
	}
}

func handshake(conn *websocket.Conn, meetingID, targetLang, token string) error {
	if err := conn.WriteJSON(models.AuthMessage{Type: "auth", Token: token}); err != nil {
		return err
	}
	if err := expectAck(conn, "auth_ok"); err != nil {
		return err
	}
	if err := conn.WriteJSON(models.SubscribeMessage{
		Type:       "subscribe",
		MeetingID:  meetingID,
		TargetLang: targetLang,
	}); err != nil {
		return err
	}
	return expectAck(conn, "subscribed")
}

func expectAck(conn *websocket.Conn, want string) error {
	var ack struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		return err
	}
	if ack.Type != want {
		return fmt.Errorf("expected %s, got %s (%s)", want, ack.Type, ack.Error)
	}
	return nil
}

func render(list []models.CaptionPayload, targetLang string, tail int) {
	fmt.Print("\033[H\033[2J") // clear screen
	start := len(list) - tail
	if start < 0 {
		start = 0
	}
	for _, p := range list[start:] {
		text := p.Text[targetLang]
		if text == "" {
			text = p.Text[p.SourceLang]
		}
		marker := " "
		if !p.IsFinal {
			marker = "~"
		}
		fmt.Printf("%s [%6.1fs] %-16s %s\n", marker, float64(p.StartMs)/1000, p.Speaker, text)
	}
}
