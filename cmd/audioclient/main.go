// audioclient streams a WAV file into a call's ingest socket to simulate a
// speaking participant.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time streaming
// At 16kHz 16-bit mono = 32000 bytes/second
// 100ms chunks = 3200 bytes
const chunkSize = 3200
const chunkIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "../../testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverAddr := flag.String("server", "localhost:8080", "Service address")
	meetingID := flag.String("meeting", "demo", "Meeting ID to stream into")
	speakerID := flag.String("speaker", "speaker-1", "Audio source id of the speaker")
	displayName := flag.String("name", "Demo Speaker", "Display name to register")
	flag.Parse()

	// Open audio file
	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	// Read and validate WAV header
	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}

	// Validate it's a WAV file
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	// Extract audio format info
	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])

	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 { // PCM
		log.Fatal("Only PCM format supported")
	}
	if sampleRate != 16000 {
		log.Printf("Warning: Sample rate is %d Hz, expected 16000 Hz", sampleRate)
	}

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws/ingest/" + *meetingID}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", u.String(), err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", u.String())

	// Register the participant so captions carry a display name, then mark
	// this connection's frames as theirs.
	if err := sendControl(conn, map[string]string{
		"type":        "participant",
		"id":          *speakerID,
		"displayName": *displayName,
	}); err != nil {
		log.Fatalf("Failed to register participant: %v", err)
	}
	if err := sendControl(conn, map[string]string{
		"type":      "speaker",
		"speakerId": *speakerID,
	}); err != nil {
		log.Fatalf("Failed to send speaker hint: %v", err)
	}

	log.Printf("Streaming audio: meetingId=%s speakerId=%s", *meetingID, *speakerID)

	// Stream audio in chunks
	audioChunk := make([]byte, chunkSize)
	var totalBytes int64
	var chunkNum int
	startTime := time.Now()

	for {
		n, err := f.Read(audioChunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}

		chunkNum++
		totalBytes += int64(n)

		if err := conn.WriteMessage(websocket.BinaryMessage, audioChunk[:n]); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, elapsed)

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	// give the server a moment to drain the recognition session
	time.Sleep(time.Second)
}

func sendControl(conn *websocket.Conn, msg map[string]string) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
