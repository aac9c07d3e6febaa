// Command audioclient streams a WAV file to the transcription service
// over websocket, simulating a real-time capture client, and prints the
// transcripts it gets back.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Stream audio in chunks to simulate real-time capture.
// At 16kHz 16-bit mono = 32000 bytes/second, 125ms chunks = 4000 bytes.
const chunkSize = 4000
const chunkIntervalMs = 125

type serverMessage struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId"`
	Languages []string `json:"languages"`
	Language  string   `json:"language"`
	Text      string   `json:"text"`
	Mode      string   `json:"mode"`
	Message   string   `json:"message"`
}

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	serverURL := flag.String("server", "ws://localhost:8003/ws", "Websocket server URL")
	language := flag.String("language", "", "Recognition language hint (empty = auto)")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

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

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("Connected to %s", *serverURL)

	// Print everything the server sends until it closes the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg serverMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				log.Printf("Unreadable server message: %v", err)
				continue
			}
			switch msg.Type {
			case "connected":
				log.Printf("Session %s, languages: %v", msg.SessionID, msg.Languages)
			case "partial":
				log.Printf("--- partial ---\n%s", msg.Text)
			case "final":
				log.Printf("=== final%s ===\n%s", finalSuffix(msg.Mode), msg.Text)
			case "language_changed":
				log.Printf("Language changed to %s", msg.Language)
			case "error":
				log.Printf("Server error: %s", msg.Message)
			default:
				log.Printf("Server: %s %s", msg.Type, msg.Message)
			}
		}
	}()

	if *language != "" {
		setLang, _ := json.Marshal(map[string]string{"type": "set_language", "language": *language})
		if err := conn.WriteMessage(websocket.TextMessage, setLang); err != nil {
			log.Fatalf("Failed to set language: %v", err)
		}
	}

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
			log.Fatalf("Failed to send chunk: %v", err)
		}

		if chunkNum%10 == 0 {
			log.Printf("Sent chunk %d (%d bytes total)", chunkNum, totalBytes)
		}

		// Simulate real-time capture
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	elapsed := time.Since(startTime)
	log.Printf("Finished streaming: %d chunks, %d bytes in %v", chunkNum, totalBytes, elapsed)

	log.Println("Sending stop, waiting for final transcript...")
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`)); err != nil {
		log.Fatalf("Failed to send stop: %v", err)
	}

	select {
	case <-done:
	case <-time.After(60 * time.Second):
		log.Fatal("Timed out waiting for final transcript")
	}
}

func finalSuffix(mode string) string {
	if mode != "" {
		return " (" + mode + ")"
	}
	return ""
}
