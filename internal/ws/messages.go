package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Server message types.
const (
	typeConnected       = "connected"
	typeProcessing      = "processing"
	typeLanguageChanged = "language_changed"
	typeError           = "error"
	typePartial         = "partial"
	typeFinal           = "final"
)

// Client control message types.
const (
	typeSetLanguage = "set_language"
	typeAudioFile   = "audio_file"
	typeStop        = "stop"
)

// serverMessage is the single envelope for everything sent to clients.
// Fields are omitted when not relevant to the message type.
type serverMessage struct {
	Type      string   `json:"type"`
	SessionID string   `json:"sessionId,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Language  string   `json:"language,omitempty"`
	Text      string   `json:"text,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// connectedMessage is the welcome frame: session ID, the configured
// language set, and the task mode this server runs (transcribe or
// translate).
func connectedMessage(sessionID string, languages []string, task string) serverMessage {
	return serverMessage{Type: typeConnected, SessionID: sessionID, Languages: languages, Mode: task}
}

func processingMessage(msg string) serverMessage {
	return serverMessage{Type: typeProcessing, Message: msg}
}

func languageChangedMessage(language string) serverMessage {
	return serverMessage{Type: typeLanguageChanged, Language: language}
}

func errorMessage(msg string) serverMessage {
	return serverMessage{Type: typeError, Message: msg}
}

func partialMessage(text string) serverMessage {
	return serverMessage{Type: typePartial, Text: text}
}

// finalMessage carries mode "file" for batch submissions so clients can
// tell a whole-file result apart from the end-of-stream one, and the
// detected language when the engine reports one.
func finalMessage(text, language string, file bool) serverMessage {
	m := serverMessage{Type: typeFinal, Text: text, Language: language}
	if file {
		m.Mode = "file"
	}
	return m
}

// controlMessage is a tagged union over the client control types.
type controlMessage struct {
	Type     string `json:"type"`
	Language string `json:"language"`
	Data     string `json:"data"`
	Format   string `json:"format"`
}

// protocolError is a client-caused failure, answered with an error
// message on the same connection. It never terminates the connection.
type protocolError struct {
	Kind    string
	Message string
}

func (e *protocolError) Error() string { return e.Message }

// decodeControl parses a text frame into a control message. Unknown or
// malformed input is a protocol error, not a connection failure.
func decodeControl(raw []byte) (controlMessage, error) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return controlMessage{}, &protocolError{
			Kind:    "malformed_control",
			Message: "Invalid control message: not valid JSON",
		}
	}
	switch msg.Type {
	case typeSetLanguage, typeAudioFile, typeStop:
		return msg, nil
	default:
		return controlMessage{}, &protocolError{
			Kind:    "unknown_control",
			Message: fmt.Sprintf("Unknown control message type: %q", msg.Type),
		}
	}
}

// decodeAudioData decodes an audio_file payload: base64, with an
// optional data-URL prefix as browsers produce from FileReader.
func decodeAudioData(data string) ([]byte, error) {
	if idx := strings.Index(data, ";base64,"); idx >= 0 {
		data = data[idx+len(";base64,"):]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &protocolError{
			Kind:    "invalid_audio_data",
			Message: "Invalid audio_file payload: not valid base64",
		}
	}
	if len(decoded) == 0 {
		return nil, &protocolError{
			Kind:    "empty_audio_data",
			Message: "Invalid audio_file payload: empty audio",
		}
	}
	return decoded, nil
}
