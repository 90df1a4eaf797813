package ws

import "encoding/json"

// Channel event vocabulary, bidirectional.
const (
	EventUserConnected = "user_connected"
	EventTyping        = "typing"
	EventStopTyping    = "stopTyping"
	EventSendMessage   = "sendMessage"
	EventReceive       = "receiveMessage"
	EventMessageUpdate = "messageUpdate"
	EventMessageEdited = "messageEdited"
	EventError         = "error"
)

type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TypingSignal is transient and never persisted. Clients must also clear the
// indicator on their own timer: the stop event can be lost, and a
// receiveMessage for the same pair is an implicit stop.
type TypingSignal struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type SendPayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Type       string `json:"type,omitempty"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
}

// MessageUpdate is the lightweight list-refresh notification: participant
// ids only, no content.
type MessageUpdate struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Type       string `json:"type"`
}

func marshalEvent(event string, payload any) []byte {
	raw, _ := json.Marshal(payload)
	b, _ := json.Marshal(Envelope{Event: event, Payload: raw})
	return b
}

func errorEvent(msg string) []byte {
	return marshalEvent(EventError, map[string]string{"error": msg})
}
