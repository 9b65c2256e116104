// Package wire defines the JSON event contract spoken with the chat server.
// Every frame is a text message holding an Envelope.
package wire

import (
	"encoding/json"
	"fmt"
)

// Client to server events.
const (
	EventJoin                   = "join"
	EventSendMessage            = "sendMessage"
	EventMarkConversationAsRead = "markConversationAsRead"
)

// Server to client events.
const (
	EventNewMessage     = "newMessage"
	EventQueuedMessages = "queuedMessages"
	EventOnlineUsers    = "onlineUsers"
	EventMessageRead    = "messageRead"
	EventUnreadCounts   = "unreadCounts"
)

// Envelope is the framing for every event on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message is a chat message as the server delivers it.
type Message struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	SenderRole  string `json:"senderRole"`
	RecipientID string `json:"recipientId,omitempty"`
	Timestamp   string `json:"timestamp"`
	Read        bool   `json:"read"`
}

// User identifies a participant in join announcements and presence snapshots.
type User struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

// SendMessage is the payload of a sendMessage request.
type SendMessage struct {
	Text        string `json:"text" validate:"required"`
	SenderID    string `json:"senderId" validate:"required"`
	SenderName  string `json:"senderName"`
	SenderRole  string `json:"senderRole"`
	RecipientID string `json:"recipientId" validate:"required"`
	Timestamp   string `json:"timestamp" validate:"required"`
}

// Encode wraps payload in an envelope for the named event.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a raw frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing event name")
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
