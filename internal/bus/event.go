package bus

import "time"

// Event kinds published by the chat client.
const (
	ConnStateChanged     = "conn.state_changed"
	ChatLedgerChanged    = "chat.ledger_changed"
	ChatPresenceChanged  = "chat.presence_changed"
	ChatUnreadChanged    = "chat.unread_changed"
	ChatSelectionChanged = "chat.selection_changed"
	ChatSendRejected     = "chat.send_rejected"
)

// Event represents a state notification published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
