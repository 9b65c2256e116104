// Package ledger holds every message seen during one chat session, in
// arrival order, with at most one entry per message id.
package ledger

import (
	"iter"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"
)

// Message is a chat message held in the ledger.
type Message struct {
	ID          string
	Text        string
	SenderID    string
	SenderName  string
	SenderRole  string
	RecipientID string
	Timestamp   string // ISO-8601 as assigned by the server
	Read        bool
}

// timeLayouts are the ISO-8601 shapes servers are seen to emit. Layouts
// without an offset are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// Time parses Timestamp. Returns the zero time when it cannot be parsed.
func (m Message) Time() time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Between reports whether m was exchanged between a and b, in either direction.
func (m Message) Between(a, b string) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

// Ledger is an append-only, id-deduplicated message store.
// It is safe for concurrent use.
type Ledger struct {
	mu   sync.RWMutex
	msgs *orderedmap.OrderedMap[string, Message]
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{msgs: orderedmap.NewOrderedMap[string, Message]()}
}

// IngestLive appends a message pushed in real time. Returns false when the id
// was already present (or empty) and nothing was appended.
func (l *Ledger) IngestLive(m Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insert(m)
}

// IngestBacklog appends a replayed backlog in order, skipping ids already
// present. Returns how many messages were appended.
func (l *Ledger) IngestBacklog(msgs []Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	added := 0
	for _, m := range msgs {
		if l.insert(m) {
			added++
		}
	}
	return added
}

// insert enforces the one-entry-per-id invariant. A duplicate that arrives
// already read still raises the stored read flag. Caller holds the write lock.
func (l *Ledger) insert(m Message) bool {
	if m.ID == "" {
		return false
	}
	if el := l.msgs.GetElement(m.ID); el != nil {
		if m.Read {
			el.Value.Read = true
		}
		return false
	}
	return l.msgs.Set(m.ID, m)
}

// MarkRead flips one message's read flag. Unknown and already-read ids are a
// no-op. Returns the message and whether its flag changed.
func (l *Ledger) MarkRead(id string) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el := l.msgs.GetElement(id)
	if el == nil {
		return Message{}, false
	}
	if el.Value.Read {
		return el.Value, false
	}
	el.Value.Read = true
	return el.Value, true
}

// Get returns the message with the given id.
func (l *Ledger) Get(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.msgs.Get(id)
}

// Len returns the number of messages held.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.msgs.Len()
}

// ConversationWith returns the messages exchanged between self and
// counterparty, in arrival order. Each iteration walks the ledger afresh, so
// the sequence can be ranged over repeatedly.
func (l *Ledger) ConversationWith(self, counterparty string) iter.Seq[Message] {
	return l.filter(func(m Message) bool { return m.Between(self, counterparty) })
}

// HasUnreadFrom reports whether an unread message from sender to self exists.
func (l *Ledger) HasUnreadFrom(self, sender string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for m := range l.msgs.Values() {
		if m.RecipientID == self && m.SenderID == sender && !m.Read {
			return true
		}
	}
	return false
}

// Reset discards every message.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = orderedmap.NewOrderedMap[string, Message]()
}

// filter yields matching messages. The read lock is held only while stepping
// to the next element, so a consumer may call back into the ledger mid-range.
// A Reset during iteration leaves the walk on the discarded entries.
func (l *Ledger) filter(keep func(Message) bool) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		l.mu.RLock()
		el := l.msgs.Front()
		l.mu.RUnlock()
		for el != nil {
			l.mu.RLock()
			m := el.Value
			l.mu.RUnlock()
			if keep(m) && !yield(m) {
				return
			}
			l.mu.RLock()
			el = el.Next()
			l.mu.RUnlock()
		}
	}
}
