// Package chat implements the conversation state manager: it consumes
// transport events, keeps the ledger, presence and unread caches for one
// session, and turns user actions into server requests.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/matheus3301/clinicchat/internal/bus"
	"github.com/matheus3301/clinicchat/internal/ledger"
	"github.com/matheus3301/clinicchat/internal/lock"
	"github.com/matheus3301/clinicchat/internal/presence"
	"github.com/matheus3301/clinicchat/internal/profile"
	"github.com/matheus3301/clinicchat/internal/status"
	"github.com/matheus3301/clinicchat/internal/transport"
	"github.com/matheus3301/clinicchat/internal/unread"
	"github.com/matheus3301/clinicchat/internal/wire"
	"go.uber.org/zap"
)

var (
	// ErrNotConnected is returned for user actions outside a session.
	ErrNotConnected = errors.New("chat: no active session")
	// ErrNoCounterparty is returned when sending with nobody selected.
	ErrNoCounterparty = errors.New("chat: no counterparty selected")
	// ErrEmptyMessage is returned when sending blank text.
	ErrEmptyMessage = errors.New("chat: message text is empty")
)

// Transport is the persistent connection the manager drives.
type Transport interface {
	RegisterEventHandler(h transport.Handler)
	Open(ctx context.Context) error
	Emit(event string, payload any) error
	Close() error
}

// Options tunes a Manager.
type Options struct {
	// LockDir maps an identity id to the directory holding its session lock.
	// Nil disables locking.
	LockDir func(id string) string
	// Now stamps outgoing messages. Defaults to time.Now.
	Now func() time.Time
}

// Manager owns all chat state for one connected identity.
type Manager struct {
	transport Transport
	machine   *status.Machine
	bus       *bus.Bus
	logger    *zap.Logger
	opts      Options
	validate  *validator.Validate

	// lifecycle serializes Connect and Disconnect.
	lifecycle sync.Mutex

	mu       sync.RWMutex
	active   bool
	self     profile.Identity
	selected string
	lock     *lock.Lock
	ledger   *ledger.Ledger
	presence *presence.Tracker
	unread   *unread.Counter
}

// NewManager creates a manager and registers it as the transport's event handler.
func NewManager(t Transport, machine *status.Machine, b *bus.Bus, logger *zap.Logger, opts Options) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{
		transport: t,
		machine:   machine,
		bus:       b,
		logger:    logger,
		opts:      opts,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		ledger:    ledger.New(),
		presence:  presence.NewTracker(),
		unread:    unread.NewCounter(),
	}
	t.RegisterEventHandler(m.Handle)
	return m
}

// Connect opens a session for id. Calling it again for the same identity is a
// no-op; a different identity ends the current session first.
func (m *Manager) Connect(ctx context.Context, id profile.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.RLock()
	active, current := m.active, m.self
	m.mu.RUnlock()
	if active {
		if current == id {
			return nil
		}
		m.logger.Info("identity changed, ending current session",
			zap.String("from", current.ID), zap.String("to", id.ID))
		m.teardown()
	}

	var lk *lock.Lock
	if m.opts.LockDir != nil {
		var err error
		lk, err = lock.Acquire(m.opts.LockDir(id.ID), id.ID)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}

	m.mu.Lock()
	m.active = true
	m.self = id
	m.lock = lk
	m.mu.Unlock()

	if err := m.machine.Transition(status.Connecting); err != nil {
		m.logger.Warn("unexpected state on connect", zap.Error(err))
	}
	if err := m.transport.Open(ctx); err != nil {
		m.teardown()
		return fmt.Errorf("connect: %w", err)
	}
	m.logger.Info("session opened", zap.String("user_id", id.ID), zap.String("role", id.Role))
	return nil
}

// Disconnect closes the transport, releases the identity lock and discards
// all session state. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.teardown()
}

// teardown must be called with lifecycle held.
func (m *Manager) teardown() {
	m.mu.Lock()
	wasActive := m.active
	m.active = false
	m.mu.Unlock()

	// Events still in flight see active == false and are dropped.
	if err := m.transport.Close(); err != nil {
		m.logger.Warn("error closing transport", zap.Error(err))
	}

	m.mu.Lock()
	lk := m.lock
	m.lock = nil
	m.self = profile.Identity{}
	m.selected = ""
	m.ledger.Reset()
	m.presence.Reset()
	m.unread.Reset()
	m.mu.Unlock()

	if err := lk.Release(); err != nil {
		m.logger.Warn("error releasing identity lock", zap.Error(err))
	}
	m.machine.Reset()

	if wasActive {
		m.logger.Info("session closed")
		m.publish(bus.ChatLedgerChanged, nil)
		m.publish(bus.ChatPresenceChanged, nil)
		m.publish(bus.ChatUnreadChanged, nil)
		m.publish(bus.ChatSelectionChanged, "")
	}
}

// Handle applies one transport event. Registered as the transport's handler.
func (m *Manager) Handle(evt any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}

	switch e := evt.(type) {
	case transport.Connected:
		m.handleConnected(e)
	case transport.Disconnected:
		m.handleDisconnected(e)
	case transport.Frame:
		m.handleFrame(e.Envelope)
	}
}

func (m *Manager) handleConnected(e transport.Connected) {
	if m.machine.Current() == status.Disconnected {
		_ = m.machine.Transition(status.Connecting)
	}
	if err := m.machine.Transition(status.Connected); err != nil {
		m.logger.Warn("unexpected state on connected", zap.Error(err))
	}

	// Re-announce on every connect; a previous join may have been lost.
	join := wire.User{UserID: m.self.ID, UserName: m.self.Name, UserRole: m.self.Role}
	if err := m.transport.Emit(wire.EventJoin, join); err != nil {
		m.logger.Warn("join announcement failed", zap.Error(err))
		return
	}
	m.logger.Info("joined", zap.Int("attempt", e.Attempt))
}

func (m *Manager) handleDisconnected(e transport.Disconnected) {
	m.logger.Warn("connection lost, transport will retry", zap.Error(e.Err))
	if m.machine.Current() == status.Connected {
		_ = m.machine.Transition(status.Disconnected)
	}
	if m.machine.Current() == status.Disconnected {
		_ = m.machine.Transition(status.Connecting)
	}
	// Presence is stale once the connection is gone; the next join brings a fresh snapshot.
	if len(m.presence.Users()) > 0 {
		m.presence.Reset()
		m.publish(bus.ChatPresenceChanged, 0)
	}
}

func (m *Manager) handleFrame(env wire.Envelope) {
	switch env.Event {
	case wire.EventNewMessage:
		var wm wire.Message
		if err := env.DecodeData(&wm); err != nil {
			m.logger.Warn("malformed payload", zap.Error(err))
			return
		}
		if wm.ID == "" {
			m.logger.Warn("message without id dropped", zap.String("sender_id", wm.SenderID))
			return
		}
		if !m.ledger.IngestLive(fromWire(wm)) {
			m.logger.Debug("duplicate live message dropped", zap.String("msg_id", wm.ID))
			return
		}
		m.publish(bus.ChatLedgerChanged, LedgerChange{Added: 1})

	case wire.EventQueuedMessages:
		var wms []wire.Message
		if err := env.DecodeData(&wms); err != nil {
			m.logger.Warn("malformed payload", zap.Error(err))
			return
		}
		msgs := make([]ledger.Message, 0, len(wms))
		for _, wm := range wms {
			msgs = append(msgs, fromWire(wm))
		}
		added := m.ledger.IngestBacklog(msgs)
		m.logger.Info("backlog replayed", zap.Int("received", len(msgs)), zap.Int("added", added))
		if added > 0 {
			m.publish(bus.ChatLedgerChanged, LedgerChange{Added: added})
		}

	case wire.EventOnlineUsers:
		var users []wire.User
		if err := env.DecodeData(&users); err != nil {
			m.logger.Warn("malformed payload", zap.Error(err))
			return
		}
		snapshot := make([]presence.User, 0, len(users))
		for _, u := range users {
			snapshot = append(snapshot, presence.User{UserID: u.UserID, UserName: u.UserName, UserRole: u.UserRole})
		}
		m.presence.ApplySnapshot(m.self.ID, snapshot)
		m.publish(bus.ChatPresenceChanged, len(m.presence.Users()))

	case wire.EventMessageRead:
		var id string
		if err := env.DecodeData(&id); err != nil {
			m.logger.Warn("malformed payload", zap.Error(err))
			return
		}
		msg, changed := m.ledger.MarkRead(id)
		if msg.ID == "" {
			m.logger.Debug("read receipt for unknown message", zap.String("msg_id", id))
			return
		}
		if changed {
			m.publish(bus.ChatLedgerChanged, LedgerChange{Read: id})
		}
		if msg.RecipientID == m.self.ID && m.unread.Zero(msg.SenderID) {
			m.publish(bus.ChatUnreadChanged, msg.SenderID)
		}

	case wire.EventUnreadCounts:
		var counts map[string]int
		if err := env.DecodeData(&counts); err != nil {
			m.logger.Warn("malformed payload", zap.Error(err))
			return
		}
		m.unread.ApplyServerSnapshot(counts)
		m.logger.Debug("unread counts replaced", zap.Int("total", m.unread.Total()))
		m.publish(bus.ChatUnreadChanged, nil)

	default:
		m.logger.Debug("ignoring unknown event", zap.String("event", env.Event))
	}
}

// SelectCounterparty makes c the open conversation. When c has unread
// messages for us, one markConversationAsRead request is sent; read flags
// change only when the server confirms. An empty c clears the selection.
func (m *Manager) SelectCounterparty(c string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return ErrNotConnected
	}

	if m.selected != c {
		m.selected = c
		m.publish(bus.ChatSelectionChanged, c)
	}
	if c == "" || !m.ledger.HasUnreadFrom(m.self.ID, c) {
		return nil
	}
	if err := m.transport.Emit(wire.EventMarkConversationAsRead, c); err != nil {
		m.logger.Warn("read acknowledgement not sent", zap.String("counterparty", c), zap.Error(err))
	}
	return nil
}

// SendMessage sends text to the selected counterparty without waiting for an
// acknowledgement. The ledger is untouched; the server echoes the stored
// message back as newMessage.
func (m *Manager) SendMessage(text string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkSendable(text); err != nil {
		m.publish(bus.ChatSendRejected, err.Error())
		return err
	}

	payload := wire.SendMessage{
		Text:        text,
		SenderID:    m.self.ID,
		SenderName:  m.self.Name,
		SenderRole:  m.self.Role,
		RecipientID: m.selected,
		Timestamp:   m.opts.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := m.validate.Struct(payload); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if err := m.transport.Emit(wire.EventSendMessage, payload); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (m *Manager) checkSendable(text string) error {
	switch {
	case !m.active:
		return ErrNotConnected
	case m.selected == "":
		return ErrNoCounterparty
	case isBlank(text):
		return ErrEmptyMessage
	}
	return nil
}

// Conversation returns the messages with the selected counterparty in arrival
// order, or nil when nobody is selected. Computed fresh on every call.
func (m *Manager) Conversation() []ledger.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.active || m.selected == "" {
		return nil
	}
	return slices.Collect(m.ledger.ConversationWith(m.self.ID, m.selected))
}

// ConversationWith returns the messages with counterparty c, selected or not.
func (m *Manager) ConversationWith(c string) []ledger.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.active || c == "" {
		return nil
	}
	return slices.Collect(m.ledger.ConversationWith(m.self.ID, c))
}

// Selected returns the selected counterparty id.
func (m *Manager) Selected() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

// Self returns the connected identity and whether a session is active.
func (m *Manager) Self() (profile.Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.self, m.active
}

// OnlineUsers returns the current presence snapshot, self excluded.
func (m *Manager) OnlineUsers() []presence.User {
	return m.presence.Users()
}

// IsOnline reports whether userID appears in the presence snapshot.
func (m *Manager) IsOnline(userID string) bool {
	return m.presence.IsOnline(userID)
}

// UnreadCount returns the badge value for counterparty c.
func (m *Manager) UnreadCount(c string) int {
	return m.unread.Count(c)
}

// UnreadCounts returns a copy of all badge values.
func (m *Manager) UnreadCounts() map[string]int {
	return m.unread.Snapshot()
}

// State returns the connection state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Connected is the connectivity indicator shown by the UI.
func (m *Manager) Connected() bool {
	return m.machine.IsConnected()
}

// LedgerChange describes a ledger mutation on the bus.
type LedgerChange struct {
	Added int
	Read  string
}

func (m *Manager) publish(kind string, payload any) {
	m.bus.Publish(bus.NewEvent(kind, payload))
}
