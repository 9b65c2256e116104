package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/matheus3301/clinicchat/internal/wire"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 64
)

var (
	// ErrNotConnected is returned by Emit when no connection is live.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrSendBufferFull is returned by Emit when the write pump is backed up.
	ErrSendBufferFull = errors.New("transport: send buffer full")
	// ErrAlreadyOpen is returned by Open on a client that is already running.
	ErrAlreadyOpen = errors.New("transport: already open")
)

// Connected is delivered each time a connection (first or reconnect) is established.
type Connected struct {
	Attempt int
}

// Disconnected is delivered when an established connection drops. The client
// keeps retrying until Close.
type Disconnected struct {
	Err error
}

// Frame is one decoded server event.
type Frame struct {
	wire.Envelope
}

// Handler receives Connected, Disconnected and Frame values, one at a time,
// in delivery order, from the client's run goroutine. It must not block.
type Handler func(evt any)

// Options configures the websocket client.
type Options struct {
	URL          string
	Header       http.Header
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	Dialer       *websocket.Dialer
}

// Client maintains one websocket session with automatic reconnection.
type Client struct {
	opts    Options
	logger  *zap.Logger
	handler Handler

	mu     sync.Mutex
	send   chan []byte
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client. Call RegisterEventHandler before Open.
func New(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = 500 * time.Millisecond
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = max(30*time.Second, opts.ReconnectMin)
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	return &Client{opts: opts, logger: logger}
}

// RegisterEventHandler sets the single consumer of transport events.
func (c *Client) RegisterEventHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Open starts dialing in the background. It returns immediately; progress is
// reported to the handler.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyOpen
	}
	if c.handler == nil {
		return fmt.Errorf("transport: no event handler registered")
	}
	if c.opts.URL == "" {
		return fmt.Errorf("transport: empty server url")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx, c.handler, c.done)
	return nil
}

// Close stops the client and waits for its goroutines to exit. No events are
// delivered after Close returns. Safe to call on a client that was never opened.
func (c *Client) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Emit queues one event for the server without waiting for delivery.
func (c *Client) Emit(event string, payload any) error {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.send == nil {
		return ErrNotConnected
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) run(ctx context.Context, handle Handler, done chan struct{}) {
	defer close(done)
	retry := backoff.WithContext(c.retryPolicy(), ctx)
	attempt := 0

	for {
		attempt++
		conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := retry.NextBackOff()
			c.logger.Warn("dial failed", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		c.logger.Info("connected", zap.String("url", c.opts.URL), zap.Int("attempt", attempt))
		n := attempt
		err = c.serve(ctx, conn, func() { handle(Connected{Attempt: n}) }, handle)
		if ctx.Err() != nil {
			return
		}
		retry.Reset()
		attempt = 0
		c.logger.Warn("connection lost", zap.Error(err))
		handle(Disconnected{Err: err})
		if !sleep(ctx, retry.NextBackOff()) {
			return
		}
	}
}

// retryPolicy spreads redials between ReconnectMin and ReconnectMax with
// jitter and never gives up; only Close stops the loop.
func (c *Client) retryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.ReconnectMin
	b.MaxInterval = c.opts.ReconnectMax
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// serve runs one connection until it fails or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, onOpen func(), handle Handler) error {
	connCtx, cancel := context.WithCancel(ctx)
	send := make(chan []byte, sendBuffer)

	c.mu.Lock()
	c.send = send
	c.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump(connCtx, conn, send)
	}()

	onOpen()
	err := c.readPump(conn, handle)

	c.mu.Lock()
	c.send = nil
	c.mu.Unlock()
	cancel()
	wg.Wait()
	_ = conn.Close()
	return err
}

func (c *Client) readPump(conn *websocket.Conn, handle Handler) error {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		env, err := wire.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		handle(Frame{Envelope: env})
	}
}

// writePump owns all writes on conn. It closes conn on exit so a blocked
// reader returns.
func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case frame := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Warn("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d == backoff.Stop {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
