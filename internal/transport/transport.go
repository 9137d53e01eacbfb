// Package transport implements the persistent real-time connection to the
// Raharpa Shopp backend. It wraps a websocket connection with named-event
// dispatch, fire-and-forget emits, bounded automatic reconnection, and
// connection lifecycle hooks. Connection errors are always reported through
// the error hooks, never surfaced as panics from the read loop.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"raharpa/internal/pkg/logger"
)

// Handler receives the payload of a named event.
type Handler func(payload json.RawMessage)

// Frame is the wire format of the real-time channel: a named event with an
// optional JSON payload.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// State describes the connection lifecycle.
type State int

const (
	// StateDisconnected means no live connection exists but the client may
	// still dial or reconnect.
	StateDisconnected State = iota
	// StateConnected means a live connection is established.
	StateConnected
	// StateClosed is terminal: the reconnect budget was exhausted or Close
	// was called. The client must be re-created to connect again.
	StateClosed
)

// ErrClosed is returned by Dial on a client that has been closed.
var ErrClosed = errors.New("transport: client is closed")

// ErrReconnectExhausted is reported through the error hooks when the
// reconnect budget runs out.
var ErrReconnectExhausted = errors.New("transport: reconnect attempts exhausted")

const (
	maxReconnectAttempts = 5
	initialBackoff       = time.Second
	maxBackoff           = 30 * time.Second

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is a reconnecting websocket client with named-event dispatch.
// Registering a handler under an already-registered event name replaces the
// previous handler; handlers never stack.
type Client struct {
	url    string
	log    *logger.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	handlers map[string]Handler
	gen      int

	hookID       int
	onConnect    map[int]func()
	onDisconnect map[int]func(error)
	onError      map[int]func(error)

	writeMu sync.Mutex
}

// New creates a Client for the given websocket endpoint. The client does not
// connect until Dial is called.
func New(url string, l *logger.Logger) *Client {
	return &Client{
		url:          url,
		log:          l,
		dialer:       websocket.DefaultDialer,
		handlers:     make(map[string]Handler),
		onConnect:    make(map[int]func()),
		onDisconnect: make(map[int]func(error)),
		onError:      make(map[int]func(error)),
	}
}

// Dial establishes the connection. It is idempotent: calling it while a live
// connection exists returns immediately without opening a duplicate. Dialing
// a closed client returns ErrClosed.
func (c *Client) Dial(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected && c.conn != nil {
		c.mu.Unlock()
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.mu.Unlock()
		c.fireError(err)
		return err
	}

	c.conn = conn
	c.state = StateConnected
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readPump(conn, gen)
	go c.pingPump(conn, gen)
	c.fireConnect()
	return nil
}

// On registers handler for the named event, replacing any previously
// registered handler under that name.
func (c *Client) On(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// Off removes the handler registered for the named event.
func (c *Client) Off(event string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, event)
}

// Emit sends a named event with the given payload. The send is
// fire-and-forget: when no connection is established it logs and returns.
func (c *Client) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Sugar().Errorf("Failed to marshal payload for event %q: %s", event, err)
		return
	}

	frame, err := json.Marshal(Frame{Event: event, Payload: data})
	if err != nil {
		c.log.Sugar().Errorf("Failed to marshal frame for event %q: %s", event, err)
		return
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.log.Info("emit dropped, not connected", zap.String("event", event))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Sugar().Warnf("Failed to emit event %q: %s", event, err)
	}
}

// OnConnect registers a hook fired after every successful connect, including
// reconnects. The returned function removes the hook.
func (c *Client) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hookID++
	id := c.hookID
	c.onConnect[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onConnect, id)
	}
}

// OnDisconnect registers a hook fired when a live connection drops. The
// returned function removes the hook.
func (c *Client) OnDisconnect(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hookID++
	id := c.hookID
	c.onDisconnect[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onDisconnect, id)
	}
}

// OnError registers a hook for connection-level failures, including dial
// errors and reconnect exhaustion. The returned function removes the hook.
func (c *Client) OnError(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hookID++
	id := c.hookID
	c.onError[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.onError, id)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether a live connection exists.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// Close tears down the connection and puts the client in its terminal state.
// A closed client is not reusable; create a new one to connect again.
func (c *Client) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.gen++
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		conn.Close()
	}
}

func (c *Client) readPump(conn *websocket.Conn, gen int) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, gen, err)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Sugar().Warnf("Dropping unreadable frame: %s", err)
			continue
		}

		c.mu.Lock()
		handler := c.handlers[frame.Event]
		c.mu.Unlock()

		if handler != nil {
			handler(frame.Payload)
		}
	}
}

func (c *Client) pingPump(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		stale := c.gen != gen || c.state != StateConnected
		c.mu.Unlock()
		if stale {
			return
		}

		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleReadError runs on the read pump's goroutine when the connection
// drops. It attempts to reconnect within the capped budget; when the budget
// is exhausted the client stays in its terminal state until re-created.
func (c *Client) handleReadError(conn *websocket.Conn, gen int, cause error) {
	conn.Close()

	c.mu.Lock()
	if c.gen != gen || c.state == StateClosed {
		// A newer connection owns the client or Close won the race.
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.Sugar().Warnf("Connection lost: %s", cause)
	}
	c.fireDisconnect(cause)

	backoff := initialBackoff
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		time.Sleep(backoff)
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}

		c.mu.Lock()
		if c.state != StateDisconnected {
			// Close was called, or a concurrent Dial already established a
			// fresh connection during the backoff.
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		newConn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		cancel()
		if err != nil {
			c.log.Sugar().Warnf("Reconnect attempt %d failed: %s", attempt, err)
			continue
		}

		c.mu.Lock()
		if c.state != StateDisconnected {
			c.mu.Unlock()
			newConn.Close()
			return
		}
		c.conn = newConn
		c.state = StateConnected
		c.gen++
		newGen := c.gen
		c.mu.Unlock()

		go c.readPump(newConn, newGen)
		go c.pingPump(newConn, newGen)
		c.fireConnect()
		return
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	c.log.Error("reconnect budget exhausted, connection closed")
	c.fireError(ErrReconnectExhausted)
}

func (c *Client) fireConnect() {
	c.mu.Lock()
	hooks := make([]func(), 0, len(c.onConnect))
	for _, fn := range c.onConnect {
		hooks = append(hooks, fn)
	}
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) fireDisconnect(cause error) {
	c.mu.Lock()
	hooks := make([]func(error), 0, len(c.onDisconnect))
	for _, fn := range c.onDisconnect {
		hooks = append(hooks, fn)
	}
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(cause)
	}
}

func (c *Client) fireError(cause error) {
	c.mu.Lock()
	hooks := make([]func(error), 0, len(c.onError))
	for _, fn := range c.onError {
		hooks = append(hooks, fn)
	}
	c.mu.Unlock()
	for _, fn := range hooks {
		fn(cause)
	}
}
