package hub

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/socialnet/socket/src/types"
)

// State is the lifecycle position of a connection.
type State string

const (
	StateConnected    State = "connected"
	StateAnnounced    State = "announced"
	StateDisconnected State = "disconnected"
)

// Client wraps a WebSocket connection and manages message flow.
type Client struct {
	ID          string
	conn        types.Conn
	hub         *Hub
	Send        chan types.Message
	connectedAt time.Time

	mu          sync.RWMutex
	state       State
	userID      string
	boundUserID string
	remoteAddr  string
	ping        time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithIdentity binds the connection to an authenticated user. Events that
// assert a different identity are dropped.
func WithIdentity(userID string) ClientOption {
	return func(c *Client) { c.boundUserID = userID }
}

// WithRemoteAddr records the peer address for diagnostics.
func WithRemoteAddr(addr string) ClientOption {
	return func(c *Client) { c.remoteAddr = addr }
}

// WithPingInterval makes the write pump ping the peer periodically when
// the connection supports it.
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) { c.ping = d }
}

// WithSendBuffer sets the outbound queue capacity.
func WithSendBuffer(n int) ClientOption {
	return func(c *Client) { c.Send = make(chan types.Message, n) }
}

// NewClient creates a new WebSocket client wrapper.
func NewClient(id string, conn types.Conn, h *Hub, opts ...ClientOption) *Client {
	c := &Client{
		ID:          id,
		conn:        conn,
		hub:         h,
		Send:        make(chan types.Message, 256),
		connectedAt: time.Now(),
		state:       StateConnected,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Info returns metadata about this client.
func (c *Client) Info() types.ClientInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return types.ClientInfo{
		ID:          c.ID,
		UserID:      c.userID,
		BoundUserID: c.boundUserID,
		State:       string(c.state),
		ConnectedAt: c.connectedAt,
		RemoteAddr:  c.remoteAddr,
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// UserID returns the most recently announced user, if any.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// BoundUserID returns the session identity, or "" for unauthenticated
// connections.
func (c *Client) BoundUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.boundUserID
}

func (c *Client) announced(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.state = StateAnnounced
}

func (c *Client) disconnect() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	c.Close()
}

// ReadPump reads frames from the WebSocket and queues them on the hub.
// It returns when the connection fails, then queues the disconnect.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		var msg types.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if isDecodeError(err) {
				c.hub.logger.Warn().Err(err).Str("client_id", c.ID).Msg("dropping undecodable frame")
				continue
			}
			return
		}
		msg.ClientID = c.ID
		msg.Timestamp = time.Now()
		if !c.hub.enqueue(event{kind: evMessage, client: c, msg: msg}) {
			return
		}
	}
}

// WritePump writes queued messages to the WebSocket.
func (c *Client) WritePump() {
	defer c.conn.Close()

	var tick <-chan time.Time
	pinger, canPing := c.conn.(types.Pinger)
	if canPing && c.ping > 0 {
		ticker := time.NewTicker(c.ping)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg := <-c.Send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-tick:
			if err := pinger.WritePing(); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close signals the client to stop its pumps.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the client has been stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// isDecodeError reports whether err concerns the content of one frame
// rather than the connection. io.ErrUnexpectedEOF is what ReadJSON returns
// for a truncated or empty frame; a broken transport surfaces as a
// different error on the next read.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.Is(err, types.ErrMalformedFrame) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &typeErr)
}
