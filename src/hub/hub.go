package hub

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/socialnet/socket/src/metrics"
	"github.com/socialnet/socket/src/presence"
	"github.com/socialnet/socket/src/types"
)

type eventKind int

const (
	evConnect eventKind = iota
	evDisconnect
	evMessage
	evDeliver
)

// event is one unit of work for the hub loop. Connection lifecycle and
// client frames share a channel so per-connection order is kept.
type event struct {
	kind   eventKind
	client *Client
	userID string
	msg    types.Message
}

// Hub routes presence announcements, private messages and notifications
// between connected clients. All state changes happen on the Run loop.
type Hub struct {
	clients  map[string]*Client // written only by the loop
	registry presence.Registry

	events chan event

	onConnect []func(string)
	onDisconn []func(string)
	onStatus  []func(userID, status string)

	metrics *metrics.Metrics
	mu      sync.RWMutex
	logger  zerolog.Logger
	done    chan struct{}
	stop    sync.Once
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics records hub activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithBuffer sets the capacity of the event queue.
func WithBuffer(n int) Option {
	return func(h *Hub) { h.events = make(chan event, n) }
}

// New creates a Hub that tracks presence in registry.
func New(logger zerolog.Logger, registry presence.Registry, opts ...Option) *Hub {
	h := &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		events:   make(chan event, 256),
		logger:   logger.With().Str("component", "hub").Logger(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run starts the hub event loop. Call in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case ev := <-h.events:
			h.handle(ev)
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop halts the hub event loop and closes every client.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

// Register queues a new connection.
func (h *Hub) Register(c *Client) {
	h.enqueue(event{kind: evConnect, client: c})
}

// Unregister queues the removal of a connection.
func (h *Hub) Unregister(c *Client) {
	h.enqueue(event{kind: evDisconnect, client: c})
}

// Deliver queues msg for the connection currently bound to userID. The
// message is dropped if the user is offline when the loop reaches it.
func (h *Hub) Deliver(userID string, msg types.Message) bool {
	return h.enqueue(event{kind: evDeliver, userID: userID, msg: msg})
}

func (h *Hub) enqueue(ev event) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case evConnect:
		h.addClient(ev.client)
	case evDisconnect:
		h.removeClient(ev.client)
	case evMessage:
		h.handleMessage(ev.client, ev.msg)
	case evDeliver:
		h.deliver(ev.userID, ev.msg)
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	callbacks := h.onConnect
	h.mu.Unlock()

	h.metrics.Connected()
	h.logger.Info().Str("client_id", c.ID).Msg("client connected")

	for _, cb := range callbacks {
		cb(c.ID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	callbacks := h.onDisconn
	h.mu.Unlock()

	c.disconnect()
	h.metrics.Disconnected()
	h.logger.Info().Str("client_id", c.ID).Msg("client disconnected")

	if userID, removed := h.registry.Unregister(c.ID); removed {
		h.metrics.SetOnline(h.registry.Len())
		h.broadcastStatus(userID, types.StatusOffline)
	}

	for _, cb := range callbacks {
		cb(c.ID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.disconnect()
	}
}
