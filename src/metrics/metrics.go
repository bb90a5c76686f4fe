// Package metrics exposes Prometheus collectors for the socket server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons.
const (
	DropOffline    = "offline"
	DropMalformed  = "malformed"
	DropIdentity   = "identity"
	DropBufferFull = "buffer_full"
	DropUnknown    = "unknown_event"
)

// Metrics holds the server's collectors.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	TotalConnections  prometheus.Counter
	OnlineUsers       prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	Drops             *prometheus.CounterVec
	Broadcasts        *prometheus.CounterVec
	AuthFailures      *prometheus.CounterVec
}

// New creates unregistered collectors.
func New() *Metrics {
	return &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socket_connections_active",
			Help: "The current number of open WebSocket connections.",
		}),
		TotalConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socket_connections_total",
			Help: "The total number of WebSocket connections accepted.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "socket_presence_online",
			Help: "The number of users currently registered as online.",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_events_received_total",
			Help: "Inbound events by name.",
		}, []string{"event"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_deliveries_total",
			Help: "Targeted events handed to a recipient connection.",
		}, []string{"event"}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_drops_total",
			Help: "Events dropped without delivery, by reason.",
		}, []string{"reason"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_broadcasts_total",
			Help: "Status broadcasts by status.",
		}, []string{"status"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socket_auth_failures_total",
			Help: "Rejected WebSocket handshakes by reason.",
		}, []string{"reason"}),
	}
}

// Register adds every collector to r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ActiveConnections,
		m.TotalConnections,
		m.OnlineUsers,
		m.EventsReceived,
		m.Deliveries,
		m.Drops,
		m.Broadcasts,
		m.AuthFailures,
	} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Connected records an accepted connection.
func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
	m.TotalConnections.Inc()
}

// Disconnected records a closed connection.
func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

// SetOnline sets the number of online users.
func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.OnlineUsers.Set(float64(n))
}

// Received counts an inbound event. event must be a known event name.
func (m *Metrics) Received(event string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(event).Inc()
}

// Delivered counts an event handed to a recipient.
func (m *Metrics) Delivered(event string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(event).Inc()
}

// Dropped counts an event dropped for reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.Drops.WithLabelValues(reason).Inc()
}

// Broadcast counts a status broadcast.
func (m *Metrics) Broadcast(status string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(status).Inc()
}

// AuthFailed counts a rejected handshake.
func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}
