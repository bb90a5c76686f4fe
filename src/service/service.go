package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/socialnet/socket/src/hub"
	"github.com/socialnet/socket/src/types"
)

// ErrStopped is returned when the hub no longer accepts work.
var ErrStopped = errors.New("hub stopped")

// Service is the server-side API over the hub: it lets other components
// push messages and notifications and query presence.
type Service struct {
	hub    *hub.Hub
	logger zerolog.Logger
}

// New creates a new service backed by the given hub.
func New(h *hub.Hub, logger zerolog.Logger) *Service {
	return &Service{hub: h, logger: logger.With().Str("component", "service").Logger()}
}

// SendMessage delivers a private message to `to` if they are online.
// A nil error does not mean the message was delivered.
func (s *Service) SendMessage(from, to string, message any) error {
	if from == "" || to == "" {
		return fmt.Errorf("send message: from and to are required")
	}
	raw, err := toRaw(message)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	msg, err := types.NewMessage(types.EventNewMessage, types.MessageDelivery{From: from, Message: raw})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return s.deliver(to, msg)
}

// Notify delivers a notification to `to` if they are online.
func (s *Service) Notify(to, kind string, content any) error {
	if to == "" {
		return fmt.Errorf("notify: to is required")
	}
	raw, err := toRaw(content)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	msg, err := types.NewMessage(types.EventNewNotification, types.NotificationDelivery{Type: kind, Content: raw})
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return s.deliver(to, msg)
}

func (s *Service) deliver(userID string, msg types.Message) error {
	if !s.hub.Deliver(userID, msg) {
		return ErrStopped
	}
	s.logger.Debug().Str("user_id", userID).Str("event", msg.Event).Msg("queued delivery")
	return nil
}

// IsOnline reports whether userID currently has a live connection.
func (s *Service) IsOnline(userID string) bool {
	return s.hub.IsOnline(userID)
}

// OnlineUsers returns the ids of all online users.
func (s *Service) OnlineUsers() []string {
	return s.hub.OnlineUsers()
}

// OnConnection registers a callback for new connections.
func (s *Service) OnConnection(cb func(clientID string)) {
	s.hub.OnConnection(cb)
}

// OnDisconnection registers a callback for disconnections.
func (s *Service) OnDisconnection(cb func(clientID string)) {
	s.hub.OnDisconnection(cb)
}

// OnStatusChange registers a callback for presence broadcasts.
func (s *Service) OnStatusChange(cb func(userID, status string)) {
	s.hub.OnStatusChange(cb)
}

// GetConnectedClients returns IDs of all connected clients.
func (s *Service) GetConnectedClients() []string {
	return s.hub.ConnectedClients()
}

// GetClientInfo returns info for a connected client, or error.
func (s *Service) GetClientInfo(clientID string) (*types.ClientInfo, error) {
	info := s.hub.ClientInfo(clientID)
	if info == nil {
		return nil, fmt.Errorf("client %s not found", clientID)
	}
	return info, nil
}

func toRaw(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return t, nil
	}
	return json.Marshal(v)
}
