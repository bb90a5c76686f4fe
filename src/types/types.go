package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Inbound event names.
const (
	EventUserOnline     = "userOnline"
	EventPrivateMessage = "privateMessage"
	EventNotification   = "notification"
)

// Outbound event names.
const (
	EventStatusUpdate    = "userStatusUpdate"
	EventNewMessage      = "newMessage"
	EventNewNotification = "newNotification"
)

// Presence statuses carried by EventStatusUpdate.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ErrMalformedFrame wraps errors from decoding a frame that arrived
// intact but is not a valid Message.
var ErrMalformedFrame = errors.New("malformed frame")

// Message is a WebSocket frame. Data holds the raw event payload.
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	ClientID  string          `json:"-"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage encodes payload as the data of an event frame.
func NewMessage(event string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: data, Timestamp: time.Now()}, nil
}

// Decode unmarshals the frame data into v.
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(m.Data, v)
}

// Announce is the userOnline payload. Clients send either a bare user id
// string or an object with a userId field.
type Announce struct {
	UserID string `json:"userId"`
}

func (a *Announce) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.UserID)
	}
	type plain Announce
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Announce(p)
	return nil
}

// StatusUpdate is broadcast to every connection on presence changes.
type StatusUpdate struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// PrivateMessage is the privateMessage payload. Message is passed through
// to the recipient untouched.
type PrivateMessage struct {
	From    string          `json:"from"`
	To      string          `json:"to"`
	Message json.RawMessage `json:"message"`
}

// MessageDelivery is what the recipient of a private message receives.
type MessageDelivery struct {
	From    string          `json:"from"`
	Message json.RawMessage `json:"message"`
}

// Notification is the notification payload.
type Notification struct {
	From    string          `json:"from,omitempty"`
	To      string          `json:"to"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// NotificationDelivery is what the recipient of a notification receives.
type NotificationDelivery struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	BoundUserID string    `json:"bound_user_id,omitempty"`
	State       string    `json:"state"`
	ConnectedAt time.Time `json:"connected_at"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Pinger is implemented by connections that support keepalive pings.
type Pinger interface {
	WritePing() error
}
