package hub

import (
	"github.com/socialnet/socket/src/metrics"
	"github.com/socialnet/socket/src/types"
)

func (h *Hub) handleMessage(c *Client, msg types.Message) {
	h.mu.RLock()
	_, ok := h.clients[c.ID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	// Only known event names become metric labels.
	switch msg.Event {
	case types.EventUserOnline:
		h.metrics.Received(msg.Event)
		h.announce(c, msg)
	case types.EventPrivateMessage:
		h.metrics.Received(msg.Event)
		h.privateMessage(c, msg)
	case types.EventNotification:
		h.metrics.Received(msg.Event)
		h.notification(c, msg)
	default:
		h.metrics.Dropped(metrics.DropUnknown)
		h.logger.Debug().Str("client_id", c.ID).Str("event", msg.Event).Msg("no handler")
	}
}

func (h *Hub) announce(c *Client, msg types.Message) {
	bound := c.BoundUserID()

	var a types.Announce
	if err := msg.Decode(&a); err != nil && bound == "" {
		h.drop(c, msg.Event, metrics.DropMalformed, "undecodable announce")
		return
	}

	userID := a.UserID
	switch {
	case bound != "" && userID == "":
		userID = bound
	case bound != "" && userID != bound:
		h.logger.Warn().
			Str("client_id", c.ID).
			Str("bound_user_id", bound).
			Str("user_id", userID).
			Msg("announce does not match session identity")
		h.metrics.Dropped(metrics.DropIdentity)
		return
	case userID == "":
		h.drop(c, msg.Event, metrics.DropMalformed, "announce without userId")
		return
	}

	// Re-announcing as someone else releases the old identity.
	released := ""
	if prev := c.UserID(); prev != "" && prev != userID {
		if conn, ok := h.registry.Lookup(prev); ok && conn == c.ID {
			released = prev
		}
	}

	h.registry.Register(userID, c.ID)
	c.announced(userID)
	h.metrics.SetOnline(h.registry.Len())

	if released != "" {
		h.broadcastStatus(released, types.StatusOffline)
	}
	h.broadcastStatus(userID, types.StatusOnline)
}

func (h *Hub) privateMessage(c *Client, msg types.Message) {
	var pm types.PrivateMessage
	if err := msg.Decode(&pm); err != nil {
		h.drop(c, msg.Event, metrics.DropMalformed, err.Error())
		return
	}
	if pm.From == "" || pm.To == "" {
		h.drop(c, msg.Event, metrics.DropMalformed, "missing from or to")
		return
	}
	if !h.sameIdentity(c, pm.From) {
		return
	}

	out, err := types.NewMessage(types.EventNewMessage, types.MessageDelivery{
		From:    pm.From,
		Message: pm.Message,
	})
	if err != nil {
		h.drop(c, msg.Event, metrics.DropMalformed, err.Error())
		return
	}
	h.deliver(pm.To, out)
}

func (h *Hub) notification(c *Client, msg types.Message) {
	var n types.Notification
	if err := msg.Decode(&n); err != nil {
		h.drop(c, msg.Event, metrics.DropMalformed, err.Error())
		return
	}
	if n.To == "" {
		h.drop(c, msg.Event, metrics.DropMalformed, "missing to")
		return
	}
	if !h.sameIdentity(c, n.From) {
		return
	}

	out, err := types.NewMessage(types.EventNewNotification, types.NotificationDelivery{
		Type:    n.Type,
		Content: n.Content,
	})
	if err != nil {
		h.drop(c, msg.Event, metrics.DropMalformed, err.Error())
		return
	}
	h.deliver(n.To, out)
}

// sameIdentity reports whether from may be asserted by c. Connections
// without a session identity are trusted.
func (h *Hub) sameIdentity(c *Client, from string) bool {
	bound := c.BoundUserID()
	if bound == "" || bound == from {
		return true
	}
	h.logger.Warn().
		Str("client_id", c.ID).
		Str("bound_user_id", bound).
		Str("from", from).
		Msg("sender does not match session identity")
	h.metrics.Dropped(metrics.DropIdentity)
	return false
}

func (h *Hub) drop(c *Client, event, reason, detail string) {
	h.metrics.Dropped(reason)
	h.logger.Warn().
		Str("client_id", c.ID).
		Str("event", event).
		Str("reason", detail).
		Msg("dropping event")
}
