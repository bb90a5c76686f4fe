package hub

import (
	"github.com/socialnet/socket/src/metrics"
	"github.com/socialnet/socket/src/types"
)

// deliver hands msg to the connection bound to userID, at most once.
func (h *Hub) deliver(userID string, msg types.Message) bool {
	connID, ok := h.registry.Lookup(userID)
	if !ok {
		h.metrics.Dropped(metrics.DropOffline)
		h.logger.Debug().Str("user_id", userID).Str("event", msg.Event).Msg("recipient offline")
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		h.metrics.Dropped(metrics.DropOffline)
		return false
	}

	if !h.send(client, msg) {
		return false
	}
	h.metrics.Delivered(msg.Event)
	return true
}

// broadcastStatus sends a status update to every connected client,
// announced or not.
func (h *Hub) broadcastStatus(userID, status string) {
	msg, err := types.NewMessage(types.EventStatusUpdate, types.StatusUpdate{
		UserID: userID,
		Status: status,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("encode status update")
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	callbacks := h.onStatus
	h.mu.RUnlock()

	for _, c := range clients {
		h.send(c, msg)
	}
	h.metrics.Broadcast(status)

	for _, cb := range callbacks {
		cb(userID, status)
	}
}

func (h *Hub) send(c *Client, msg types.Message) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		h.metrics.Dropped(metrics.DropBufferFull)
		h.logger.Warn().Str("client_id", c.ID).Msg("send buffer full, dropping")
		return false
	}
}
