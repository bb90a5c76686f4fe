package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/socialnet/socket/src/types"
)

// wsConn wraps fasthttp/websocket.Conn to satisfy types.Conn and
// types.Pinger. Only the client's write pump writes to it.
type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
}

func newWSConn(conn *websocket.Conn, writeWait, pongWait time.Duration) *wsConn {
	w := &wsConn{conn: conn, writeWait: writeWait, pongWait: pongWait}
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return w
}

func (w *wsConn) WriteJSON(v any) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeWait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}

// ReadJSON reads one whole frame before decoding it, so a frame that
// fails to decode is reported as types.ErrMalformedFrame and only read
// failures are returned bare.
func (w *wsConn) ReadJSON(v any) error {
	_, r, err := w.conn.NextReader()
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := w.conn.SetReadDeadline(time.Now().Add(w.pongWait)); err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", types.ErrMalformedFrame, err)
	}
	return nil
}

func (w *wsConn) WritePing() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeWait))
}

func (w *wsConn) Close() error { return w.conn.Close() }
