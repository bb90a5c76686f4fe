package providers

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/rs/zerolog"
	"github.com/socialnet/socket/config"
	"github.com/socialnet/socket/src/service"
	"github.com/socialnet/socket/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startServer(t *testing.T, mutate func(*config.SocketConfig)) (*Server, *fasthttputil.InmemoryListener) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	s := NewServer(cfg, zerolog.Nop())
	require.NoError(t, s.Activate(context.Background()))

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Deactivate() })
	return s, ln
}

func dial(ln *fasthttputil.InmemoryListener, query string, header http.Header) (*websocket.Conn, *http.Response, error) {
	d := websocket.Dialer{
		NetDial:          func(string, string) (net.Conn, error) { return ln.Dial() },
		HandshakeTimeout: time.Second,
	}
	return d.Dial("ws://socket.test/ws"+query, header)
}

func mustDial(t *testing.T, ln *fasthttputil.InmemoryListener) *websocket.Conn {
	t.Helper()
	conn, _, err := dial(ln, "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Event: event, Data: data}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readStatus(t *testing.T, conn *websocket.Conn) types.StatusUpdate {
	t.Helper()
	f := read(t, conn)
	require.Equal(t, types.EventStatusUpdate, f.Event)
	var su types.StatusUpdate
	require.NoError(t, json.Unmarshal(f.Data, &su))
	return su
}

func get(t *testing.T, ln *fasthttputil.InmemoryListener, path string) (int, []byte) {
	t.Helper()
	c := &fasthttp.HostClient{
		Addr: "socket.test",
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://socket.test" + path)
	require.NoError(t, c.DoTimeout(req, resp, 2*time.Second))
	return resp.StatusCode(), append([]byte(nil), resp.Body()...)
}

func TestPresenceAndMessagingOverWebSocket(t *testing.T) {
	_, ln := startServer(t, nil)

	a := mustDial(t, ln)
	send(t, a, types.EventUserOnline, "A")
	assert.Equal(t, types.StatusUpdate{UserID: "A", Status: types.StatusOnline}, readStatus(t, a))

	b := mustDial(t, ln)
	send(t, b, types.EventUserOnline, "B")
	assert.Equal(t, types.StatusUpdate{UserID: "B", Status: types.StatusOnline}, readStatus(t, a))
	assert.Equal(t, types.StatusUpdate{UserID: "B", Status: types.StatusOnline}, readStatus(t, b))

	send(t, b, types.EventPrivateMessage, map[string]any{"from": "B", "to": "A", "message": "hello"})
	f := read(t, a)
	assert.Equal(t, types.EventNewMessage, f.Event)
	assert.JSONEq(t, `{"from":"B","message":"hello"}`, string(f.Data))

	send(t, b, types.EventNotification, map[string]any{"from": "B", "to": "A", "type": "follow", "content": "B followed you"})
	f = read(t, a)
	assert.Equal(t, types.EventNewNotification, f.Event)
	assert.JSONEq(t, `{"type":"follow","content":"B followed you"}`, string(f.Data))

	require.NoError(t, a.Close())
	assert.Equal(t, types.StatusUpdate{UserID: "A", Status: types.StatusOffline}, readStatus(t, b))

	// Dropped silently; the next frame B sees is its own note.
	send(t, b, types.EventPrivateMessage, map[string]any{"from": "B", "to": "A", "message": "lost"})
	send(t, b, types.EventPrivateMessage, map[string]any{"from": "B", "to": "B", "message": "note to self"})
	f = read(t, b)
	assert.JSONEq(t, `{"from":"B","message":"note to self"}`, string(f.Data))
}

func TestUndecodableFrameKeepsConnection(t *testing.T) {
	_, ln := startServer(t, nil)
	a := mustDial(t, ln)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"event":`)))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte{}))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"event":"userOnline","data":"B"`)))
	send(t, a, types.EventUserOnline, "A")
	assert.Equal(t, types.StatusUpdate{UserID: "A", Status: types.StatusOnline}, readStatus(t, a))
}

func TestPlainRequestNeedsUpgrade(t *testing.T) {
	_, ln := startServer(t, nil)
	status, body := get(t, ln, "/ws")
	assert.Equal(t, fasthttp.StatusUpgradeRequired, status)
	assert.Contains(t, string(body), "upgrade_required")
}

func TestOnlineRoutes(t *testing.T) {
	_, ln := startServer(t, nil)
	a := mustDial(t, ln)
	send(t, a, types.EventUserOnline, "alice")
	readStatus(t, a)

	status, body := get(t, ln, "/ws/online")
	require.Equal(t, fasthttp.StatusOK, status)
	assert.JSONEq(t, `{"users":["alice"],"count":1}`, string(body))

	_, body = get(t, ln, "/ws/online/alice")
	assert.JSONEq(t, `{"userId":"alice","online":true}`, string(body))
	_, body = get(t, ln, "/ws/online/bob")
	assert.JSONEq(t, `{"userId":"bob","online":false}`, string(body))

	_, body = get(t, ln, "/ws/info")
	var info map[string]any
	require.NoError(t, json.Unmarshal(body, &info))
	assert.Equal(t, float64(1), info["clients"])
	assert.Equal(t, float64(1), info["online"])
	assert.Equal(t, config.AuthOff, info["auth"])

	_, body = get(t, ln, "/ws/clients")
	var clients struct {
		Clients []types.ClientInfo `json:"clients"`
		Count   int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &clients))
	require.Equal(t, 1, clients.Count)
	assert.Equal(t, "alice", clients.Clients[0].UserID)
	assert.Equal(t, "announced", clients.Clients[0].State)

	status, _ = get(t, ln, "/healthz")
	assert.Equal(t, fasthttp.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	s, ln := startServer(t, nil)
	mustDial(t, ln)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, body := get(t, ln, "/metrics")
	require.Equal(t, fasthttp.StatusOK, status)
	assert.Contains(t, string(body), "socket_connections_total 1")
	assert.Contains(t, string(body), "socket_connections_active 1")
}

func TestOriginCheck(t *testing.T) {
	_, ln := startServer(t, nil)

	_, resp, err := dial(ln, "", http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := dial(ln, "", http.Header{"Origin": {"http://localhost:5173"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestEnforcedIdentity(t *testing.T) {
	s, ln := startServer(t, func(cfg *config.SocketConfig) {
		cfg.Auth.Mode = config.AuthEnforce
		cfg.Auth.Secret = "test-secret"
	})

	_, resp, err := dial(ln, "", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(ln, "?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := s.Authenticator().Issue("alice", time.Hour)
	require.NoError(t, err)

	conn, _, err := dial(ln, "", http.Header{"Cookie": {"jwt=" + token}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// Claiming another identity is ignored; the session identity is used
	// for an empty announce.
	send(t, conn, types.EventUserOnline, "mallory")
	send(t, conn, types.EventUserOnline, map[string]string{})
	assert.Equal(t, types.StatusUpdate{UserID: "alice", Status: types.StatusOnline}, readStatus(t, conn))
	assert.False(t, s.Service().IsOnline("mallory"))

	other, _, err := dial(ln, "?token="+token, nil)
	require.NoError(t, err)
	_ = other.Close()
}

func TestServerLifecycle(t *testing.T) {
	s, _ := startServer(t, nil)
	assert.True(t, s.IsActive())
	assert.Nil(t, s.Authenticator(), "binding is off by default")
	assert.NotNil(t, s.Service())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = s.IsActive()
		}
	}()
	require.NoError(t, s.Deactivate())
	<-done
	assert.False(t, s.IsActive())
	assert.ErrorIs(t, s.Service().Notify("u1", "like", nil), service.ErrStopped)
}
