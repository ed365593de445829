package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signage-server/signage-server-pro/internal/config"
)

type captureHandler struct {
	mu     sync.Mutex
	frames [][]byte
	conns  []string
}

func (h *captureHandler) Handle(data []byte, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, data)
	h.conns = append(h.conns, connID)
}

// connAt waits for the i-th inbound frame and returns the connection it
// arrived on.
func (h *captureHandler) connAt(t *testing.T, i int) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.Lock()
		if len(h.conns) > i {
			conn := h.conns[i]
			h.mu.Unlock()
			return conn
		}
		h.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatalf("frame %d not received in time", i)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func newTestHub(t *testing.T) (*Hub, *captureHandler, string) {
	t.Helper()

	hub := NewHub(&config.TransportConfig{
		IdleTimeout:  5 * time.Second,
		WriteTimeout: time.Second,
		SendBuffer:   8,
	})
	handler := &captureHandler{}
	hub.SetHandler(handler)

	ws := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(ws.Close)
	t.Cleanup(hub.CloseAll)

	url := "ws" + strings.TrimPrefix(ws.URL, "http")
	return hub, handler, url
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubSessionLifecycle(t *testing.T) {
	hub, handler, url := newTestHub(t)

	conn := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 1 })

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"Type":"HEARTBEAT"}`)))
	connID := handler.connAt(t, 0)
	assert.NotEmpty(t, connID)

	conn.Close()
	waitFor(t, func() bool { return hub.Count() == 0 })
}

func TestHubBindAndSendToClient(t *testing.T) {
	hub, handler, url := newTestHub(t)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"Type":"REGISTER"}`)))
	connID := handler.connAt(t, 0)

	require.NoError(t, hub.Bind(connID, "c1"))
	assert.True(t, hub.IsConnected("c1"))
	assert.NotEmpty(t, hub.RemoteAddr(connID))
	assert.Empty(t, hub.RemoteAddr("gone"))

	require.NoError(t, hub.SendToClient("c1", []byte(`{"Type":"COMMAND"}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"Type":"COMMAND"}`, string(data))
}

func TestHubSendToUnknown(t *testing.T) {
	hub, _, _ := newTestHub(t)

	assert.ErrorIs(t, hub.SendTo("nope", []byte("x")), ErrSessionNotFound)
	assert.ErrorIs(t, hub.SendToClient("nope", []byte("x")), ErrClientNotConnected)
}

func TestHubBroadcastBestEffort(t *testing.T) {
	hub, _, url := newTestHub(t)

	first := dial(t, url)
	second := dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 2 })

	// A session whose writer is saturated must not stall or abort the
	// broadcast for everyone else.
	stuck := &Session{ID: "stuck", send: make(chan []byte)}
	hub.mu.Lock()
	hub.sessions[stuck.ID] = stuck
	hub.mu.Unlock()
	t.Cleanup(func() {
		hub.mu.Lock()
		delete(hub.sessions, stuck.ID)
		hub.mu.Unlock()
	})

	hub.Broadcast([]byte(`{"Type":"DISPLAY_UPDATE"}`))

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"Type":"DISPLAY_UPDATE"}`, string(data))
	}

	assert.ErrorIs(t, stuck.enqueue([]byte("x")), ErrSessionNotWritable)
}

func TestHubSupersedeOnReconnect(t *testing.T) {
	hub, handler, url := newTestHub(t)

	var disconnects []struct {
		clientID      string
		authoritative bool
	}
	var mu sync.Mutex
	hub.SetDisconnectFunc(func(connID, clientID string, authoritative bool) {
		mu.Lock()
		defer mu.Unlock()
		disconnects = append(disconnects, struct {
			clientID      string
			authoritative bool
		}{clientID, authoritative})
	})

	first := dial(t, url)
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(`{"Type":"REGISTER"}`)))
	firstConn := handler.connAt(t, 0)
	require.NoError(t, hub.Bind(firstConn, "c1"))

	second := dial(t, url)
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(`{"Type":"REGISTER"}`)))
	secondConn := handler.connAt(t, 1)
	require.NotEqual(t, firstConn, secondConn)
	require.NoError(t, hub.Bind(secondConn, "c1"))

	// The superseded session leaves; its disconnect must not be
	// authoritative and the identity stays connected.
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(disconnects) >= 1
	})

	mu.Lock()
	assert.Equal(t, "c1", disconnects[0].clientID)
	assert.False(t, disconnects[0].authoritative)
	mu.Unlock()

	assert.True(t, hub.IsConnected("c1"))
	require.NoError(t, hub.SendToClient("c1", []byte(`{"Type":"COMMAND"}`)))

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"Type":"COMMAND"}`, string(data))
}
