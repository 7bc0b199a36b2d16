package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/gameserver/game/events"
)

func quietHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHubRegisterClient(t *testing.T) {
	hub := quietHub()
	client := &Client{hub: hub, sessionID: "test-session", send: make(chan []byte, 1)}

	hub.registerClient(client)

	assert.True(t, hub.sessions["test-session"][client])
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubUnregisterClient(t *testing.T) {
	hub := quietHub()
	client := &Client{hub: hub, sessionID: "test-session", send: make(chan []byte, 1)}
	hub.registerClient(client)

	hub.unregisterClient(client)

	_, exists := hub.sessions["test-session"]
	assert.False(t, exists, "empty session entry should be removed")
	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client.send
	assert.False(t, open, "send channel should be closed")

	// A second unregister is a no-op.
	hub.unregisterClient(client)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubBroadcastRouting(t *testing.T) {
	hub := quietHub()
	alpha := &Client{hub: hub, sessionID: "alpha", send: make(chan []byte, 4)}
	beta := &Client{hub: hub, sessionID: "beta", send: make(chan []byte, 4)}
	watcher := &Client{hub: hub, sessionID: AllSessions, send: make(chan []byte, 4)}
	for _, c := range []*Client{alpha, beta, watcher} {
		hub.registerClient(c)
	}

	hub.broadcastMessage(outbound{sessionID: "alpha", data: []byte("a")})
	hub.broadcastMessage(outbound{sessionID: AllSessions, data: []byte("global")})

	assert.Equal(t, []string{"a"}, drain(alpha.send), "sessionless events only reach catch-all clients")
	assert.Empty(t, drain(beta.send))
	assert.Equal(t, []string{"a", "global"}, drain(watcher.send))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := quietHub()
	slow := &Client{hub: hub, sessionID: "s", send: make(chan []byte, 1)}
	hub.registerClient(slow)

	hub.broadcastMessage(outbound{sessionID: "s", data: []byte("1")})
	hub.broadcastMessage(outbound{sessionID: "s", data: []byte("2")})

	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, []string{"1"}, drain(slow.send))
}

func TestHubHandleEventAfterStop(t *testing.T) {
	hub := quietHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Fill the buffer so the only ready case is done.
	for i := 0; i < sendBuffer; i++ {
		hub.broadcast <- outbound{}
	}
	err := hub.HandleEvent(context.Background(), events.New(events.SessionCreated, "x", nil, ""))
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestWebSocketDelivery(t *testing.T) {
	hub := quietHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	dial := func(session string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=" + session
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return conn
	}

	sessionConn := dial("ws-test")
	defer sessionConn.Close()
	allConn := dial("")
	defer allConn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	event := events.New(events.SessionUpdated, "ws-test", map[string]any{"change": "state"}, "corr-1")
	event.Timestamp = time.Now()
	require.NoError(t, hub.HandleEvent(context.Background(), event))
	require.NoError(t, hub.HandleEvent(context.Background(), events.New(events.CleanupPerformed, "", nil, "")))

	var got map[string]any
	sessionConn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, sessionConn.ReadJSON(&got))
	assert.Equal(t, "session_updated", got["event_type"])
	assert.Equal(t, "ws-test", got["session_id"])
	assert.Equal(t, "corr-1", got["correlation_id"])

	var types []string
	allConn.SetReadDeadline(time.Now().Add(time.Second))
	for i := 0; i < 2; i++ {
		var msg map[string]any
		require.NoError(t, allConn.ReadJSON(&msg))
		types = append(types, msg["event_type"].(string))
	}
	assert.Equal(t, []string{"session_updated", "cleanup_performed"}, types)

	sessionConn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubAsDispatcherSink(t *testing.T) {
	hub := quietHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, AllSessions)
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	d := events.NewDispatcher(events.WithSink(hub))
	defer d.Close()
	require.True(t, d.Publish(events.New(events.SessionDeleted, "gone", nil, "")))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "session_deleted", msg["event_type"])
	assert.Nil(t, msg["correlation_id"])
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(b))
		default:
			return out
		}
	}
}
