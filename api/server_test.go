package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/gameserver/game/config"
	"github.com/wricardo/mcp-training/gameserver/game/events"
	"github.com/wricardo/mcp-training/gameserver/game/games/numberguess"
	"github.com/wricardo/mcp-training/gameserver/game/games/tictactoe"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
	"github.com/wricardo/mcp-training/gameserver/game/service"
	"github.com/wricardo/mcp-training/gameserver/game/session"
	"github.com/wricardo/mcp-training/gameserver/transport/websocket"
)

type testServer struct {
	server   *Server
	sessions *session.Manager
	hub      *websocket.Hub
}

func newTestServer(t *testing.T, opts ...session.Option) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := plugin.NewRegistry()
	reg.MustRegister(tictactoe.New(), numberguess.New())

	dir := t.TempDir()
	preset := `{"name": "Two humans", "game_type": "tic_tac_toe", "config": {"player_o_human": true}, "tags": ["pvp"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pvp.json"), []byte(preset), 0644))
	presets, err := config.NewManager(dir, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	dispatcher := events.NewDispatcher(events.WithLogger(logger), events.WithSink(hub))
	t.Cleanup(dispatcher.Close)

	base := []session.Option{session.WithLogger(logger), session.WithDispatcher(dispatcher)}
	mgr := session.NewManager(reg, append(base, opts...)...)
	svc := service.NewGameService(mgr, reg, presets, service.WithLogger(logger))

	return &testServer{
		server:   NewServer(mgr, svc, hub, logger),
		sessions: mgr,
		hub:      hub,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	ts.server.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (ts *testServer) create(t *testing.T, body map[string]any) string {
	t.Helper()
	w, out := ts.do(t, http.MethodPost, "/api/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return out["data"].(map[string]any)["session_id"].(string)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name     string
		body     any
		status   int
		wantCode string
	}{
		{"by game type", map[string]any{"game_type": "tic_tac_toe"}, http.StatusCreated, ""},
		{"with custom id", map[string]any{"game_type": "number_guessing", "session_id": "guess-1"}, http.StatusCreated, ""},
		{"from preset", map[string]any{"preset": "pvp", "session_id": "pvp-1"}, http.StatusCreated, ""},
		{"duplicate id", map[string]any{"game_type": "tic_tac_toe", "session_id": "guess-1"}, http.StatusConflict, "SESSION_ALREADY_EXISTS"},
		{"unknown game", map[string]any{"game_type": "chess"}, http.StatusBadRequest, "UNKNOWN_GAME_TYPE"},
		{"bad config", map[string]any{"game_type": "tic_tac_toe", "config": map[string]any{"first_player": "Z"}}, http.StatusBadRequest, "CONFIG_VALIDATION_FAILED"},
		{"bad id", map[string]any{"game_type": "tic_tac_toe", "session_id": "no spaces"}, http.StatusBadRequest, "INVALID_SESSION_ID"},
		{"unknown preset", map[string]any{"preset": "missing"}, http.StatusNotFound, ""},
		{"malformed body", "{", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := ts.do(t, http.MethodPost, "/api/sessions", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, out["error_code"])
			}
		})
	}

	assert.Equal(t, 3, ts.sessions.Count())
	record, ok := ts.sessions.Lookup("pvp-1")
	require.True(t, ok)
	assert.Equal(t, []string{"pvp"}, record.Tags())
}

func TestCreateSession_LimitReached(t *testing.T) {
	ts := newTestServer(t, session.WithMaxSessions(1))
	ts.create(t, map[string]any{"game_type": "tic_tac_toe"})

	w, out := ts.do(t, http.MethodPost, "/api/sessions", map[string]any{"game_type": "tic_tac_toe"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "SESSION_LIMIT_REACHED", out["error_code"])
}

func TestListSessions(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "a", "tags": []string{"red"}})
	ts.create(t, map[string]any{"game_type": "number_guessing", "session_id": "b", "tags": []string{"blue"}})

	w, out := ts.do(t, http.MethodGet, "/api/sessions?tags=red,green", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].(map[string]any)
	assert.EqualValues(t, 2, data["total_count"])
	assert.EqualValues(t, 1, data["filtered_count"])
	sessions := data["sessions"].([]any)
	assert.Equal(t, "a", sessions[0].(map[string]any)["session_id"])

	w, out = ts.do(t, http.MethodGet, "/api/sessions?tags=red&tags=blue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["data"].(map[string]any)["filtered_count"])

	w, out = ts.do(t, http.MethodGet, "/api/sessions?tags=green,red&tags=blue&statuses=completed&statuses=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["data"].(map[string]any)["filtered_count"])

	w, out = ts.do(t, http.MethodGet, "/api/sessions?game_type=number_guessing&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["data"].(map[string]any)["filtered_count"])

	t.Run("unparseable filter", func(t *testing.T) {
		w, out := ts.do(t, http.MethodGet, "/api/sessions?max_age_hours=old", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_FILTER", out["error_code"])
	})

	t.Run("inconsistent filter", func(t *testing.T) {
		w, out := ts.do(t, http.MethodGet, "/api/sessions?min_age_hours=5&max_age_hours=1", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_FILTER", out["error_code"])
	})
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w, out := ts.do(t, http.MethodGet, "/api/sessions/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", out["error_code"])

	first := ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "first"})
	ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "second"})

	w, out = ts.do(t, http.MethodGet, "/api/sessions/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := out["data"].(map[string]any)["session_info"].(map[string]any)
	assert.Equal(t, first, info["session_id"])

	w, _ = ts.do(t, http.MethodPost, "/api/sessions/second/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "second", ts.sessions.ActiveSessionID())

	w, out = ts.do(t, http.MethodGet, "/api/sessions/first", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, out["data"], "config_schema")

	w, _ = ts.do(t, http.MethodDelete, "/api/sessions/second", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "first", ts.sessions.ActiveSessionID())

	w, _ = ts.do(t, http.MethodDelete, "/api/sessions/second", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/sessions/missing/activate", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateTags(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, map[string]any{"game_type": "tic_tac_toe", "tags": []string{"a"}})
	path := "/api/sessions/" + id + "/tags"

	w, _ := ts.do(t, http.MethodPut, path, map[string]any{"tags": []string{"b", "c"}, "mode": "add"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodPut, path, map[string]any{"tags": []string{"a"}, "mode": "remove"})
	require.Equal(t, http.StatusOK, w.Code)

	record, _ := ts.sessions.Lookup(id)
	assert.Equal(t, []string{"b", "c"}, record.Tags())

	w, _ = ts.do(t, http.MethodPut, path, map[string]any{"tags": []string{"z"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"z"}, record.Tags())

	w, out := ts.do(t, http.MethodPut, path, map[string]any{"tags": []string{"x"}, "mode": "merge"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_TAGS", out["error_code"])
}

func TestBulkOperations(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "one"})
	ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "two"})

	w, out := ts.do(t, http.MethodPost, "/api/sessions/bulk-tag", map[string]any{
		"session_ids": []string{"one", "two", "ghost"},
		"tags":        []string{"batch"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	data := out["data"].(map[string]any)
	assert.EqualValues(t, 2, data["successful"])
	assert.EqualValues(t, 1, data["failed"])

	w, out = ts.do(t, http.MethodPost, "/api/sessions/bulk-delete", map[string]any{
		"session_ids": []string{"one", "ghost"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	data = out["data"].(map[string]any)
	assert.EqualValues(t, 1, data["successful"])
	assert.Equal(t, 1, ts.sessions.Count())
}

func TestMove(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, map[string]any{"preset": "pvp"})
	path := "/api/sessions/" + id + "/move"

	w, out := ts.do(t, http.MethodPost, path, map[string]any{"row": 1, "col": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "O", out["game_state"].(map[string]any)["current_player"])

	w, _ = ts.do(t, http.MethodPost, path, map[string]any{"row": 1, "col": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "occupied cell")

	w, out = ts.do(t, http.MethodGet, "/api/sessions/"+id+"/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["game_state"].(map[string]any)["moves_made"])

	w, out = ts.do(t, http.MethodPost, "/api/sessions/missing/move", map[string]any{"row": 0, "col": 0})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", out["error_code"])
}

func TestCleanup(t *testing.T) {
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	ts := newTestServer(t, session.WithClock(now))
	ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "old"})
	ts.create(t, map[string]any{"game_type": "tic_tac_toe", "session_id": "keep", "tags": []string{"pin"}})
	clock = clock.Add(30 * time.Hour)

	w, out := ts.do(t, http.MethodPost, "/api/cleanup?dry_run=true", map[string]any{"keep_tagged": []string{"pin"}, "keep_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := out["data"].(map[string]any)
	assert.Equal(t, true, data["dry_run"])
	assert.Len(t, data["deleted_sessions"], 1)
	assert.Equal(t, 2, ts.sessions.Count())

	w, _ = ts.do(t, http.MethodPost, "/api/cleanup", map[string]any{"keep_tagged": []string{"pin"}, "keep_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ts.sessions.Count())

	w, out = ts.do(t, http.MethodPost, "/api/cleanup", map[string]any{"max_age_hours": 1, "max_idle_hours": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_CRITERIA", out["error_code"])
}

func TestDiscoveryAndHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.create(t, map[string]any{"game_type": "tic_tac_toe"})

	w, out := ts.do(t, http.MethodGet, "/api/games", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, out["count"])

	w, out = ts.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["count"])

	w, out = ts.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	health := out["data"].(map[string]any)
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 1, health["total_sessions"])

	w, out = ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, out["total_sessions"])
}

func TestStatusForCode(t *testing.T) {
	tests := map[session.Code]int{
		session.CodeSessionNotFound:        http.StatusNotFound,
		session.CodeSessionAlreadyExists:   http.StatusConflict,
		session.CodeSessionLimitReached:    http.StatusTooManyRequests,
		session.CodeInvalidFilter:          http.StatusBadRequest,
		session.CodeConfigValidationFailed: http.StatusBadRequest,
		session.CodeStateCreationFailed:    http.StatusInternalServerError,
		session.CodeInternalError:          http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusForCode(code), string(code))
	}
}

func TestWebSocketEvents(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(t, map[string]any{"preset": "pvp"})

	server := httptest.NewServer(ts.server)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?session=" + id

	resp, err := http.Get(server.URL + "/ws?session=missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	w, _ := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/move", map[string]any{"row": 0, "col": 0})
	require.Equal(t, http.StatusOK, w.Code)

	// session_created may still be in flight; skip ahead to the move.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	for i := 0; i < 3; i++ {
		msg = nil
		require.NoError(t, conn.ReadJSON(&msg))
		if msg["event_type"] == "session_updated" {
			break
		}
	}
	assert.Equal(t, "session_updated", msg["event_type"])
	assert.Equal(t, id, msg["session_id"])
}
