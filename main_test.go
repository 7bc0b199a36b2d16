package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/gameserver/game/config"
)

func TestConstants(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.Equal(t, "Game Session Server", AppName)
}

// settingsFor runs the CLI with args and captures the resolved settings
// instead of starting a server.
func settingsFor(t *testing.T, args ...string) (config.Settings, error) {
	t.Helper()
	cmd := newCommand()
	var got config.Settings
	for _, sub := range cmd.Commands {
		sub.Action = func(ctx context.Context, c *cli.Command) error {
			var err error
			got, err = loadSettings(c)
			return err
		}
	}
	err := cmd.Run(context.Background(), append([]string{"gameserver"}, args...))
	return got, err
}

func TestLoadSettings(t *testing.T) {
	t.Run("environment defaults", func(t *testing.T) {
		s, err := settingsFor(t, "server")
		require.NoError(t, err)
		assert.Equal(t, 8080, s.Port)
		assert.Equal(t, "presets", s.PresetsDir)
		assert.Equal(t, 10*time.Minute, s.CleanupInterval)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("PORT", "9000")
		t.Setenv("MAX_SESSIONS", "7")
		s, err := settingsFor(t, "server", "--port", "9191", "--debug", "--cleanup-interval", "1m")
		require.NoError(t, err)
		assert.Equal(t, 9191, s.Port)
		assert.Equal(t, 7, s.MaxSessions)
		assert.True(t, s.Debug)
		assert.Equal(t, time.Minute, s.CleanupInterval)
	})

	t.Run("default command is server", func(t *testing.T) {
		s, err := settingsFor(t)
		require.NoError(t, err)
		assert.Equal(t, 8080, s.Port)
	})

	t.Run("invalid flag value", func(t *testing.T) {
		_, err := settingsFor(t, "stdio-mcp", "--max-sessions", "0")
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("EVENT_QUEUE_SIZE", "lots")
		_, err := settingsFor(t, "server")
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, true).Debug("shown", "key", "value")
	assert.Contains(t, buf.String(), "key=value")
}

func testSettings(t *testing.T, presetsDir string) config.Settings {
	t.Helper()
	s, err := config.LoadSettings()
	require.NoError(t, err)
	s.PresetsDir = presetsDir
	return s
}

func TestNewApp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("missing presets directory disables presets", func(t *testing.T) {
		a, err := newApp(testSettings(t, filepath.Join(t.TempDir(), "none")), logger)
		require.NoError(t, err)
		t.Cleanup(a.dispatcher.Close)

		w := httptest.NewRecorder()
		a.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/presets", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":0`)
	})

	t.Run("presets path is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "presets")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		_, err := newApp(testSettings(t, file), logger)
		assert.Error(t, err)
	})

	t.Run("wired routes", func(t *testing.T) {
		dir := t.TempDir()
		preset := `{"name": "Easy", "game_type": "number_guessing", "config": {"max_range": 10}}`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "easy.json"), []byte(preset), 0644))

		a, err := newApp(testSettings(t, dir), logger)
		require.NoError(t, err)
		t.Cleanup(a.dispatcher.Close)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		a.startBackground(ctx)

		w := httptest.NewRecorder()
		a.api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"preset": "easy"}`)))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, 1, a.sessions.Count())

		w = httptest.NewRecorder()
		a.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		w = httptest.NewRecorder()
		a.api.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Game Session Server")
	})
}
