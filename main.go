// Command gameserver runs the multi-game session server.
//
// It supports two modes:
//  1. "server" (default) runs the HTTP server exposing the REST API, the
//     WebSocket event stream and an /mcp endpoint
//  2. "stdio-mcp" serves the MCP tools over stdin and stdout
//
// Settings come from the environment (and a .env file); flags override them.
// An optional ngrok tunnel exposes the HTTP server publicly during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/gameserver/api"
	"github.com/wricardo/mcp-training/gameserver/game/config"
	"github.com/wricardo/mcp-training/gameserver/game/events"
	"github.com/wricardo/mcp-training/gameserver/game/games/numberguess"
	"github.com/wricardo/mcp-training/gameserver/game/games/tictactoe"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
	"github.com/wricardo/mcp-training/gameserver/game/service"
	"github.com/wricardo/mcp-training/gameserver/game/session"
	"github.com/wricardo/mcp-training/gameserver/transport/mcp"
	"github.com/wricardo/mcp-training/gameserver/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Game Session Server"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. Flags on the root command apply to every mode.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "gameserver",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (env PORT)"},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host"},
			&cli.StringFlag{Name: "presets-dir", Usage: "Directory containing session presets (env PRESETS_DIR)"},
			&cli.IntFlag{Name: "max-sessions", Usage: "Maximum concurrent sessions (env MAX_SESSIONS)"},
			&cli.DurationFlag{Name: "cleanup-interval", Usage: "Background cleanup interval, 0 disables (env CLEANUP_INTERVAL)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging (env DEBUG)"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Expose the HTTP server through an ngrok tunnel (env NGROK)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (env NGROK_DOMAIN)"},
		},
		DefaultCommand: "server",
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run the HTTP server with REST API, WebSocket and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := loadSettings(cmd)
					if err != nil {
						return err
					}
					a, err := newApp(settings, newLogger(os.Stderr, settings.Debug))
					if err != nil {
						return err
					}
					return a.runServer(ctx, cmd.String("host"))
				},
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Serve the MCP tools over stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					settings, err := loadSettings(cmd)
					if err != nil {
						return err
					}
					// stdout carries the protocol; logs go to stderr.
					a, err := newApp(settings, newLogger(os.Stderr, settings.Debug))
					if err != nil {
						return err
					}
					return a.runStdio(ctx)
				},
			},
		},
	}
}

// loadSettings reads the environment and applies flags that were set.
func loadSettings(cmd *cli.Command) (config.Settings, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return s, err
	}
	if cmd.IsSet("port") {
		s.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("presets-dir") {
		s.PresetsDir = cmd.String("presets-dir")
	}
	if cmd.IsSet("max-sessions") {
		s.MaxSessions = int(cmd.Int("max-sessions"))
	}
	if cmd.IsSet("cleanup-interval") {
		s.CleanupInterval = cmd.Duration("cleanup-interval")
	}
	if cmd.IsSet("debug") {
		s.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		s.Ngrok = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		s.NgrokDomain = cmd.String("ngrok-domain")
	}
	return s, s.Validate()
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// app holds the wired services shared by both modes.
type app struct {
	settings   config.Settings
	logger     *slog.Logger
	dispatcher *events.Dispatcher
	hub        *websocket.Hub
	sessions   *session.Manager
	mcp        *mcp.Server
	api        *api.Server
}

// newRegistry registers the built-in games.
func newRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	reg.MustRegister(tictactoe.New(), numberguess.New())
	return reg
}

// newApp wires the registry, event pipeline, session manager, presets and
// transports. A missing presets directory disables presets.
func newApp(settings config.Settings, logger *slog.Logger) (*app, error) {
	registry := newRegistry()

	hub := websocket.NewHub(logger)
	dispatcher := events.NewDispatcher(
		events.WithLogger(logger),
		events.WithQueueSize(settings.EventQueueSize),
		events.WithSink(hub),
	)

	sessions := session.NewManager(registry,
		session.WithLogger(logger),
		session.WithDispatcher(dispatcher),
		session.WithMaxSessions(settings.MaxSessions),
		session.WithStaleHours(settings.StaleHours),
		session.WithEventsDefault(settings.EmitEvents),
	)
	sessions.Configure(session.ConfigureOptions{
		DefaultTimeoutHours: session.Ptr(settings.TimeoutHours),
		DefaultIdleHours:    session.Ptr(settings.IdleHours),
	})

	// A nil *config.Manager must not end up in the interface.
	var presets service.PresetStore
	presetManager, err := config.NewManager(settings.PresetsDir, registry)
	switch {
	case err == nil:
		presets = presetManager
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("presets directory not found, presets disabled", "dir", settings.PresetsDir)
	default:
		dispatcher.Close()
		return nil, fmt.Errorf("failed to create preset manager: %w", err)
	}

	games := service.NewGameService(sessions, registry, presets, service.WithLogger(logger))
	mcpServer := mcp.NewServer(sessions, games, logger)
	apiServer := api.NewServer(sessions, games, hub, logger)
	apiServer.Handle("/mcp", mcpServer.HTTPHandler())

	return &app{
		settings:   settings,
		logger:     logger,
		dispatcher: dispatcher,
		hub:        hub,
		sessions:   sessions,
		mcp:        mcpServer,
		api:        apiServer,
	}, nil
}

// startBackground runs the hub and the periodic cleanup until ctx is done.
func (a *app) startBackground(ctx context.Context) {
	go a.hub.Run(ctx)
	if a.settings.CleanupInterval > 0 {
		go a.sessions.RunCleanup(ctx, a.settings.CleanupInterval)
	}
}

// runServer serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *app) runServer(ctx context.Context, host string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.dispatcher.Close()
	a.startBackground(ctx)

	addr := fmt.Sprintf("%s:%d", host, a.settings.Port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     a.api,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server listening", "addr", addr,
			"api", "http://"+addr+"/api",
			"websocket", "ws://"+addr+"/ws?session=<session_id>",
			"mcp", "http://"+addr+"/mcp")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if a.settings.Ngrok {
		go a.serveNgrok(ctx)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// serveNgrok exposes the HTTP handler through an ngrok tunnel. The auth token
// is read from NGROK_AUTHTOKEN. Failures are logged; the local server keeps
// running.
func (a *app) serveNgrok(ctx context.Context) {
	if os.Getenv("NGROK_AUTHTOKEN") == "" {
		a.logger.Warn("ngrok enabled but NGROK_AUTHTOKEN is not set")
		return
	}

	var endpointOpts []ngrokConfig.HTTPEndpointOption
	if a.settings.NgrokDomain != "" {
		endpointOpts = append(endpointOpts, ngrokConfig.WithDomain(a.settings.NgrokDomain))
	}
	tun, err := ngrok.Listen(ctx, ngrokConfig.HTTPEndpoint(endpointOpts...), ngrok.WithAuthtokenFromEnv())
	if err != nil {
		a.logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}
	defer tun.Close()

	a.logger.Info("ngrok tunnel established", "url", tun.URL())
	srv := &http.Server{Handler: a.api}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("ngrok server error", "error", err)
	}
}

// runStdio serves MCP over stdio until the client disconnects.
func (a *app) runStdio(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.dispatcher.Close()
	a.startBackground(ctx)

	a.logger.Info("MCP stdio server ready", "version", Version)
	return a.mcp.ServeStdio()
}
