package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/gameserver/game/service"
	"github.com/wricardo/mcp-training/gameserver/game/session"
)

const (
	serverName    = "Game Session Server"
	serverVersion = "1.0.0"
)

const instructions = `Game Session Server - MCP Interface

Sessions hold independent games. Each session has an id, a game type, tags
and a status (active, idle, stale, completed). One session at a time is the
active session; tools that take an optional session_id use it when the id is
omitted.

GETTING STARTED:
- list_games: registered game types and their config schemas
- list_presets: named creation presets
- create_session: start a game from a game_type or a preset
- play: send a move to a session

HOUSEKEEPING:
- list_sessions / find_sessions: browse sessions
- update_session_tags, bulk_tag_sessions: organize sessions
- delete_session, bulk_delete_sessions, cleanup_sessions: remove sessions
- get_health_status: capacity and health report`

// Server exposes session and game operations as MCP tools. Tools call the
// session manager in process.
type Server struct {
	sessions  *session.Manager
	games     service.GameService
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers every tool.
func NewServer(sessions *session.Manager, games service.GameService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions: sessions,
		games:    games,
		logger:   logger,
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves the tools over stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("serve MCP stdio: %w", err)
	}
	return nil
}

// HTTPHandler returns a streamable HTTP handler for mounting at /mcp.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true))
}

type toolHandler = server.ToolHandlerFunc

// logged wraps a handler with debug logging of the call and its outcome.
func (s *Server) logged(name string, h toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := h(ctx, request)
		s.logger.Debug("mcp tool call", "tool", name, "is_error", res != nil && res.IsError, "error", err)
		return res, err
	}
}

func (s *Server) add(tool mcp.Tool, h toolHandler) {
	s.mcpServer.AddTool(tool, s.logged(tool.Name, h))
}

// jsonResult renders v as indented JSON text.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// fromResult renders a manager Result; failed results are tool errors.
func fromResult(res *session.Result) *mcp.CallToolResult {
	out := jsonResult(res)
	if !res.Success {
		out.IsError = true
	}
	return out
}
