package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/gameserver/game/service"
	"github.com/wricardo/mcp-training/gameserver/game/session"
)

// Default windows for find_sessions when hours is omitted.
const (
	defaultRecentHours = 1.0
	defaultStaleHours  = 24.0
)

func stringArray(name, description string, opts ...mcp.PropertyOption) mcp.ToolOption {
	opts = append([]mcp.PropertyOption{
		mcp.Description(description),
		mcp.Items(map[string]any{"type": "string"}),
	}, opts...)
	return mcp.WithArray(name, opts...)
}

func optionalSessionID() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Description("Session ID; the active session when omitted"))
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Discovery
	s.add(mcp.NewTool("list_games",
		mcp.WithDescription("List registered game types with their descriptions and config schemas"),
	), s.handleListGames)

	s.add(mcp.NewTool("list_presets",
		mcp.WithDescription("List named presets that can be passed to create_session"),
	), s.handleListPresets)

	// Session management
	s.add(mcp.NewTool("create_session",
		mcp.WithDescription("Create a new game session from a game type or a preset"),
		mcp.WithString("game_type", mcp.Description("Game type, see list_games. Optional when preset is given")),
		mcp.WithString("preset", mcp.Description("Preset name, see list_presets")),
		mcp.WithString("session_id", mcp.Description("Custom session ID (letters, digits, '-' and '_')")),
		stringArray("tags", "Tags to attach to the session"),
		mcp.WithObject("config", mcp.Description("Game configuration; keys override the preset's")),
		mcp.WithBoolean("auto_activate", mcp.Description("Make the session active when none is (default true)")),
		mcp.WithString("correlation_id", mcp.Description("Correlation ID echoed in emitted events")),
	), s.handleCreateSession)

	s.add(mcp.NewTool("get_session_info",
		mcp.WithDescription("Describe a session: status, tags, age, idle time and game state"),
		optionalSessionID(),
	), s.handleGetSessionInfo)

	s.add(mcp.NewTool("list_sessions",
		mcp.WithDescription("List sessions, most recently accessed first, with optional filters"),
		mcp.WithString("game_type", mcp.Description("Only this game type")),
		stringArray("tags", "Sessions holding any of these tags"),
		stringArray("tags_all", "Sessions holding all of these tags"),
		stringArray("statuses", "Statuses to include: active, idle, stale, completed"),
		mcp.WithBoolean("include_completed", mcp.Description("Include completed sessions (default true)")),
		mcp.WithNumber("min_age_hours", mcp.Description("Minimum age in hours")),
		mcp.WithNumber("max_age_hours", mcp.Description("Maximum age in hours")),
		mcp.WithNumber("min_idle_hours", mcp.Description("Minimum idle time in hours")),
		mcp.WithNumber("max_idle_hours", mcp.Description("Maximum idle time in hours")),
		mcp.WithString("created_after", mcp.Description("RFC 3339 timestamp")),
		mcp.WithString("created_before", mcp.Description("RFC 3339 timestamp")),
		mcp.WithNumber("limit", mcp.Description("Page size, 0 for all")),
		mcp.WithNumber("offset", mcp.Description("Page offset")),
	), s.handleListSessions)

	s.add(mcp.NewTool("delete_session",
		mcp.WithDescription("Delete a session. Deleting the active session elects the most recently used one"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID to delete")),
	), s.handleDeleteSession)

	s.add(mcp.NewTool("set_active_session",
		mcp.WithDescription("Make a session the active session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID to activate")),
	), s.handleSetActiveSession)

	s.add(mcp.NewTool("update_session_tags",
		mcp.WithDescription("Replace, add or remove the tags of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		stringArray("tags", "Tags to apply", mcp.Required()),
		mcp.WithString("mode", mcp.Enum("replace", "add", "remove"), mcp.Description("How to apply the tags (default replace)")),
	), s.handleUpdateTags)

	// Bulk and maintenance
	s.add(mcp.NewTool("bulk_delete_sessions",
		mcp.WithDescription("Delete several sessions; reports a per-session outcome"),
		stringArray("session_ids", "Session IDs to delete", mcp.Required()),
	), s.handleBulkDelete)

	s.add(mcp.NewTool("bulk_tag_sessions",
		mcp.WithDescription("Add tags to several sessions; reports a per-session outcome"),
		stringArray("session_ids", "Session IDs to tag", mcp.Required()),
		stringArray("tags", "Tags to add", mcp.Required()),
	), s.handleBulkTag)

	s.add(mcp.NewTool("cleanup_sessions",
		mcp.WithDescription("Remove sessions that are too old or idle. Use dry_run to preview"),
		mcp.WithNumber("max_age_hours", mcp.Description("Delete sessions older than this")),
		mcp.WithNumber("max_idle_hours", mcp.Description("Delete sessions idle longer than this")),
		mcp.WithBoolean("keep_completed", mcp.Description("Never delete completed sessions")),
		mcp.WithBoolean("keep_active", mcp.Description("Never delete the active session")),
		stringArray("keep_tagged", "Never delete sessions holding any of these tags"),
		stringArray("exclude_game_types", "Never delete sessions of these game types"),
		mcp.WithBoolean("dry_run", mcp.Description("Report what would be deleted without deleting")),
	), s.handleCleanup)

	s.add(mcp.NewTool("get_health_status",
		mcp.WithDescription("Report capacity, session counts and health warnings"),
	), s.handleHealth)

	s.add(mcp.NewTool("find_sessions",
		mcp.WithDescription("Run a canned session query"),
		mcp.WithString("query", mcp.Required(),
			mcp.Enum("by_tag", "by_type", "completed", "active", "recent", "stale"),
			mcp.Description("Query to run")),
		mcp.WithString("value", mcp.Description("Tag for by_tag, game type for by_type")),
		mcp.WithNumber("hours", mcp.Description("Window for recent (default 1) and stale (default 24)")),
	), s.handleFindSessions)

	// Game operations
	s.add(mcp.NewTool("get_game_state",
		mcp.WithDescription("Get the current game state of a session"),
		optionalSessionID(),
	), s.handleGameState)

	s.add(mcp.NewTool("play",
		mcp.WithDescription("Apply a move to a session. Tic-tac-toe takes {row, col}; number guessing takes {guess}"),
		optionalSessionID(),
		mcp.WithObject("action", mcp.Required(), mcp.Description("Game-specific move")),
	), s.handlePlay)
}

// Tool handlers

func (s *Server) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	games := s.games.ListGames(ctx)
	return jsonResult(map[string]any{"games": games, "count": len(games)}), nil
}

func (s *Server) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	presets, err := s.games.ListPresets(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"presets": presets, "count": len(presets)}), nil
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	req := service.CreateRequest{
		CreateRequest: session.CreateRequest{
			GameType:      cast.ToString(args["game_type"]),
			SessionID:     cast.ToString(args["session_id"]),
			CorrelationID: cast.ToString(args["correlation_id"]),
		},
		Preset: cast.ToString(args["preset"]),
	}
	var err error
	if req.Tags, err = session.StringList(args["tags"]); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tags: %v", err)), nil
	}
	if raw, ok := args["config"]; ok && raw != nil {
		if req.Config, err = cast.ToStringMapE(raw); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("config must be an object: %v", err)), nil
		}
	}
	if raw, ok := args["auto_activate"]; ok && raw != nil {
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("auto_activate: %v", err)), nil
		}
		req.AutoActivate = &v
	}

	res, err := s.games.CreateSession(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fromResult(res), nil
}

func (s *Server) handleGetSessionInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := cast.ToString(request.GetArguments()["session_id"])
	return fromResult(s.sessions.GetSessionInfo(ctx, id)), nil
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter, err := session.ParseFilter(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fromResult(s.sessions.ListSessions(ctx, filter)), nil
}

func (s *Server) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requiredString(request, "session_id")
	if errResult != nil {
		return errResult, nil
	}
	return fromResult(s.sessions.DeleteSession(ctx, id)), nil
}

func (s *Server) handleSetActiveSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requiredString(request, "session_id")
	if errResult != nil {
		return errResult, nil
	}
	return fromResult(s.sessions.SetActiveSession(ctx, id)), nil
}

func (s *Server) handleUpdateTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, errResult := requiredString(request, "session_id")
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	tags, err := session.StringList(args["tags"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tags: %v", err)), nil
	}

	switch mode := strings.ToLower(cast.ToString(args["mode"])); mode {
	case "", "replace":
		return fromResult(s.sessions.UpdateSessionTags(ctx, id, tags)), nil
	case "add":
		return fromResult(s.sessions.AddSessionTags(ctx, id, tags)), nil
	case "remove":
		return fromResult(s.sessions.RemoveSessionTags(ctx, id, tags)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q: use replace, add or remove", mode)), nil
	}
}

func (s *Server) handleBulkDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := session.IDList(request.GetArguments()["session_ids"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session_ids: %v", err)), nil
	}
	return fromResult(s.sessions.BulkDeleteSessions(ctx, ids)), nil
}

func (s *Server) handleBulkTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ids, err := session.IDList(args["session_ids"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session_ids: %v", err)), nil
	}
	tags, err := session.StringList(args["tags"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("tags: %v", err)), nil
	}
	return fromResult(s.sessions.BulkTagSessions(ctx, ids, tags)), nil
}

func (s *Server) handleCleanup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	criteria, err := session.ParseCleanupCriteria(request.GetArguments(), s.sessions.DefaultCleanupCriteria())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return fromResult(s.sessions.CleanupSessions(ctx, criteria)), nil
}

func (s *Server) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return fromResult(s.sessions.GetHealthStatus(ctx)), nil
}

func (s *Server) handleFindSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, errResult := requiredString(request, "query")
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	value := strings.TrimSpace(cast.ToString(args["value"]))
	hours, err := cast.ToFloat64E(args["hours"])
	if err != nil || hours < 0 {
		return mcp.NewToolResultError("hours must be a non-negative number"), nil
	}

	var records []*session.Record
	switch query {
	case "by_tag", "by_type":
		if value == "" {
			return mcp.NewToolResultError(fmt.Sprintf("%s requires value", query)), nil
		}
		if query == "by_tag" {
			records = s.sessions.SessionsByTag(value)
		} else {
			records = s.sessions.SessionsByType(value)
		}
	case "completed":
		records = s.sessions.CompletedSessions()
	case "active":
		records = s.sessions.ActiveSessions()
	case "recent":
		if hours == 0 {
			hours = defaultRecentHours
		}
		records = s.sessions.RecentSessions(hours)
	case "stale":
		if hours == 0 {
			hours = defaultStaleHours
		}
		records = s.sessions.StaleSessions(hours)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown query %q", query)), nil
	}

	return jsonResult(map[string]any{
		"query":    query,
		"count":    len(records),
		"sessions": s.sessions.Summaries(records),
	}), nil
}

func (s *Server) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.games.GetGameState(ctx, cast.ToString(request.GetArguments()["session_id"]))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(state), nil
}

func (s *Server) handlePlay(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	action, err := cast.ToStringMapE(args["action"])
	if err != nil || len(action) == 0 {
		return mcp.NewToolResultError("action must be a non-empty object"), nil
	}

	result, err := s.games.Play(ctx, cast.ToString(args["session_id"]), action)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result), nil
}

// requiredString reads a non-empty string argument. The second return is a
// ready-made tool error when the argument is missing.
func requiredString(request mcp.CallToolRequest, key string) (string, *mcp.CallToolResult) {
	v := strings.TrimSpace(cast.ToString(request.GetArguments()[key]))
	if v == "" {
		return "", mcp.NewToolResultError(key + " is required")
	}
	return v, nil
}
