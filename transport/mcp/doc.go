// Package mcp exposes the session server as Model Context Protocol tools.
//
// Tools call the session manager and game service in process, so the stdio
// mode and the HTTP /mcp endpoint share the same session table as the REST
// API.
//
// MCP Tools:
//   - list_games, list_presets: discovery
//   - create_session: from a game type or a preset
//   - get_session_info, list_sessions, find_sessions: inspection
//   - set_active_session, update_session_tags: mutation
//   - delete_session, bulk_delete_sessions, bulk_tag_sessions: removal and batches
//   - cleanup_sessions, get_health_status: maintenance
//   - get_game_state, play: gameplay
//
// Tools that operate on one session take an optional session_id; without it
// they target the active session. Manager results are returned as JSON text.
// A failed result is flagged as a tool error and keeps its error_code.
//
// Usage:
//
//	srv := mcp.NewServer(sessions, gameService, logger)
//
//	// Stdio mode
//	srv.ServeStdio()
//
//	// HTTP mode
//	apiServer.Handle("/mcp", srv.HTTPHandler())
package mcp
