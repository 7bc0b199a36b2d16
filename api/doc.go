// Package api provides the HTTP REST API for the game session server.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session from a game type or preset
//   - GET /api/sessions - List sessions; query parameters form the filter
//   - GET /api/sessions/active - Describe the active session
//   - GET /api/sessions/{id} - Describe one session
//   - DELETE /api/sessions/{id} - Delete a session
//   - PUT /api/sessions/{id}/tags - Replace, add or remove tags
//   - POST /api/sessions/{id}/activate - Make a session active
//   - POST /api/sessions/bulk-delete - Delete several sessions
//   - POST /api/sessions/bulk-tag - Tag several sessions
//
// Games:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/move - Apply a move for playable games
//   - GET /api/games - Registered game types with config schemas
//   - GET /api/presets - Preset files
//
// Maintenance:
//   - POST /api/cleanup - Remove old, idle and completed sessions
//   - GET /api/health - Health report
//   - GET /api/stats - Manager statistics
//
// Events:
//   - GET /ws?session=<id> - Stream session events over WebSocket
//
// Response Format:
//
// Manager operations return their Result as-is:
//
//	{"success": true, "data": {...}, "execution_time_ms": 0.12}
//	{"success": false, "error": "...", "error_code": "SESSION_NOT_FOUND"}
//
// The status code follows the error code: 404 for unknown sessions, 409 for
// duplicate ids, 429 when the session limit is reached and 400 for
// validation failures.
//
// Usage:
//
//	srv := api.NewServer(sessions, gameService, hub, logger)
//	srv.Handle("/mcp", mcpHandler)
//	http.ListenAndServe(":8080", srv)
package api
