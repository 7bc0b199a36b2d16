package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/gameserver/game/service"
	"github.com/wricardo/mcp-training/gameserver/game/session"
	"github.com/wricardo/mcp-training/gameserver/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	sessions *session.Manager
	service  service.GameService
	hub      *websocket.Hub
	router   *mux.Router
	logger   *slog.Logger
}

// NewServer creates a new API server. hub may be nil, which disables /ws.
func NewServer(sessions *session.Manager, gameService service.GameService, hub *websocket.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions: sessions,
		service:  gameService,
		hub:      hub,
		router:   mux.NewRouter(),
		logger:   logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.Use(s.logRequests)
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management; fixed paths must precede the {id} patterns
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/active", s.handleGetActiveSession).Methods("GET")
	api.HandleFunc("/sessions/bulk-delete", s.handleBulkDelete).Methods("POST")
	api.HandleFunc("/sessions/bulk-tag", s.handleBulkTag).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/tags", s.handleUpdateTags).Methods("PUT")
	api.HandleFunc("/sessions/{id}/activate", s.handleActivate).Methods("POST")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/move", s.handleMove).Methods("POST")

	// Maintenance and discovery
	api.HandleFunc("/cleanup", s.handleCleanup).Methods("POST")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handle mounts an extra handler, such as the MCP endpoint, on the router.
func (s *Server) Handle(path string, handler http.Handler) {
	s.router.PathPrefix(path).Handler(handler)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code session.Code, message string) {
	body := map[string]any{"success": false, "error": message}
	if code != "" {
		body["error_code"] = code
	}
	respondJSON(w, status, body)
}

// respondResult writes a manager Result, choosing the status from its code.
func respondResult(w http.ResponseWriter, okStatus int, res *session.Result) {
	if res.Success {
		respondJSON(w, okStatus, res)
		return
	}
	respondJSON(w, StatusForCode(res.ErrorCode), res)
}

// respondErr maps a service error onto a status and error code.
func respondErr(w http.ResponseWriter, err error) {
	code := session.CodeInternalError
	for _, c := range []session.Code{
		session.CodeSessionNotFound,
		session.CodeUnknownGameType,
		session.CodeConfigValidationFailed,
		session.CodeInvalidSessionID,
	} {
		if errors.Is(err, c.Sentinel()) {
			code = c
			break
		}
	}
	status := StatusForCode(code)
	switch {
	case errors.Is(err, service.ErrPresetNotFound):
		status = http.StatusNotFound
		code = ""
	case errors.Is(err, service.ErrInvalidPreset),
		errors.Is(err, service.ErrInvalidMove),
		errors.Is(err, service.ErrNotPlayable):
		status = http.StatusBadRequest
		code = ""
	}
	respondError(w, status, code, err.Error())
}

// StatusForCode maps a result code to an HTTP status.
func StatusForCode(code session.Code) int {
	switch code {
	case session.CodeSessionNotFound:
		return http.StatusNotFound
	case session.CodeSessionAlreadyExists:
		return http.StatusConflict
	case session.CodeSessionLimitReached:
		return http.StatusTooManyRequests
	case session.CodeUnknownGameType,
		session.CodeConfigValidationFailed,
		session.CodeInvalidSessionID,
		session.CodeInvalidTags,
		session.CodeInvalidCriteria,
		session.CodeInvalidFilter:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	res, err := s.service.CreateSession(r.Context(), req)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondResult(w, http.StatusCreated, res)
}

// listParams are filter keys that may be repeated in a query string.
var listParams = map[string]bool{"tags": true, "tags_all": true, "statuses": true, "status": true}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	for key, values := range r.URL.Query() {
		switch {
		case len(values) == 0:
		case listParams[key]:
			args[key] = strings.Join(values, ",")
		default:
			args[key] = values[len(values)-1]
		}
	}
	filter, err := session.ParseFilter(args)
	if err != nil {
		respondError(w, http.StatusBadRequest, session.CodeInvalidFilter, err.Error())
		return
	}
	respondResult(w, http.StatusOK, s.sessions.ListSessions(r.Context(), filter))
}

func (s *Server) handleGetActiveSession(w http.ResponseWriter, r *http.Request) {
	respondResult(w, http.StatusOK, s.sessions.GetSessionInfo(r.Context(), ""))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	respondResult(w, http.StatusOK, s.sessions.GetSessionInfo(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	respondResult(w, http.StatusOK, s.sessions.DeleteSession(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleUpdateTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
		// Mode is replace (default), add or remove.
		Mode string `json:"mode,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	id := mux.Vars(r)["id"]
	switch req.Mode {
	case "", "replace":
		respondResult(w, http.StatusOK, s.sessions.UpdateSessionTags(r.Context(), id, req.Tags))
	case "add":
		respondResult(w, http.StatusOK, s.sessions.AddSessionTags(r.Context(), id, req.Tags))
	case "remove":
		respondResult(w, http.StatusOK, s.sessions.RemoveSessionTags(r.Context(), id, req.Tags))
	default:
		respondError(w, http.StatusBadRequest, session.CodeInvalidTags,
			fmt.Sprintf("unknown mode %q (want replace, add or remove)", req.Mode))
	}
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	respondResult(w, http.StatusOK, s.sessions.SetActiveSession(r.Context(), mux.Vars(r)["id"]))
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionIDs []string `json:"session_ids"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	respondResult(w, http.StatusOK, s.sessions.BulkDeleteSessions(r.Context(), req.SessionIDs))
}

func (s *Server) handleBulkTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionIDs []string `json:"session_ids"`
		Tags       []string `json:"tags"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	respondResult(w, http.StatusOK, s.sessions.BulkTagSessions(r.Context(), req.SessionIDs, req.Tags))
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	action := map[string]any{}
	if err := decodeBody(r, &action); err != nil {
		respondError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	result, err := s.service.Play(r.Context(), sessionID, action)
	if err != nil {
		respondErr(w, err)
		return
	}

	s.logger.Info("move", "session_id", sessionID, "game_type", result.GameType, "completed", result.Completed)
	respondJSON(w, http.StatusOK, result)
}

// Maintenance Handlers

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{}
	if err := decodeBody(r, &args); err != nil {
		respondError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	if dryRun := r.URL.Query().Get("dry_run"); dryRun != "" {
		args["dry_run"] = dryRun
	}
	criteria, err := session.ParseCleanupCriteria(args, s.sessions.DefaultCleanupCriteria())
	if err != nil {
		respondError(w, http.StatusBadRequest, session.CodeInvalidCriteria, err.Error())
		return
	}
	respondResult(w, http.StatusOK, s.sessions.CleanupSessions(r.Context(), criteria))
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondResult(w, http.StatusOK, s.sessions.GetHealthStatus(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sessions.Stats())
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := s.service.ListGames(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"games": games,
		"count": len(games),
	})
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, session.CodeInternalError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"presets": presets,
		"count":   len(presets),
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "event streaming disabled", http.StatusServiceUnavailable)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID != websocket.AllSessions {
		if _, ok := s.sessions.Lookup(sessionID); !ok {
			http.Error(w, "Invalid session", http.StatusNotFound)
			return
		}
	}

	s.hub.ServeWS(w, r, sessionID)
}
