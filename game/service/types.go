package service

import (
	"time"

	"github.com/wricardo/mcp-training/gameserver/game/plugin"
	"github.com/wricardo/mcp-training/gameserver/game/session"
)

// CreateRequest is a session creation request that may name a preset.
// Fields set on the request take precedence over the preset's.
type CreateRequest struct {
	session.CreateRequest
	Preset string `json:"preset,omitempty"`
}

// MoveResult contains the result of a move
type MoveResult struct {
	SessionID string         `json:"session_id"`
	GameType  string         `json:"game_type"`
	Outcome   map[string]any `json:"outcome"`
	GameState map[string]any `json:"game_state"`
	Completed bool           `json:"is_completed"`
	// JustCompleted is set when this move finished the game.
	JustCompleted bool      `json:"just_completed,omitempty"`
	Message       string    `json:"message"`
	PlayedAt      time.Time `json:"played_at"`
}

// GameStateInfo is the current state of one session's game.
type GameStateInfo struct {
	SessionID    string         `json:"session_id"`
	GameType     string         `json:"game_type"`
	Tags         []string       `json:"tags"`
	GameState    map[string]any `json:"game_state"`
	Completed    bool           `json:"is_completed"`
	LastAccessed time.Time      `json:"last_accessed"`
}

// GameSummary describes a registered game type
type GameSummary struct {
	GameType     string          `json:"game_type"`
	Info         plugin.GameInfo `json:"info"`
	ConfigSchema map[string]any  `json:"config_schema"`
	Playable     bool            `json:"playable"`
}
