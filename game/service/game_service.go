package service

import (
	"context"
	"errors"

	"github.com/wricardo/mcp-training/gameserver/game/config"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
	"github.com/wricardo/mcp-training/gameserver/game/session"
)

var (
	ErrPresetNotFound = errors.New("preset not found")
	ErrInvalidPreset  = errors.New("invalid preset")
	ErrNotPlayable    = errors.New("game does not accept moves")
	ErrInvalidMove    = errors.New("invalid move")
)

// GameService defines the game-level operations layered on the session
// manager.
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, req CreateRequest) (*session.Result, error)

	// Game Operations
	Play(ctx context.Context, sessionID string, action map[string]any) (*MoveResult, error)
	GetGameState(ctx context.Context, sessionID string) (*GameStateInfo, error)

	// Discovery
	ListGames(ctx context.Context) []GameSummary
	ListPresets(ctx context.Context) ([]config.PresetInfo, error)
}

// SessionManager is the part of session.Manager the service needs.
type SessionManager interface {
	CreateSession(ctx context.Context, req session.CreateRequest) *session.Result
	GetSession(id string) (*session.Record, bool)
	Lookup(id string) (*session.Record, bool)
	WithState(ctx context.Context, id string, fn func(plugin.State) (plugin.State, error)) (*session.Record, error)
}

// PresetStore loads named creation presets.
type PresetStore interface {
	LoadPreset(name string) (*config.Preset, error)
	ListPresets() ([]config.PresetInfo, error)
}
