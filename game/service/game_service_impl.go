package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/gameserver/game/config"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
	"github.com/wricardo/mcp-training/gameserver/game/session"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	registry *plugin.Registry
	presets  PresetStore
	logger   *slog.Logger
}

// Option configures the game service.
type Option func(*gameServiceImpl)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *gameServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewGameService creates a new game service instance. presets may be nil
// when no preset directory is configured.
func NewGameService(sessions SessionManager, registry *plugin.Registry, presets PresetStore, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		registry: registry,
		presets:  presets,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a session, filling unset request fields from the
// named preset. Preset problems are returned as errors; everything else is
// reported through the manager's Result.
func (s *gameServiceImpl) CreateSession(ctx context.Context, req CreateRequest) (*session.Result, error) {
	create := req.CreateRequest
	if strings.TrimSpace(req.Preset) != "" {
		preset, err := s.loadPreset(req.Preset)
		if err != nil {
			return nil, err
		}
		create, err = applyPreset(create, preset)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("creating session from preset", "preset", preset.ID, "game_type", create.GameType)
	}
	return s.sessions.CreateSession(ctx, create), nil
}

func (s *gameServiceImpl) loadPreset(name string) (*config.Preset, error) {
	if s.presets == nil {
		return nil, fmt.Errorf("%w: %s (no preset directory configured)", ErrPresetNotFound, name)
	}
	preset, err := s.presets.LoadPreset(name)
	switch {
	case err == nil:
		return preset, nil
	case errors.Is(err, config.ErrConfigNotFound):
		if list, listErr := s.presets.ListPresets(); listErr == nil && len(list) > 0 {
			ids := make([]string, 0, len(list))
			for _, p := range list {
				ids = append(ids, p.ID)
			}
			return nil, fmt.Errorf("%w: '%s'. Available presets: %s", ErrPresetNotFound, name, strings.Join(ids, ", "))
		}
		return nil, fmt.Errorf("%w: '%s'", ErrPresetNotFound, name)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
}

// applyPreset merges preset defaults under the request. Config keys from the
// request override the preset's; tags are the union, preset tags first.
func applyPreset(req session.CreateRequest, preset *config.Preset) (session.CreateRequest, error) {
	presetType := strings.ToLower(strings.TrimSpace(preset.GameType))
	reqType := strings.ToLower(strings.TrimSpace(req.GameType))
	switch {
	case reqType == "":
		req.GameType = presetType
	case reqType != presetType:
		return req, fmt.Errorf("%w: preset %s is for %s, not %s", ErrInvalidPreset, preset.ID, presetType, reqType)
	}

	cfg := make(map[string]any, len(preset.Config)+len(req.Config))
	for k, v := range preset.Config {
		cfg[k] = v
	}
	for k, v := range req.Config {
		cfg[k] = v
	}
	req.Config = cfg

	req.Tags = append(slices.Clone(preset.Tags), req.Tags...)
	return req, nil
}

// Play applies one action to a session's game (the active session when
// sessionID is empty).
func (s *gameServiceImpl) Play(ctx context.Context, sessionID string, action map[string]any) (*MoveResult, error) {
	record, ok := s.sessions.Lookup(sessionID)
	if !ok {
		if sessionID == "" {
			return nil, fmt.Errorf("%w: no active session", session.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	p, err := s.registry.Get(record.GameType)
	if err != nil {
		return nil, err
	}
	player, ok := p.(plugin.Player)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotPlayable, record.GameType)
	}
	if action == nil {
		action = map[string]any{}
	}

	var outcome map[string]any
	var wasCompleted bool
	record, err = s.sessions.WithState(ctx, record.ID, func(state plugin.State) (plugin.State, error) {
		wasCompleted = state.IsCompleted()
		out, err := player.Apply(state, action)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMove, err)
		}
		outcome = out
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	result := &MoveResult{
		SessionID: record.ID,
		GameType:  record.GameType,
		Outcome:   outcome,
		GameState: record.Snapshot(),
		Completed: record.IsCompleted(),
		Message:   "Move applied",
		PlayedAt:  time.Now(),
	}
	result.JustCompleted = result.Completed && !wasCompleted
	if msg, ok := outcome["message"].(string); ok && msg != "" {
		result.Message = msg
	} else if result.JustCompleted {
		result.Message = "Game over"
	}
	s.logger.Debug("move applied", "session_id", record.ID, "game_type", record.GameType, "completed", result.Completed)
	return result, nil
}

// GetGameState returns the current game state of a session.
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*GameStateInfo, error) {
	record, ok := s.sessions.GetSession(sessionID)
	if !ok {
		if sessionID == "" {
			return nil, fmt.Errorf("%w: no active session", session.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sessionID)
	}
	return &GameStateInfo{
		SessionID:    record.ID,
		GameType:     record.GameType,
		Tags:         record.Tags(),
		GameState:    record.Snapshot(),
		Completed:    record.IsCompleted(),
		LastAccessed: record.LastAccessed(),
	}, nil
}

// ListGames describes every registered game type, sorted by type.
func (s *gameServiceImpl) ListGames(ctx context.Context) []GameSummary {
	types := s.registry.ListTypes()
	games := make([]GameSummary, 0, len(types))
	for _, t := range types {
		p, err := s.registry.Get(t)
		if err != nil {
			continue
		}
		_, playable := p.(plugin.Player)
		games = append(games, GameSummary{
			GameType:     t,
			Info:         p.Info(),
			ConfigSchema: p.JSONSchema(),
			Playable:     playable,
		})
	}
	return games
}

// ListPresets lists the available presets; empty without a preset store.
func (s *gameServiceImpl) ListPresets(ctx context.Context) ([]config.PresetInfo, error) {
	if s.presets == nil {
		return []config.PresetInfo{}, nil
	}
	return s.presets.ListPresets()
}
