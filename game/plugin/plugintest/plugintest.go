// Package plugintest provides a configurable plugin for tests of packages
// that host games.
package plugintest

import (
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

// Config is the configuration accepted by Plugin.
type Config struct {
	Level   string `json:"level,omitempty"`
	Invalid bool   `json:"invalid,omitempty"`
}

// State is a minimal game state whose completion flag tests can flip.
type State struct {
	plugin.BaseState
	Level string `json:"level"`
	Moves int    `json:"moves"`

	mu sync.Mutex
}

// SetCompleted marks the game finished (or not).
func (s *State) SetCompleted(done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Completed = done
}

// IsCompleted reports the completion flag.
func (s *State) IsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Completed
}

// Touch records a state change.
func (s *State) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BaseState.Touch(now)
}

// Snapshot renders the state.
func (s *State) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.BaseSnapshot()
	snap["level"] = s.Level
	snap["moves"] = s.Moves
	return snap
}

// Plugin is a test double for plugin.Plugin and plugin.Player.
type Plugin struct {
	Type string
	// ValidateErr, when set, is returned by ValidateConfig.
	ValidateErr error
	// ValidatePanic makes ValidateConfig panic.
	ValidatePanic bool
	// CreateErr, when set, is returned by CreateInitialState.
	CreateErr error
	// CreatePanic makes CreateInitialState panic.
	CreatePanic bool
	// OnCreate runs at the start of CreateInitialState.
	OnCreate func(id string)
}

// New returns a plugin for the given game type.
func New(gameType string) *Plugin {
	return &Plugin{Type: gameType}
}

// GameType returns the configured type.
func (p *Plugin) GameType() string { return p.Type }

// Info returns static metadata.
func (p *Plugin) Info() plugin.GameInfo {
	return plugin.GameInfo{
		Name:            "Test " + p.Type,
		Description:     "Plugin used in tests",
		Category:        "demo",
		Difficulty:      "easy",
		MinPlayers:      1,
		MaxPlayers:      1,
		Version:         "1.0.0",
		ComplexityScore: 1,
	}
}

// ValidateConfig decodes Config and rejects Invalid=true.
func (p *Plugin) ValidateConfig(raw map[string]any) (any, error) {
	if p.ValidatePanic {
		panic("validate exploded")
	}
	if p.ValidateErr != nil {
		return nil, p.ValidateErr
	}
	var cfg Config
	if err := plugin.DecodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.Invalid {
		return nil, errors.New("invalid flag set")
	}
	if cfg.Level == "" {
		cfg.Level = "normal"
	}
	return cfg, nil
}

// CreateInitialState builds a fresh State.
func (p *Plugin) CreateInitialState(id string, config any) (plugin.State, error) {
	if p.OnCreate != nil {
		p.OnCreate(id)
	}
	if p.CreatePanic {
		panic("create exploded")
	}
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	cfg, _ := config.(Config)
	return &State{
		BaseState: plugin.NewBaseState(id, p.Type, time.Now()),
		Level:     cfg.Level,
	}, nil
}

// JSONSchema reflects Config.
func (p *Plugin) JSONSchema() map[string]any {
	return plugin.SchemaFor(&Config{})
}

// Apply counts a move and finishes the game when action["finish"] is true.
func (p *Plugin) Apply(state plugin.State, action map[string]any) (map[string]any, error) {
	s, ok := state.(*State)
	if !ok {
		return nil, errors.New("unexpected state type")
	}
	s.mu.Lock()
	s.Moves++
	if finish, _ := action["finish"].(bool); finish {
		s.Completed = true
	}
	moves := s.Moves
	s.mu.Unlock()
	return map[string]any{"moves": moves}, nil
}
