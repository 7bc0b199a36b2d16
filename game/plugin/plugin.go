package plugin

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// State is everything the session layer needs from a game's state. The
// concrete shape belongs to the plugin that created it.
type State interface {
	IsCompleted() bool
	Touch(now time.Time)
	Snapshot() map[string]any
}

// Plugin implements one game type.
type Plugin interface {
	GameType() string
	Info() GameInfo
	// ValidateConfig parses a raw configuration map into the plugin's own
	// configuration value.
	ValidateConfig(raw map[string]any) (any, error)
	CreateInitialState(id string, config any) (State, error)
	JSONSchema() map[string]any
}

// Player is implemented by plugins that accept moves.
type Player interface {
	Apply(state State, action map[string]any) (map[string]any, error)
}

// GameInfo describes a plugin for discovery.
type GameInfo struct {
	Name                     string   `json:"name"`
	Description              string   `json:"description"`
	Category                 string   `json:"category"`
	Difficulty               string   `json:"difficulty"`
	MinPlayers               int      `json:"min_players"`
	MaxPlayers               int      `json:"max_players"`
	Features                 []string `json:"features,omitempty"`
	Version                  string   `json:"version"`
	Author                   string   `json:"author,omitempty"`
	Tags                     []string `json:"tags,omitempty"`
	EstimatedDurationMinutes int      `json:"estimated_duration_minutes,omitempty"`
	ComplexityScore          float64  `json:"complexity_score"`
}

// BaseState holds the fields every game state shares. Games embed it.
type BaseState struct {
	GameID      string         `json:"game_id"`
	GameType    string         `json:"game_type"`
	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
	Completed   bool           `json:"is_completed"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewBaseState initializes the shared fields.
func NewBaseState(id, gameType string, now time.Time) BaseState {
	return BaseState{
		GameID:      id,
		GameType:    gameType,
		CreatedAt:   now,
		LastUpdated: now,
		Metadata:    map[string]any{},
	}
}

// IsCompleted reports whether the game has finished.
func (b *BaseState) IsCompleted() bool {
	return b.Completed
}

// Touch records a state change.
func (b *BaseState) Touch(now time.Time) {
	if now.After(b.LastUpdated) {
		b.LastUpdated = now
	}
}

// BaseSnapshot renders the shared fields into a snapshot map.
func (b *BaseState) BaseSnapshot() map[string]any {
	meta := make(map[string]any, len(b.Metadata))
	for k, v := range b.Metadata {
		meta[k] = v
	}
	return map[string]any{
		"game_id":      b.GameID,
		"game_type":    b.GameType,
		"created_at":   b.CreatedAt,
		"last_updated": b.LastUpdated,
		"is_completed": b.Completed,
		"metadata":     meta,
	}
}

// DecodeConfig copies a raw configuration map into target through its JSON
// tags. Unknown keys are ignored.
func DecodeConfig(raw map[string]any, target any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SchemaFor reflects the JSON schema of a configuration struct.
func SchemaFor(config any) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(config)

	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}
