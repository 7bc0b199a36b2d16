// Package numberguess implements a guess-the-number game plugin with hot/cold
// hints and a score that shrinks with every wrong guess.
package numberguess

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

// GameType is the registry key for this plugin.
const GameType = "number_guessing"

const (
	PhaseGuessing = "guessing"
	PhaseWon      = "won"
	PhaseLost     = "lost"

	maxScore     = 100
	guessPenalty = 10
	minWinScore  = 10
)

var (
	ErrGameOver       = errors.New("game is already complete")
	ErrOutOfRange     = errors.New("guess out of range")
	ErrAlreadyGuessed = errors.New("number already guessed")
)

// Config configures a new game.
type Config struct {
	MinRange     int   `json:"min_range" jsonschema:"default=1"`
	MaxRange     int   `json:"max_range" jsonschema:"default=100"`
	MaxAttempts  int   `json:"max_attempts" jsonschema:"minimum=1,maximum=100,default=10"`
	HintsEnabled *bool `json:"hints_enabled,omitempty" jsonschema:"default=true"`
	// Target fixes the secret number. Zero picks one at random.
	Target int `json:"target,omitempty"`
}

// Guess is one recorded guess.
type Guess struct {
	Value    int    `json:"value"`
	Feedback string `json:"feedback"`
	Hint     string `json:"hint,omitempty"`
}

// State is the number guessing game state.
type State struct {
	plugin.BaseState
	MinRange     int     `json:"min_range"`
	MaxRange     int     `json:"max_range"`
	MaxAttempts  int     `json:"max_attempts"`
	HintsEnabled bool    `json:"hints_enabled"`
	Phase        string  `json:"phase"`
	Guesses      []Guess `json:"guesses"`
	Score        int     `json:"score"`

	target int
}

// Attempts returns the number of guesses made.
func (s *State) Attempts() int { return len(s.Guesses) }

// Snapshot renders the state. The target is revealed once the game ends.
func (s *State) Snapshot() map[string]any {
	snap := s.BaseSnapshot()
	guesses := make([]Guess, len(s.Guesses))
	copy(guesses, s.Guesses)

	snap["min_range"] = s.MinRange
	snap["max_range"] = s.MaxRange
	snap["max_attempts"] = s.MaxAttempts
	snap["attempts"] = s.Attempts()
	snap["attempts_remaining"] = s.MaxAttempts - s.Attempts()
	snap["hints_enabled"] = s.HintsEnabled
	snap["phase"] = s.Phase
	snap["guesses"] = guesses
	snap["score"] = s.Score
	if s.Completed {
		snap["target"] = s.target
	}
	return snap
}

// Plugin is the number guessing game plugin.
type Plugin struct {
	clock func() time.Time
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{clock: time.Now}
}

func (p *Plugin) GameType() string { return GameType }

func (p *Plugin) Info() plugin.GameInfo {
	return plugin.GameInfo{
		Name:                     "Number Guessing",
		Description:              "Guess the secret number within a limited number of attempts.",
		Category:                 "puzzle",
		Difficulty:               "easy",
		MinPlayers:               1,
		MaxPlayers:               1,
		Features:                 []string{"single_player", "hints", "scoring"},
		Version:                  "1.0.0",
		Tags:                     []string{"numbers", "logic", "quick"},
		EstimatedDurationMinutes: 3,
		ComplexityScore:          1,
	}
}

// ValidateConfig applies defaults and checks the range.
func (p *Plugin) ValidateConfig(raw map[string]any) (any, error) {
	cfg := Config{MinRange: 1, MaxRange: 100, MaxAttempts: 10}
	if err := plugin.DecodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.HintsEnabled == nil {
		on := true
		cfg.HintsEnabled = &on
	}
	if cfg.MinRange >= cfg.MaxRange {
		return nil, fmt.Errorf("min_range (%d) must be less than max_range (%d)", cfg.MinRange, cfg.MaxRange)
	}
	if cfg.MaxAttempts < 1 || cfg.MaxAttempts > 100 {
		return nil, fmt.Errorf("max_attempts must be between 1 and 100, got %d", cfg.MaxAttempts)
	}
	if cfg.Target != 0 && (cfg.Target < cfg.MinRange || cfg.Target > cfg.MaxRange) {
		return nil, fmt.Errorf("target %d outside range %d-%d", cfg.Target, cfg.MinRange, cfg.MaxRange)
	}
	return cfg, nil
}

func (p *Plugin) CreateInitialState(id string, config any) (plugin.State, error) {
	cfg, ok := config.(Config)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T", config)
	}
	target := cfg.Target
	if target == 0 {
		target = cfg.MinRange + rand.IntN(cfg.MaxRange-cfg.MinRange+1)
	}
	return &State{
		BaseState:    plugin.NewBaseState(id, GameType, p.clock()),
		MinRange:     cfg.MinRange,
		MaxRange:     cfg.MaxRange,
		MaxAttempts:  cfg.MaxAttempts,
		HintsEnabled: cfg.HintsEnabled == nil || *cfg.HintsEnabled,
		Phase:        PhaseGuessing,
		Guesses:      []Guess{},
		Score:        maxScore,
		target:       target,
	}, nil
}

func (p *Plugin) JSONSchema() map[string]any {
	return plugin.SchemaFor(&Config{})
}

// Apply evaluates {guess}.
func (p *Plugin) Apply(state plugin.State, action map[string]any) (map[string]any, error) {
	s, ok := state.(*State)
	if !ok {
		return nil, fmt.Errorf("unexpected state type %T", state)
	}
	if s.Completed {
		return nil, ErrGameOver
	}

	value, err := cast.ToIntE(action["guess"])
	if err != nil {
		return nil, fmt.Errorf("guess: %w", err)
	}
	if value < s.MinRange || value > s.MaxRange {
		return nil, fmt.Errorf("%w: %d not in %d-%d", ErrOutOfRange, value, s.MinRange, s.MaxRange)
	}
	if slices.ContainsFunc(s.Guesses, func(g Guess) bool { return g.Value == value }) {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyGuessed, value)
	}

	g := Guess{Value: value}
	switch {
	case value == s.target:
		g.Feedback = "correct"
	case value < s.target:
		g.Feedback = "too_low"
	default:
		g.Feedback = "too_high"
	}
	if s.HintsEnabled && g.Feedback != "correct" {
		g.Hint = s.hint(value)
	}
	s.Guesses = append(s.Guesses, g)

	switch {
	case g.Feedback == "correct":
		s.Phase = PhaseWon
		s.Completed = true
		s.Score = max(minWinScore, maxScore-guessPenalty*(s.Attempts()-1))
	case s.Attempts() >= s.MaxAttempts:
		s.Phase = PhaseLost
		s.Completed = true
		s.Score = 0
	default:
		s.Score = max(minWinScore, maxScore-guessPenalty*s.Attempts())
	}
	s.Touch(p.clock())

	result := map[string]any{
		"guess":              value,
		"feedback":           g.Feedback,
		"attempts":           s.Attempts(),
		"attempts_remaining": s.MaxAttempts - s.Attempts(),
		"phase":              s.Phase,
		"score":              s.Score,
		"game_over":          s.Completed,
	}
	if g.Hint != "" {
		result["hint"] = g.Hint
	}
	if s.Completed {
		result["target"] = s.target
	}
	return result, nil
}

// hint grades the distance to the target relative to the range width.
func (s *State) hint(value int) string {
	distance := value - s.target
	if distance < 0 {
		distance = -distance
	}
	width := float64(s.MaxRange - s.MinRange)
	switch ratio := float64(distance) / width; {
	case ratio <= 0.05:
		return "hot"
	case ratio <= 0.15:
		return "warm"
	default:
		return "cold"
	}
}
