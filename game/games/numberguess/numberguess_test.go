package numberguess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGame(t *testing.T, raw map[string]any) *State {
	t.Helper()
	p := New()
	cfg, err := p.ValidateConfig(raw)
	require.NoError(t, err)
	st, err := p.CreateInitialState("ng-1", cfg)
	require.NoError(t, err)
	return st.(*State)
}

func TestValidateConfig(t *testing.T) {
	p := New()

	cfg, err := p.ValidateConfig(nil)
	require.NoError(t, err)
	c := cfg.(Config)
	assert.Equal(t, 1, c.MinRange)
	assert.Equal(t, 100, c.MaxRange)
	assert.Equal(t, 10, c.MaxAttempts)
	require.NotNil(t, c.HintsEnabled)
	assert.True(t, *c.HintsEnabled)

	invalid := []map[string]any{
		{"min_range": 50, "max_range": 10},
		{"max_attempts": 0},
		{"max_attempts": 101},
		{"target": 500},
		{"max_range": "lots"},
	}
	for _, raw := range invalid {
		_, err := p.ValidateConfig(raw)
		assert.Error(t, err, "config %v", raw)
	}
}

func TestRandomTargetWithinRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		st := newGame(t, map[string]any{"min_range": 5, "max_range": 8})
		assert.GreaterOrEqual(t, st.target, 5)
		assert.LessOrEqual(t, st.target, 8)
	}
}

func TestApply_Win(t *testing.T) {
	p := New()
	st := newGame(t, map[string]any{"target": 42})

	res, err := p.Apply(st, map[string]any{"guess": 10})
	require.NoError(t, err)
	assert.Equal(t, "too_low", res["feedback"])
	assert.Equal(t, "cold", res["hint"])
	assert.Equal(t, 90, res["score"])
	assert.NotContains(t, res, "target")

	res, err = p.Apply(st, map[string]any{"guess": float64(50)})
	require.NoError(t, err)
	assert.Equal(t, "too_high", res["feedback"])
	assert.Equal(t, "warm", res["hint"])

	res, err = p.Apply(st, map[string]any{"guess": "42"})
	require.NoError(t, err)
	assert.Equal(t, "correct", res["feedback"])
	assert.Equal(t, PhaseWon, res["phase"])
	assert.Equal(t, 80, res["score"])
	assert.Equal(t, 42, res["target"])
	assert.True(t, st.IsCompleted())

	_, err = p.Apply(st, map[string]any{"guess": 1})
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestApply_Loss(t *testing.T) {
	p := New()
	st := newGame(t, map[string]any{"target": 7, "max_attempts": 2, "hints_enabled": false})

	res, err := p.Apply(st, map[string]any{"guess": 1})
	require.NoError(t, err)
	assert.NotContains(t, res, "hint")

	res, err = p.Apply(st, map[string]any{"guess": 2})
	require.NoError(t, err)
	assert.Equal(t, PhaseLost, res["phase"])
	assert.Equal(t, 0, res["score"])
	assert.Equal(t, true, res["game_over"])
	assert.Equal(t, 7, st.Snapshot()["target"])
}

func TestApply_Errors(t *testing.T) {
	p := New()
	st := newGame(t, map[string]any{"target": 7})

	_, err := p.Apply(st, map[string]any{"guess": 0})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = p.Apply(st, map[string]any{"guess": 3})
	require.NoError(t, err)
	_, err = p.Apply(st, map[string]any{"guess": 3})
	assert.ErrorIs(t, err, ErrAlreadyGuessed)

	_, err = p.Apply(st, map[string]any{"guess": "seven"})
	assert.Error(t, err)
	assert.Equal(t, 1, st.Attempts())
}

func TestSnapshotHidesTarget(t *testing.T) {
	st := newGame(t, map[string]any{"target": 7})
	snap := st.Snapshot()
	assert.NotContains(t, snap, "target")
	assert.Equal(t, "number_guessing", snap["game_type"])
	assert.Equal(t, 10, snap["attempts_remaining"])
}
