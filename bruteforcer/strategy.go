package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
)

// Strategy picks the next action from a game state snapshot as decoded
// from the server's JSON.
type Strategy interface {
	NextAction(state map[string]any) (map[string]any, error)
}

var ErrNoMove = errors.New("no move available")

// StrategyFor returns the systematic strategy for a game type.
func StrategyFor(gameType string) (Strategy, error) {
	switch gameType {
	case "number_guessing":
		return BinarySearch{}, nil
	case "tic_tac_toe":
		return Minimax{}, nil
	default:
		return nil, fmt.Errorf("no strategy for game type %q", gameType)
	}
}

// BinarySearch halves the remaining range using the feedback of earlier
// guesses. It keeps no state of its own.
type BinarySearch struct{}

func (BinarySearch) NextAction(state map[string]any) (map[string]any, error) {
	lo, err := cast.ToIntE(state["min_range"])
	if err != nil {
		return nil, fmt.Errorf("min_range: %w", err)
	}
	hi, err := cast.ToIntE(state["max_range"])
	if err != nil {
		return nil, fmt.Errorf("max_range: %w", err)
	}

	guesses := cast.ToSlice(state["guesses"])
	for _, g := range guesses {
		guess := cast.ToStringMap(g)
		value := cast.ToInt(guess["value"])
		switch cast.ToString(guess["feedback"]) {
		case "too_low":
			lo = max(lo, value+1)
		case "too_high":
			hi = min(hi, value-1)
		case "correct":
			return nil, ErrNoMove
		}
	}
	if lo > hi {
		return nil, fmt.Errorf("%w: inconsistent feedback, range %d-%d", ErrNoMove, lo, hi)
	}
	return map[string]any{"guess": lo + (hi-lo)/2}, nil
}

// Minimax plays tic-tac-toe perfectly for the player to move.
type Minimax struct{}

type board [3][3]string

func (Minimax) NextAction(state map[string]any) (map[string]any, error) {
	b, err := parseBoard(state["board"])
	if err != nil {
		return nil, err
	}
	player := cast.ToString(state["current_player"])
	if player != "X" && player != "O" {
		return nil, fmt.Errorf("unknown current player %q", player)
	}

	bestScore, bestRow, bestCol := -2, -1, -1
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if b[r][c] != "" {
				continue
			}
			b[r][c] = player
			score := -negamax(&b, opponent(player))
			b[r][c] = ""
			if score > bestScore {
				bestScore, bestRow, bestCol = score, r, c
			}
		}
	}
	if bestRow < 0 {
		return nil, ErrNoMove
	}
	return map[string]any{"row": bestRow, "col": bestCol, "player": player}, nil
}

// negamax scores the board for player to move: 1 win, 0 draw, -1 loss.
func negamax(b *board, player string) int {
	if w := b.winner(); w != "" {
		if w == player {
			return 1
		}
		return -1
	}
	best, moved := -2, false
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if b[r][c] != "" {
				continue
			}
			moved = true
			b[r][c] = player
			best = max(best, -negamax(b, opponent(player)))
			b[r][c] = ""
		}
	}
	if !moved {
		return 0
	}
	return best
}

func (b *board) winner() string {
	lines := [8][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}}, {{1, 0}, {1, 1}, {1, 2}}, {{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}}, {{0, 1}, {1, 1}, {2, 1}}, {{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}}, {{0, 2}, {1, 1}, {2, 0}},
	}
	for _, l := range lines {
		a := b[l[0][0]][l[0][1]]
		if a != "" && a == b[l[1][0]][l[1][1]] && a == b[l[2][0]][l[2][1]] {
			return a
		}
	}
	return ""
}

func opponent(player string) string {
	if player == "X" {
		return "O"
	}
	return "X"
}

// parseBoard reads the snapshot board. Blank cells become "".
func parseBoard(v any) (board, error) {
	var b board
	rows, err := cast.ToSliceE(v)
	if err != nil || len(rows) != 3 {
		return b, fmt.Errorf("board must have 3 rows")
	}
	for r, row := range rows {
		cells, err := cast.ToStringSliceE(row)
		if err != nil || len(cells) != 3 {
			return b, fmt.Errorf("board row %d must have 3 cells", r)
		}
		for c, cell := range cells {
			if cell == "X" || cell == "O" {
				b[r][c] = cell
			}
		}
	}
	return b, nil
}
