// Package tictactoe implements classic 3x3 tic-tac-toe as a game plugin, with
// an optional computer opponent playing O.
package tictactoe

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

// GameType is the registry key for this plugin.
const GameType = "tic_tac_toe"

const (
	PlayerX = "X"
	PlayerO = "O"
	empty   = " "

	ResultInProgress = "in_progress"
	ResultXWins      = "x_wins"
	ResultOWins      = "o_wins"
	ResultDraw       = "draw"
)

var (
	ErrGameOver       = errors.New("game is already complete")
	ErrInvalidCell    = errors.New("invalid coordinates")
	ErrCellOccupied   = errors.New("cell is already occupied")
	ErrNotPlayersTurn = errors.New("not this player's turn")
)

var lines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Config configures a new game.
type Config struct {
	FirstPlayer  string `json:"first_player,omitempty" jsonschema:"enum=X,enum=O,default=X,description=Which player moves first"`
	PlayerOHuman bool   `json:"player_o_human,omitempty" jsonschema:"description=When false the server plays O"`
	AIDifficulty string `json:"ai_difficulty,omitempty" jsonschema:"enum=easy,enum=medium,enum=hard,default=medium"`
}

// Move is one entry of the move history.
type Move struct {
	Number int    `json:"move_number"`
	Player string `json:"player"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

// State is the tic-tac-toe game state.
type State struct {
	plugin.BaseState
	Board         [3][3]string `json:"board"`
	CurrentPlayer string       `json:"current_player"`
	MovesMade     int          `json:"moves_made"`
	Result        string       `json:"game_result"`
	Winner        string       `json:"winner,omitempty"`
	WinningLine   [][2]int     `json:"winning_line,omitempty"`
	PlayerOHuman  bool         `json:"player_o_human"`
	AIDifficulty  string       `json:"ai_difficulty"`
	History       []Move       `json:"move_history"`
}

// Snapshot renders the state for callers.
func (s *State) Snapshot() map[string]any {
	snap := s.BaseSnapshot()
	board := make([][]string, 3)
	for r := range s.Board {
		board[r] = []string{s.Board[r][0], s.Board[r][1], s.Board[r][2]}
	}
	history := make([]Move, len(s.History))
	copy(history, s.History)

	snap["board"] = board
	snap["board_display"] = s.Display()
	snap["current_player"] = s.CurrentPlayer
	snap["moves_made"] = s.MovesMade
	snap["game_result"] = s.Result
	snap["winner"] = s.Winner
	snap["player_o_human"] = s.PlayerOHuman
	snap["ai_difficulty"] = s.AIDifficulty
	snap["move_history"] = history
	return snap
}

// Display renders the board as text.
func (s *State) Display() string {
	out := "   0   1   2\n"
	for r := 0; r < 3; r++ {
		out += fmt.Sprintf("%d  %s | %s | %s\n", r, s.Board[r][0], s.Board[r][1], s.Board[r][2])
		if r < 2 {
			out += "  ---+---+---\n"
		}
	}
	return out
}

// Plugin is the tic-tac-toe game plugin.
type Plugin struct {
	clock func() time.Time
}

// New creates the plugin.
func New() *Plugin {
	return &Plugin{clock: time.Now}
}

// GameType returns "tic_tac_toe".
func (p *Plugin) GameType() string { return GameType }

// Info describes the game.
func (p *Plugin) Info() plugin.GameInfo {
	return plugin.GameInfo{
		Name:                     "Tic-Tac-Toe",
		Description:              "Classic 3x3 tic-tac-toe with a configurable computer opponent.",
		Category:                 "board",
		Difficulty:               "easy",
		MinPlayers:               1,
		MaxPlayers:               2,
		Features:                 []string{"single_player", "multi_player", "ai_opponent", "turn_based", "ascii_art"},
		Version:                  "1.0.0",
		Tags:                     []string{"classic", "strategy", "quick"},
		EstimatedDurationMinutes: 5,
		ComplexityScore:          2,
	}
}

// ValidateConfig applies defaults and checks enumerated fields.
func (p *Plugin) ValidateConfig(raw map[string]any) (any, error) {
	var cfg Config
	if err := plugin.DecodeConfig(raw, &cfg); err != nil {
		return nil, err
	}
	if cfg.FirstPlayer == "" {
		cfg.FirstPlayer = PlayerX
	}
	if cfg.AIDifficulty == "" {
		cfg.AIDifficulty = "medium"
	}
	if cfg.FirstPlayer != PlayerX && cfg.FirstPlayer != PlayerO {
		return nil, fmt.Errorf("first player must be X or O, got %q", cfg.FirstPlayer)
	}
	switch cfg.AIDifficulty {
	case "easy", "medium", "hard":
	default:
		return nil, fmt.Errorf("AI difficulty must be easy, medium, or hard, got %q", cfg.AIDifficulty)
	}
	return cfg, nil
}

// CreateInitialState builds an empty board. When O is computer-controlled and
// moves first, the opening move is already played.
func (p *Plugin) CreateInitialState(id string, config any) (plugin.State, error) {
	cfg, ok := config.(Config)
	if !ok {
		return nil, fmt.Errorf("unexpected config type %T", config)
	}

	s := &State{
		BaseState:     plugin.NewBaseState(id, GameType, p.clock()),
		CurrentPlayer: cfg.FirstPlayer,
		Result:        ResultInProgress,
		PlayerOHuman:  cfg.PlayerOHuman,
		AIDifficulty:  cfg.AIDifficulty,
		History:       []Move{},
	}
	for r := range s.Board {
		for c := range s.Board[r] {
			s.Board[r][c] = empty
		}
	}

	if s.CurrentPlayer == PlayerO && !s.PlayerOHuman {
		row, col := chooseMove(s)
		if err := s.play(row, col, PlayerO, p.clock()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// JSONSchema describes Config.
func (p *Plugin) JSONSchema() map[string]any {
	return plugin.SchemaFor(&Config{})
}

// Apply plays {row, col[, player]} and, when O is computer-controlled, the
// reply move.
func (p *Plugin) Apply(state plugin.State, action map[string]any) (map[string]any, error) {
	s, ok := state.(*State)
	if !ok {
		return nil, fmt.Errorf("unexpected state type %T", state)
	}

	row, err := cast.ToIntE(action["row"])
	if err != nil {
		return nil, fmt.Errorf("row: %w", err)
	}
	col, err := cast.ToIntE(action["col"])
	if err != nil {
		return nil, fmt.Errorf("col: %w", err)
	}
	player := cast.ToString(action["player"])
	if player == "" {
		player = s.CurrentPlayer
	}

	if err := s.play(row, col, player, p.clock()); err != nil {
		return nil, err
	}
	result := map[string]any{
		"move": map[string]any{"row": row, "col": col, "player": player},
	}

	if !s.Completed && s.CurrentPlayer == PlayerO && !s.PlayerOHuman {
		aiRow, aiCol := chooseMove(s)
		if err := s.play(aiRow, aiCol, PlayerO, p.clock()); err != nil {
			return nil, fmt.Errorf("computer move: %w", err)
		}
		result["ai_move"] = map[string]any{"row": aiRow, "col": aiCol, "player": PlayerO}
	}

	result["game_over"] = s.Completed
	result["result"] = s.Result
	result["winner"] = s.Winner
	if !s.Completed {
		result["next_player"] = s.CurrentPlayer
	}
	return result, nil
}

func (s *State) play(row, col int, player string, now time.Time) error {
	if s.Completed {
		return ErrGameOver
	}
	if row < 0 || row > 2 || col < 0 || col > 2 {
		return fmt.Errorf("%w: (%d, %d)", ErrInvalidCell, row, col)
	}
	if s.Board[row][col] != empty {
		return fmt.Errorf("%w: (%d, %d)", ErrCellOccupied, row, col)
	}
	if player != s.CurrentPlayer {
		return fmt.Errorf("%w: it's %s's turn", ErrNotPlayersTurn, s.CurrentPlayer)
	}

	s.Board[row][col] = player
	s.MovesMade++
	s.History = append(s.History, Move{Number: s.MovesMade, Player: player, Row: row, Col: col})

	if winner, line := winnerOf(s.Board); winner != "" {
		s.Winner = winner
		s.WinningLine = line
		s.Result = ResultXWins
		if winner == PlayerO {
			s.Result = ResultOWins
		}
		s.Completed = true
	} else if s.MovesMade == 9 {
		s.Result = ResultDraw
		s.Completed = true
	} else {
		s.CurrentPlayer = other(player)
	}

	s.Touch(now)
	return nil
}

func winnerOf(board [3][3]string) (string, [][2]int) {
	for _, line := range lines {
		a := board[line[0][0]][line[0][1]]
		if a == empty {
			continue
		}
		if a == board[line[1][0]][line[1][1]] && a == board[line[2][0]][line[2][1]] {
			return a, [][2]int{line[0], line[1], line[2]}
		}
	}
	return "", nil
}

func other(player string) string {
	if player == PlayerX {
		return PlayerO
	}
	return PlayerX
}

// chooseMove picks the computer's move for the current player.
func chooseMove(s *State) (int, int) {
	switch s.AIDifficulty {
	case "easy":
		return randomMove(s.Board)
	case "medium":
		if rand.Float64() < 0.3 {
			return randomMove(s.Board)
		}
	}
	return strategicMove(s.Board, s.CurrentPlayer)
}

// strategicMove prefers a win, then a block, then the center, a corner and
// finally the first free cell.
func strategicMove(board [3][3]string, player string) (int, int) {
	for _, who := range []string{player, other(player)} {
		if r, c, ok := completingMove(board, who); ok {
			return r, c
		}
	}
	if board[1][1] == empty {
		return 1, 1
	}
	for _, corner := range [][2]int{{0, 0}, {0, 2}, {2, 0}, {2, 2}} {
		if board[corner[0]][corner[1]] == empty {
			return corner[0], corner[1]
		}
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if board[r][c] == empty {
				return r, c
			}
		}
	}
	return -1, -1
}

func completingMove(board [3][3]string, player string) (int, int, bool) {
	for _, line := range lines {
		owned, free := 0, [2]int{-1, -1}
		for _, cell := range line {
			switch board[cell[0]][cell[1]] {
			case player:
				owned++
			case empty:
				free = cell
			}
		}
		if owned == 2 && free[0] >= 0 {
			return free[0], free[1], true
		}
	}
	return 0, 0, false
}

func randomMove(board [3][3]string) (int, int) {
	var free [][2]int
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if board[r][c] == empty {
				free = append(free, [2]int{r, c})
			}
		}
	}
	if len(free) == 0 {
		return -1, -1
	}
	pick := free[rand.IntN(len(free))]
	return pick[0], pick[1]
}
