// Command bruteforcer plays games against a running game session server
// through its REST API. Number guessing is played by binary search and
// tic-tac-toe by exhaustive minimax, so a reachable win is never missed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"github.com/urfave/cli/v3"
)

// Outcome values reported per game.
const (
	OutcomeWon        = "won"
	OutcomeLost       = "lost"
	OutcomeDraw       = "draw"
	OutcomeUnfinished = "unfinished"
)

// GameReport summarizes one played game.
type GameReport struct {
	SessionID string
	GameType  string
	Moves     int
	Outcome   string
}

// Player drives sessions to completion.
type Player struct {
	client   *Client
	logger   *slog.Logger
	maxMoves int
	delay    time.Duration
	keep     bool
}

// Play creates a session from req and plays it until the game completes or
// the move budget runs out.
func (p *Player) Play(ctx context.Context, req map[string]any) (GameReport, error) {
	var report GameReport

	id, err := p.client.CreateSession(ctx, req)
	if err != nil {
		return report, err
	}
	report.SessionID = id
	if !p.keep {
		defer func() {
			if err := p.client.DeleteSession(context.WithoutCancel(ctx), id); err != nil {
				p.logger.Warn("failed to delete session", "session_id", id, "error", err)
			}
		}()
	}

	state, err := p.client.GetState(ctx, id)
	if err != nil {
		return report, err
	}
	report.GameType = state.GameType
	p.logger.Info("session created", "session_id", id, "game_type", state.GameType, "tags", state.Tags)

	strategy, err := StrategyFor(state.GameType)
	if err != nil {
		return report, err
	}

	snapshot, completed := state.GameState, state.Completed
	for !completed && report.Moves < p.maxMoves {
		action, err := strategy.NextAction(snapshot)
		if err != nil {
			return report, fmt.Errorf("move %d: %w", report.Moves+1, err)
		}
		result, err := p.client.Move(ctx, id, action)
		if err != nil {
			return report, err
		}
		report.Moves++
		p.logger.Debug("move played", "session_id", id, "action", action, "message", result.Message)

		snapshot, completed = result.GameState, result.Completed
		if p.delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(p.delay):
			}
		}
	}

	report.Outcome = OutcomeUnfinished
	if completed {
		report.Outcome = outcomeOf(state.GameType, snapshot)
	}
	return report, nil
}

// outcomeOf reads the final result from a snapshot. Tic-tac-toe is scored
// from X's side.
func outcomeOf(gameType string, snapshot map[string]any) string {
	switch gameType {
	case "number_guessing":
		switch cast.ToString(snapshot["phase"]) {
		case "won":
			return OutcomeWon
		case "lost":
			return OutcomeLost
		}
	case "tic_tac_toe":
		switch cast.ToString(snapshot["game_result"]) {
		case "x_wins":
			return OutcomeWon
		case "o_wins":
			return OutcomeLost
		case "draw":
			return OutcomeDraw
		}
	}
	return OutcomeUnfinished
}

// Tally counts outcomes over a run.
type Tally map[string]int

func (t Tally) String() string {
	return fmt.Sprintf("won=%d lost=%d draw=%d unfinished=%d",
		t[OutcomeWon], t[OutcomeLost], t[OutcomeDraw], t[OutcomeUnfinished])
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "bruteforcer",
		Usage: "Play games against a game session server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:8080",
				Usage:   "Server base URL",
				Sources: cli.EnvVars("GAME_SERVER_URL"),
			},
			&cli.StringFlag{
				Name:  "game",
				Value: "number_guessing",
				Usage: "Game type to play (ignored when --preset is set)",
			},
			&cli.StringFlag{
				Name:  "preset",
				Usage: "Create sessions from this preset",
			},
			&cli.StringSliceFlag{
				Name:  "tag",
				Usage: "Tag to attach to every session",
				Value: []string{"bruteforcer"},
			},
			&cli.IntFlag{
				Name:  "games",
				Value: 1,
				Usage: "Number of games to play",
			},
			&cli.IntFlag{
				Name:  "max-moves",
				Value: 100,
				Usage: "Maximum moves per game",
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Pause between moves",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "Keep sessions after playing instead of deleting them",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log every move",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

			games := int(cmd.Int("games"))
			if games < 1 {
				return fmt.Errorf("--games must be at least 1, got %d", games)
			}

			player := &Player{
				client:   NewClient(cmd.String("url")),
				logger:   logger,
				maxMoves: int(cmd.Int("max-moves")),
				delay:    cmd.Duration("delay"),
				keep:     cmd.Bool("keep"),
			}

			req := map[string]any{"tags": cmd.StringSlice("tag")}
			if preset := cmd.String("preset"); preset != "" {
				req["preset"] = preset
			} else {
				req["game_type"] = cmd.String("game")
			}

			tally := Tally{}
			for i := 1; i <= games; i++ {
				report, err := player.Play(ctx, req)
				if err != nil {
					return fmt.Errorf("game %d: %w", i, err)
				}
				tally[report.Outcome]++
				logger.Info("game finished",
					"game", i,
					"session_id", report.SessionID,
					"game_type", report.GameType,
					"moves", report.Moves,
					"outcome", report.Outcome)
			}

			fmt.Fprintf(out, "Played %d games: %s\n", games, tally)
			if tally[OutcomeLost] > 0 || tally[OutcomeUnfinished] > 0 {
				return errors.New("not every game was won or drawn")
			}
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
