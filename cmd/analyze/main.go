// Command analyze prints quick, human-readable heuristics about the session
// presets in the project's presets directory. It summarizes each preset's
// effective configuration (defaults applied) and flags presets that cannot be
// won reliably, such as a number-guessing range too wide for its attempt
// budget.
package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/wricardo/mcp-training/gameserver/game/config"
	"github.com/wricardo/mcp-training/gameserver/game/games/numberguess"
	"github.com/wricardo/mcp-training/gameserver/game/games/tictactoe"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

// Analysis is the outcome of analyzing one preset.
type Analysis struct {
	ID       string
	Name     string
	GameType string
	Facts    []string
	Warnings []string
}

func main() {
	dir := "presets"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	reg := plugin.NewRegistry()
	reg.MustRegister(tictactoe.New(), numberguess.New())

	if err := analyzeDir(os.Stdout, dir, reg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// analyzeDir analyzes every valid preset in dir and prints a report.
func analyzeDir(w io.Writer, dir string, reg *plugin.Registry) error {
	presets, err := config.NewManager(dir, reg)
	if err != nil {
		return err
	}
	infos, err := presets.ListPresets()
	if err != nil {
		return err
	}

	for _, info := range infos {
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", info.Filename)
		p, err := presets.LoadPreset(info.ID)
		if err != nil {
			fmt.Fprintf(w, "Error loading preset: %v\n", err)
			continue
		}
		a, err := analyzePreset(p, reg)
		if err != nil {
			fmt.Fprintf(w, "Error analyzing preset: %v\n", err)
			continue
		}
		printAnalysis(w, a)
	}
	return nil
}

// analyzePreset resolves the preset's config through its plugin, so defaults
// are included, and derives the facts and warnings for its game type.
func analyzePreset(p *config.Preset, reg *plugin.Registry) (Analysis, error) {
	a := Analysis{ID: p.ID, Name: p.Name, GameType: p.GameType}

	pl, err := reg.Get(p.GameType)
	if err != nil {
		return a, err
	}
	cfg, err := pl.ValidateConfig(p.Config)
	if err != nil {
		return a, err
	}

	switch cfg := cfg.(type) {
	case numberguess.Config:
		analyzeNumberGuess(&a, cfg)
	case tictactoe.Config:
		analyzeTicTacToe(&a, cfg)
	default:
		a.Facts = append(a.Facts, fmt.Sprintf("Config: %+v", cfg))
	}
	if len(p.Tags) > 0 {
		a.Facts = append(a.Facts, fmt.Sprintf("Tags: %v", p.Tags))
	}
	return a, nil
}

// guessesNeeded is the worst-case number of binary-search guesses for a range
// of n values.
func guessesNeeded(n int) int {
	return int(math.Ceil(math.Log2(float64(n + 1))))
}

func analyzeNumberGuess(a *Analysis, cfg numberguess.Config) {
	size := cfg.MaxRange - cfg.MinRange + 1
	needed := guessesNeeded(size)
	hints := cfg.HintsEnabled == nil || *cfg.HintsEnabled

	a.Facts = append(a.Facts,
		fmt.Sprintf("Range: %d-%d (%d values)", cfg.MinRange, cfg.MaxRange, size),
		fmt.Sprintf("Max Attempts: %d", cfg.MaxAttempts),
		fmt.Sprintf("Binary search needs at most %d guesses", needed),
		fmt.Sprintf("Hints: %t", hints),
	)
	if cfg.Target != 0 {
		a.Warnings = append(a.Warnings, fmt.Sprintf("Target is fixed at %d; every session has the same answer", cfg.Target))
	}
	if cfg.MaxAttempts < needed {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("Not reliably winnable: %d attempts for a range needing %d", cfg.MaxAttempts, needed))
	}
}

func analyzeTicTacToe(a *Analysis, cfg tictactoe.Config) {
	a.Facts = append(a.Facts, fmt.Sprintf("First Player: %s", cfg.FirstPlayer))
	if cfg.PlayerOHuman {
		a.Facts = append(a.Facts, "Opponent: human (both sides played by callers)")
		return
	}
	a.Facts = append(a.Facts, fmt.Sprintf("Opponent: computer (%s)", cfg.AIDifficulty))
	if cfg.FirstPlayer == tictactoe.PlayerO {
		a.Warnings = append(a.Warnings, "Computer opens; sessions start with a move already played")
	}
}

func printAnalysis(w io.Writer, a Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Game Type: %s\n", a.GameType)
	for _, f := range a.Facts {
		fmt.Fprintln(w, f)
	}
	if len(a.Warnings) == 0 {
		fmt.Fprintln(w, "✅ No issues found")
		return
	}
	for _, warn := range a.Warnings {
		fmt.Fprintf(w, "⚠️  WARNING: %s\n", warn)
	}
}
