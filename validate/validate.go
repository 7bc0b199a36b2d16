// Command validate checks the session preset files in a directory (default
// ../presets). For every .json, .yaml and .yml file it checks:
//   - the file parses and has a name
//   - the game type is registered
//   - the config passes the game's validation
//   - the tags are acceptable
//   - a session can actually be created from the preset
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/gameserver/game/config"
	"github.com/wricardo/mcp-training/gameserver/game/games/numberguess"
	"github.com/wricardo/mcp-training/gameserver/game/games/tictactoe"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
	"github.com/wricardo/mcp-training/gameserver/game/session"
)

const defaultDir = "../presets"

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Messages holds informational lines; otherwise it
// accumulates the problems that were found.
type ValidationResult struct {
	File     string
	Valid    bool
	Messages []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) ok(format string, args ...any) {
	r.Messages = append(r.Messages, "✓ "+fmt.Sprintf(format, args...))
}

// Validator checks presets against a game registry.
type Validator struct {
	registry *plugin.Registry
	presets  *config.Manager
}

// NewValidator creates a validator for the presets in dir.
func NewValidator(dir string, registry *plugin.Registry) (*Validator, error) {
	presets, err := config.NewManager(dir, registry)
	if err != nil {
		return nil, err
	}
	return &Validator{registry: registry, presets: presets}, nil
}

// Files lists the preset files in the directory, sorted by name.
func (v *Validator) Files() ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.json", "*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(v.presets.Dir(), pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// ValidateFile loads and validates a single preset file.
func (v *Validator) ValidateFile(path string) ValidationResult {
	result := ValidationResult{File: filepath.Base(path), Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}
	preset, err := config.ParsePreset(path, data)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	preset.ID = strings.TrimSuffix(result.File, filepath.Ext(result.File))

	if strings.TrimSpace(preset.Name) == "" {
		result.fail("Missing required field: name")
	}
	if err := v.presets.ValidatePreset(preset); err != nil {
		result.fail("%v", err)
		return result
	}
	result.ok("Game type %s, config valid", preset.GameType)

	if _, err := session.ValidateTags(preset.Tags); err != nil {
		result.fail("%v", err)
		return result
	}

	// A throwaway session also runs the game's state construction.
	mgr := session.NewManager(v.registry,
		session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		session.WithEventsDefault(false),
	)
	res := mgr.CreateSession(context.Background(), session.CreateRequest{
		GameType: preset.GameType,
		Config:   preset.Config,
		Tags:     preset.Tags,
	})
	if !res.Success {
		result.fail("Session creation failed: %s", res.Error)
		return result
	}
	result.ok("Session created")
	return result
}

// Run validates every preset in the directory and prints a report. It
// returns false when any preset is invalid.
func (v *Validator) Run(w io.Writer) (bool, error) {
	files, err := v.Files()
	if err != nil {
		return false, fmt.Errorf("finding preset files: %w", err)
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "No preset files found in %s\n", v.presets.Dir())
		return true, nil
	}

	allValid := true
	for _, file := range files {
		result := v.ValidateFile(file)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Messages {
				fmt.Fprintln(w, "  "+info)
			}
			continue
		}
		fmt.Fprintln(w, "❌ INVALID")
		allValid = false
		for _, msg := range result.Messages {
			if !strings.HasPrefix(msg, "✓") {
				fmt.Fprintln(w, "  ❌ "+msg)
			}
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All presets are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some presets have errors")
	}
	return allValid, nil
}

func newRegistry() *plugin.Registry {
	reg := plugin.NewRegistry()
	reg.MustRegister(tictactoe.New(), numberguess.New())
	return reg
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate session preset files",
		ArgsUsage: "[presets-dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := defaultDir
			if cmd.Args().Present() {
				dir = cmd.Args().First()
			}
			v, err := NewValidator(dir, newRegistry())
			if err != nil {
				return err
			}
			valid, err := v.Run(out)
			if err != nil {
				return err
			}
			if !valid {
				return errors.New("some presets are invalid")
			}
			return nil
		},
	}
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
