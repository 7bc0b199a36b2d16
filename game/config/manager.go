package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

var (
	ErrConfigNotFound = errors.New("preset not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

var presetExtensions = []string{".json", ".yaml", ".yml"}

// Preset is a named set of session creation parameters.
type Preset struct {
	// ID is the file name without extension. It is what callers pass to
	// LoadPreset.
	ID          string         `json:"id" yaml:"-"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	GameType    string         `json:"game_type" yaml:"game_type"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// PresetInfo is the listing view of a preset.
type PresetInfo struct {
	ID          string   `json:"id"`
	Filename    string   `json:"filename"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	GameType    string   `json:"game_type"`
	Tags        []string `json:"tags,omitempty"`
}

// Manager loads presets from a directory and caches them.
type Manager struct {
	dir      string
	registry *plugin.Registry
	presets  map[string]*Preset
	mu       sync.RWMutex
}

// NewManager creates a preset manager for dir. When registry is not nil,
// presets are checked against the registered plugins as they load.
func NewManager(dir string, registry *plugin.Registry) (*Manager, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("preset directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("preset directory %s: not a directory", dir)
	}
	return &Manager{
		dir:      dir,
		registry: registry,
		presets:  make(map[string]*Preset),
	}, nil
}

// Dir returns the directory presets are read from.
func (m *Manager) Dir() string { return m.dir }

// LoadPreset returns the preset with the given id. The extension is optional.
func (m *Manager) LoadPreset(name string) (*Preset, error) {
	id, err := presetID(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	if p, ok := m.presets[id]; ok {
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if p, ok := m.presets[id]; ok {
		return p, nil
	}

	p, err := m.readPreset(id)
	if err != nil {
		return nil, err
	}
	m.presets[id] = p
	return p, nil
}

// ReloadPreset drops one preset from the cache and reads it again.
func (m *Manager) ReloadPreset(name string) error {
	id, err := presetID(name)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.presets, id)
	m.mu.Unlock()

	_, err = m.LoadPreset(id)
	return err
}

// ListPresets describes every loadable preset in the directory, sorted by
// id. Files that fail to load are skipped.
func (m *Manager) ListPresets() ([]PresetInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	seen := map[string]bool{}
	presets := []PresetInfo{}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !slices.Contains(presetExtensions, ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if seen[id] {
			continue
		}
		p, err := m.LoadPreset(id)
		if err != nil {
			continue
		}
		seen[id] = true
		presets = append(presets, PresetInfo{
			ID:          p.ID,
			Filename:    entry.Name(),
			Name:        p.Name,
			Description: p.Description,
			GameType:    p.GameType,
			Tags:        p.Tags,
		})
	}
	slices.SortFunc(presets, func(a, b PresetInfo) int { return strings.Compare(a.ID, b.ID) })
	return presets, nil
}

// RefreshCache clears all cached presets.
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presets = make(map[string]*Preset)
}

// SavePreset writes p to <dir>/<name>.json and caches it.
func (m *Manager) SavePreset(name string, p *Preset) error {
	id, err := presetID(name)
	if err != nil {
		return err
	}
	saved := *p
	saved.ID = id
	if saved.Name == "" {
		saved.Name = id
	}
	if err := m.ValidatePreset(&saved); err != nil {
		return err
	}

	data, err := json.MarshalIndent(&saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	m.mu.Lock()
	m.presets[id] = &saved
	m.mu.Unlock()
	return nil
}

// ValidatePreset checks the preset's game type and, when the manager has a
// registry, that the game type is registered and accepts the config.
func (m *Manager) ValidatePreset(p *Preset) error {
	p.GameType = strings.ToLower(strings.TrimSpace(p.GameType))
	if p.GameType == "" {
		return fmt.Errorf("%w: preset %q has no game_type", ErrInvalidConfig, p.ID)
	}
	if m.registry == nil {
		return nil
	}
	pl, err := m.registry.Get(p.GameType)
	if err != nil {
		return fmt.Errorf("%w: preset %q: %v", ErrInvalidConfig, p.ID, err)
	}
	if _, err := pl.ValidateConfig(p.Config); err != nil {
		return fmt.Errorf("%w: preset %q: %v", ErrInvalidConfig, p.ID, err)
	}
	return nil
}

// readPreset must be called with the write lock held.
func (m *Manager) readPreset(id string) (*Preset, error) {
	for _, ext := range presetExtensions {
		path := filepath.Join(m.dir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read preset file: %w", err)
		}
		p, err := ParsePreset(path, data)
		if err != nil {
			return nil, err
		}
		p.ID = id
		if p.Name == "" {
			p.Name = id
		}
		if err := m.ValidatePreset(p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, id)
}

// ParsePreset decodes a preset file, choosing JSON or YAML by extension.
func ParsePreset(path string, data []byte) (*Preset, error) {
	var p Preset
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &p)
	default:
		err = json.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, filepath.Base(path), err)
	}
	return &p, nil
}

func presetID(name string) (string, error) {
	name = strings.TrimSpace(name)
	for _, ext := range presetExtensions {
		name = strings.TrimSuffix(name, ext)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: bad preset name %q", ErrInvalidConfig, name)
	}
	return name, nil
}
