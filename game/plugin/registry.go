package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownGameType   = errors.New("unknown game type")
	ErrDuplicateGameType = errors.New("game type already registered")
	ErrInvalidPlugin     = errors.New("invalid plugin")
)

// Registry maps game types to plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin. Registering the same game type twice fails.
func (r *Registry) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: nil plugin", ErrInvalidPlugin)
	}

	gameType := normalizeType(p.GameType())
	if gameType == "" {
		return fmt.Errorf("%w: empty game type", ErrInvalidPlugin)
	}
	if p.Info().Name == "" {
		return fmt.Errorf("%w: %s has no display name", ErrInvalidPlugin, gameType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[gameType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateGameType, gameType)
	}
	r.plugins[gameType] = p
	return nil
}

// MustRegister registers every plugin and panics on the first failure.
func (r *Registry) MustRegister(plugins ...Plugin) {
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
}

// Get returns the plugin for a game type.
func (r *Registry) Get(gameType string) (Plugin, error) {
	key := normalizeType(gameType)

	r.mu.RLock()
	p, ok := r.plugins[key]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s. Available: %s",
			ErrUnknownGameType, gameType, strings.Join(r.ListTypes(), ", "))
	}
	return p, nil
}

// Has reports whether a game type is registered.
func (r *Registry) Has(gameType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[normalizeType(gameType)]
	return ok
}

// Unregister removes a game type and reports whether it was present.
func (r *Registry) Unregister(gameType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeType(gameType)
	if _, ok := r.plugins[key]; !ok {
		return false
	}
	delete(r.plugins, key)
	return true
}

// ListTypes returns the registered game types in sorted order.
func (r *Registry) ListTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.plugins))
	for t := range r.plugins {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// AllInfo returns metadata for every registered plugin keyed by game type.
func (r *Registry) AllInfo() map[string]GameInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]GameInfo, len(r.plugins))
	for t, p := range r.plugins {
		out[t] = p.Info()
	}
	return out
}

func normalizeType(gameType string) string {
	return strings.ToLower(strings.TrimSpace(gameType))
}
