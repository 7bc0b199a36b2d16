package session

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

// Status is the derived lifecycle status of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusIdle      Status = "idle"
	StatusStale     Status = "stale"
	StatusCompleted Status = "completed"
)

// recentHours is the window inside which a session counts as recently used
// and therefore never stale.
const recentHours = 1.0

// Record is one game session held by a Manager. Identity fields are
// immutable; the state, tags and access time are guarded by the record's own
// mutex.
type Record struct {
	ID        string
	GameType  string
	CreatedAt time.Time

	clock func() time.Time

	mu           sync.Mutex
	state        plugin.State
	tags         []string
	lastAccessed time.Time
}

func newRecord(id, gameType string, state plugin.State, tags []string, clock func() time.Time) *Record {
	now := clock()
	return &Record{
		ID:           id,
		GameType:     gameType,
		CreatedAt:    now,
		clock:        clock,
		state:        state,
		tags:         tags,
		lastAccessed: now,
	}
}

// State returns the game state. Mutations must go through Manager.WithState.
func (r *Record) State() plugin.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot renders the game state.
func (r *Record) Snapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

// Tags returns a copy of the record's tags.
func (r *Record) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.tags)
}

// LastAccessed returns the last touch time.
func (r *Record) LastAccessed() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastAccessed
}

// Touch updates the access time and the state's timestamp. The access time
// never moves backwards.
func (r *Record) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked()
}

func (r *Record) touchLocked() {
	now := r.clock()
	if now.After(r.lastAccessed) {
		r.lastAccessed = now
	}
	r.state.Touch(now)
}

func (r *Record) IsCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.IsCompleted()
}

func (r *Record) IsActive() bool { return !r.IsCompleted() }

// Age is the time since creation.
func (r *Record) Age() time.Duration {
	return r.clock().Sub(r.CreatedAt)
}

// Idle is the time since the last touch.
func (r *Record) Idle() time.Duration {
	return r.clock().Sub(r.LastAccessed())
}

func (r *Record) AgeHours() float64  { return r.Age().Hours() }
func (r *Record) IdleHours() float64 { return r.Idle().Hours() }

// IsRecent reports whether the session was touched within the last hours.
func (r *Record) IsRecent(hours float64) bool {
	return r.IdleHours() < hours
}

// IsStale reports whether the session is older than hours and has not been
// touched within the last hour.
func (r *Record) IsStale(hours float64) bool {
	return r.AgeHours() > hours && !r.IsRecent(recentHours)
}

// Status derives the session status. Completed wins over stale, stale over
// idle, idle over active.
func (r *Record) Status(staleHours, idleHours float64) Status {
	switch {
	case r.IsCompleted():
		return StatusCompleted
	case r.IsStale(staleHours):
		return StatusStale
	case r.IdleHours() > idleHours:
		return StatusIdle
	default:
		return StatusActive
	}
}

func (r *Record) HasTag(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.tags, tag)
}

// HasAnyTag reports whether the record holds at least one of tags.
func (r *Record) HasAnyTag(tags []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tags {
		if slices.Contains(r.tags, t) {
			return true
		}
	}
	return false
}

// HasAllTags reports whether the record holds every one of tags.
func (r *Record) HasAllTags(tags []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tags {
		if !slices.Contains(r.tags, t) {
			return false
		}
	}
	return true
}

// setTags replaces the tag list and returns the previous one.
func (r *Record) setTags(tags []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.tags
	r.tags = tags
	r.touchLocked()
	return old
}

// addTags appends the tags not already present and returns the ones added.
func (r *Record) addTags(tags []string) (old, added []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old = slices.Clone(r.tags)
	for _, t := range tags {
		if !slices.Contains(r.tags, t) {
			r.tags = append(r.tags, t)
			added = append(added, t)
		}
	}
	if len(added) > 0 {
		r.touchLocked()
	}
	return old, added
}

// removeTags drops the given tags and returns the ones that were present.
func (r *Record) removeTags(tags []string) (old, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old = slices.Clone(r.tags)
	r.tags = slices.DeleteFunc(r.tags, func(t string) bool {
		if slices.Contains(tags, t) {
			removed = append(removed, t)
			return true
		}
		return false
	})
	if len(removed) > 0 {
		r.touchLocked()
	}
	return old, removed
}

// CleanTags trims tags, drops empty entries and removes duplicates keeping the
// first occurrence.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// maxTagLength bounds a single tag.
const maxTagLength = 64

// ValidateTags cleans tags and rejects overlong ones or ones holding control
// characters.
func ValidateTags(tags []string) ([]string, error) {
	clean := CleanTags(tags)
	for _, t := range clean {
		if len(t) > maxTagLength {
			return nil, fmt.Errorf("%w: tag %q exceeds %d characters", ErrInvalidTags, t, maxTagLength)
		}
		if strings.IndexFunc(t, unicode.IsControl) >= 0 {
			return nil, fmt.Errorf("%w: tag %q contains control characters", ErrInvalidTags, t)
		}
	}
	return clean, nil
}

// SessionInfo is the serializable view of a record.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	GameType     string    `json:"game_type"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	Tags         []string  `json:"tags"`
	IsActive     bool      `json:"is_active"`
	IsCompleted  bool      `json:"is_completed"`
	Status       Status    `json:"status"`
	AgeHours     float64   `json:"age_hours"`
	IdleHours    float64   `json:"idle_hours"`
}

// Summary is the compact view used in listings.
type Summary struct {
	SessionID       string   `json:"session_id"`
	GameType        string   `json:"game_type"`
	Status          Status   `json:"status"`
	Tags            []string `json:"tags"`
	AgeHours        float64  `json:"age_hours"`
	IdleHours       float64  `json:"idle_hours"`
	IsActiveSession bool     `json:"is_active_session"`
}

func (r *Record) info(isActive bool, staleHours, idleHours float64) SessionInfo {
	return SessionInfo{
		SessionID:    r.ID,
		GameType:     r.GameType,
		CreatedAt:    r.CreatedAt,
		LastAccessed: r.LastAccessed(),
		Tags:         r.Tags(),
		IsActive:     isActive,
		IsCompleted:  r.IsCompleted(),
		Status:       r.Status(staleHours, idleHours),
		AgeHours:     r.AgeHours(),
		IdleHours:    r.IdleHours(),
	}
}

func (r *Record) summary(isActive bool, staleHours, idleHours float64) Summary {
	return Summary{
		SessionID:       r.ID,
		GameType:        r.GameType,
		Status:          r.Status(staleHours, idleHours),
		Tags:            r.Tags(),
		AgeHours:        round2(r.AgeHours()),
		IdleHours:       round2(r.IdleHours()),
		IsActiveSession: isActive,
	}
}
