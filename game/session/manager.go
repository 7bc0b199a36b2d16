package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/gameserver/game/events"
	"github.com/wricardo/mcp-training/gameserver/game/plugin"
)

const (
	DefaultMaxSessions     = 100
	DefaultTimeoutHours    = 24
	DefaultIdleHours       = 12
	DefaultStaleHours      = 24.0
	DefaultStatusIdleHours = 2.0
)

// Manager owns the session table, the active session pointer and every
// composite operation over them.
type Manager struct {
	registry   *plugin.Registry
	dispatcher *events.Dispatcher
	logger     *slog.Logger
	clock      func() time.Time
	startedAt  time.Time
	emitEvents bool

	staleHours      float64
	statusIdleHours float64

	mu             sync.RWMutex
	sessions       map[string]*Record
	reserved       map[string]struct{}
	activeID       string
	maxSessions    int
	timeoutHours   int
	idleHours      int
	memoryPressure bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDispatcher sets the event dispatcher. Without one no events are sent.
func WithDispatcher(d *events.Dispatcher) Option {
	return func(m *Manager) { m.dispatcher = d }
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithMaxSessions sets the session limit (minimum 1).
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.maxSessions = max(1, n) }
}

// WithStaleHours sets the age after which an untouched session reports the
// stale status.
func WithStaleHours(hours float64) Option {
	return func(m *Manager) {
		if hours > 0 {
			m.staleHours = hours
		}
	}
}

// WithEventsDefault sets whether operations emit events when the request does
// not say.
func WithEventsDefault(enabled bool) Option {
	return func(m *Manager) { m.emitEvents = enabled }
}

// NewManager creates a session manager over registry.
func NewManager(registry *plugin.Registry, opts ...Option) *Manager {
	if registry == nil {
		registry = plugin.NewRegistry()
	}
	m := &Manager{
		registry:        registry,
		logger:          slog.Default(),
		clock:           time.Now,
		emitEvents:      true,
		staleHours:      DefaultStaleHours,
		statusIdleHours: DefaultStatusIdleHours,
		sessions:        make(map[string]*Record),
		reserved:        make(map[string]struct{}),
		maxSessions:     DefaultMaxSessions,
		timeoutHours:    DefaultTimeoutHours,
		idleHours:       DefaultIdleHours,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.startedAt = m.clock()
	return m
}

// Registry returns the plugin registry the manager creates sessions from.
func (m *Manager) Registry() *plugin.Registry { return m.registry }

// Configure applies a partial settings update.
func (m *Manager) Configure(opts ConfigureOptions) {
	m.mu.Lock()
	if opts.MaxSessions != nil {
		m.maxSessions = max(1, *opts.MaxSessions)
	}
	if opts.DefaultTimeoutHours != nil {
		m.timeoutHours = max(1, *opts.DefaultTimeoutHours)
	}
	if opts.DefaultIdleHours != nil {
		m.idleHours = max(1, *opts.DefaultIdleHours)
	}
	maxSessions, timeout, idle := m.maxSessions, m.timeoutHours, m.idleHours
	m.mu.Unlock()

	m.logger.Info("session manager configured",
		"max_sessions", maxSessions, "timeout_hours", timeout, "idle_hours", idle)
}

// Settings returns the current max sessions, timeout hours and idle hours.
func (m *Manager) Settings() (maxSessions, timeoutHours, idleHours int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxSessions, m.timeoutHours, m.idleHours
}

// SetMemoryPressure raises or clears the memory pressure flag reported by
// Health.
func (m *Manager) SetMemoryPressure(on bool) {
	m.mu.Lock()
	m.memoryPressure = on
	m.mu.Unlock()
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ActiveSessionID returns the active session id, or "" when there is none.
func (m *Manager) ActiveSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// CreateSession validates the request, builds the initial game state through
// the plugin and stores the new session.
func (m *Manager) CreateSession(ctx context.Context, req CreateRequest) (res *Result) {
	start := time.Now()
	defer m.recoverInto("create_session", start, &res)

	if n, limit := m.usage(); n >= limit {
		return m.failure(start, CodeSessionLimitReached,
			fmt.Sprintf("maximum sessions reached (%d)", limit))
	}

	gameType := strings.ToLower(strings.TrimSpace(req.GameType))
	p, err := m.registry.Get(gameType)
	if err != nil {
		return m.failure(start, CodeUnknownGameType, err.Error())
	}

	cfg, err := p.ValidateConfig(req.Config)
	if err != nil {
		return m.failure(start, CodeConfigValidationFailed,
			fmt.Sprintf("invalid configuration for %s: %v", gameType, err))
	}

	tags, err := ValidateTags(req.Tags)
	if err != nil {
		return m.failure(start, CodeInvalidTags, err.Error())
	}

	id, err := m.reserveID(gameType, req.SessionID)
	if err != nil {
		return m.failureFrom(start, err)
	}

	state, err := buildState(p, id, cfg)
	if err != nil {
		m.release(id)
		m.logger.Warn("session: state creation failed", "game_type", gameType, "session_id", id, "error", err)
		return m.failure(start, CodeStateCreationFailed,
			fmt.Sprintf("failed to create initial state: %v", err))
	}

	record := newRecord(id, gameType, state, tags, m.clock)
	autoActivate := req.AutoActivate == nil || *req.AutoActivate

	m.mu.Lock()
	delete(m.reserved, id)
	if len(m.sessions) >= m.maxSessions {
		limit := m.maxSessions
		m.mu.Unlock()
		return m.failure(start, CodeSessionLimitReached,
			fmt.Sprintf("maximum sessions reached (%d)", limit))
	}
	m.sessions[id] = record
	activated := false
	if m.activeID == "" && autoActivate {
		m.activeID = id
		activated = true
	}
	isActive := m.activeID == id
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", id, "game_type", gameType, "tags", tags, "active", isActive)

	if m.shouldEmit(req.EmitEvents) {
		m.publish(events.SessionCreated, id, map[string]any{
			"game_type":      gameType,
			"tags":           slices.Clone(tags),
			"auto_activated": activated,
		}, req.CorrelationID)
	}

	return m.success(start, fmt.Sprintf("Created %s session %s", gameType, id), map[string]any{
		"session_id":   id,
		"session_info": record.info(isActive, m.staleHours, m.statusIdleHours),
		"game_state":   record.Snapshot(),
	})
}

func (m *Manager) usage() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), m.maxSessions
}

// reserveID resolves the session id and holds it until the session is
// committed or released. A custom id must be valid and free; otherwise one is
// generated.
func (m *Manager) reserveID(gameType, custom string) (string, error) {
	var id string
	if custom != "" {
		var err error
		if id, err = ValidateSessionID(custom); err != nil {
			return "", err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id != "" {
		if m.existsLocked(id) {
			return "", fmt.Errorf("%w: %s", ErrSessionAlreadyExists, id)
		}
	} else {
		id = uniqueID(baseSessionID(gameType, m.clock()), m.existsLocked)
	}
	m.reserved[id] = struct{}{}
	return id, nil
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	delete(m.reserved, id)
	m.mu.Unlock()
}

func (m *Manager) existsLocked(id string) bool {
	if _, ok := m.sessions[id]; ok {
		return true
	}
	_, ok := m.reserved[id]
	return ok
}

// buildState runs the plugin constructor, converting panics to errors.
func buildState(p plugin.Plugin, id string, cfg any) (state plugin.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			state, err = nil, fmt.Errorf("plugin panicked: %v", r)
		}
	}()
	state, err = p.CreateInitialState(id, cfg)
	if err == nil && state == nil {
		err = errors.New("plugin returned no state")
	}
	return state, err
}

// GetSession returns the session for id, or the active session when id is
// empty, and touches it.
func (m *Manager) GetSession(id string) (*Record, bool) {
	m.mu.RLock()
	if id == "" {
		id = m.activeID
	}
	record, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	record.Touch()
	return record, true
}

// GetSessionInfo describes a session together with its plugin.
func (m *Manager) GetSessionInfo(ctx context.Context, id string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("get_session_info", start, &res)

	record, ok := m.GetSession(id)
	if !ok {
		return m.failure(start, CodeSessionNotFound, notFoundMessage(id))
	}

	isActive := m.ActiveSessionID() == record.ID
	data := map[string]any{
		"session_info":        record.info(isActive, m.staleHours, m.statusIdleHours),
		"game_state":          record.Snapshot(),
		"session_age_seconds": record.Age().Seconds(),
		"idle_time_seconds":   record.Idle().Seconds(),
		"session_summary":     record.summary(isActive, m.staleHours, m.statusIdleHours),
	}
	if p, err := m.registry.Get(record.GameType); err == nil {
		data["plugin_info"] = p.Info()
		data["config_schema"] = p.JSONSchema()
	} else {
		m.logger.Warn("session: plugin missing for session", "session_id", record.ID, "game_type", record.GameType)
	}

	return m.success(start, "Session info retrieved", data)
}

func notFoundMessage(id string) string {
	if id == "" {
		return "no active session"
	}
	return fmt.Sprintf("session %s not found", id)
}

// ListSessions returns the sessions matching f, most recently accessed first.
func (m *Manager) ListSessions(ctx context.Context, f Filter) (res *Result) {
	start := time.Now()
	defer m.recoverInto("list_sessions", start, &res)

	if err := f.Validate(); err != nil {
		return m.failure(start, CodeInvalidFilter, err.Error())
	}

	records, activeID := m.snapshot()
	matched := make([]*Record, 0, len(records))
	for _, r := range records {
		if m.matches(r, f) {
			matched = append(matched, r)
		}
	}
	sortByRecency(matched)
	filteredCount := len(matched)
	matched = paginate(matched, f.Offset, f.Limit)

	infos := make([]SessionInfo, 0, len(matched))
	summaries := make([]Summary, 0, len(matched))
	for _, r := range matched {
		isActive := r.ID == activeID
		infos = append(infos, r.info(isActive, m.staleHours, m.statusIdleHours))
		summaries = append(summaries, r.summary(isActive, m.staleHours, m.statusIdleHours))
	}

	return m.success(start,
		fmt.Sprintf("Found %d sessions (of %d total)", filteredCount, len(records)),
		map[string]any{
			"sessions":       infos,
			"summaries":      summaries,
			"total_count":    len(records),
			"filtered_count": filteredCount,
			"returned_count": len(infos),
			"stats":          m.Stats(),
			"filter_applied": f,
		})
}

func (m *Manager) matches(r *Record, f Filter) bool {
	if gt := strings.ToLower(strings.TrimSpace(f.GameType)); gt != "" && r.GameType != gt {
		return false
	}
	if !f.includeCompleted() && r.IsCompleted() {
		return false
	}
	if len(f.Tags) > 0 && !r.HasAnyTag(f.Tags) {
		return false
	}
	if len(f.TagsAll) > 0 && !r.HasAllTags(f.TagsAll) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status(m.staleHours, m.statusIdleHours)) {
		return false
	}
	age, idle := r.AgeHours(), r.IdleHours()
	if f.MaxAgeHours != nil && age > *f.MaxAgeHours {
		return false
	}
	if f.MinAgeHours != nil && age < *f.MinAgeHours {
		return false
	}
	if f.MaxIdleHours != nil && idle > *f.MaxIdleHours {
		return false
	}
	if f.MinIdleHours != nil && idle < *f.MinIdleHours {
		return false
	}
	if f.CreatedAfter != nil && r.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && r.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	return true
}

func paginate(records []*Record, offset, limit int) []*Record {
	if offset >= len(records) {
		return records[:0]
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// snapshot copies the table so callers can work without the table lock.
func (m *Manager) snapshot() ([]*Record, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]*Record, 0, len(m.sessions))
	for _, r := range m.sessions {
		records = append(records, r)
	}
	return records, m.activeID
}

// sortByRecency orders records by last access, newest first, then by id.
func sortByRecency(records []*Record) {
	slices.SortStableFunc(records, func(a, b *Record) int {
		if c := b.LastAccessed().Compare(a.LastAccessed()); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// DeleteSession removes a session. When it was active the most recently
// accessed remaining session becomes active.
func (m *Manager) DeleteSession(ctx context.Context, id string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("delete_session", start, &res)

	record, newActive, remaining, err := m.remove(id)
	if err != nil {
		return m.failureFrom(start, err)
	}

	m.logger.Info("session deleted", "session_id", id, "game_type", record.GameType, "new_active", newActive)
	m.emit(events.SessionDeleted, id, map[string]any{
		"game_type":          record.GameType,
		"new_active_session": nullable(newActive),
	}, "")

	return m.success(start, fmt.Sprintf("Session %s deleted", id), map[string]any{
		"deleted_session":    id,
		"deleted_game_type":  record.GameType,
		"new_active_session": nullable(newActive),
		"remaining_sessions": remaining,
	})
}

// remove deletes one record and re-elects the active session if needed.
func (m *Manager) remove(id string) (*Record, string, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.sessions[id]
	if !ok {
		return nil, "", 0, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	if m.activeID == id {
		m.activeID = m.electActiveLocked()
	}
	return record, m.activeID, len(m.sessions), nil
}

// electActiveLocked picks the most recently accessed session.
func (m *Manager) electActiveLocked() string {
	var best *Record
	var bestAt time.Time
	for _, r := range m.sessions {
		at := r.LastAccessed()
		if best == nil || at.After(bestAt) || (at.Equal(bestAt) && r.ID < best.ID) {
			best, bestAt = r, at
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

// SetActiveSession makes id the active session and touches it.
func (m *Manager) SetActiveSession(ctx context.Context, id string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("set_active_session", start, &res)

	m.mu.Lock()
	record, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return m.failure(start, CodeSessionNotFound, notFoundMessage(id))
	}
	previous := m.activeID
	m.activeID = id
	m.mu.Unlock()

	record.Touch()
	m.logger.Info("active session changed", "session_id", id, "previous", previous)
	m.emit(events.SessionActivated, id, map[string]any{"previous_active": nullable(previous)}, "")

	return m.success(start, fmt.Sprintf("Session %s is now active", id), map[string]any{
		"active_session":  id,
		"previous_active": nullable(previous),
	})
}

// UpdateSessionTags replaces the tags of a session (the active one when id
// is empty).
func (m *Manager) UpdateSessionTags(ctx context.Context, id string, tags []string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("update_session_tags", start, &res)

	clean, err := ValidateTags(tags)
	if err != nil {
		return m.failure(start, CodeInvalidTags, err.Error())
	}
	record, ok := m.Lookup(id)
	if !ok {
		return m.failure(start, CodeSessionNotFound, notFoundMessage(id))
	}

	old := record.setTags(clean)
	m.emit(events.SessionUpdated, record.ID, map[string]any{
		"change":   "tags_replaced",
		"old_tags": old,
		"new_tags": slices.Clone(clean),
	}, "")

	return m.success(start, fmt.Sprintf("Updated tags for session %s", record.ID), map[string]any{
		"session_id": record.ID,
		"old_tags":   old,
		"new_tags":   record.Tags(),
	})
}

// AddSessionTags adds tags that are not yet present.
func (m *Manager) AddSessionTags(ctx context.Context, id string, tags []string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("add_session_tags", start, &res)

	clean, err := ValidateTags(tags)
	if err != nil {
		return m.failure(start, CodeInvalidTags, err.Error())
	}
	record, ok := m.Lookup(id)
	if !ok {
		return m.failure(start, CodeSessionNotFound, notFoundMessage(id))
	}

	old, added := record.addTags(clean)
	if len(added) > 0 {
		m.emit(events.SessionUpdated, record.ID, map[string]any{"change": "tags_added", "tags": added}, "")
	}
	return m.success(start, fmt.Sprintf("Added %d tags to session %s", len(added), record.ID), map[string]any{
		"session_id": record.ID,
		"old_tags":   old,
		"new_tags":   record.Tags(),
		"added_tags": nonNil(added),
	})
}

// RemoveSessionTags removes the given tags.
func (m *Manager) RemoveSessionTags(ctx context.Context, id string, tags []string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("remove_session_tags", start, &res)

	record, ok := m.Lookup(id)
	if !ok {
		return m.failure(start, CodeSessionNotFound, notFoundMessage(id))
	}

	old, removed := record.removeTags(CleanTags(tags))
	if len(removed) > 0 {
		m.emit(events.SessionUpdated, record.ID, map[string]any{"change": "tags_removed", "tags": removed}, "")
	}
	return m.success(start, fmt.Sprintf("Removed %d tags from session %s", len(removed), record.ID), map[string]any{
		"session_id":   record.ID,
		"old_tags":     old,
		"new_tags":     record.Tags(),
		"removed_tags": nonNil(removed),
	})
}

// Lookup finds a session without touching it. An empty id means the active
// session.
func (m *Manager) Lookup(id string) (*Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id == "" {
		id = m.activeID
	}
	r, ok := m.sessions[id]
	return r, ok
}

// UpdateState swaps the game state of a session.
func (m *Manager) UpdateState(ctx context.Context, id string, state plugin.State) (res *Result) {
	start := time.Now()
	defer m.recoverInto("update_state", start, &res)

	if state == nil {
		return m.failure(start, CodeInternalError, "state must not be nil")
	}
	record, err := m.WithState(ctx, id, func(plugin.State) (plugin.State, error) {
		return state, nil
	})
	if err != nil {
		return m.failureFrom(start, err)
	}
	return m.success(start, fmt.Sprintf("Updated state of session %s", record.ID), map[string]any{
		"session_id": record.ID,
		"game_state": record.Snapshot(),
	})
}

// WithState runs fn with exclusive access to a session's state (the active
// session when id is empty). A non-nil state returned by fn replaces the
// current one. The session is touched afterwards, and a completion transition
// emits session_completed.
func (m *Manager) WithState(ctx context.Context, id string, fn func(plugin.State) (plugin.State, error)) (*Record, error) {
	record, ok := m.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, notFoundMessage(id))
	}

	wasCompleted, completed, err := func() (bool, bool, error) {
		record.mu.Lock()
		defer record.mu.Unlock()
		before := record.state.IsCompleted()
		next, err := fn(record.state)
		if err != nil {
			return before, before, err
		}
		if next != nil {
			record.state = next
		}
		record.touchLocked()
		return before, record.state.IsCompleted(), nil
	}()
	if err != nil {
		return record, err
	}

	m.emit(events.SessionUpdated, record.ID, map[string]any{"change": "state"}, "")
	if completed && !wasCompleted {
		m.logger.Info("session completed", "session_id", record.ID, "game_type", record.GameType)
		m.emit(events.SessionCompleted, record.ID, map[string]any{"game_type": record.GameType}, "")
	}
	return record, nil
}

// GetHealthStatus wraps Health in a Result.
func (m *Manager) GetHealthStatus(ctx context.Context) (res *Result) {
	start := time.Now()
	defer m.recoverInto("get_health_status", start, &res)

	h := m.Health()
	return m.success(start, fmt.Sprintf("Session manager is %s", h.Status), h)
}

func (m *Manager) shouldEmit(override *bool) bool {
	if override != nil {
		return *override
	}
	return m.emitEvents
}

// emit publishes an event when events are on by default.
func (m *Manager) emit(kind events.Type, sessionID string, details map[string]any, correlationID string) {
	if m.emitEvents {
		m.publish(kind, sessionID, details, correlationID)
	}
}

// publish hands an event to the dispatcher without blocking. Delivery happens
// on the dispatcher's worker, never under the table lock.
func (m *Manager) publish(kind events.Type, sessionID string, details map[string]any, correlationID string) {
	if m.dispatcher == nil {
		return
	}
	e := events.New(kind, sessionID, details, correlationID)
	e.Timestamp = m.clock().UTC()
	m.dispatcher.Publish(e)
}

// recoverInto turns a panic in a public operation into an INTERNAL_ERROR
// result.
func (m *Manager) recoverInto(op string, start time.Time, res **Result) {
	r := recover()
	if r == nil {
		return
	}
	m.logger.Error("session: operation panicked", "operation", op, "panic", r)
	*res = m.failure(start, CodeInternalError, fmt.Sprintf("internal error during %s: %v", op, r))
	m.emit(events.ErrorOccurred, "", map[string]any{"operation": op, "error": fmt.Sprint(r)}, "")
}

// nullable renders "" as nil so JSON shows null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
