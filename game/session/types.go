package session

import (
	"fmt"
	"math"
	"time"
)

// CreateRequest describes a new session.
type CreateRequest struct {
	GameType  string         `json:"game_type"`
	SessionID string         `json:"session_id,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
	// AutoActivate makes the session active when none is. Nil means true.
	AutoActivate *bool `json:"auto_activate,omitempty"`
	// EmitEvents overrides the manager default. Nil means the default.
	EmitEvents    *bool  `json:"emit_events,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Filter selects sessions for ListSessions. All set criteria must hold.
type Filter struct {
	GameType string `json:"game_type,omitempty"`
	// Tags matches records holding at least one of the tags.
	Tags []string `json:"tags,omitempty"`
	// TagsAll matches records holding every one of the tags.
	TagsAll  []string `json:"tags_all,omitempty"`
	Statuses []Status `json:"statuses,omitempty"`
	// IncludeCompleted defaults to true.
	IncludeCompleted *bool      `json:"include_completed,omitempty"`
	MinAgeHours      *float64   `json:"min_age_hours,omitempty"`
	MaxAgeHours      *float64   `json:"max_age_hours,omitempty"`
	MinIdleHours     *float64   `json:"min_idle_hours,omitempty"`
	MaxIdleHours     *float64   `json:"max_idle_hours,omitempty"`
	CreatedAfter     *time.Time `json:"created_after,omitempty"`
	CreatedBefore    *time.Time `json:"created_before,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	Offset           int        `json:"offset,omitempty"`
}

// Validate checks that the filter bounds are consistent.
func (f Filter) Validate() error {
	for name, v := range map[string]*float64{
		"min_age_hours":  f.MinAgeHours,
		"max_age_hours":  f.MaxAgeHours,
		"min_idle_hours": f.MinIdleHours,
		"max_idle_hours": f.MaxIdleHours,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidFilter, name)
		}
	}
	if f.MinAgeHours != nil && f.MaxAgeHours != nil && *f.MinAgeHours > *f.MaxAgeHours {
		return fmt.Errorf("%w: min_age_hours must not exceed max_age_hours", ErrInvalidFilter)
	}
	if f.MinIdleHours != nil && f.MaxIdleHours != nil && *f.MinIdleHours > *f.MaxIdleHours {
		return fmt.Errorf("%w: min_idle_hours must not exceed max_idle_hours", ErrInvalidFilter)
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return fmt.Errorf("%w: created_after must not be later than created_before", ErrInvalidFilter)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidFilter)
	}
	for _, s := range f.Statuses {
		switch s {
		case StatusActive, StatusIdle, StatusStale, StatusCompleted:
		default:
			return fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, s)
		}
	}
	return nil
}

func (f Filter) includeCompleted() bool {
	return f.IncludeCompleted == nil || *f.IncludeCompleted
}

// CleanupCriteria drives CleanupSessions.
type CleanupCriteria struct {
	MaxAgeHours   float64 `json:"max_age_hours"`
	MaxIdleHours  float64 `json:"max_idle_hours"`
	KeepCompleted bool    `json:"keep_completed"`
	KeepActive    bool    `json:"keep_active"`
	// KeepTagged and ExcludeGameTypes exempt matching records from every
	// other rule.
	KeepTagged       []string `json:"keep_tagged,omitempty"`
	ExcludeGameTypes []string `json:"exclude_game_types,omitempty"`
	DryRun           bool     `json:"dry_run"`
}

// NewCleanupCriteria returns criteria with the standard defaults: 24h max age,
// 12h max idle, completed and active sessions kept.
func NewCleanupCriteria() CleanupCriteria {
	return CleanupCriteria{
		MaxAgeHours:   24,
		MaxIdleHours:  12,
		KeepCompleted: true,
		KeepActive:    true,
	}
}

// Validate checks the thresholds.
func (c CleanupCriteria) Validate() error {
	if c.MaxAgeHours <= 0 {
		return fmt.Errorf("%w: max_age_hours must be positive", ErrInvalidCriteria)
	}
	if c.MaxIdleHours <= 0 {
		return fmt.Errorf("%w: max_idle_hours must be positive", ErrInvalidCriteria)
	}
	if c.MaxIdleHours > c.MaxAgeHours {
		return fmt.Errorf("%w: max_idle_hours (%g) cannot exceed max_age_hours (%g)",
			ErrInvalidCriteria, c.MaxIdleHours, c.MaxAgeHours)
	}
	return nil
}

// CleanupCandidate records why a session was (or would be) removed, or kept.
type CleanupCandidate struct {
	SessionID   string   `json:"session_id"`
	GameType    string   `json:"game_type"`
	Reason      string   `json:"reason"`
	AgeHours    float64  `json:"age_hours"`
	IdleHours   float64  `json:"idle_hours"`
	IsCompleted bool     `json:"is_completed"`
	Tags        []string `json:"tags"`
}

// CleanupResult is the Data of a CleanupSessions Result.
type CleanupResult struct {
	SessionsDeleted  int                `json:"sessions_deleted"`
	SessionsKept     int                `json:"sessions_kept"`
	DeletedSessions  []CleanupCandidate `json:"deleted_sessions"`
	KeptSessions     []CleanupCandidate `json:"kept_sessions"`
	Criteria         CleanupCriteria    `json:"cleanup_criteria"`
	DryRun           bool               `json:"dry_run"`
	DurationMs       float64            `json:"duration_ms"`
	NewActiveSession string             `json:"new_active_session,omitempty"`
}

// Operation is one entry of a bulk operation log.
type Operation struct {
	OperationType string         `json:"operation_type"`
	SessionID     string         `json:"session_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
}

// BulkResult is the Data of a bulk operation Result.
type BulkResult struct {
	Operation      string      `json:"operation"`
	TotalRequested int         `json:"total_requested"`
	Successful     int         `json:"successful"`
	Failed         int         `json:"failed"`
	Results        []Operation `json:"results"`
	DurationMs     float64     `json:"duration_ms"`
}

// SuccessRate is the share of successful items in percent.
func (b BulkResult) SuccessRate() float64 {
	if b.TotalRequested == 0 {
		return 0
	}
	return float64(b.Successful) / float64(b.TotalRequested) * 100
}

// TypeStats aggregates the sessions of one game type.
type TypeStats struct {
	GameType          string  `json:"game_type"`
	TotalSessions     int     `json:"total_sessions"`
	ActiveSessions    int     `json:"active_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	AverageAgeHours   float64 `json:"average_age_hours"`
	CompletionRate    float64 `json:"completion_rate"`
}

// Stats aggregates the whole session table.
type Stats struct {
	TotalSessions      int                  `json:"total_sessions"`
	ActiveSession      string               `json:"active_session,omitempty"`
	SessionsByType     map[string]int       `json:"sessions_by_type"`
	SessionsByStatus   map[Status]int       `json:"sessions_by_status"`
	CompletedGames     int                  `json:"completed_games"`
	ActiveGames        int                  `json:"active_games"`
	CompletionRate     float64              `json:"completion_rate"`
	AverageAgeHours    float64              `json:"average_session_age_hours"`
	OldestSessionHours float64              `json:"oldest_session_hours"`
	TypeStats          map[string]TypeStats `json:"type_stats"`
}

// Health levels.
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Health reports the manager's load.
type Health struct {
	Status             string   `json:"status"`
	TotalSessions      int      `json:"total_sessions"`
	MaxSessions        int      `json:"max_sessions"`
	UtilizationPercent float64  `json:"utilization_percent"`
	ActiveSession      string   `json:"active_session,omitempty"`
	ActiveGames        int      `json:"active_games"`
	UptimeHours        float64  `json:"uptime_hours"`
	OldestSessionHours float64  `json:"oldest_session_hours"`
	StaleSessions      int      `json:"stale_sessions"`
	MemoryPressure     bool     `json:"memory_pressure"`
	Recommendations    []string `json:"recommendations"`
	EventsEnabled      bool     `json:"events_enabled"`
	EventsDropped      int64    `json:"events_dropped"`
}

// ConfigureOptions is a partial update of the manager settings. Nil fields
// are left unchanged; set values are clamped to at least 1.
type ConfigureOptions struct {
	MaxSessions         *int `json:"max_sessions,omitempty"`
	DefaultTimeoutHours *int `json:"default_timeout_hours,omitempty"`
	DefaultIdleHours    *int `json:"default_idle_hours,omitempty"`
}

// Ptr returns a pointer to v, for optional request fields.
func Ptr[T any](v T) *T { return &v }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
