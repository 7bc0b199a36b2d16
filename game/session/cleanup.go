package session

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/gameserver/game/events"
)

// DefaultCleanupCriteria builds criteria from the manager's configured
// timeout and idle hours.
func (m *Manager) DefaultCleanupCriteria() CleanupCriteria {
	_, timeout, idle := m.Settings()
	c := NewCleanupCriteria()
	c.MaxAgeHours = float64(timeout)
	c.MaxIdleHours = float64(min(idle, timeout))
	return c
}

// CleanupSessions removes sessions that are too old or idle too long. With
// DryRun set it only reports what it would remove.
func (m *Manager) CleanupSessions(ctx context.Context, c CleanupCriteria) (res *Result) {
	start := time.Now()
	defer m.recoverInto("cleanup_sessions", start, &res)

	if err := c.Validate(); err != nil {
		return m.failure(start, CodeInvalidCriteria, err.Error())
	}

	excluded := make([]string, 0, len(c.ExcludeGameTypes))
	for _, t := range c.ExcludeGameTypes {
		excluded = append(excluded, strings.ToLower(strings.TrimSpace(t)))
	}

	m.mu.Lock()
	records := make([]*Record, 0, len(m.sessions))
	for _, r := range m.sessions {
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b *Record) int { return cmp.Compare(a.ID, b.ID) })

	out := CleanupResult{
		DeletedSessions: []CleanupCandidate{},
		KeptSessions:    []CleanupCandidate{},
		Criteria:        c,
		DryRun:          c.DryRun,
	}
	for _, r := range records {
		reason, remove := cleanupDecision(r, c, excluded, r.ID == m.activeID)
		candidate := CleanupCandidate{
			SessionID:   r.ID,
			GameType:    r.GameType,
			Reason:      reason,
			AgeHours:    r.AgeHours(),
			IdleHours:   r.IdleHours(),
			IsCompleted: r.IsCompleted(),
			Tags:        r.Tags(),
		}
		if remove {
			out.DeletedSessions = append(out.DeletedSessions, candidate)
		} else {
			out.KeptSessions = append(out.KeptSessions, candidate)
		}
	}

	if !c.DryRun {
		for _, d := range out.DeletedSessions {
			delete(m.sessions, d.SessionID)
			out.SessionsDeleted++
		}
		if _, ok := m.sessions[m.activeID]; m.activeID != "" && !ok {
			m.activeID = m.electActiveLocked()
		}
	}
	out.SessionsKept = len(m.sessions)
	out.NewActiveSession = m.activeID
	m.mu.Unlock()

	out.DurationMs = elapsedMs(start)

	if !c.DryRun {
		for _, d := range out.DeletedSessions {
			m.logger.Info("session cleaned up", "session_id", d.SessionID, "reason", d.Reason)
			m.emit(events.SessionDeleted, d.SessionID, map[string]any{
				"game_type": d.GameType,
				"reason":    d.Reason,
				"cleanup":   true,
			}, "")
		}
	}
	m.emit(events.CleanupPerformed, "", map[string]any{
		"sessions_deleted": out.SessionsDeleted,
		"candidates":       len(out.DeletedSessions),
		"dry_run":          c.DryRun,
	}, "")

	action := "Deleted"
	if c.DryRun {
		action = "Would delete"
	}
	return m.success(start, fmt.Sprintf("%s %d sessions", action, len(out.DeletedSessions)), out)
}

// cleanupDecision applies the exemptions first, then the age and idle rules.
func cleanupDecision(r *Record, c CleanupCriteria, excludedTypes []string, isActive bool) (string, bool) {
	if c.KeepActive && isActive {
		return "active session", false
	}
	if len(c.KeepTagged) > 0 && r.HasAnyTag(c.KeepTagged) {
		return "has protected tag", false
	}
	if slices.Contains(excludedTypes, r.GameType) {
		return "excluded game type", false
	}

	age, idle := r.AgeHours(), r.IdleHours()
	if age > c.MaxAgeHours {
		return fmt.Sprintf("too old (%.1fh > %gh)", age, c.MaxAgeHours), true
	}
	if r.IsCompleted() && c.KeepCompleted {
		return "completed", false
	}
	if idle > c.MaxIdleHours {
		return fmt.Sprintf("idle too long (%.1fh > %gh)", idle, c.MaxIdleHours), true
	}
	return "within limits", false
}

// RunCleanup sweeps with DefaultCleanupCriteria every interval until ctx is
// done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := m.CleanupSessions(ctx, m.DefaultCleanupCriteria())
			if !res.Success {
				m.logger.Warn("periodic cleanup failed", "error", res.Error)
				continue
			}
			if out, ok := res.Data.(CleanupResult); ok && out.SessionsDeleted > 0 {
				m.logger.Info("periodic cleanup removed sessions", "deleted", out.SessionsDeleted, "kept", out.SessionsKept)
			}
		}
	}
}
