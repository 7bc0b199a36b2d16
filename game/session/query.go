package session

import "strings"

// SessionsByTag returns the sessions holding tag.
func (m *Manager) SessionsByTag(tag string) []*Record {
	return m.query(func(r *Record) bool { return r.HasTag(tag) })
}

// SessionsByType returns the sessions of one game type.
func (m *Manager) SessionsByType(gameType string) []*Record {
	gameType = strings.ToLower(strings.TrimSpace(gameType))
	return m.query(func(r *Record) bool { return r.GameType == gameType })
}

func (m *Manager) CompletedSessions() []*Record {
	return m.query(func(r *Record) bool { return r.IsCompleted() })
}

// ActiveSessions returns the sessions whose game is not finished.
func (m *Manager) ActiveSessions() []*Record {
	return m.query(func(r *Record) bool { return r.IsActive() })
}

// RecentSessions returns the sessions touched within the last hours.
func (m *Manager) RecentSessions(hours float64) []*Record {
	return m.query(func(r *Record) bool { return r.IsRecent(hours) })
}

// StaleSessions returns the sessions older than hours that were not touched
// within the last hour.
func (m *Manager) StaleSessions(hours float64) []*Record {
	return m.query(func(r *Record) bool { return r.IsStale(hours) })
}

func (m *Manager) query(keep func(*Record) bool) []*Record {
	records, _ := m.snapshot()
	out := make([]*Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortByRecency(out)
	return out
}

// Summaries renders records the way ListSessions does.
func (m *Manager) Summaries(records []*Record) []Summary {
	activeID := m.ActiveSessionID()
	out := make([]Summary, 0, len(records))
	for _, r := range records {
		out = append(out, r.summary(r.ID == activeID, m.staleHours, m.statusIdleHours))
	}
	return out
}
