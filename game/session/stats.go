package session

import (
	"fmt"
)

// Stats aggregates the whole table.
func (m *Manager) Stats() Stats {
	records, activeID := m.snapshot()
	return m.computeStats(records, activeID)
}

func (m *Manager) computeStats(records []*Record, activeID string) Stats {
	s := Stats{
		TotalSessions:    len(records),
		ActiveSession:    activeID,
		SessionsByType:   map[string]int{},
		SessionsByStatus: map[Status]int{},
		TypeStats:        map[string]TypeStats{},
	}
	if len(records) == 0 {
		return s
	}

	var totalAge float64
	typeAge := map[string]float64{}
	for _, r := range records {
		s.SessionsByType[r.GameType]++
		status := r.Status(m.staleHours, m.statusIdleHours)
		s.SessionsByStatus[status]++

		ts := s.TypeStats[r.GameType]
		ts.GameType = r.GameType
		ts.TotalSessions++
		if status == StatusCompleted {
			s.CompletedGames++
			ts.CompletedSessions++
		} else {
			s.ActiveGames++
			ts.ActiveSessions++
		}
		s.TypeStats[r.GameType] = ts

		age := r.AgeHours()
		totalAge += age
		typeAge[r.GameType] += age
		s.OldestSessionHours = max(s.OldestSessionHours, age)
	}

	s.AverageAgeHours = totalAge / float64(len(records))
	s.CompletionRate = float64(s.CompletedGames) / float64(len(records))
	for gameType, ts := range s.TypeStats {
		ts.AverageAgeHours = typeAge[gameType] / float64(ts.TotalSessions)
		ts.CompletionRate = float64(ts.CompletedSessions) / float64(ts.TotalSessions)
		s.TypeStats[gameType] = ts
	}
	return s
}

// Health reports load and hygiene indicators.
func (m *Manager) Health() Health {
	records, activeID := m.snapshot()
	m.mu.RLock()
	maxSessions, pressure := m.maxSessions, m.memoryPressure
	m.mu.RUnlock()

	stats := m.computeStats(records, activeID)
	stale := 0
	for _, r := range records {
		if r.IsStale(m.staleHours) {
			stale++
		}
	}
	eventStats := m.dispatcher.Stats()

	h := Health{
		TotalSessions:      stats.TotalSessions,
		MaxSessions:        maxSessions,
		UtilizationPercent: float64(stats.TotalSessions) / float64(maxSessions) * 100,
		ActiveSession:      activeID,
		ActiveGames:        stats.ActiveGames,
		UptimeHours:        m.clock().Sub(m.startedAt).Hours(),
		OldestSessionHours: stats.OldestSessionHours,
		StaleSessions:      stale,
		MemoryPressure:     pressure,
		Recommendations:    []string{},
		EventsEnabled:      m.dispatcher != nil && m.emitEvents,
		EventsDropped:      eventStats.Dropped,
	}

	switch {
	case h.UtilizationPercent > 95 || pressure:
		h.Status = HealthCritical
	case h.UtilizationPercent > 80 || stale > 10:
		h.Status = HealthWarning
	default:
		h.Status = HealthHealthy
	}

	if h.UtilizationPercent > 80 {
		h.Recommendations = append(h.Recommendations,
			fmt.Sprintf("Session utilization is %.0f%%; run cleanup or raise max_sessions", h.UtilizationPercent))
	}
	if stale > 0 {
		h.Recommendations = append(h.Recommendations,
			fmt.Sprintf("Run cleanup to remove %d stale sessions", stale))
	}
	if pressure {
		h.Recommendations = append(h.Recommendations, "Memory pressure reported; reduce the number of sessions")
	}
	if h.EventsDropped > 0 {
		h.Recommendations = append(h.Recommendations,
			fmt.Sprintf("%d events were dropped; consider a larger event queue", h.EventsDropped))
	}
	return h
}
