package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/gameserver/game/events"
)

// BulkDeleteSessions deletes each id in order. Unknown or blank ids fail
// individually without affecting the rest of the batch.
func (m *Manager) BulkDeleteSessions(ctx context.Context, ids []string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("bulk_delete_sessions", start, &res)

	result := m.runBulk("delete", ids, func(id string) (string, map[string]any, error) {
		record, newActive, _, err := m.remove(id)
		if err != nil {
			return "", nil, err
		}
		m.emit(events.SessionDeleted, id, map[string]any{
			"game_type":          record.GameType,
			"new_active_session": nullable(newActive),
			"bulk":               true,
		}, "")
		return fmt.Sprintf("Deleted %s session", record.GameType),
			map[string]any{"game_type": record.GameType}, nil
	})
	result.DurationMs = elapsedMs(start)

	m.logger.Info("bulk delete completed", "requested", result.TotalRequested, "successful", result.Successful)
	m.emitBulk(result)
	return m.success(start,
		fmt.Sprintf("Bulk delete completed: %d/%d successful", result.Successful, result.TotalRequested),
		result)
}

// BulkTagSessions adds tags to each id in order. Tags already present are
// left alone.
func (m *Manager) BulkTagSessions(ctx context.Context, ids []string, tags []string) (res *Result) {
	start := time.Now()
	defer m.recoverInto("bulk_tag_sessions", start, &res)

	clean, err := ValidateTags(tags)
	if err != nil {
		return m.failure(start, CodeInvalidTags, err.Error())
	}
	if len(clean) == 0 {
		return m.failure(start, CodeInvalidTags, fmt.Sprintf("%v: no tags given", ErrInvalidTags))
	}

	result := m.runBulk("tag", ids, func(id string) (string, map[string]any, error) {
		record, ok := m.Lookup(id)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		old, added := record.addTags(clean)
		if len(added) > 0 {
			m.emit(events.SessionUpdated, id, map[string]any{"change": "tags_added", "tags": added, "bulk": true}, "")
		}
		return fmt.Sprintf("Updated tags for %s session", record.GameType), map[string]any{
			"old_tags":   old,
			"new_tags":   record.Tags(),
			"added_tags": nonNil(added),
		}, nil
	})
	result.DurationMs = elapsedMs(start)

	m.logger.Info("bulk tag completed", "requested", result.TotalRequested, "successful", result.Successful, "tags", clean)
	m.emitBulk(result)
	return m.success(start,
		fmt.Sprintf("Bulk tag operation completed: %d/%d successful", result.Successful, result.TotalRequested),
		result)
}

// runBulk applies op to every id, isolating failures and panics per item.
func (m *Manager) runBulk(kind string, ids []string, op func(id string) (string, map[string]any, error)) BulkResult {
	result := BulkResult{
		Operation:      kind,
		TotalRequested: len(ids),
		Results:        make([]Operation, 0, len(ids)),
	}
	for _, id := range ids {
		entry := m.runBulkItem(kind, id, op)
		if entry.Success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, entry)
	}
	return result
}

func (m *Manager) runBulkItem(kind, id string, op func(id string) (string, map[string]any, error)) (entry Operation) {
	entry = Operation{OperationType: kind, SessionID: id}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session: bulk item panicked", "operation", kind, "session_id", id, "panic", r)
			entry.Success = false
			entry.Message = fmt.Sprintf("internal error: %v", r)
			entry.Details = nil
		}
		entry.Timestamp = m.clock()
	}()

	if strings.TrimSpace(id) == "" {
		entry.Message = fmt.Sprintf("%v: session ID cannot be empty", ErrInvalidSessionID)
		return entry
	}
	message, details, err := op(id)
	if err != nil {
		entry.Message = err.Error()
		return entry
	}
	entry.Success = true
	entry.Message = message
	entry.Details = details
	return entry
}

func (m *Manager) emitBulk(result BulkResult) {
	m.emit(events.BulkOperation, "", map[string]any{
		"operation":       result.Operation,
		"total_requested": result.TotalRequested,
		"successful":      result.Successful,
		"failed":          result.Failed,
	}, "")
}
