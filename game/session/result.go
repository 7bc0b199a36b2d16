package session

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies a failed operation. Codes are plain strings so they cross
// JSON and MCP boundaries unchanged.
type Code string

const (
	CodeSessionLimitReached    Code = "SESSION_LIMIT_REACHED"
	CodeUnknownGameType        Code = "UNKNOWN_GAME_TYPE"
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionAlreadyExists   Code = "SESSION_ALREADY_EXISTS"
	CodeConfigValidationFailed Code = "CONFIG_VALIDATION_FAILED"
	CodeInvalidSessionID       Code = "INVALID_SESSION_ID"
	CodeInvalidTags            Code = "INVALID_TAGS"
	CodeInvalidCriteria        Code = "INVALID_CRITERIA"
	CodeInvalidFilter          Code = "INVALID_FILTER"
	CodeStateCreationFailed    Code = "STATE_CREATION_FAILED"
	CodeInternalError          Code = "INTERNAL_ERROR"
)

var (
	ErrSessionLimitReached  = errors.New("session limit reached")
	ErrUnknownGameType      = errors.New("unknown game type")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrConfigValidation     = errors.New("config validation failed")
	ErrInvalidSessionID     = errors.New("invalid session ID")
	ErrInvalidTags          = errors.New("invalid tags")
	ErrInvalidCriteria      = errors.New("invalid cleanup criteria")
	ErrInvalidFilter        = errors.New("invalid filter")
	ErrStateCreation        = errors.New("state creation failed")
	ErrInternal             = errors.New("internal error")
)

var codeErrors = map[Code]error{
	CodeSessionLimitReached:    ErrSessionLimitReached,
	CodeUnknownGameType:        ErrUnknownGameType,
	CodeSessionNotFound:        ErrSessionNotFound,
	CodeSessionAlreadyExists:   ErrSessionAlreadyExists,
	CodeConfigValidationFailed: ErrConfigValidation,
	CodeInvalidSessionID:       ErrInvalidSessionID,
	CodeInvalidTags:            ErrInvalidTags,
	CodeInvalidCriteria:        ErrInvalidCriteria,
	CodeInvalidFilter:          ErrInvalidFilter,
	CodeStateCreationFailed:    ErrStateCreation,
	CodeInternalError:          ErrInternal,
}

// Sentinel returns the error value behind a code, or nil for unknown codes.
func (c Code) Sentinel() error {
	return codeErrors[c]
}

// Result is the uniform outcome of every public Manager operation.
type Result struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorCode  Code      `json:"error_code,omitempty"`
	Data       any       `json:"data,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs float64   `json:"duration_ms"`
}

// Err converts a failed Result into an error that matches the code's sentinel
// with errors.Is. It returns nil on success.
func (r *Result) Err() error {
	if r == nil || r.Success {
		return nil
	}
	sentinel := r.ErrorCode.Sentinel()
	if sentinel == nil {
		sentinel = ErrInternal
	}
	if r.Error == "" || r.Error == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, r.Error)
}

// DataMap returns Data as a map when it is one.
func (r *Result) DataMap() map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r.Data.(map[string]any)
	return m
}

func (m *Manager) success(start time.Time, message string, data any) *Result {
	return &Result{
		Success:    true,
		Message:    message,
		Data:       data,
		Timestamp:  m.clock(),
		DurationMs: elapsedMs(start),
	}
}

func (m *Manager) failure(start time.Time, code Code, message string) *Result {
	return &Result{
		Success:    false,
		Error:      message,
		ErrorCode:  code,
		Timestamp:  m.clock(),
		DurationMs: elapsedMs(start),
	}
}

// failureFrom classifies err by the sentinel it wraps.
func (m *Manager) failureFrom(start time.Time, err error) *Result {
	for code, sentinel := range codeErrors {
		if errors.Is(err, sentinel) {
			return m.failure(start, code, err.Error())
		}
	}
	return m.failure(start, CodeInternalError, err.Error())
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
