package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	unsafeIDChars    = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// ValidateSessionID trims id and checks it against the identifier format.
func ValidateSessionID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: session ID cannot be empty", ErrInvalidSessionID)
	}
	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q may only contain letters, numbers, hyphens and underscores", ErrInvalidSessionID, id)
	}
	return id, nil
}

// baseSessionID composes <game_type>-<MMDD><HHMM>-<6 hex>.
func baseSessionID(gameType string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	prefix := unsafeIDChars.ReplaceAllString(gameType, "_")
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("01021504"), random)
}

// uniqueID appends -1, -2, ... to base until exists reports false. The caller
// holds the table lock.
func uniqueID(base string, exists func(string) bool) string {
	id := base
	for n := 1; exists(id); n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}
