package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings holds process-wide server settings read from the environment.
// Command-line flags override them in main.
type Settings struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	PresetsDir      string        `env:"PRESETS_DIR" envDefault:"presets"`
	MaxSessions     int           `env:"MAX_SESSIONS" envDefault:"100"`
	TimeoutHours    int           `env:"SESSION_TIMEOUT_HOURS" envDefault:"24"`
	IdleHours       int           `env:"SESSION_IDLE_HOURS" envDefault:"12"`
	StaleHours      float64       `env:"STALE_HOURS" envDefault:"24"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"10m"`
	EventQueueSize  int           `env:"EVENT_QUEUE_SIZE" envDefault:"256"`
	EmitEvents      bool          `env:"EMIT_EVENTS" envDefault:"true"`
	Ngrok           bool          `env:"NGROK"`
	NgrokDomain     string        `env:"NGROK_DOMAIN"`
	Debug           bool          `env:"DEBUG"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings the server cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.Port <= 0 || s.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, s.Port)
	case s.MaxSessions <= 0:
		return fmt.Errorf("%w: max sessions must be positive", ErrInvalidConfig)
	case s.TimeoutHours <= 0 || s.IdleHours <= 0:
		return fmt.Errorf("%w: session timeout and idle hours must be positive", ErrInvalidConfig)
	case s.StaleHours <= 0:
		return fmt.Errorf("%w: stale hours must be positive", ErrInvalidConfig)
	case s.EventQueueSize <= 0:
		return fmt.Errorf("%w: event queue size must be positive", ErrInvalidConfig)
	}
	return nil
}
