package server

import (
	"os"
	"strconv"
	"time"
)

// Config carries the tunables of the room server. All durations are
// overridable through the environment; zero values mean "use the default".
type Config struct {
	// Port is the TCP port the transports listen on.
	Port int

	// RoomEmptyTTL is how long an empty room survives before deletion.
	// Deletion is disabled entirely in Dev mode.
	RoomEmptyTTL time.Duration

	// ReconnectTimeout is how long a paused game waits for missing players
	// before it is aborted.
	ReconnectTimeout time.Duration

	// JoinRequestCooldown and JoinRequestMaxAttempts rate-limit private-room
	// join requests per requester.
	JoinRequestCooldown    time.Duration
	JoinRequestMaxAttempts int

	// TurnTimerGrace pads every turn timer so clients visibly time out
	// before the server auto-acts.
	TurnTimerGrace time.Duration

	// Dev disables empty-room TTL deletion.
	Dev bool

	LogFile    string
	DebugLevel string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Port:                   8080,
		RoomEmptyTTL:           300 * time.Second,
		ReconnectTimeout:       120 * time.Second,
		JoinRequestCooldown:    300 * time.Second,
		JoinRequestMaxAttempts: 3,
		TurnTimerGrace:         2 * time.Second,
		DebugLevel:             "info",
	}
}

// LoadConfig builds a Config from the environment on top of the defaults.
// Recognized variables: PORT, ROOM_EMPTY_TTL_SECONDS, RECONNECT_TIMEOUT_MINUTES,
// NODE_ENV (a value of "dev" or "development" disables TTL deletion),
// LOG_FILE, DEBUG_LEVEL.
func LoadConfig() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Port = n
		}
	}
	if v := os.Getenv("ROOM_EMPTY_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RoomEmptyTTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("RECONNECT_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ReconnectTimeout = time.Duration(n) * time.Minute
		}
	}
	switch os.Getenv("NODE_ENV") {
	case "dev", "development":
		cfg.Dev = true
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("DEBUG_LEVEL"); v != "" {
		cfg.DebugLevel = v
	}
	return cfg
}
