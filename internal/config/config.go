// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	CTFTimeBaseURL string
	UserAgent      string
	DBPath         string
	ListenAddr     string

	PrivilegedRole string
	CommandPrefix  string

	RetentionDays        int
	DefaultLookaheadDays int
	MaxLookaheadDays     int
	EventLimit           int

	DisplayZone   string
	SweepInterval time.Duration
}

// Load reads configuration from environment variables and returns a validated
// Config. A .env file in the working directory is applied first when present;
// its absence is not an error. All variables have defaults, so an empty
// environment yields a working configuration pointed at the public API.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		CTFTimeBaseURL: "https://ctftime.org/api/v1",
		UserAgent:      "ctfrelay/1.0 (+https://github.com/ctfrelay/ctfrelay)",
		DBPath:         "ctfrelay.db",
		ListenAddr:     "127.0.0.1:8080",
		PrivilegedRole: "Cabinet",
		CommandPrefix:  "//",
		DisplayZone:    "US/Central",
		SweepInterval:  24 * time.Hour,
	}

	if v, ok := os.LookupEnv("CTFRELAY_CTFTIME_BASE_URL"); ok {
		cfg.CTFTimeBaseURL = v
	}
	if v, ok := os.LookupEnv("CTFRELAY_USER_AGENT"); ok {
		cfg.UserAgent = v
	}
	if v, ok := os.LookupEnv("CTFRELAY_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("CTFRELAY_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("CTFRELAY_PRIVILEGED_ROLE"); ok {
		cfg.PrivilegedRole = v
	}
	if v, ok := os.LookupEnv("CTFRELAY_COMMAND_PREFIX"); ok {
		cfg.CommandPrefix = v
	}
	if v, ok := os.LookupEnv("CTFRELAY_DISPLAY_ZONE"); ok {
		cfg.DisplayZone = v
	}

	var err error
	if cfg.RetentionDays, err = intVar("CTFRELAY_RETENTION_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.DefaultLookaheadDays, err = intVar("CTFRELAY_DEFAULT_LOOKAHEAD_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.MaxLookaheadDays, err = intVar("CTFRELAY_MAX_LOOKAHEAD_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.EventLimit, err = intVar("CTFRELAY_EVENT_LIMIT", 100); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("CTFRELAY_SWEEP_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CTFRELAY_SWEEP_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("CTFRELAY_SWEEP_INTERVAL must be positive, got %q", v)
		}
		cfg.SweepInterval = parsed
	}

	if cfg.DefaultLookaheadDays > cfg.MaxLookaheadDays {
		return nil, fmt.Errorf("CTFRELAY_DEFAULT_LOOKAHEAD_DAYS (%d) exceeds CTFRELAY_MAX_LOOKAHEAD_DAYS (%d)",
			cfg.DefaultLookaheadDays, cfg.MaxLookaheadDays)
	}

	return cfg, nil
}

// intVar reads a positive integer environment variable with a default.
func intVar(name string, def int) (int, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def, nil
	}

	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", name, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, parsed)
	}

	return parsed, nil
}
