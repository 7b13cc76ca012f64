// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers file and environment overrides on top of New().
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ContestType pre-configures a contest at boot: qualifiers, semifinals,
	// finals or crb. Empty leaves the service waiting for POST /contest/setup.
	ContestType string `koanf:"contest_type"`

	// Routes is the number of boulders for the boot-time contest.
	Routes int `koanf:"routes"`

	// PauseMinutes is the break between qualifier rounds.
	PauseMinutes int `koanf:"pause_minutes"`

	// Phase durations in seconds.
	PreviewSeconds int `koanf:"preview_seconds"`
	RouteSeconds   int `koanf:"route_seconds"`
	TransitSeconds int `koanf:"transit_seconds"`

	// MinTickDelayMS floors the drift-compensated tick delay.
	MinTickDelayMS int `koanf:"min_tick_delay_ms"`

	// CompetitorsFile is the delimited roster of name and club.
	CompetitorsFile string `koanf:"competitors_file"`

	// ScoresDB is a SQLite file for score entries. Empty keeps scores in memory.
	ScoresDB string `koanf:"scores_db"`

	// NATSURL enables the NATS display feed when set.
	NATSURL string `koanf:"nats_url"`

	// NATSSubject is the subject snapshots and alerts are published on.
	NATSSubject string `koanf:"nats_subject"`

	// AdminPasswordHash is the bcrypt hash guarding destructive commands.
	AdminPasswordHash string `koanf:"admin_password_hash"`

	// CommandQueueSize bounds the contest command queue.
	CommandQueueSize int `koanf:"command_queue_size"`

	// SubmissionCacheSize bounds the remembered score submission ids.
	SubmissionCacheSize int `koanf:"submission_cache_size"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		Routes:              5,
		PauseMinutes:        1,
		PreviewSeconds:      480,
		RouteSeconds:        240,
		TransitSeconds:      15,
		MinTickDelayMS:      1,
		CompetitorsFile:     "db/competitors-list.csv",
		NATSSubject:         "belay.contest",
		CommandQueueSize:    1024,
		SubmissionCacheSize: 10_000,
		MaxRankingLimit:     500,
	}
}

var contestTypes = map[string]bool{"": true, "qualifiers": true, "semifinals": true, "finals": true, "crb": true}

// Validate checks the values Load cannot repair.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !contestTypes[strings.ToLower(c.ContestType)]:
		return fmt.Errorf("%w: unknown contest_type %q", ErrInvalidConfig, c.ContestType)
	case c.PreviewSeconds <= 0 || c.RouteSeconds <= 0 || c.TransitSeconds <= 0:
		return fmt.Errorf("%w: phase durations must be positive", ErrInvalidConfig)
	case c.PauseMinutes < 1 || c.PauseMinutes > 60:
		return fmt.Errorf("%w: pause_minutes must be within 1..60", ErrInvalidConfig)
	case c.Routes < 0:
		return fmt.Errorf("%w: routes must not be negative", ErrInvalidConfig)
	case c.MinTickDelayMS < 1:
		return fmt.Errorf("%w: min_tick_delay_ms must be at least 1", ErrInvalidConfig)
	case c.CommandQueueSize < 1:
		return fmt.Errorf("%w: command_queue_size must be positive", ErrInvalidConfig)
	}
	return nil
}
