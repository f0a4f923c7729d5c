// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - Provide New() to build a Config with defaults.
//   - Every nested section carries koanf tags for file and env overrides and
//     validate tags checked by Validate.
package config

import (
	"runtime"
	"time"

	"github.com/okian/podium/internal/adapters/placement"
	"github.com/okian/podium/internal/adapters/roster"
	"github.com/okian/podium/internal/domain/resolver"
	"github.com/okian/podium/internal/domain/scoring"
	"github.com/okian/podium/internal/supervisor"
	"github.com/okian/podium/internal/telemetry"
)

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveBadger = "badger"
	ArchiveRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// QueueSize bounds the asynchronous refresh queue.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count" validate:"min=1"`

	// DedupeSize bounds the pending-request dedupe set.
	DedupeSize int `koanf:"dedupe_size" validate:"min=1"`

	Refresh   RefreshConfig        `koanf:"refresh"`
	Retry     resolver.RetryPolicy `koanf:"retry"`
	Placement PlacementConfig      `koanf:"placement"`
	Roster    RosterConfig         `koanf:"roster"`

	// ScoringTable lists points by placement, first place first.
	ScoringTable []int `koanf:"scoring_table" validate:"dive,gte=0"`

	// Tournaments maps tournament ids to their roster sheets.
	Tournaments map[string]TournamentConfig `koanf:"tournaments" validate:"dive"`

	Archive ArchiveConfig `koanf:"archive"`

	// CORSOrigins lists origins allowed to call the read API.
	CORSOrigins []string `koanf:"cors_origins"`

	// RefreshRateLimit caps refresh calls per client IP per minute. Zero
	// disables the limit.
	RefreshRateLimit int `koanf:"refresh_rate_limit" validate:"gte=0"`

	Supervisor supervisor.TreeConfig `koanf:"supervisor"`

	// Tracing controls OTLP export of refresh spans.
	Tracing telemetry.TracingConfig `koanf:"tracing"`
}

// RefreshConfig tunes the standings aggregator.
type RefreshConfig struct {
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	LiveBudget       time.Duration `koanf:"live_budget" validate:"gt=0"`
	Contention       string        `koanf:"contention" validate:"oneof=await reject"`
	Concurrency      int           `koanf:"concurrency" validate:"min=1"`
	ScheduleInterval time.Duration `koanf:"schedule_interval" validate:"gt=0"`
}

// PlacementConfig points at the match-history API.
type PlacementConfig struct {
	BaseURL       string                    `koanf:"base_url" validate:"required,url"`
	APIKey        string                    `koanf:"api_key"`
	APIKeyHeader  string                    `koanf:"api_key_header"`
	RatePerSecond float64                   `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int                       `koanf:"burst" validate:"gte=0"`
	Breaker       placement.BreakerSettings `koanf:"breaker"`
}

// RosterConfig controls spreadsheet exports.
type RosterConfig struct {
	Token    string              `koanf:"token"`
	Timeout  time.Duration       `koanf:"timeout" validate:"gt=0"`
	MaxBytes int64               `koanf:"max_bytes" validate:"gt=0"`
	Mapping  roster.FieldMapping `koanf:"mapping"`
}

// TournamentConfig binds a tournament to its sheet and refresh schedule.
type TournamentConfig struct {
	SheetURL    string `koanf:"sheet_url" validate:"required,url"`
	Format      string `koanf:"format" validate:"omitempty,oneof=csv xlsx"`
	Sheet       string `koanf:"sheet"`
	Region      string `koanf:"region" validate:"required"`
	AutoRefresh bool   `koanf:"auto_refresh"`
	Round       string `koanf:"round"`
	FetchLive   bool   `koanf:"fetch_live"`
}

// Source converts the sheet settings for the roster provider.
func (t TournamentConfig) Source() roster.Source {
	return roster.Source{URL: t.SheetURL, Format: t.Format, Sheet: t.Sheet, Region: t.Region}
}

// ArchiveConfig selects where published snapshots are persisted.
type ArchiveConfig struct {
	Backend     string `koanf:"backend" validate:"oneof=none badger redis"`
	BadgerPath  string `koanf:"badger_path"`
	RedisAddr   string `koanf:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB     int    `koanf:"redis_db" validate:"gte=0"`
	RedisPrefix string `koanf:"redis_prefix"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		Addr:        ":9080",
		QueueSize:   1024,
		WorkerCount: runtime.NumCPU(),
		DedupeSize:  10_000,
		Refresh: RefreshConfig{
			Timeout:          30 * time.Second,
			LiveBudget:       20 * time.Second,
			Contention:       "await",
			Concurrency:      8,
			ScheduleInterval: time.Minute,
		},
		Retry: resolver.DefaultRetryPolicy(),
		Placement: PlacementConfig{
			BaseURL:       "http://localhost:9090",
			APIKeyHeader:  "X-Api-Key",
			RatePerSecond: 20,
			Burst:         10,
			Breaker:       placement.DefaultBreakerSettings(),
		},
		Roster: RosterConfig{
			Timeout:  10 * time.Second,
			MaxBytes: 8 << 20,
			Mapping:  roster.DefaultMapping(),
		},
		ScoringTable:     []int(scoring.DefaultTable()),
		Tournaments:      map[string]TournamentConfig{},
		Archive:          ArchiveConfig{Backend: ArchiveNone, RedisPrefix: "podium:snapshot:"},
		CORSOrigins:      []string{"*"},
		RefreshRateLimit: 30,
		Supervisor:       supervisor.DefaultTreeConfig(),
		Tracing:          telemetry.DefaultTracingConfig(),
	}
}

// Sources returns the roster source of every configured tournament.
func (c *Config) Sources() map[string]roster.Source {
	out := make(map[string]roster.Source, len(c.Tournaments))
	for id, t := range c.Tournaments {
		out[id] = t.Source()
	}
	return out
}
