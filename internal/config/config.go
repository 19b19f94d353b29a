// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

// Package config holds all application configuration, loaded with Koanf v2
// from layered sources (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Auth       AuthConfig       `koanf:"auth"`
	Attendance AttendanceConfig `koanf:"attendance"`
	Strava     StravaConfig     `koanf:"strava"`
	Jobs       JobsConfig       `koanf:"jobs"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// CORSOrigins defaults to "*" so the desktop widget can call the API
	// from any origin.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// AuthConfig holds the two-tier static token credentials.
// The write token grants read and write; the read token grants read only.
type AuthConfig struct {
	WriteToken string `koanf:"write_token"`
	ReadToken  string `koanf:"read_token"`
}

// AttendanceConfig tunes the sessionization and rollup engine.
type AttendanceConfig struct {
	// Timezone is the IANA zone used to derive local calendar dates from
	// UTC event timestamps (e.g. "Europe/Berlin"). Empty means UTC.
	Timezone string `koanf:"timezone"`

	// MinVisitMinutes is the qualification threshold: visits at least this
	// long count toward attendance.
	MinVisitMinutes int `koanf:"min_visit_minutes"`

	// DedupWindow suppresses a new enter this soon after an exit at the
	// same location (geofence flutter).
	DedupWindow time.Duration `koanf:"dedup_window"`

	// AutoCloseMinutes is the reaper threshold: open visits older than this
	// are force-closed at enter time plus this many minutes.
	AutoCloseMinutes int `koanf:"auto_close_minutes"`

	// WeeklyTarget is the default qualified-visit target for the
	// current-period progress calculation.
	WeeklyTarget int `koanf:"weekly_target"`
}

// StravaConfig configures the optional cycling-overlay sync.
type StravaConfig struct {
	Enabled      bool          `koanf:"enabled"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	BaseURL      string        `koanf:"base_url"`
	Timeout      time.Duration `koanf:"timeout"`
	WeeksBack    int           `koanf:"weeks_back"`
}

// JobsConfig configures the periodic maintenance job.
type JobsConfig struct {
	// Interval between maintenance runs (reap + trailing rollup recompute
	// + cycling sync).
	Interval time.Duration `koanf:"interval"`

	// RecomputeDays is the trailing window of rollups recomputed each run
	// to self-heal late-arriving exits and reaper closures.
	RecomputeDays int `koanf:"recompute_days"`

	// RunOnStartup triggers one maintenance run immediately after boot.
	RunOnStartup bool `koanf:"run_on_startup"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.Auth.WriteToken == "" {
		return fmt.Errorf("auth write_token must be configured (AUTH_WRITE_TOKEN)")
	}
	if c.Auth.ReadToken == "" {
		return fmt.Errorf("auth read_token must be configured (AUTH_READ_TOKEN)")
	}
	if c.Attendance.MinVisitMinutes <= 0 {
		return fmt.Errorf("attendance min_visit_minutes must be positive, got %d", c.Attendance.MinVisitMinutes)
	}
	if c.Attendance.AutoCloseMinutes < c.Attendance.MinVisitMinutes {
		return fmt.Errorf("attendance auto_close_minutes (%d) must not be below min_visit_minutes (%d)",
			c.Attendance.AutoCloseMinutes, c.Attendance.MinVisitMinutes)
	}
	if c.Attendance.DedupWindow < 0 {
		return fmt.Errorf("attendance dedup_window must not be negative")
	}
	if c.Jobs.RecomputeDays <= 0 {
		return fmt.Errorf("jobs recompute_days must be positive, got %d", c.Jobs.RecomputeDays)
	}
	if c.Strava.Enabled && (c.Strava.ClientID == "" || c.Strava.ClientSecret == "") {
		return fmt.Errorf("strava enabled but client_id/client_secret not configured")
	}
	return nil
}
