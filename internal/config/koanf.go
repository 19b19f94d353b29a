// Gymtrackd - Gym Attendance Analytics
// Copyright 2026 Gymtrackd Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gymtrack/gymtrackd

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gymtrackd/config.yaml",
	"/etc/gymtrackd/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8787,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "/data/gymtrackd.duckdb",
			MaxMemory: "512MB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Auth: AuthConfig{
			WriteToken: "",
			ReadToken:  "",
		},
		Attendance: AttendanceConfig{
			Timezone:         "UTC",
			MinVisitMinutes:  20,
			DedupWindow:      3 * time.Hour,
			AutoCloseMinutes: 240,
			WeeklyTarget:     4,
		},
		Strava: StravaConfig{
			Enabled:      false,
			ClientID:     "",
			ClientSecret: "",
			BaseURL:      "https://www.strava.com/api/v3",
			Timeout:      30 * time.Second,
			WeeksBack:    4,
		},
		Jobs: JobsConfig{
			Interval:      24 * time.Hour,
			RecomputeDays: 7,
			RunOnStartup:  false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults from struct
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// The returned Config has passed Validate().
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// WRITE_TOKEN -> auth.write_token, TIMEZONE -> attendance.timezone, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf paths.
// Unrecognized variables are dropped so unrelated process environment does
// not leak into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"host":                "server.host",
		"port":                "server.port",
		"server_timeout":      "server.timeout",
		"rate_limit_requests": "server.rate_limit_requests",
		"rate_limit_window":   "server.rate_limit_window",
		"rate_limit_disabled": "server.rate_limit_disabled",

		// Database
		"database_path":       "database.path",
		"database_max_memory": "database.max_memory",
		"database_threads":    "database.threads",

		// Auth tokens, short and prefixed forms both accepted
		"write_token":      "auth.write_token",
		"read_token":       "auth.read_token",
		"auth_write_token": "auth.write_token",
		"auth_read_token":  "auth.read_token",

		// Attendance engine
		"timezone":           "attendance.timezone",
		"min_visit_minutes":  "attendance.min_visit_minutes",
		"dedup_window":       "attendance.dedup_window",
		"auto_close_minutes": "attendance.auto_close_minutes",
		"weekly_target":      "attendance.weekly_target",

		// Strava
		"strava_enabled":       "strava.enabled",
		"strava_client_id":     "strava.client_id",
		"strava_client_secret": "strava.client_secret",
		"strava_base_url":      "strava.base_url",
		"strava_timeout":       "strava.timeout",
		"strava_weeks_back":    "strava.weeks_back",

		// Jobs
		"jobs_interval":       "jobs.interval",
		"jobs_recompute_days": "jobs.recompute_days",
		"jobs_run_on_startup": "jobs.run_on_startup",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return "" // drop unknown variables
}
