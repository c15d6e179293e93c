// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package config provides configuration management for browsercore.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Global Config: $HOME/.browsercore/config.yaml
// 3. Project Config: ./.browsercore.yaml, ./.browsercore.yml or ./.browsercore.toml
// 4. Environment Variables: BROWSERCORE_<SECTION>__<KEY>
package config

import (
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Cache      CacheConfig      `yaml:"cache" toml:"cache"`
	Gate       GateConfig       `yaml:"gate" toml:"gate"`
	Dispatcher DispatcherConfig `yaml:"dispatcher" toml:"dispatcher"`
	Fetch      FetchConfig      `yaml:"fetch" toml:"fetch"`
	Global     GlobalConfig     `yaml:"global" toml:"global"`
}

// CacheConfig sizes the page cache.
type CacheConfig struct {
	CapacityMB   int    `yaml:"capacity_mb" toml:"capacity_mb"`
	SnapshotPath string `yaml:"snapshot_path,omitempty" toml:"snapshot_path"` // empty disables snapshots
}

// CapacityBytes returns the cache budget in bytes.
func (c CacheConfig) CapacityBytes() int64 {
	return int64(c.CapacityMB) << 20
}

// GateConfig limits simultaneous connections.
type GateConfig struct {
	MaxConnections int `yaml:"max_connections" toml:"max_connections"`
}

// DispatcherConfig sizes the render worker pool.
type DispatcherConfig struct {
	Workers int `yaml:"workers" toml:"workers"`
}

// FetchConfig controls page loads.
type FetchConfig struct {
	MaxAttempts   int           `yaml:"max_attempts" toml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay" toml:"base_delay"`
	MaxDelay      time.Duration `yaml:"max_delay" toml:"max_delay"`
	Timeout       time.Duration `yaml:"timeout" toml:"timeout"`
	PrefetchLimit int           `yaml:"prefetch_limit" toml:"prefetch_limit"`
	Mode          string        `yaml:"mode" toml:"mode"` // normal, turbo, battery-saver, incognito

	// One line per load is appended here; empty disables the log.
	EventLog      string `yaml:"fetch_log,omitempty" toml:"fetch_log"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" toml:"log_max_age_days"`
	LogMaxBackups int    `yaml:"log_max_backups" toml:"log_max_backups"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" toml:"log_level"` // debug, info, warn, error
	LogFile  string `yaml:"log_file,omitempty" toml:"log_file"`
}
