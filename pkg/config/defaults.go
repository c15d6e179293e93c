// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig returns the default configuration.
// These values are used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			CapacityMB: 100,
		},
		Gate: GateConfig{
			MaxConnections: 6,
		},
		Dispatcher: DispatcherConfig{
			Workers: 4,
		},
		Fetch:  DefaultFetchConfig(),
		Global: GlobalConfig{LogLevel: "info"},
	}
}

// DefaultFetchConfig returns default page-load settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MaxAttempts:   10,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		Timeout:       30 * time.Second,
		PrefetchLimit: 5,
		Mode:          "normal",
		LogMaxSizeMB:  10,
		LogMaxAgeDays: 7,
		LogMaxBackups: 3,
	}
}

// GetDefaultConfigPath returns the default global config file path.
func GetDefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, GlobalConfigDir, GlobalConfigFile)
}

// GetDefaultSnapshotPath returns where the CLI keeps its cache snapshot
// when snapshots are enabled without an explicit path.
func GetDefaultSnapshotPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, GlobalConfigDir, "cache.snapshot")
}
