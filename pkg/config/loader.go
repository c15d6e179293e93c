// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/browsercore/browsercore/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for all environment variables.
	EnvPrefix = "BROWSERCORE"
	// GlobalConfigDir is the global config directory name.
	GlobalConfigDir = ".browsercore"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// ProjectConfigFiles are the project-level config names, first match wins.
var ProjectConfigFiles = []string{
	".browsercore.yaml",
	".browsercore.yml",
	".browsercore.toml",
}

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	homeDir     string
	skipGlobal  bool
	getenv      func(string) string
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{getenv: os.Getenv}
}

// WithProjectRoot sets the project root directory.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// WithHomeDir overrides the directory holding the global config.
func (l *Loader) WithHomeDir(dir string) *Loader {
	l.homeDir = dir
	return l
}

// WithEnv replaces the environment lookup.
func (l *Loader) WithEnv(getenv func(string) string) *Loader {
	l.getenv = getenv
	return l
}

// SkipGlobal skips loading global config.
func (l *Loader) SkipGlobal() *Loader {
	l.skipGlobal = true
	return l
}

// Load loads configuration with full precedence order. Missing files are
// skipped; files that exist but do not parse are an error.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if !l.skipGlobal {
		if path, ok := l.globalPath(); ok {
			if err := decodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	if path, ok := l.projectPath(); ok {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads defaults, then path, then environment overrides.
// Global and project files are not consulted.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Paths returns the config files Load would read, in precedence order.
func (l *Loader) Paths() []string {
	var paths []string
	if !l.skipGlobal {
		if p, ok := l.globalPath(); ok {
			paths = append(paths, p)
		}
	}
	if p, ok := l.projectPath(); ok {
		paths = append(paths, p)
	}
	return paths
}

func (l *Loader) globalPath() (string, bool) {
	home := l.homeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", false
		}
	}
	return existing(filepath.Join(home, GlobalConfigDir, GlobalConfigFile))
}

func (l *Loader) projectPath() (string, bool) {
	root := l.projectRoot
	if root == "" {
		root = "."
	}
	for _, name := range ProjectConfigFiles {
		if p, ok := existing(filepath.Join(root, name)); ok {
			return p, true
		}
	}
	return "", false
}

func existing(path string) (string, bool) {
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		return path, true
	}
	return "", false
}

// decodeFile decodes path onto cfg, leaving absent keys untouched. The
// format follows the extension: .toml is TOML, anything else YAML.
func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.ConfigError("failed to read config file", err).WithContext("path", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return errors.ConfigError("failed to parse config file", err).WithContext("path", path)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.ConfigError("failed to parse config file", err).WithContext("path", path)
	}
	return nil
}

// envSetters maps SECTION__KEY to a setter on Config.
var envSetters = map[string]func(cfg *Config, v string) error{
	"CACHE__CAPACITY_MB":      intSetter(func(c *Config) *int { return &c.Cache.CapacityMB }),
	"CACHE__SNAPSHOT_PATH":    stringSetter(func(c *Config) *string { return &c.Cache.SnapshotPath }),
	"GATE__MAX_CONNECTIONS":   intSetter(func(c *Config) *int { return &c.Gate.MaxConnections }),
	"DISPATCHER__WORKERS":     intSetter(func(c *Config) *int { return &c.Dispatcher.Workers }),
	"FETCH__MAX_ATTEMPTS":     intSetter(func(c *Config) *int { return &c.Fetch.MaxAttempts }),
	"FETCH__BASE_DELAY":       durationSetter(func(c *Config) *time.Duration { return &c.Fetch.BaseDelay }),
	"FETCH__MAX_DELAY":        durationSetter(func(c *Config) *time.Duration { return &c.Fetch.MaxDelay }),
	"FETCH__TIMEOUT":          durationSetter(func(c *Config) *time.Duration { return &c.Fetch.Timeout }),
	"FETCH__PREFETCH_LIMIT":   intSetter(func(c *Config) *int { return &c.Fetch.PrefetchLimit }),
	"FETCH__MODE":             stringSetter(func(c *Config) *string { return &c.Fetch.Mode }),
	"FETCH__FETCH_LOG":        stringSetter(func(c *Config) *string { return &c.Fetch.EventLog }),
	"FETCH__LOG_MAX_SIZE_MB":  intSetter(func(c *Config) *int { return &c.Fetch.LogMaxSizeMB }),
	"FETCH__LOG_MAX_AGE_DAYS": intSetter(func(c *Config) *int { return &c.Fetch.LogMaxAgeDays }),
	"FETCH__LOG_MAX_BACKUPS":  intSetter(func(c *Config) *int { return &c.Fetch.LogMaxBackups }),
	"GLOBAL__LOG_LEVEL":       stringSetter(func(c *Config) *string { return &c.Global.LogLevel }),
	"GLOBAL__LOG_FILE":        stringSetter(func(c *Config) *string { return &c.Global.LogFile }),
}

// EnvKeys returns every recognized environment variable name, sorted.
func EnvKeys() []string {
	keys := make([]string, 0, len(envSetters))
	for k := range envSetters {
		keys = append(keys, EnvPrefix+"_"+k)
	}
	sort.Strings(keys)
	return keys
}

// applyEnvOverrides applies environment variable overrides.
// Format: BROWSERCORE_SECTION__KEY=value
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	for _, name := range EnvKeys() {
		v := l.getenv(name)
		if v == "" {
			continue
		}
		set := envSetters[strings.TrimPrefix(name, EnvPrefix+"_")]
		if err := set(cfg, v); err != nil {
			return errors.ConfigError(fmt.Sprintf("invalid value for %s", name), err).WithContext("env", name)
		}
	}
	return nil
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}
