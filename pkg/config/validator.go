// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"fmt"
	"strings"

	"github.com/browsercore/browsercore/pkg/errors"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validModes     = []string{"normal", "turbo", "battery-saver", "incognito"}
)

// Validator validates configuration.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate returns the first invalid field as an errors.ErrValidation error
// carrying the field name in its "field" context.
func (v *Validator) Validate(cfg *Config) error {
	checks := []func(*Config) error{
		v.validateCache,
		v.validateConcurrency,
		v.validateFetch,
		v.validateGlobal,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateCache(cfg *Config) error {
	if cfg.Cache.CapacityMB <= 0 {
		return invalid("cache.capacity_mb", cfg.Cache.CapacityMB, "must be positive")
	}
	return nil
}

func (v *Validator) validateConcurrency(cfg *Config) error {
	if cfg.Gate.MaxConnections <= 0 {
		return invalid("gate.max_connections", cfg.Gate.MaxConnections, "must be positive")
	}
	if cfg.Dispatcher.Workers <= 0 {
		return invalid("dispatcher.workers", cfg.Dispatcher.Workers, "must be positive")
	}
	return nil
}

func (v *Validator) validateFetch(cfg *Config) error {
	f := cfg.Fetch
	switch {
	case f.MaxAttempts <= 0:
		return invalid("fetch.max_attempts", f.MaxAttempts, "must be positive")
	case f.BaseDelay < 0:
		return invalid("fetch.base_delay", f.BaseDelay, "must be non-negative")
	case f.MaxDelay < f.BaseDelay:
		return invalid("fetch.max_delay", f.MaxDelay, "must not be below base_delay")
	case f.Timeout <= 0:
		return invalid("fetch.timeout", f.Timeout, "must be positive")
	case f.PrefetchLimit < 0:
		return invalid("fetch.prefetch_limit", f.PrefetchLimit, "must be non-negative")
	case f.LogMaxSizeMB < 0 || f.LogMaxAgeDays < 0 || f.LogMaxBackups < 0:
		return invalid("fetch.log_max_*", nil, "must be non-negative")
	}
	if f.Mode != "" && !oneOf(f.Mode, validModes) {
		return invalid("fetch.mode", f.Mode, fmt.Sprintf("must be one of: %s", strings.Join(validModes, ", ")))
	}
	return nil
}

func (v *Validator) validateGlobal(cfg *Config) error {
	if cfg.Global.LogLevel != "" && !oneOf(cfg.Global.LogLevel, validLogLevels) {
		return invalid("global.log_level", cfg.Global.LogLevel,
			fmt.Sprintf("must be one of: %s", strings.Join(validLogLevels, ", ")))
	}
	return nil
}

func oneOf(s string, valid []string) bool {
	for _, v := range valid {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func invalid(field string, value any, msg string) error {
	text := fmt.Sprintf("%s %s", field, msg)
	if value != nil {
		text = fmt.Sprintf("%s (got: %v)", text, value)
	}
	return errors.ValidationError(text, nil).WithContext("field", field)
}
