// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package fetch

import (
	"fmt"
	"strings"

	"github.com/browsercore/browsercore/pkg/cache"
)

// Mode is a browsing mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeTurbo
	ModeBatterySaver
	ModeIncognito
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeTurbo:
		return "turbo"
	case ModeBatterySaver:
		return "battery-saver"
	case ModeIncognito:
		return "incognito"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return ModeNormal, nil
	case "turbo":
		return ModeTurbo, nil
	case "battery-saver", "battery_saver", "batterysaver":
		return ModeBatterySaver, nil
	case "incognito":
		return ModeIncognito, nil
	default:
		return ModeNormal, fmt.Errorf("unknown mode %q", s)
	}
}

// Settings are the page features a mode turns on or off.
type Settings struct {
	JavaScript bool
	Plugins    bool
	Cookies    bool
	Prefetch   bool
}

// ApplyMode returns the settings for m. Turbo and incognito start from an
// empty cache, so c is cleared for them; c may be nil.
func ApplyMode(c cache.Cache, m Mode) Settings {
	s := Settings{JavaScript: true, Plugins: true, Cookies: true, Prefetch: true}
	switch m {
	case ModeTurbo:
		s.Plugins = false
	case ModeBatterySaver:
		s.JavaScript = false
		s.Plugins = false
		s.Prefetch = false
	case ModeIncognito:
		s.Cookies = false
	}
	if (m == ModeTurbo || m == ModeIncognito) && c != nil {
		c.Clear()
	}
	return s
}
