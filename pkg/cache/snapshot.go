// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/browsercore/browsercore/pkg/errors"
	"github.com/dchest/safefile"
	"gopkg.in/yaml.v3"
)

const snapshotVersion = 1

// snapshotFile is the on-disk layout of a cache snapshot. Entries are kept
// from least to most recently used so replaying them restores recency.
type snapshotFile struct {
	Version int             `yaml:"version"`
	SavedAt time.Time       `yaml:"saved_at"`
	Entries []snapshotEntry `yaml:"entries"`
}

type snapshotEntry struct {
	Key     string `yaml:"key"`
	Payload string `yaml:"payload"`
}

// SaveSnapshot writes every entry of c to path. The file is replaced
// atomically, so a crash never leaves a truncated snapshot behind.
func SaveSnapshot(c *BoundedCache, path string) error {
	entries := c.Entries()
	snap := snapshotFile{
		Version: snapshotVersion,
		SavedAt: c.clock.Now().UTC(),
		Entries: make([]snapshotEntry, 0, len(entries)),
	}
	for _, e := range entries {
		snap.Entries = append(snap.Entries, snapshotEntry{
			Key:     e.Key,
			Payload: base64.StdEncoding.EncodeToString(e.Payload),
		})
	}

	data, err := yaml.Marshal(&snap)
	if err != nil {
		return errors.StorageError("failed to encode snapshot", err)
	}
	if err := safefile.WriteFile(path, data, 0o600); err != nil {
		return errors.StorageError(fmt.Sprintf("failed to write snapshot: %s", path), err)
	}
	return nil
}

// LoadSnapshot replays the snapshot at path into c through Put, so the byte
// budget of c still applies. It returns the number of entries admitted.
func LoadSnapshot(c *BoundedCache, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.StorageError(fmt.Sprintf("failed to read snapshot: %s", path), err)
	}

	var snap snapshotFile
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return 0, errors.StorageError(fmt.Sprintf("failed to parse snapshot: %s", path), err)
	}
	if snap.Version != snapshotVersion {
		return 0, errors.StorageError(fmt.Sprintf("unsupported snapshot version %d", snap.Version), nil)
	}

	// Decode everything before admitting anything; a corrupt file leaves c untouched.
	payloads := make([][]byte, len(snap.Entries))
	for i, e := range snap.Entries {
		payload, err := base64.StdEncoding.DecodeString(e.Payload)
		if err != nil {
			return 0, errors.StorageError(fmt.Sprintf("entries[%d]: bad payload encoding", i), err).
				WithContext("key", e.Key)
		}
		payloads[i] = payload
	}

	admitted := 0
	for i, e := range snap.Entries {
		if c.Put(e.Key, payloads[i]) {
			admitted++
		}
	}
	return admitted, nil
}
