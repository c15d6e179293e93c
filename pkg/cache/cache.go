// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package cache provides a size-bounded, least-recently-used byte cache
// for fetched page resources.
package cache

import (
	"time"
)

// Cache is the surface other components depend on.
type Cache interface {
	Put(key string, payload []byte) bool
	Get(key string) ([]byte, bool)
	Remove(key string) bool
	Clear()
}

// Entry represents a cache entry.
type Entry struct {
	Key        string
	Payload    []byte
	Size       int64
	LastAccess time.Time
}

// Recorder receives cache events. *observability.Metrics implements it.
type Recorder interface {
	RecordCacheHit(hit bool)
	RecordEviction()
	RecordRejection()
	SetCacheUsage(bytes int64, entries int)
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Entries       int
	UsedBytes     int64
	CapacityBytes int64
	Hits          int64
	Misses        int64
	Evictions     int64
	Rejections    int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
