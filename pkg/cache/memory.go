// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/browsercore/browsercore/pkg/clock"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/k-sone/critbitgo"
)

// BoundedCache is a thread-safe cache bounded by the total payload size.
//
// When a new payload does not fit, the least recently accessed entries are
// evicted until it does. The entry map, the recency list, the key index and
// the byte total are only changed together under mu.
type BoundedCache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU
	index    *critbitgo.Trie
	capacity int64
	used     int64

	clock     clock.Clock
	onEvicted func(key string, size int64)
	recorder  Recorder

	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
	rejections atomic.Int64
}

// Option configures a BoundedCache.
type Option func(*BoundedCache)

// WithOnEvicted sets a callback invoked for every entry evicted to make room.
// It runs after the cache lock is released, so it may call back into the cache.
// Explicit Remove and Clear do not trigger it.
func WithOnEvicted(fn func(key string, size int64)) Option {
	return func(c *BoundedCache) {
		c.onEvicted = fn
	}
}

// WithRecorder reports hits, misses, evictions and usage to r.
func WithRecorder(r Recorder) Option {
	return func(c *BoundedCache) {
		c.recorder = r
	}
}

// WithClock sets the clock used to stamp LastAccess.
func WithClock(clk clock.Clock) Option {
	return func(c *BoundedCache) {
		c.clock = clk
	}
}

// NewBoundedCache creates a cache holding at most capacityBytes of payload.
func NewBoundedCache(capacityBytes int64, opts ...Option) (*BoundedCache, error) {
	if capacityBytes <= 0 {
		return nil, fmt.Errorf("capacityBytes must be positive, got %d", capacityBytes)
	}

	// The byte budget drives eviction; the list itself is never full.
	lru, err := simplelru.NewLRU(math.MaxInt32, nil)
	if err != nil {
		return nil, err
	}

	c := &BoundedCache{
		lru:      lru,
		index:    critbitgo.NewTrie(),
		capacity: capacityBytes,
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Put stores a copy of payload under key, replacing any previous entry.
// It returns false without touching the cache when the payload is larger
// than the whole capacity.
func (c *BoundedCache) Put(key string, payload []byte) bool {
	size := int64(len(payload))
	if size > c.capacity {
		c.rejections.Add(1)
		if c.recorder != nil {
			c.recorder.RecordRejection()
		}
		return false
	}

	data := make([]byte, len(payload))
	copy(data, payload)

	c.mu.Lock()

	if old, ok := c.lru.Peek(key); ok {
		c.lru.Remove(key)
		c.used -= old.(*Entry).Size
	}

	var evicted []*Entry
	for c.used+size > c.capacity {
		_, v, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		e := v.(*Entry)
		c.used -= e.Size
		c.index.Delete([]byte(e.Key))
		evicted = append(evicted, e)
	}

	c.lru.Add(key, &Entry{
		Key:        key,
		Payload:    data,
		Size:       size,
		LastAccess: c.clock.Now(),
	})
	c.index.Set([]byte(key), nil)
	c.used += size
	c.publishUsage()

	c.mu.Unlock()

	c.notifyEvicted(evicted)
	return true
}

// Get returns a copy of the payload stored under key and marks it as
// recently used.
func (c *BoundedCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	v, ok := c.lru.Get(key)
	if !ok {
		c.mu.Unlock()
		c.recordLookup(false)
		return nil, false
	}
	e := v.(*Entry)
	e.LastAccess = c.clock.Now()
	out := make([]byte, len(e.Payload))
	copy(out, e.Payload)
	c.mu.Unlock()

	c.recordLookup(true)
	return out, true
}

// Remove deletes key and reports whether it was present.
func (c *BoundedCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.removeLocked(key)
}

// RemovePrefix deletes every key starting with prefix and returns how many
// entries were removed. It is how callers clear all data for one site.
func (c *BoundedCache) RemovePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	c.index.Allprefixed([]byte(prefix), func(k []byte, _ interface{}) bool {
		keys = append(keys, string(k))
		return true
	})
	for _, k := range keys {
		c.removeLocked(k)
	}
	return len(keys)
}

// Clear removes all entries.
func (c *BoundedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
	c.index = critbitgo.NewTrie()
	c.used = 0
	c.publishUsage()
}

// Contains reports whether key is cached without changing its recency.
func (c *BoundedCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Contains(key)
}

// Len returns the number of entries.
func (c *BoundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// Used returns the total payload bytes held.
func (c *BoundedCache) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.used
}

// Capacity returns the byte budget.
func (c *BoundedCache) Capacity() int64 {
	return c.capacity
}

// Keys returns all keys in lexical order.
func (c *BoundedCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.lru.Len())
	c.index.Allprefixed([]byte{}, func(k []byte, _ interface{}) bool {
		keys = append(keys, string(k))
		return true
	})
	return keys
}

// Entries returns copies of all entries from least to most recently used.
func (c *BoundedCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.lru.Keys()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, ok := c.lru.Peek(k)
		if !ok {
			continue
		}
		e := v.(*Entry)
		payload := make([]byte, len(e.Payload))
		copy(payload, e.Payload)
		out = append(out, Entry{
			Key:        e.Key,
			Payload:    payload,
			Size:       e.Size,
			LastAccess: e.LastAccess,
		})
	}
	return out
}

// Stats returns the current cache statistics
func (c *BoundedCache) Stats() Stats {
	c.mu.Lock()
	entries, used := c.lru.Len(), c.used
	c.mu.Unlock()

	return Stats{
		Entries:       entries,
		UsedBytes:     used,
		CapacityBytes: c.capacity,
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Rejections:    c.rejections.Load(),
	}
}

// ResetStats resets the hit, miss, eviction and rejection counters.
func (c *BoundedCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.rejections.Store(0)
}

func (c *BoundedCache) removeLocked(key string) bool {
	v, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	c.lru.Remove(key)
	c.index.Delete([]byte(key))
	c.used -= v.(*Entry).Size
	c.publishUsage()
	return true
}

// publishUsage is called with mu held.
func (c *BoundedCache) publishUsage() {
	if c.recorder != nil {
		c.recorder.SetCacheUsage(c.used, c.lru.Len())
	}
}

func (c *BoundedCache) recordLookup(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.recorder != nil {
		c.recorder.RecordCacheHit(hit)
	}
}

func (c *BoundedCache) notifyEvicted(evicted []*Entry) {
	if len(evicted) == 0 {
		return
	}
	c.evictions.Add(int64(len(evicted)))
	for _, e := range evicted {
		if c.recorder != nil {
			c.recorder.RecordEviction()
		}
		if c.onEvicted != nil {
			c.onEvicted(e.Key, e.Size)
		}
	}
}
