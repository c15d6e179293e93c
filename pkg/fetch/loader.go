// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package fetch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/browsercore/browsercore/pkg/cache"
	"github.com/browsercore/browsercore/pkg/clock"
	"github.com/browsercore/browsercore/pkg/dispatch"
	"github.com/browsercore/browsercore/pkg/errors"
	"github.com/browsercore/browsercore/pkg/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Sources reported in Result.Source and to the fetch histogram.
const (
	SourceCache   = "cache"
	SourceNetwork = "network"
)

// DefaultTimeout bounds a single fetch when none is configured.
const DefaultTimeout = 30 * time.Second

// Observer receives load latencies. *observability.Metrics implements it.
type Observer interface {
	ObserveFetch(source string, d time.Duration)
}

// Result describes one completed load.
type Result struct {
	RequestID string
	URL       string
	Key       string
	Payload   []byte
	Source    string
	Attempts  int
	Stored    bool
	Shared    bool
	Duration  time.Duration
}

// LoaderStats summarizes a loader's activity.
type LoaderStats struct {
	Loads      int64
	CacheHits  int64
	Fetches    int64
	Failures   int64
	AvgLatency time.Duration
}

// Loader serves pages from the cache and fetches misses through the gate.
// Concurrent misses for the same key share one fetch.
type Loader struct {
	cache    cache.Cache
	gate     *dispatch.ResourceGate
	fetcher  Fetcher
	keys     *cache.KeyGenerator
	backoff  Backoff
	timeout  time.Duration
	clock    clock.Clock
	logger   observability.Logger
	observer Observer
	prefetch *Prefetcher

	logMu    sync.Mutex
	eventLog io.Writer

	group singleflight.Group

	latMu   sync.Mutex
	latency ewma.MovingAverage

	loads    atomic.Int64
	hits     atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithBackoff sets the retry policy for gate acquisition.
func WithBackoff(b Backoff) LoaderOption {
	return func(l *Loader) {
		l.backoff = b
	}
}

// WithTimeout sets the longest a fetch may take before its result is discarded.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithLoaderClock sets the clock used for timing and backoff waits.
func WithLoaderClock(clk clock.Clock) LoaderOption {
	return func(l *Loader) {
		l.clock = clk
	}
}

// WithLoaderLogger sets the loader logger.
func WithLoaderLogger(logger observability.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithObserver reports load latencies to o.
func WithObserver(o Observer) LoaderOption {
	return func(l *Loader) {
		l.observer = o
	}
}

// WithPrefetcher queues linked resources of fetched pages on p.
func WithPrefetcher(p *Prefetcher) LoaderOption {
	return func(l *Loader) {
		l.prefetch = p
	}
}

// WithEventLog writes one line per load to w.
func WithEventLog(w io.Writer) LoaderOption {
	return func(l *Loader) {
		l.eventLog = w
	}
}

// NewLoader creates a loader over the given cache, gate and fetcher.
func NewLoader(c cache.Cache, gate *dispatch.ResourceGate, f Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		cache:   c,
		gate:    gate,
		fetcher: f,
		keys:    cache.NewKeyGenerator(),
		backoff: DefaultBackoff(),
		timeout: DefaultTimeout,
		clock:   clock.Real{},
		logger:  observability.NewNopLogger(),
		latency: ewma.NewMovingAverage(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// fetchPanic carries a fetcher panic back to every waiting caller.
type fetchPanic struct {
	value interface{}
}

func (p *fetchPanic) Error() string {
	return fmt.Sprintf("fetch panicked: %v", p.value)
}

type fetchOutcome struct {
	payload  []byte
	attempts int
	stored   bool
}

// Load returns the page for rawURL, from the cache when present. On a miss it
// takes a gate slot, retrying per the backoff policy, fetches, releases the
// slot and stores the page. Cancelling ctx stops this caller waiting; a fetch
// shared with other callers keeps running for them.
func (l *Loader) Load(ctx context.Context, rawURL string) (*Result, error) {
	l.loads.Add(1)
	reqID := uuid.NewString()
	log := l.logger.With(observability.String("request", reqID))

	key, err := l.keys.Normalize(rawURL)
	if err != nil {
		l.failures.Add(1)
		return nil, errors.ValidationError("cannot load url", err).WithContext("url", rawURL)
	}

	start := l.clock.Now()
	if payload, ok := l.cache.Get(key); ok {
		l.hits.Add(1)
		res := &Result{
			RequestID: reqID,
			URL:       rawURL,
			Key:       key,
			Payload:   payload,
			Source:    SourceCache,
			Duration:  l.clock.Now().Sub(start),
		}
		l.observe(res)
		log.Debug("served from cache", observability.String("key", key))
		l.writeEvent(res, nil)
		return res, nil
	}

	// The shared fetch outlives any one caller; each caller only stops
	// waiting when its own context ends.
	flight := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &fetchPanic{value: r}
			}
		}()
		return l.fetch(flight, key, log)
	})
	var (
		v      interface{}
		shared bool
	)
	select {
	case r := <-ch:
		v, err, shared = r.Val, r.Err, r.Shared
	case <-ctx.Done():
		err = ctx.Err()
	}
	if p, ok := err.(*fetchPanic); ok {
		panic(p.value)
	}
	if err != nil {
		l.failures.Add(1)
		res := &Result{RequestID: reqID, URL: rawURL, Key: key, Source: SourceNetwork, Shared: shared,
			Duration: l.clock.Now().Sub(start)}
		log.Warn("load failed", observability.String("key", key), observability.Err(err))
		l.writeEvent(res, err)
		return nil, err
	}

	out := v.(*fetchOutcome)
	payload := make([]byte, len(out.payload))
	copy(payload, out.payload)

	res := &Result{
		RequestID: reqID,
		URL:       rawURL,
		Key:       key,
		Payload:   payload,
		Source:    SourceNetwork,
		Attempts:  out.attempts,
		Stored:    out.stored,
		Shared:    shared,
		Duration:  l.clock.Now().Sub(start),
	}
	l.observe(res)
	log.Debug("fetched",
		observability.String("key", key),
		observability.Int("attempts", out.attempts),
		observability.Bool("shared", shared))
	l.writeEvent(res, nil)
	return res, nil
}

// fetch runs once per key among concurrent callers.
func (l *Loader) fetch(ctx context.Context, key string, log observability.Logger) (*fetchOutcome, error) {
	attempts, err := l.acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	l.fetches.Add(1)
	body, elapsed, err := l.fetchHeld(ctx, key)
	if err != nil {
		return nil, errors.FetchError("fetch failed", err).WithContext("key", key)
	}
	if l.timeout > 0 && elapsed > l.timeout {
		return nil, errors.TimeoutError(fmt.Sprintf("fetch took %s, limit %s", elapsed, l.timeout), nil).
			WithContext("key", key)
	}

	stored := l.cache.Put(key, body)
	if !stored {
		log.Warn("page larger than cache", observability.String("key", key), observability.Int("bytes", len(body)))
	}

	if l.prefetch != nil {
		if lk, ok := l.fetcher.(Linker); ok {
			for _, link := range lk.Links(key, body) {
				l.prefetch.Add(link)
			}
		}
	}

	return &fetchOutcome{payload: body, attempts: attempts, stored: stored}, nil
}

// acquire takes a gate slot and returns the number of tries it needed.
func (l *Loader) acquire(ctx context.Context, key string) (int, error) {
	limit := l.backoff.Attempts()
	for attempt := 1; ; attempt++ {
		if l.gate.TryAcquire() {
			return attempt, nil
		}
		if attempt >= limit {
			return attempt, errors.GateError("no connection slot available", nil).
				WithContext("key", key).
				WithContext("attempts", attempt)
		}
		if err := l.clock.Sleep(ctx, l.backoff.Delay(attempt)); err != nil {
			return attempt, err
		}
	}
}

// fetchHeld runs the fetcher while a gate slot is held.
func (l *Loader) fetchHeld(ctx context.Context, key string) ([]byte, time.Duration, error) {
	defer l.gate.Release()

	start := l.clock.Now()
	body, err := l.fetcher.Fetch(ctx, key)
	return body, l.clock.Now().Sub(start), err
}

func (l *Loader) observe(res *Result) {
	if res.Source == SourceNetwork {
		l.latMu.Lock()
		l.latency.Add(float64(res.Duration))
		l.latMu.Unlock()
	}
	if l.observer != nil {
		l.observer.ObserveFetch(res.Source, res.Duration)
	}
}

func (l *Loader) writeEvent(res *Result, err error) {
	if l.eventLog == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = fmt.Sprintf("%q", err.Error())
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
		l.clock.Now().UTC().Format(time.RFC3339),
		res.RequestID, res.Key, res.Source, len(res.Payload), res.Attempts,
		res.Duration, status)

	l.logMu.Lock()
	defer l.logMu.Unlock()
	if _, werr := io.WriteString(l.eventLog, line); werr != nil {
		l.logger.Warn("cannot write fetch log", observability.Err(werr))
	}
}

// Stats returns a snapshot of loader statistics.
func (l *Loader) Stats() LoaderStats {
	l.latMu.Lock()
	avg := time.Duration(l.latency.Value())
	l.latMu.Unlock()

	return LoaderStats{
		Loads:      l.loads.Load(),
		CacheHits:  l.hits.Load(),
		Fetches:    l.fetches.Load(),
		Failures:   l.failures.Load(),
		AvgLatency: avg,
	}
}
