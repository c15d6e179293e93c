// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package fetch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/browsercore/browsercore/pkg/dispatch"
)

// DefaultPrefetchLimit is the queue bound used when none is configured.
const DefaultPrefetchLimit = 5

// Submitter accepts tasks. *dispatch.TaskDispatcher implements it.
type Submitter interface {
	Submit(task dispatch.Task) error
}

// Prefetcher holds URLs worth loading ahead of a request. The queue is
// bounded; URLs offered while it is full are dropped. A URL already queued
// is not queued twice.
type Prefetcher struct {
	mu      sync.Mutex
	queue   []string
	limit   int
	dropped atomic.Int64
}

// NewPrefetcher creates a prefetch queue holding at most limit URLs.
// A non-positive limit selects DefaultPrefetchLimit.
func NewPrefetcher(limit int) *Prefetcher {
	if limit <= 0 {
		limit = DefaultPrefetchLimit
	}
	return &Prefetcher{limit: limit}
}

// Add queues url and reports whether it was accepted.
func (p *Prefetcher) Add(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, queued := range p.queue {
		if queued == url {
			return false
		}
	}
	if len(p.queue) >= p.limit {
		p.dropped.Add(1)
		return false
	}
	p.queue = append(p.queue, url)
	return true
}

// Next pops the oldest queued URL.
func (p *Prefetcher) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return "", false
	}
	url := p.queue[0]
	p.queue = p.queue[1:]
	return url, true
}

// Len returns the number of queued URLs.
func (p *Prefetcher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Dropped returns how many URLs were refused because the queue was full.
func (p *Prefetcher) Dropped() int64 {
	return p.dropped.Load()
}

// Drain submits one task per queued URL, in queue order, each loading the
// URL through l. It stops at the first refused submission and leaves that
// URL queued. Load errors go to the dispatcher's error sink.
func (p *Prefetcher) Drain(ctx context.Context, s Submitter, l *Loader) (int, error) {
	n := 0
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return n, nil
		}
		url := p.queue[0]
		p.mu.Unlock()

		err := s.Submit(func() error {
			_, err := l.Load(ctx, url)
			return err
		})
		if err != nil {
			return n, err
		}

		p.mu.Lock()
		if len(p.queue) > 0 && p.queue[0] == url {
			p.queue = p.queue[1:]
		}
		p.mu.Unlock()
		n++
	}
}
