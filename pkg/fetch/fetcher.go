// Copyright 2026 browsercore Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package fetch orchestrates page loads on top of the cache, the connection
// gate and the dispatcher: cache lookup, gated fetch with retry, store and
// prefetch of linked resources.
package fetch

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"time"

	"github.com/browsercore/browsercore/pkg/clock"
)

// DefaultPageSize is the size of a synthetic page body.
const DefaultPageSize = 1024

// Fetcher retrieves the body of a normalized URL.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Linker is implemented by fetchers that can report the resources a page
// links to. The loader queues them for prefetch.
type Linker interface {
	Links(key string, body []byte) []string
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, key string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// SyntheticFetcher produces placeholder pages without any network I/O.
type SyntheticFetcher struct {
	// Size is the body length. Zero means DefaultPageSize.
	Size int
	// Latency is the simulated transfer time, waited on Clock.
	Latency time.Duration
	// Resources are the linked resource paths reported for every page.
	Resources []string
	Clock     clock.Clock
}

// NewSyntheticFetcher returns a fetcher with the default page size, no
// latency and a script, a stylesheet and an image per page.
func NewSyntheticFetcher() *SyntheticFetcher {
	return &SyntheticFetcher{
		Size:      DefaultPageSize,
		Resources: []string{"resource1.js", "resource2.css", "resource3.png"},
		Clock:     clock.Real{},
	}
}

// Fetch waits Latency and returns a body of Size bytes.
func (f *SyntheticFetcher) Fetch(ctx context.Context, key string) ([]byte, error) {
	if f.Latency > 0 {
		clk := f.Clock
		if clk == nil {
			clk = clock.Real{}
		}
		if err := clk.Sleep(ctx, f.Latency); err != nil {
			return nil, err
		}
	}
	size := f.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	return bytes.Repeat([]byte{'A'}, size), nil
}

// Links resolves Resources against key. Resources of a resource are not
// reported, so prefetching stops after one level.
func (f *SyntheticFetcher) Links(key string, _ []byte) []string {
	base, err := url.Parse(key)
	if err != nil {
		return nil
	}
	name := path.Base(base.Path)
	for _, r := range f.Resources {
		if name == r {
			return nil
		}
	}
	links := make([]string, 0, len(f.Resources))
	for _, r := range f.Resources {
		ref, err := url.Parse(r)
		if err != nil {
			continue
		}
		links = append(links, base.ResolveReference(ref).String())
	}
	return links
}
