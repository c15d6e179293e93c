package fetch

import (
	"bytes"
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/browsercore/browsercore/pkg/cache"
	"github.com/browsercore/browsercore/pkg/clock"
	"github.com/browsercore/browsercore/pkg/dispatch"
	"github.com/browsercore/browsercore/pkg/errors"
)

type loaderFixture struct {
	cache *cache.BoundedCache
	gate  *dispatch.ResourceGate
	clock *clock.Fake
}

func newFixture(t *testing.T, capacity int64, slots int) *loaderFixture {
	t.Helper()
	c, err := cache.NewBoundedCache(capacity)
	if err != nil {
		t.Fatalf("NewBoundedCache failed: %v", err)
	}
	g, err := dispatch.NewResourceGate(slots)
	if err != nil {
		t.Fatalf("NewResourceGate failed: %v", err)
	}
	return &loaderFixture{
		cache: c,
		gate:  g,
		clock: clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func (fx *loaderFixture) checkGateFree(t *testing.T) {
	t.Helper()
	if n := fx.gate.InUse(); n != 0 {
		t.Errorf("gate InUse() = %d, want 0", n)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	sources []string
}

func (o *recordingObserver) ObserveFetch(source string, _ time.Duration) {
	o.mu.Lock()
	o.sources = append(o.sources, source)
	o.mu.Unlock()
}

func TestLoaderMissThenHit(t *testing.T) {
	fx := newFixture(t, 1<<20, 6)
	obs := &recordingObserver{}
	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher(),
		WithLoaderClock(fx.clock), WithObserver(obs))

	res, err := l.Load(context.Background(), "HTTPS://Example.com:443/index.html#top")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Source != SourceNetwork {
		t.Errorf("Source = %q, want %q", res.Source, SourceNetwork)
	}
	if res.Key != "https://example.com/index.html" {
		t.Errorf("Key = %q, want https://example.com/index.html", res.Key)
	}
	if !bytes.Equal(res.Payload, bytes.Repeat([]byte{'A'}, DefaultPageSize)) {
		t.Errorf("Payload has %d bytes, want %d x 'A'", len(res.Payload), DefaultPageSize)
	}
	if res.Attempts != 1 || !res.Stored || res.RequestID == "" {
		t.Errorf("Result = %+v, want 1 attempt, stored, with a request id", res)
	}
	fx.checkGateFree(t)

	res, err = l.Load(context.Background(), "https://example.com/index.html")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Source != SourceCache {
		t.Errorf("second Source = %q, want %q", res.Source, SourceCache)
	}
	if len(res.Payload) != DefaultPageSize {
		t.Errorf("cached Payload has %d bytes, want %d", len(res.Payload), DefaultPageSize)
	}

	want := LoaderStats{Loads: 2, CacheHits: 1, Fetches: 1}
	stats := l.Stats()
	stats.AvgLatency = 0
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
	if !slices.Equal(obs.sources, []string{SourceNetwork, SourceCache}) {
		t.Errorf("observed sources = %v, want [network cache]", obs.sources)
	}
}

func TestLoaderInvalidURL(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher())

	_, err := l.Load(context.Background(), "not a url")
	if !errors.IsType(err, errors.ErrValidation) {
		t.Errorf("Load(invalid) = %v, want validation error", err)
	}
	if n := l.Stats().Failures; n != 1 {
		t.Errorf("Failures = %d, want 1", n)
	}
}

func TestLoaderGateExhausted(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	if !fx.gate.TryAcquire() {
		t.Fatal("TryAcquire on a free gate failed")
	}

	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher(),
		WithLoaderClock(fx.clock),
		WithBackoff(Backoff{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second}))

	_, err := l.Load(context.Background(), "https://example.com/")
	if !errors.IsType(err, errors.ErrGate) {
		t.Fatalf("Load = %v, want gate error", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("gate error should be retryable")
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}
	if got := fx.clock.Sleeps(); !slices.Equal(got, want) {
		t.Errorf("backoff sleeps = %v, want %v", got, want)
	}
	if n := fx.gate.InUse(); n != 1 {
		t.Errorf("gate InUse() = %d, want only the held slot", n)
	}
	if fx.cache.Contains("https://example.com/") {
		t.Error("failed load should not be cached")
	}
}

func TestLoaderGateFreedDuringBackoff(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	if !fx.gate.TryAcquire() {
		t.Fatal("TryAcquire on a free gate failed")
	}

	// The first backoff wait frees the held slot.
	sleeper := &releasingClock{Fake: fx.clock, gate: fx.gate}
	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher(),
		WithLoaderClock(sleeper),
		WithBackoff(Backoff{MaxAttempts: 5, BaseDelay: time.Millisecond}))

	res, err := l.Load(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	fx.checkGateFree(t)
}

type releasingClock struct {
	*clock.Fake
	gate *dispatch.ResourceGate
	once sync.Once
}

func (c *releasingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.once.Do(c.gate.Release)
	return c.Fake.Sleep(ctx, d)
}

func TestLoaderTimeout(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	f := NewSyntheticFetcher()
	f.Clock = fx.clock
	f.Latency = 40 * time.Second

	l := NewLoader(fx.cache, fx.gate, f, WithLoaderClock(fx.clock), WithTimeout(30*time.Second))

	_, err := l.Load(context.Background(), "https://slow.test/")
	if !errors.IsType(err, errors.ErrTimeout) {
		t.Errorf("Load = %v, want timeout error", err)
	}
	fx.checkGateFree(t)
	if fx.cache.Contains("https://slow.test/") {
		t.Error("timed out page should not be cached")
	}
}

func TestLoaderFetchError(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	sentinel := stderrors.New("connection reset")
	l := NewLoader(fx.cache, fx.gate, FetcherFunc(func(context.Context, string) ([]byte, error) {
		return nil, sentinel
	}))

	_, err := l.Load(context.Background(), "https://example.com/")
	if !errors.IsType(err, errors.ErrFetch) {
		t.Errorf("Load = %v, want fetch error", err)
	}
	if !stderrors.Is(err, sentinel) {
		t.Errorf("Load = %v, want it to wrap %v", err, sentinel)
	}
	fx.checkGateFree(t)
}

func TestLoaderFetchPanicReleasesGate(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	l := NewLoader(fx.cache, fx.gate, FetcherFunc(func(context.Context, string) ([]byte, error) {
		panic("fetcher bug")
	}))

	func() {
		defer func() {
			if r := recover(); r != "fetcher bug" {
				t.Errorf("recovered %v, want the fetcher panic", r)
			}
		}()
		l.Load(context.Background(), "https://example.com/")
	}()
	fx.checkGateFree(t)
}

func TestLoaderOversizedPage(t *testing.T) {
	fx := newFixture(t, 100, 1)
	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher())

	res, err := l.Load(context.Background(), "https://example.com/")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Stored {
		t.Error("page larger than the cache was stored")
	}
	if len(res.Payload) != DefaultPageSize {
		t.Errorf("Payload has %d bytes, want %d", len(res.Payload), DefaultPageSize)
	}
	if fx.cache.Len() != 0 {
		t.Errorf("cache Len() = %d, want 0", fx.cache.Len())
	}
}

func TestLoaderQueuesLinkedResources(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	p := NewPrefetcher(5)
	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher(), WithPrefetcher(p))

	if _, err := l.Load(context.Background(), "https://example.com/docs/page.html"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var got []string
	for {
		url, ok := p.Next()
		if !ok {
			break
		}
		got = append(got, url)
	}
	want := []string{
		"https://example.com/docs/resource1.js",
		"https://example.com/docs/resource2.css",
		"https://example.com/docs/resource3.png",
	}
	if !slices.Equal(got, want) {
		t.Errorf("queued %v, want %v", got, want)
	}

	// A cache hit does not queue anything.
	if _, err := l.Load(context.Background(), "https://example.com/docs/page.html"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Len() after cache hit = %d, want 0", p.Len())
	}
}

func TestLoaderCoalescesConcurrentMisses(t *testing.T) {
	fx := newFixture(t, 1<<20, 6)

	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(fx.cache, fx.gate, FetcherFunc(func(context.Context, string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared body"), nil
	}))

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = l.Load(context.Background(), "https://example.com/")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("Load #%d failed: %v", i, errs[i])
		}
		if string(res.Payload) != "shared body" {
			t.Errorf("Load #%d payload = %q, want %q", i, res.Payload, "shared body")
		}
	}
	fx.checkGateFree(t)
}

func TestLoaderCancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	l := NewLoader(fx.cache, fx.gate, FetcherFunc(func(ctx context.Context, _ string) ([]byte, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
			return []byte("page body"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := l.Load(ctxA, "https://example.com/")
		errA <- err
	}()
	<-started

	type outcome struct {
		res *Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := l.Load(context.Background(), "https://example.com/")
		doneB <- outcome{res, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	if err := <-errA; !stderrors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller got %v, want context.Canceled", err)
	}

	close(release)
	b := <-doneB
	if b.err != nil {
		t.Fatalf("live caller failed: %v", b.err)
	}
	if string(b.res.Payload) != "page body" {
		t.Errorf("live caller payload = %q, want %q", b.res.Payload, "page body")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("fetcher called %d times, want 1", got)
	}
	if !fx.cache.Contains("https://example.com/") {
		t.Error("shared fetch result was not cached")
	}
	fx.checkGateFree(t)
}

func TestLoaderEventLog(t *testing.T) {
	fx := newFixture(t, 1<<20, 1)
	var buf bytes.Buffer
	l := NewLoader(fx.cache, fx.gate, NewSyntheticFetcher(), WithLoaderClock(fx.clock), WithEventLog(&buf))

	for i := 0; i < 2; i++ {
		if _, err := l.Load(context.Background(), "https://example.com/"); err != nil {
			t.Fatalf("Load #%d failed: %v", i, err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "2026-01-01T00:00:00Z\t") {
		t.Errorf("line 0 missing timestamp: %q", lines[0])
	}
	if !strings.Contains(lines[0], "\thttps://example.com/\tnetwork\t1024\t1\t") {
		t.Errorf("line 0 fields wrong: %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "\tok") {
		t.Errorf("line 0 status wrong: %q", lines[0])
	}
	if !strings.Contains(lines[1], "\tcache\t") {
		t.Errorf("line 1 should be a cache hit: %q", lines[1])
	}
}
