// Package observability tests
package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func checkValue(t *testing.T, name string, c prometheus.Collector, want float64) {
	t.Helper()
	if got := testutil.ToFloat64(c); got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("browsercore")
	if m == nil || m.Registry() == nil {
		t.Fatal("NewMetrics returned no registry")
	}
}

func TestCacheCounters(t *testing.T) {
	m := NewMetrics("browsercore")

	m.RecordCacheHit(true)
	m.RecordCacheHit(true)
	m.RecordCacheHit(false)
	m.RecordEviction()
	m.RecordRejection()
	m.SetCacheUsage(4096, 3)

	checkValue(t, "hits", m.cacheHits, 2)
	checkValue(t, "misses", m.cacheMisses, 1)
	checkValue(t, "evictions", m.cacheEvictions, 1)
	checkValue(t, "rejections", m.cacheRejections, 1)
	checkValue(t, "bytes", m.cacheBytes, 4096)
	checkValue(t, "entries", m.cacheEntries, 3)
}

func TestGateGauge(t *testing.T) {
	m := NewMetrics("browsercore")

	m.RecordAcquire()
	m.RecordAcquire()
	m.RecordRelease()

	checkValue(t, "gate in use", m.gateInUse, 1)
}

func TestTaskOutcomes(t *testing.T) {
	m := NewMetrics("browsercore")

	m.RecordTask(OutcomeCompleted)
	m.RecordTask(OutcomeCompleted)
	m.RecordTask(OutcomeFailed)
	m.SetQueueDepth(7)

	checkValue(t, "completed", m.tasks.WithLabelValues(OutcomeCompleted), 2)
	checkValue(t, "failed", m.tasks.WithLabelValues(OutcomeFailed), 1)
	checkValue(t, "queue depth", m.queueDepth, 7)
}

func TestWriteText(t *testing.T) {
	m := NewMetrics("browsercore")
	m.RecordCacheHit(true)
	m.ObserveFetch("network", 25*time.Millisecond)

	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		t.Fatalf("WriteText failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"browsercore_cache_hits_total 1",
		`browsercore_fetch_duration_seconds_count{source="network"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	a := NewMetrics("browsercore")
	b := NewMetrics("browsercore")

	a.RecordCacheHit(true)

	checkValue(t, "a hits", a.cacheHits, 1)
	checkValue(t, "b hits", b.cacheHits, 0)
}
