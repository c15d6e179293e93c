// Package dispatch provides the concurrency primitives page loads run on:
// a counting gate that caps simultaneous connections and a fixed-size
// worker pool fed by a FIFO queue.
package dispatch

import (
	"fmt"
	"sync/atomic"
)

// GateRecorder receives gate events. *observability.Metrics implements it.
type GateRecorder interface {
	RecordAcquire()
	RecordRelease()
}

// ResourceGate limits how many operations may hold a slot at once.
//
// It is an advisory counter: it does not know who holds a slot, so every
// successful TryAcquire must be paired with exactly one Release.
type ResourceGate struct {
	capacity int64
	inUse    atomic.Int64
	recorder GateRecorder
}

// GateOption configures a ResourceGate.
type GateOption func(*ResourceGate)

// WithGateRecorder reports acquisitions and releases to r.
func WithGateRecorder(r GateRecorder) GateOption {
	return func(g *ResourceGate) {
		g.recorder = r
	}
}

// NewResourceGate creates a gate with the given number of slots.
func NewResourceGate(capacity int, opts ...GateOption) (*ResourceGate, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	g := &ResourceGate{capacity: int64(capacity)}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// TryAcquire takes a slot if one is free. It never blocks.
func (g *ResourceGate) TryAcquire() bool {
	for {
		cur := g.inUse.Load()
		if cur >= g.capacity {
			return false
		}
		if g.inUse.CompareAndSwap(cur, cur+1) {
			if g.recorder != nil {
				g.recorder.RecordAcquire()
			}
			return true
		}
	}
}

// Release returns a slot taken by TryAcquire.
func (g *ResourceGate) Release() {
	g.inUse.Add(-1)
	if g.recorder != nil {
		g.recorder.RecordRelease()
	}
}

// Do runs fn while holding a slot and releases it on every exit path,
// panics included. It reports false without running fn when no slot is free.
func (g *ResourceGate) Do(fn func() error) (bool, error) {
	if !g.TryAcquire() {
		return false, nil
	}
	defer g.Release()
	return true, fn()
}

// InUse returns the number of slots currently held.
func (g *ResourceGate) InUse() int {
	return int(g.inUse.Load())
}

// Capacity returns the number of slots.
func (g *ResourceGate) Capacity() int {
	return int(g.capacity)
}

// Available returns the number of free slots.
func (g *ResourceGate) Available() int {
	free := g.capacity - g.inUse.Load()
	if free < 0 {
		return 0
	}
	return int(free)
}
