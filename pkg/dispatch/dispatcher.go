package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/browsercore/browsercore/pkg/clock"
	"github.com/browsercore/browsercore/pkg/errors"
	"github.com/browsercore/browsercore/pkg/observability"
	"github.com/google/uuid"
)

// ErrNotAccepting is returned by Submit once Shutdown has begun.
var ErrNotAccepting = errors.DispatcherError("dispatcher not accepting work", nil)

// Task is a unit of work run on a dispatcher worker.
type Task func() error

// ErrorSink receives the error of every failed or panicking task.
type ErrorSink func(err error)

// Recorder receives dispatcher events. *observability.Metrics implements it.
type Recorder interface {
	RecordTask(outcome string)
	SetQueueDepth(n int)
}

// State is the lifecycle state of a TaskDispatcher.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats contains dispatcher statistics.
type Stats struct {
	ID          string
	Workers     int
	State       State
	Queued      int
	Active      int
	Submitted   int64
	Completed   int64
	Failed      int64
	AvgDuration time.Duration
}

type queuedTask struct {
	seq uint64
	fn  Task
}

// TaskDispatcher runs submitted tasks on a fixed number of workers.
//
// Tasks leave the queue in submission order; with more than one worker they
// may finish out of order. The queue is unbounded and Submit never blocks.
type TaskDispatcher struct {
	id       string
	workers  int
	sink     ErrorSink
	logger   observability.Logger
	recorder Recorder
	clock    clock.Clock

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []queuedTask
	nextSeq uint64
	state   State
	wg      sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	active    atomic.Int32

	durMu       sync.Mutex
	avgDuration ewma.MovingAverage
}

// DispatcherOption configures a TaskDispatcher.
type DispatcherOption func(*TaskDispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l observability.Logger) DispatcherOption {
	return func(d *TaskDispatcher) {
		d.logger = l
	}
}

// WithRecorder reports task outcomes and queue depth to r.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *TaskDispatcher) {
		d.recorder = r
	}
}

// WithClock sets the clock used to time tasks.
func WithClock(clk clock.Clock) DispatcherOption {
	return func(d *TaskDispatcher) {
		d.clock = clk
	}
}

// NewTaskDispatcher creates a dispatcher and starts its workers. sink may be
// nil, in which case task errors are only logged.
func NewTaskDispatcher(workers int, sink ErrorSink, opts ...DispatcherOption) (*TaskDispatcher, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", workers)
	}

	d := &TaskDispatcher{
		id:          uuid.NewString(),
		workers:     workers,
		sink:        sink,
		logger:      observability.NewNopLogger(),
		clock:       clock.Real{},
		state:       StateCreated,
		avgDuration: ewma.NewMovingAverage(),
	}
	d.cond = sync.NewCond(&d.mu)
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(observability.String("dispatcher", d.id))

	d.mu.Lock()
	d.state = StateRunning
	d.mu.Unlock()

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.logger.Debug("dispatcher started", observability.Int("workers", workers))
	return d, nil
}

// ID returns the dispatcher instance identifier used in logs.
func (d *TaskDispatcher) ID() string {
	return d.id
}

// Submit appends task to the queue and wakes one idle worker.
// It fails with ErrNotAccepting once Shutdown has begun; the task is then
// not queued.
func (d *TaskDispatcher) Submit(task Task) error {
	if task == nil {
		return errors.ValidationError("task must not be nil", nil)
	}

	d.mu.Lock()
	if d.state != StateRunning {
		state := d.state
		d.mu.Unlock()
		if d.recorder != nil {
			d.recorder.RecordTask(observability.OutcomeRejected)
		}
		d.logger.Debug("submit rejected", observability.String("state", state.String()))
		return ErrNotAccepting
	}
	d.nextSeq++
	d.queue = append(d.queue, queuedTask{seq: d.nextSeq, fn: task})
	depth := len(d.queue)
	if d.recorder != nil {
		d.recorder.SetQueueDepth(depth)
	}
	d.cond.Signal()
	d.mu.Unlock()

	d.submitted.Add(1)
	return nil
}

// SubmitFunc submits a task that cannot fail.
func (d *TaskDispatcher) SubmitFunc(fn func()) error {
	if fn == nil {
		return errors.ValidationError("task must not be nil", nil)
	}
	return d.Submit(func() error {
		fn()
		return nil
	})
}

// SubmitWait submits task and waits until it has run or ctx is done.
// The task error, if any, is returned here and also sent to the sink.
func (d *TaskDispatcher) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return errors.ValidationError("task must not be nil", nil)
	}

	done := make(chan error, 1)
	wrapped := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
			}
			done <- err
		}()
		return task()
	}

	if err := d.Submit(wrapped); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting work, lets the workers drain everything already
// queued and returns once they have all exited. It must not be called from
// inside a task. Calling it more than once is safe.
func (d *TaskDispatcher) Shutdown() {
	d.mu.Lock()
	if d.state == StateRunning {
		d.state = StateStopping
		d.logger.Debug("dispatcher stopping", observability.Int("queued", len(d.queue)))
		d.cond.Broadcast()
	}
	d.mu.Unlock()

	d.wg.Wait()

	d.mu.Lock()
	d.state = StateStopped
	d.mu.Unlock()

	d.logger.Debug("dispatcher stopped",
		observability.Int64("completed", d.completed.Load()),
		observability.Int64("failed", d.failed.Load()))
}

// State returns the lifecycle state.
func (d *TaskDispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// QueueLen returns the number of tasks waiting for a worker.
func (d *TaskDispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// ActiveJobs returns the number of tasks currently executing.
func (d *TaskDispatcher) ActiveJobs() int {
	return int(d.active.Load())
}

// Stats returns a snapshot of dispatcher statistics.
func (d *TaskDispatcher) Stats() Stats {
	d.mu.Lock()
	state, queued := d.state, len(d.queue)
	d.mu.Unlock()

	d.durMu.Lock()
	avg := time.Duration(d.avgDuration.Value())
	d.durMu.Unlock()

	return Stats{
		ID:          d.id,
		Workers:     d.workers,
		State:       state,
		Queued:      queued,
		Active:      d.ActiveJobs(),
		Submitted:   d.submitted.Load(),
		Completed:   d.completed.Load(),
		Failed:      d.failed.Load(),
		AvgDuration: avg,
	}
}

// worker waits for queued tasks and runs them one at a time. It exits once
// the dispatcher is stopping and the queue is empty.
func (d *TaskDispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && d.state == StateRunning {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		t := d.queue[0]
		d.queue[0] = queuedTask{}
		d.queue = d.queue[1:]
		if d.recorder != nil {
			d.recorder.SetQueueDepth(len(d.queue))
		}
		d.mu.Unlock()

		d.run(id, t)
	}
}

// run executes one task, converting a panic into an error for the sink.
func (d *TaskDispatcher) run(workerID int, t queuedTask) {
	d.active.Add(1)
	defer d.active.Add(-1)

	start := d.clock.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				d.logger.Error("task panicked",
					observability.Int("worker", workerID),
					observability.String("stack", string(debug.Stack())))
			}
		}()
		return t.fn()
	}()
	elapsed := d.clock.Now().Sub(start)

	d.durMu.Lock()
	d.avgDuration.Add(float64(elapsed))
	d.durMu.Unlock()

	if err == nil {
		d.completed.Add(1)
		if d.recorder != nil {
			d.recorder.RecordTask(observability.OutcomeCompleted)
		}
		return
	}

	d.failed.Add(1)
	if d.recorder != nil {
		d.recorder.RecordTask(observability.OutcomeFailed)
	}
	taskErr := errors.TaskError(fmt.Sprintf("task %d failed", t.seq), err).
		WithContext("seq", t.seq).
		WithContext("worker", workerID)
	d.logger.Warn("task failed", observability.Int("worker", workerID), observability.Err(taskErr))
	if d.sink != nil {
		d.sink(taskErr)
	}
}

func panicError(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("task panic: %w", err)
	}
	return fmt.Errorf("task panic: %v", r)
}
