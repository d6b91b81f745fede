// Package pipeline drives a demand-driven navigation source on a fixed
// cadence and fans each cycle's outputs out to consumers.
//
// A Runner owns its Source: every call into the source, including work
// queued with Do, happens on the goroutine executing Run.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/tracking.source/internal/monitoring"
	"github.com/banshee-data/tracking.source/internal/navigation"
	"github.com/banshee-data/tracking.source/internal/timeutil"
)

// DefaultInterval is the update cadence used when none is configured.
const DefaultInterval = 20 * time.Millisecond

// ErrNotRunning is returned by Do when the runner loop has exited.
var ErrNotRunning = errors.New("pipeline: runner not running")

// Source is the part of source.DeviceSource a Runner depends on.
type Source interface {
	UpdateOutputInformation()
	Pull() (*navigation.OutputSet, error)
}

// Consumer receives the outputs of every successful pull. The set is only
// valid for the duration of the call; retain Snapshot copies instead.
type Consumer interface {
	Consume(outputs *navigation.OutputSet)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(outputs *navigation.OutputSet)

func (f ConsumerFunc) Consume(outputs *navigation.OutputSet) { f(outputs) }

type entry struct {
	id       uuid.UUID
	consumer Consumer
}

type job struct {
	fn   func()
	done chan struct{}
}

// Runner runs update cycles against a Source.
type Runner struct {
	src      Source
	interval time.Duration
	metrics  *Metrics
	clock    timeutil.Clock

	mu        sync.Mutex
	consumers []entry

	jobs    chan job
	stopped chan struct{}
	once    sync.Once
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the clock that paces Run.
func WithClock(c timeutil.Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// NewRunner returns a runner for src. A non-positive interval selects
// DefaultInterval; metrics may be nil.
func NewRunner(src Source, interval time.Duration, metrics *Metrics, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Runner{
		src:      src,
		interval: interval,
		metrics:  metrics,
		clock:    timeutil.RealClock{},
		jobs:     make(chan job),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the update cadence.
func (r *Runner) Interval() time.Duration { return r.interval }

// Add registers a consumer and returns the handle used to remove it.
func (r *Runner) Add(c Consumer) uuid.UUID {
	id := uuid.New()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumers = append(r.consumers, entry{id: id, consumer: c})
	return id
}

// Remove unregisters a consumer. Unknown ids are ignored.
func (r *Runner) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.consumers {
		if e.id == id {
			r.consumers = append(r.consumers[:i], r.consumers[i+1:]...)
			return
		}
	}
}

func (r *Runner) snapshotConsumers() []entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entry(nil), r.consumers...)
}

// Cycle runs one update: the source is marked modified once and then
// pulled on behalf of each consumer. Only the first pull of a cycle does
// any work; the rest see the same cached outputs. A failed pull ends the
// cycle, so later consumers see nothing and the error is counted once. A
// cycle with no consumers leaves the source untouched apart from the
// modified mark.
//
// Cycle must not be called concurrently with Run.
func (r *Runner) Cycle() error {
	r.src.UpdateOutputInformation()
	r.metrics.incCycles()

	for i, e := range r.snapshotConsumers() {
		start := r.clock.Now()
		out, err := r.src.Pull()
		if i == 0 {
			r.metrics.observeGenerate(r.clock.Now().Sub(start))
		}
		if err != nil {
			r.metrics.incErrors()
			return err
		}
		if i == 0 {
			r.metrics.setValid(out.ValidCount())
		}
		e.consumer.Consume(out)
	}
	return nil
}

// Run cycles at the configured interval and executes queued work until ctx
// is cancelled. Cycle errors are logged and the loop carries on.
func (r *Runner) Run(ctx context.Context) error {
	defer r.once.Do(func() { close(r.stopped) })

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-r.jobs:
			j.fn()
			close(j.done)
		case <-ticker.C():
			err := r.Cycle()
			// Log on change so a persistent fault doesn't flood the log.
			switch {
			case err != nil && err.Error() != lastErr:
				monitoring.Logf("pipeline: cycle failed: %v", err)
				lastErr = err.Error()
			case err == nil && lastErr != "":
				monitoring.Logf("pipeline: cycle recovered")
				lastErr = ""
			}
		}
	}
}

// Do runs fn on the runner goroutine between cycles and waits for it to
// finish. It fails if ctx ends first or the runner has stopped.
func (r *Runner) Do(ctx context.Context, fn func()) error {
	j := job{fn: fn, done: make(chan struct{})}
	select {
	case r.jobs <- j:
	case <-r.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
