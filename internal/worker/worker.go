// Package worker simulates a long-running task that reports incremental
// progress through an event. The package registers its Worker type in the
// default registry so clients can construct it by name alone.
package worker

import (
	"fmt"
	"time"

	"github.com/JakeFAU/dynamic-handlers/internal/clock/system"
	"github.com/JakeFAU/dynamic-handlers/internal/event"
	"github.com/JakeFAU/dynamic-handlers/internal/registry"
)

// TypeName is the fully-qualified name the Worker is registered under.
const TypeName = "external.Worker"

// Defaults applied by New.
const (
	DefaultIterations = 100
	DefaultInterval   = 10 * time.Millisecond
)

// Sleeper pauses the calling goroutine.
type Sleeper interface {
	Sleep(d time.Duration)
}

// ProgressEventArgs carries a single human-readable progress message.
type ProgressEventArgs struct {
	ProgressMessage string
}

// Worker performs a fixed number of paced iterations and fires
// ProgressUpdate after each one. Use it through a pointer; the embedded event
// must not be copied.
type Worker struct {
	// ProgressUpdate fires once per iteration, in iteration order.
	ProgressUpdate event.Event[ProgressEventArgs]

	iterations int
	interval   time.Duration
	sleeper    Sleeper
}

// Option customizes a Worker.
type Option func(*Worker)

// WithIterations overrides the iteration count. Values <= 0 are ignored.
func WithIterations(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.iterations = n
		}
	}
}

// WithInterval overrides the pause before each notification.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d >= 0 {
			w.interval = d
		}
	}
}

// WithSleeper replaces the real clock, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(w *Worker) {
		if s != nil {
			w.sleeper = s
		}
	}
}

// New constructs a Worker with the default pacing.
func New(opts ...Option) *Worker {
	w := &Worker{
		iterations: DefaultIterations,
		interval:   DefaultInterval,
		sleeper:    system.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DoWork blocks until every iteration has completed. Subscribers are called
// synchronously on the caller's goroutine.
func (w *Worker) DoWork() {
	for i := 1; i <= w.iterations; i++ {
		w.sleeper.Sleep(w.interval)
		w.ProgressUpdate.Fire(w, ProgressEventArgs{ProgressMessage: fmt.Sprintf("Working (%d%%)", i)})
	}
}

func init() {
	registry.Default.MustRegister(TypeName, func() (any, error) {
		return New(), nil
	})
}
