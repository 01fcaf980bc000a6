package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/dynamic-handlers/internal/progress"
)

// PrometheusSink exports worker run metrics. It owns all of its collectors.
type PrometheusSink struct {
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runRuntime    *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	lastIteration *prometheus.GaugeVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_started_total",
			Help: "Worker runs started, by worker type.",
		}, []string{"worker_type"}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_completed_total",
			Help: "Worker runs completed, by worker type and result.",
		}, []string{"worker_type", "result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "worker_runs_active",
			Help: "Worker runs currently in progress.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_run_duration_seconds",
			Help:    "Wall time per completed worker run.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_progress_notifications_total",
			Help: "Progress notifications delivered to bound handlers, by worker type.",
		}, []string{"worker_type"}),
		lastIteration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_progress_last_iteration",
			Help: "Most recent progress iteration observed, by worker type.",
		}, []string{"worker_type"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runRuntime,
		s.notifications,
		s.lastIteration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register run collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		workerType := evt.WorkerType
		if workerType == "" {
			workerType = "unknown"
		}
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.WithLabelValues(workerType).Inc()
			if s.tracker.start(evt.RunID) {
				s.runsActive.Inc()
			}
		case progress.StageProgress:
			s.notifications.WithLabelValues(workerType).Inc()
			s.lastIteration.WithLabelValues(workerType).Set(float64(evt.Iteration))
		case progress.StageRunDone:
			s.complete(evt, workerType, "success")
		case progress.StageRunError:
			s.complete(evt, workerType, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) complete(evt progress.Event, workerType, result string) {
	s.runsCompleted.WithLabelValues(workerType, result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsActive.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
