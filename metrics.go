package jobsystem

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExecutionRecord is the one record a Sink receives per executed unit
// (spec.md §6). The scheduler guarantees at-most-one record per
// execution; ordering is per-worker.
type ExecutionRecord struct {
	Start    time.Time
	End      time.Time
	Worker   ThreadIndex
	Type     int64
	ID       int64
	Finished bool // false for a panicked FunctionJob, and for a coroutine resumption that ended with its frame not destroyed (suspended at an await, or final-suspended under a coroutine parent)
}

// Sink is the external observability collaborator spec.md §6 describes.
// It is out of scope for the core per spec.md §1 ("performance
// instrumentation/log file writing (a sink interface)") but the
// scheduler must call it uniformly; this package ships two concrete
// implementations for the ambient-stack requirement.
type Sink interface {
	Record(ExecutionRecord)
}

// noopSink is used when a Scheduler is constructed without a Sink.
type noopSink struct{}

func (noopSink) Record(ExecutionRecord) {}

// Metrics is an in-memory Sink that aggregates counts and durations,
// mirroring the teacher's Metrics struct field-for-field.
type Metrics struct {
	mu              sync.RWMutex
	TotalJobs       int
	ProcessedJobs   int
	FailedJobs      int
	TotalDuration   time.Duration
	AverageDuration time.Duration
	StartTime       time.Time
	EndTime         time.Time
}

// NewMetrics creates an empty in-memory Metrics sink.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

func (m *Metrics) Record(rec ExecutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalJobs++
	if rec.Finished {
		m.ProcessedJobs++
	} else {
		m.FailedJobs++
	}
	d := rec.End.Sub(rec.Start)
	m.TotalDuration += d
	m.EndTime = rec.End
	if m.ProcessedJobs > 0 {
		m.AverageDuration = m.TotalDuration / time.Duration(m.TotalJobs)
	}
}

// Snapshot returns a copy of the current counters, mirroring the
// teacher's GetMetrics().
func (m *Metrics) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		TotalJobs:       m.TotalJobs,
		ProcessedJobs:   m.ProcessedJobs,
		FailedJobs:      m.FailedJobs,
		TotalDuration:   m.TotalDuration,
		AverageDuration: m.AverageDuration,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
	}
}

// PromSink is a Prometheus-backed Sink, grounded on
// ChuLiYu-raft-recovery/internal/metrics/metrics.go's Collector: a
// handful of Counter/Histogram/Gauge collectors registered once against
// a caller-supplied registry (so multiple schedulers in one process,
// e.g. in tests, don't collide on prometheus.DefaultRegisterer).
type PromSink struct {
	unitsFinished prometheus.Counter
	unitsFailed   prometheus.Counter
	unitLatency   prometheus.Histogram
	unitsInFlight prometheus.Gauge
}

// NewPromSink builds and registers the collectors against reg. Pass
// prometheus.DefaultRegisterer to expose them on the usual /metrics
// endpoint.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	p := &PromSink{
		unitsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobsystem_units_finished_total",
			Help: "Total number of work units that ran to completion.",
		}),
		unitsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobsystem_units_failed_total",
			Help: "Total number of work units that did not finish cleanly.",
		}),
		unitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobsystem_unit_latency_seconds",
			Help:    "Per-unit execution latency.",
			Buckets: prometheus.DefBuckets,
		}),
		unitsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jobsystem_units_in_flight",
			Help: "Work units currently executing across all workers.",
		}),
	}
	reg.MustRegister(p.unitsFinished, p.unitsFailed, p.unitLatency, p.unitsInFlight)
	return p
}

func (p *PromSink) Record(rec ExecutionRecord) {
	if rec.Finished {
		p.unitsFinished.Inc()
	} else {
		p.unitsFailed.Inc()
	}
	p.unitLatency.Observe(rec.End.Sub(rec.Start).Seconds())
}

// trackStart/trackEnd let a Worker report concurrency for the gauge; the core
// dispatch loop calls Inc/Dec around run() when the configured Sink is
// a *PromSink, otherwise this is a no-op (see worker.go).
func (p *PromSink) trackStart() { p.unitsInFlight.Inc() }
func (p *PromSink) trackEnd()   { p.unitsInFlight.Dec() }
