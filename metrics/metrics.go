// Package metrics collects scheduler-wide performance counters with the
// same atomic-counter-plus-rotating-minute-stats shape as the teacher's
// metrics.Metrics (TotalEmailsSent/ActiveConnections/BatchesProcessed),
// generalized from mail-delivery counters to the scheduler counters named
// in SPEC_FULL.md's metrics component (triggers acquired/fired/misfired,
// job executions, active worker threads), and additionally registered
// with github.com/prometheus/client_golang so /metrics speaks the
// Prometheus exposition format rather than only this package's own JSON.
package metrics

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects and exposes scheduler performance metrics.
type Metrics struct {
	mu sync.RWMutex

	// Trigger/job statistics
	TriggersAcquired  uint64
	TriggersFired     uint64
	TriggersMisfired  uint64
	JobsExecuted      uint64
	JobsFailed        uint64
	JobsVetoed        uint64
	AvgJobRunTime     time.Duration
	runTimeSamples    uint64

	// Worker pool metrics
	ActiveWorkers    int64
	TotalWorkerRuns  uint64
	WorkerRejections uint64

	// Batch metrics (per scheduler-thread acquisition cycle)
	BatchesAcquired uint64
	AvgBatchSize    float64
	batchSizeSum    uint64
	batchCount      uint64

	// Error tracking
	ErrorCounts     map[string]uint64
	LastError       time.Time
	ConsecutiveErrs uint64

	startTime       time.Time
	lastMinuteStats minuteStats
	hourlyStats     []minuteStats

	prom     *promCollectors
	registry *prometheus.Registry
}

type minuteStats struct {
	timestamp    time.Time
	jobsExecuted uint64
	jobsFailed   uint64
	avgLatency   time.Duration
	errorCount   uint64
}

type promCollectors struct {
	triggersAcquired prometheus.Counter
	triggersFired    prometheus.Counter
	triggersMisfired prometheus.Counter
	jobsExecuted     prometheus.Counter
	jobsFailed       prometheus.Counter
	jobsVetoed       prometheus.Counter
	activeWorkers    prometheus.Gauge
	jobRunSeconds    prometheus.Histogram
}

// NewMetrics creates a new metrics collector, registering its Prometheus
// collectors against a fresh registry and starting the background
// minute-rotation goroutine.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		startTime:   time.Now(),
		ErrorCounts: make(map[string]uint64),
		hourlyStats: make([]minuteStats, 60),
		prom: &promCollectors{
			triggersAcquired: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "chronoq_triggers_acquired_total", Help: "Triggers acquired from the job store.",
			}),
			triggersFired: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "chronoq_triggers_fired_total", Help: "Triggers successfully fired.",
			}),
			triggersMisfired: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "chronoq_triggers_misfired_total", Help: "Triggers detected as misfired.",
			}),
			jobsExecuted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "chronoq_jobs_executed_total", Help: "Jobs executed without error.",
			}),
			jobsFailed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "chronoq_jobs_failed_total", Help: "Jobs that returned an error.",
			}),
			jobsVetoed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
				Name: "chronoq_jobs_vetoed_total", Help: "Job fires vetoed by a trigger listener.",
			}),
			activeWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
				Name: "chronoq_active_workers", Help: "Worker pool threads currently running a job.",
			}),
			jobRunSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
				Name:    "chronoq_job_run_seconds",
				Help:    "Job execution duration in seconds.",
				Buckets: prometheus.DefBuckets,
			}),
		},
	}
	m.registry = reg

	go m.collectStats()

	return m
}

// Registry exposes the underlying Prometheus registry, e.g. for a caller
// that wants to register additional collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordTriggerAcquired() {
	atomic.AddUint64(&m.TriggersAcquired, 1)
	m.prom.triggersAcquired.Inc()
}

func (m *Metrics) RecordTriggerFired() {
	atomic.AddUint64(&m.TriggersFired, 1)
	m.prom.triggersFired.Inc()
}

func (m *Metrics) RecordTriggerMisfired() {
	atomic.AddUint64(&m.TriggersMisfired, 1)
	m.prom.triggersMisfired.Inc()
}

// RecordJobExecuted records a successful job execution and its run time.
func (m *Metrics) RecordJobExecuted(duration time.Duration) {
	atomic.AddUint64(&m.JobsExecuted, 1)
	m.prom.jobsExecuted.Inc()
	m.prom.jobRunSeconds.Observe(duration.Seconds())

	samples := atomic.AddUint64(&m.runTimeSamples, 1)
	current := time.Duration(atomic.LoadUint64((*uint64)(unsafe.Pointer(&m.AvgJobRunTime))))
	newAvg := time.Duration((int64(current)*int64(samples-1) + int64(duration)) / int64(samples))
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&m.AvgJobRunTime)), uint64(newAvg))
}

// RecordJobFailed records a failed job execution.
func (m *Metrics) RecordJobFailed(err error) {
	atomic.AddUint64(&m.JobsFailed, 1)
	m.prom.jobsFailed.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.ErrorCounts[err.Error()]++
	}
	m.LastError = time.Now()
	m.ConsecutiveErrs++
}

// RecordJobVetoed records a fire vetoed by a trigger listener.
func (m *Metrics) RecordJobVetoed() {
	atomic.AddUint64(&m.JobsVetoed, 1)
	m.prom.jobsVetoed.Inc()
}

// RecordWorkerStart records a worker pool thread picking up a job.
func (m *Metrics) RecordWorkerStart() {
	atomic.AddInt64(&m.ActiveWorkers, 1)
	atomic.AddUint64(&m.TotalWorkerRuns, 1)
	m.prom.activeWorkers.Inc()
}

// RecordWorkerStop records a worker pool thread finishing a job.
func (m *Metrics) RecordWorkerStop() {
	atomic.AddInt64(&m.ActiveWorkers, -1)
	m.prom.activeWorkers.Dec()
}

// RecordWorkerRejection records the worker pool rejecting a fire
// (RunInThread returning false, which happens once the pool is shut down).
func (m *Metrics) RecordWorkerRejection() {
	atomic.AddUint64(&m.WorkerRejections, 1)
}

// RecordBatch records an acquisition batch's size.
func (m *Metrics) RecordBatch(size int) {
	atomic.AddUint64(&m.BatchesAcquired, 1)
	atomic.AddUint64(&m.batchSizeSum, uint64(size))
	atomic.AddUint64(&m.batchCount, 1)

	count := atomic.LoadUint64(&m.batchCount)
	sum := atomic.LoadUint64(&m.batchSizeSum)
	m.mu.Lock()
	if count > 0 {
		m.AvgBatchSize = float64(sum) / float64(count)
	}
	m.mu.Unlock()
}

// GetStats returns current metrics as a JSON string.
func (m *Metrics) GetStats() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := struct {
		Uptime           time.Duration     `json:"uptime"`
		TriggersAcquired uint64            `json:"triggers_acquired"`
		TriggersFired    uint64            `json:"triggers_fired"`
		TriggersMisfired uint64            `json:"triggers_misfired"`
		JobsExecuted     uint64            `json:"jobs_executed"`
		JobsFailed       uint64            `json:"jobs_failed"`
		JobsVetoed       uint64            `json:"jobs_vetoed"`
		AvgJobRunTime    time.Duration     `json:"avg_job_run_time"`
		ActiveWorkers    int64             `json:"active_workers"`
		BatchesAcquired  uint64            `json:"batches_acquired"`
		AvgBatchSize     float64           `json:"avg_batch_size"`
		ErrorCounts      map[string]uint64 `json:"error_counts"`
		LastError        time.Time         `json:"last_error"`
	}{
		Uptime:           time.Since(m.startTime),
		TriggersAcquired: atomic.LoadUint64(&m.TriggersAcquired),
		TriggersFired:    atomic.LoadUint64(&m.TriggersFired),
		TriggersMisfired: atomic.LoadUint64(&m.TriggersMisfired),
		JobsExecuted:     atomic.LoadUint64(&m.JobsExecuted),
		JobsFailed:       atomic.LoadUint64(&m.JobsFailed),
		JobsVetoed:       atomic.LoadUint64(&m.JobsVetoed),
		AvgJobRunTime:    time.Duration(atomic.LoadUint64((*uint64)(unsafe.Pointer(&m.AvgJobRunTime)))),
		ActiveWorkers:    atomic.LoadInt64(&m.ActiveWorkers),
		BatchesAcquired:  atomic.LoadUint64(&m.BatchesAcquired),
		AvgBatchSize:     m.AvgBatchSize,
		ErrorCounts:      m.ErrorCounts,
		LastError:        m.LastError,
	}

	bytes, _ := json.MarshalIndent(stats, "", "  ")
	return string(bytes)
}

// ServeHTTP implements http.Handler, serving this package's own JSON
// summary (distinct from the Prometheus exposition format served at
// /metrics by Server).
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, m.GetStats())
}

func (m *Metrics) collectStats() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		stats := minuteStats{
			timestamp:    time.Now(),
			jobsExecuted: atomic.LoadUint64(&m.JobsExecuted),
			jobsFailed:   atomic.LoadUint64(&m.JobsFailed),
			avgLatency:   time.Duration(atomic.LoadUint64((*uint64)(unsafe.Pointer(&m.AvgJobRunTime)))),
		}

		m.mu.Lock()
		copy(m.hourlyStats[1:], m.hourlyStats)
		m.hourlyStats[0] = stats

		delta := minuteStats{
			jobsExecuted: stats.jobsExecuted - m.lastMinuteStats.jobsExecuted,
			jobsFailed:   stats.jobsFailed - m.lastMinuteStats.jobsFailed,
		}
		m.lastMinuteStats = stats
		m.mu.Unlock()

		if delta.jobsExecuted > 1000 || delta.jobsFailed > 100 {
			log.Printf("high job throughput: %d executed, %d failed in last minute",
				delta.jobsExecuted, delta.jobsFailed)
		}
	}
}
