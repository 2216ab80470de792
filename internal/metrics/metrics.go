// Package metrics provides Prometheus metrics for the local TTS coordination core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Counters

	// GenerateRequestsTotal counts /generate requests by terminal outcome.
	GenerateRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsd_generate_requests_total",
		Help: "Total number of queued /generate requests processed by the worker, by outcome (ok, error).",
	}, []string{"outcome"})

	// StaleTicketsReapedTotal counts cross-process tickets reaped due to a dead PID or age.
	StaleTicketsReapedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsd_stale_tickets_reaped_total",
		Help: "Total number of cross-process tickets reaped, by reason (dead_or_aged).",
	}, []string{"reason"})

	// LockAcquisitionsTotal counts exclusive lock acquisitions by this process.
	LockAcquisitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ttsd_lock_acquisitions_total",
		Help: "Total number of times this process acquired the exclusive model lock.",
	})

	// ModelLoadsTotal counts model load operations by outcome.
	ModelLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttsd_model_loads_total",
		Help: "Total number of model load attempts, by outcome (ok, error).",
	}, []string{"outcome"})

	// ModelIdleUnloadsTotal counts idle-timeout model unloads.
	ModelIdleUnloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ttsd_model_idle_unloads_total",
		Help: "Total number of times the model was unloaded after the idle window elapsed.",
	})

	// Gauges

	// QueueDepth tracks the current number of queued cross-process tickets.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ttsd_queue_depth",
		Help: "Current number of outstanding cross-process coordination tickets.",
	})

	// InProcessQueueDepth tracks the current number of requests awaiting playback ordering.
	InProcessQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ttsd_inprocess_queue_depth",
		Help: "Current number of requests awaiting their in-process playback turn.",
	})

	// ModelLoaded is 1 when the TTS model is currently resident, 0 otherwise.
	ModelLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ttsd_model_loaded",
		Help: "1 if the TTS model handle is currently loaded, 0 otherwise.",
	})

	// RAMPercent tracks the most recent host memory utilisation sample.
	RAMPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ttsd_ram_percent",
		Help: "Most recent host-wide RAM utilisation percentage observed by the resource monitor.",
	})

	// CPUPercent tracks the most recent host CPU utilisation sample.
	CPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ttsd_cpu_percent",
		Help: "Most recent host-wide CPU utilisation percentage observed by the resource monitor.",
	})

	// ProcessRSSMB tracks this process's own resident set size in megabytes.
	ProcessRSSMB = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ttsd_process_rss_mb",
		Help: "Resident set size of this daemon process, in megabytes.",
	})

	// Histograms

	// LockWaitSeconds measures time spent waiting for the cross-process lock.
	LockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ttsd_lock_wait_seconds",
		Help:    "Time spent waiting to acquire the exclusive model lock, in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// GenerateLatencySeconds measures end-to-end /generate handling latency.
	GenerateLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ttsd_generate_latency_seconds",
		Help:    "End-to-end latency of /generate requests, in seconds.",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordGenerateOutcome increments the request outcome counter.
func RecordGenerateOutcome(outcome string) {
	GenerateRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleTicketReaped increments the stale-ticket reap counter.
func RecordStaleTicketReaped(reason string) {
	StaleTicketsReapedTotal.WithLabelValues(reason).Inc()
}

// RecordModelLoad increments the model load counter.
func RecordModelLoad(outcome string) {
	ModelLoadsTotal.WithLabelValues(outcome).Inc()
}

// SetQueueDepth sets the cross-process queue depth gauge.
func SetQueueDepth(depth int) {
	QueueDepth.Set(float64(depth))
}

// SetInProcessQueueDepth sets the in-process playback queue depth gauge.
func SetInProcessQueueDepth(depth int) {
	InProcessQueueDepth.Set(float64(depth))
}

// SetModelLoaded sets the model-loaded gauge.
func SetModelLoaded(loaded bool) {
	if loaded {
		ModelLoaded.Set(1)
		return
	}
	ModelLoaded.Set(0)
}

// GetQueueDepth returns the current queue depth gauge value (for testing).
func GetQueueDepth() float64 {
	var m dto.Metric
	if err := QueueDepth.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}
