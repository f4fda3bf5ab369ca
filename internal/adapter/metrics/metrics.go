package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IngestMetrics holds all Prometheus metrics for the ingest service.
// All methods are safe to call on a nil receiver.
type IngestMetrics struct {
	BatchesTotal      *prometheus.CounterVec
	RecordsTotal      *prometheus.CounterVec
	FanOutDuration    *prometheus.HistogramVec
	AlertsTotal       *prometheus.CounterVec
	BytesTotal        prometheus.Counter
	WALActive         prometheus.Gauge
	APIKeyCacheHits   prometheus.Counter
	APIKeyCacheMisses prometheus.Counter
	AuthTotal         *prometheus.CounterVec
	SinkedRecords     prometheus.Counter
	DLQRecords        prometheus.Counter
}

// NewIngestMetrics initializes the metrics and registers them with reg.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	factory := promauto.With(reg)
	return &IngestMetrics{
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "ingest",
			Name:      "batches_total",
			Help:      "Total number of ingest batches by outcome.",
		}, []string{"status"}), // status: accepted, partial, rate_limited, failed
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Total number of ingested records by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FanOutDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ghostlog",
			Subsystem: "ingest",
			Name:      "fanout_duration_seconds",
			Help:      "Time spent processing a single record through alert and storage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "outcome"}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "alert",
			Name:      "notifications_total",
			Help:      "Total number of alert notifications by channel and outcome.",
		}, []string{"channel", "outcome"}),
		BytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total number of request bytes ingested.",
		}),
		WALActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ghostlog",
			Subsystem: "storage",
			Name:      "wal_active_gauge",
			Help:      "Indicates if the Write-Ahead Log is currently active (1 for active, 0 for inactive).",
		}),
		APIKeyCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "auth",
			Name:      "api_key_cache_hits_total",
			Help:      "Total number of API key cache hits.",
		}),
		APIKeyCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "auth",
			Name:      "api_key_cache_misses_total",
			Help:      "Total number of API key cache misses.",
		}),
		AuthTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Total number of authenticated requests by outcome.",
		}, []string{"outcome"}), // outcome: accepted, missing, invalid, error
		SinkedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "consumer",
			Name:      "sinked_records_total",
			Help:      "Total number of records written to the long-term sink.",
		}),
		DLQRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ghostlog",
			Subsystem: "consumer",
			Name:      "dlq_records_total",
			Help:      "Total number of records moved to the dead-letter stream.",
		}),
	}
}

func (m *IngestMetrics) ObserveBatch(status string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(status).Inc()
}

func (m *IngestMetrics) ObserveRecord(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(kind, outcome).Inc()
	if elapsed > 0 {
		m.FanOutDuration.WithLabelValues(kind, outcome).Observe(elapsed.Seconds())
	}
}

func (m *IngestMetrics) ObserveAlert(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	m.AlertsTotal.WithLabelValues(channel, outcome).Inc()
}

func (m *IngestMetrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesTotal.Add(float64(n))
}

func (m *IngestMetrics) SetWALActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.WALActive.Set(1)
		return
	}
	m.WALActive.Set(0)
}

func (m *IngestMetrics) CacheHit() {
	if m == nil {
		return
	}
	m.APIKeyCacheHits.Inc()
}

func (m *IngestMetrics) CacheMiss() {
	if m == nil {
		return
	}
	m.APIKeyCacheMisses.Inc()
}

func (m *IngestMetrics) ObserveSink(sinked, dlq int) {
	if m == nil {
		return
	}
	m.SinkedRecords.Add(float64(sinked))
	m.DLQRecords.Add(float64(dlq))
}

// ObserveAuth counts one API key check.
func (m *IngestMetrics) ObserveAuth(outcome string) {
	if m == nil {
		return
	}
	m.AuthTotal.WithLabelValues(outcome).Inc()
}
