package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PredictLedger.
type Metrics struct {
	// --- Core Processing ---
	CoreOpsApplied    *prometheus.CounterVec
	CoreOpsRejected   *prometheus.CounterVec
	CoreOpDuration    *prometheus.HistogramVec
	CoreJournals      *prometheus.CounterVec
	CoreSequence      prometheus.Gauge
	DepositDuplicates *prometheus.CounterVec

	// --- Markets ---
	MarketsOpen     prometheus.Gauge
	TradeVolume     *prometheus.CounterVec
	TradeFees       *prometheus.CounterVec
	ClaimsPaid      prometheus.Counter
	ClaimPayoutSum  prometheus.Counter
	MarketsResolved *prometheus.CounterVec

	// --- Channels ---
	ChannelSize  *prometheus.GaugeVec
	PublishDrops prometheus.Counter

	// --- Ingestion ---
	IngestMessages *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken     prometheus.Counter
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge

	// --- API ---
	APIRequests *prometheus.CounterVec
	APIDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg uses the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreOpsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_core_ops_applied_total",
			Help: "Operations committed by the engine",
		}, []string{"op"}),

		CoreOpsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_core_ops_rejected_total",
			Help: "Operations rejected by the engine",
		}, []string{"op", "code"}),

		CoreOpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predict_core_op_duration_seconds",
			Help:    "Time to apply a single operation in core",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		CoreJournals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_core_journals_generated_total",
			Help: "Journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "predict_core_sequence",
			Help: "Next sequence the engine will assign",
		}),

		DepositDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_deposit_duplicates_total",
			Help: "Deposits skipped as already credited",
		}, []string{"tier"}),

		MarketsOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "predict_markets_open",
			Help: "Markets accepting trades",
		}),

		TradeVolume: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_trade_volume_total",
			Help: "Balance units moved by trades",
		}, []string{"direction", "side"}),

		TradeFees: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_trade_fees_total",
			Help: "Fees retained by markets",
		}, []string{"direction"}),

		ClaimsPaid: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_claims_paid_total",
			Help: "Reward claims settled",
		}),

		ClaimPayoutSum: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_claim_payout_total",
			Help: "Balance units paid out by claims",
		}),

		MarketsResolved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_markets_resolved_total",
			Help: "Markets resolved",
		}, []string{"outcome"}),

		ChannelSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "predict_channel_size",
			Help: "Current channel occupancy",
		}, []string{"channel"}),

		PublishDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_publish_drops_total",
			Help: "Outbound events dropped on a full publish channel",
		}),

		IngestMessages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_ingest_messages_total",
			Help: "Inbound deposit messages by result",
		}, []string{"result"}),

		PersistEventsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "predict_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: f.NewGauge(prometheus.GaugeOpts{
			Name: "predict_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		SnapshotTaken: f.NewCounter(prometheus.CounterOpts{
			Name: "predict_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotSizeBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "predict_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: f.NewGauge(prometheus.GaugeOpts{
			Name: "predict_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "predict_api_requests_total",
			Help: "API requests",
		}, []string{"route", "status"}),

		APIDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predict_api_duration_seconds",
			Help:    "API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}

// SetChannelSize records channel occupancy.
func (m *Metrics) SetChannelSize(name string, size int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
}
