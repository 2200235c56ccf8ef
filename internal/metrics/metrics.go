// Package metrics defines the Prometheus instrumentation shared across
// the firehose consumer, dispatcher, CAR importer, and ingestors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Firehose metrics
var (
	FirehoseConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tealindex_firehose_connection_state",
		Help: "Firehose connection state (1=connected, 0=disconnected)",
	})

	FirehoseConnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tealindex_firehose_connect_attempts_total",
		Help: "Total number of firehose connection attempts",
	})

	FirehoseReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_firehose_reconnects_total",
		Help: "Total number of firehose reconnects, by reason",
	}, []string{"reason"})

	FirehoseFrameErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_firehose_frame_errors_total",
		Help: "Total number of per-frame decode failures",
	}, []string{"kind"})

	FirehoseMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tealindex_firehose_messages_total",
		Help: "Total number of frames delivered to the dispatcher",
	})
)

// Dispatcher metrics
var (
	DispatchEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_dispatch_events_total",
		Help: "Total number of envelopes dispatched, by kind",
	}, []string{"kind"})

	DispatchCommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_dispatch_commits_total",
		Help: "Total number of commits routed, by collection and operation",
	}, []string{"collection", "operation"})

	DispatchIngestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_dispatch_ingest_errors_total",
		Help: "Total number of ingestor errors, by collection",
	}, []string{"collection"})

	DispatchDecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tealindex_dispatch_decode_errors_total",
		Help: "Total number of envelopes that failed to decode",
	})

	CursorValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tealindex_cursor_time_us",
		Help: "Current dispatcher cursor value (time_us of the last dispatched event)",
	})
)

// CAR importer metrics
var (
	ImportJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_import_jobs_total",
		Help: "Total number of CAR import jobs processed, by terminal status",
	}, []string{"status"})

	ImportRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_import_records_total",
		Help: "Total number of records ingested from CAR imports, by collection",
	}, []string{"collection"})

	ImportRecordErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tealindex_import_record_errors_total",
		Help: "Total number of per-record failures during CAR import (walk continues)",
	})

	ImportBlocksProcessed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tealindex_import_blocks_processed",
		Help:    "Number of IPLD blocks processed per completed CAR import",
		Buckets: prometheus.ExponentialBuckets(8, 2, 12),
	})
)

// Identity resolution metrics
var (
	IdentityResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tealindex_identity_resolutions_total",
		Help: "Total number of identity resolutions, by outcome",
	}, []string{"outcome"})

	IdentityCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tealindex_identity_cache_hits_total",
		Help: "Total number of DID-document cache hits",
	})

	IdentityCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tealindex_identity_cache_misses_total",
		Help: "Total number of DID-document cache misses",
	})
)
