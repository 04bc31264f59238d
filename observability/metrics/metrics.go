// Package metrics exposes the Prometheus collectors shared across
// Saltdig's core components, lazily registered the same way the
// teacher's observability package registers its module/payoutd/oracle
// metric sets: one sync.Once-guarded singleton per concern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerOnce sync.Once
	// LedgerTransfersTotal counts Salt transfers by kind, incremented by
	// native/ledger on every successful Transfer.
	LedgerTransfersTotal *prometheus.CounterVec

	escrowOnce sync.Once
	// EscrowChainCallDuration is an on-chain escrow call latency
	// histogram by method and outcome. It is registered here; no package
	// in this module records observations into it.
	EscrowChainCallDuration *prometheus.HistogramVec
	// EscrowChainCallsTotal counts on-chain escrow calls by method and
	// outcome.
	EscrowChainCallsTotal *prometheus.CounterVec

	reconcilerOnce sync.Once
	// ReconcilerPassDuration tracks how long one reconciliation pass
	// takes, observed by reconciler.
	ReconcilerPassDuration prometheus.Histogram
	// ReconcilerRecordsTotal counts USDC records handled by a
	// reconciliation pass, by outcome (processed, failed).
	ReconcilerRecordsTotal *prometheus.CounterVec

	rateLimitOnce sync.Once
	// RateLimitRejectionsTotal counts requests rejected by ratelimit,
	// keyed by preset name.
	RateLimitRejectionsTotal *prometheus.CounterVec

	eventBusOnce sync.Once
	// EventBusListenerErrorsTotal counts isolated listener panics/errors
	// caught by eventbus, keyed by topic.
	EventBusListenerErrorsTotal *prometheus.CounterVec
)

func init() {
	ledgerOnce.Do(func() {
		LedgerTransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saltdig",
			Subsystem: "ledger",
			Name:      "transfers_total",
			Help:      "Total Salt ledger transfers segmented by kind.",
		}, []string{"kind"})
		prometheus.MustRegister(LedgerTransfersTotal)
	})

	escrowOnce.Do(func() {
		EscrowChainCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "saltdig",
			Subsystem: "escrowchain",
			Name:      "call_duration_seconds",
			Help:      "Latency distribution for on-chain escrow contract calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "outcome"})
		EscrowChainCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saltdig",
			Subsystem: "escrowchain",
			Name:      "calls_total",
			Help:      "Total on-chain escrow contract calls segmented by method and outcome.",
		}, []string{"method", "outcome"})
		prometheus.MustRegister(EscrowChainCallDuration, EscrowChainCallsTotal)
	})

	reconcilerOnce.Do(func() {
		ReconcilerPassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "saltdig",
			Subsystem: "reconciler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of one reconciliation pass over submitted USDC records.",
			Buckets:   prometheus.DefBuckets,
		})
		ReconcilerRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saltdig",
			Subsystem: "reconciler",
			Name:      "records_total",
			Help:      "Total USDC records processed by a reconciliation pass, by outcome.",
		}, []string{"outcome"})
		prometheus.MustRegister(ReconcilerPassDuration, ReconcilerRecordsTotal)
	})

	rateLimitOnce.Do(func() {
		RateLimitRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saltdig",
			Subsystem: "ratelimit",
			Name:      "rejections_total",
			Help:      "Total requests rejected by the rate limiter, by preset.",
		}, []string{"preset"})
		prometheus.MustRegister(RateLimitRejectionsTotal)
	})

	eventBusOnce.Do(func() {
		EventBusListenerErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saltdig",
			Subsystem: "eventbus",
			Name:      "listener_errors_total",
			Help:      "Total listener failures isolated by the event bus, by topic.",
		}, []string{"topic"})
		prometheus.MustRegister(EventBusListenerErrorsTotal)
	})
}
