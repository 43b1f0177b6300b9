package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesTotal counts curve trades by side and outcome
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_trades_total",
			Help: "Total number of curve trades",
		},
		[]string{"side", "outcome"},
	)

	// TradeRetries counts optimistic-concurrency retries
	TradeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "launchpad_trade_version_retries_total",
			Help: "Trades retried after a reserve version conflict",
		},
	)

	// TradeVolumeSol tracks the SOL leg of executed trades
	TradeVolumeSol = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_trade_volume_sol",
			Help:    "SOL amount of executed trades",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 100},
		},
		[]string{"side"},
	)

	// FeesAccruedSol counts fees credited to earners
	FeesAccruedSol = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_fees_accrued_sol_total",
			Help: "Trading fees credited to earners in SOL",
		},
		[]string{"earner_type"},
	)

	// InvariantViolations counts ledger invariant failures
	InvariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_invariant_violations_total",
			Help: "Ledger invariant violations",
		},
		[]string{"invariant"},
	)

	// ClaimTransitions counts claim state machine transitions
	ClaimTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_claim_transitions_total",
			Help: "Claim state transitions",
		},
		[]string{"state"},
	)

	// ClaimDuration tracks end-to-end claim handling time
	ClaimDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "launchpad_claim_duration_seconds",
			Help:    "Claim processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Disbursements counts treasury payouts by result
	Disbursements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_treasury_disbursements_total",
			Help: "Treasury disbursement attempts",
		},
		[]string{"result"},
	)

	// PendingClaims tracks outstanding deferred claims
	PendingClaims = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "launchpad_pending_claims",
			Help: "Claims recorded as pending and not yet reconciled",
		},
	)

	// Reconciliations counts reconciler outcomes
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_claim_reconciliations_total",
			Help: "Claims closed out by the reconciler",
		},
		[]string{"outcome"},
	)

	// GraduationSteps counts graduation step executions
	GraduationSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_graduation_steps_total",
			Help: "Graduation step executions by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	// GraduationQueueDepth tracks tokens waiting for a graduation worker
	GraduationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "launchpad_graduation_queue_depth",
			Help: "Tokens waiting for a graduation worker",
		},
	)

	// RPCDuration tracks blockchain and protocol request latency
	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_rpc_duration_seconds",
			Help:    "Outbound RPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "method"},
	)

	// RPCErrors counts failed outbound requests
	RPCErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_rpc_errors_total",
			Help: "Failed outbound RPC requests",
		},
		[]string{"target", "method"},
	)

	// FeedClients tracks connected websocket clients
	FeedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "launchpad_feed_clients",
			Help: "Connected event feed clients",
		},
	)
)
