package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SidecarCalls tracks attempts against the sidecar path per operation
	SidecarCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_sidecar_calls_total",
			Help: "Total number of sidecar calls attempted",
		},
		[]string{"op"},
	)

	// SidecarErrors tracks sidecar failures that triggered node fallback
	SidecarErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_sidecar_errors_total",
			Help: "Total number of sidecar failures",
		},
		[]string{"op", "kind"},
	)

	// NodeFallbacks tracks calls served by falling back to the node RPC
	NodeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_node_fallbacks_total",
			Help: "Total number of node fallback attempts",
		},
		[]string{"op"},
	)

	// UnifiedSuccesses tracks calls that succeeded on either backend
	UnifiedSuccesses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_unified_success_total",
			Help: "Total number of unified client calls that succeeded",
		},
		[]string{"op", "backend"},
	)

	// StreamReconnects tracks reconnect attempts on the event stream
	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cewce_stream_reconnects_total",
			Help: "Total number of event stream reconnect attempts",
		},
	)

	// StreamEvents tracks raw stream messages by outcome
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_stream_events_total",
			Help: "Total number of stream messages by outcome",
		},
		[]string{"outcome"}, // parsed, malformed, unrecognized
	)

	// EventsProcessed tracks first-seen events forwarded downstream
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_events_processed_total",
			Help: "Total number of first-seen events forwarded",
		},
		[]string{"type"},
	)

	// EventsDeduplicated tracks duplicates absorbed by the dedup cache
	EventsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_events_deduplicated_total",
			Help: "Total number of duplicate events absorbed",
		},
		[]string{"type"},
	)

	// ProofsGenerated tracks proofs by verification path
	ProofsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_proofs_generated_total",
			Help: "Total number of cryptographic proofs generated",
		},
		[]string{"sidecar_verified"},
	)

	// AuditDeliveries tracks per-subscriber delivery outcomes
	AuditDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cewce_audit_deliveries_total",
			Help: "Total number of audit event deliveries to subscribers",
		},
		[]string{"result"}, // delivered, filtered, failed
	)

	// ConnectedClients tracks the current subscriber registry size
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cewce_connected_clients",
			Help: "Current number of registered audit subscribers",
		},
	)
)
