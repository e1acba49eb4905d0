// Package metrics provides Prometheus metrics for the techlink relay —
// counters, gauges, and histograms for connections, presence, signaling
// relays, and the job workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Connections ────────────────────────────────────────────────────────────

// ConnectionsActive tracks registered peers by role.
var ConnectionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "techlink",
	Name:      "connections_active",
	Help:      "Registered peer connections by role.",
}, []string{"role"})

// TechniciansAvailable tracks technicians currently advertising availability.
var TechniciansAvailable = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "techlink",
	Name:      "technicians_available",
	Help:      "Technicians currently marked available.",
})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsInbound tracks inbound envelopes by event kind.
var EventsInbound = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "techlink",
	Name:      "events_inbound_total",
	Help:      "Total inbound events by kind.",
}, []string{"event"})

// EventsSuppressed tracks events dropped as no-ops, by reason.
var EventsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "techlink",
	Name:      "events_suppressed_total",
	Help:      "Total events suppressed as no-ops, by reason.",
}, []string{"event", "reason"})

// ─── Relay ──────────────────────────────────────────────────────────────────

// RelayDelivered tracks envelopes delivered to a target connection.
var RelayDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "techlink",
	Name:      "relay_delivered_total",
	Help:      "Total envelopes delivered by event kind.",
}, []string{"event"})

// RelayFailures tracks delivery failures (target gone, write error).
var RelayFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "techlink",
	Name:      "relay_failures_total",
	Help:      "Total failed deliveries by event kind.",
}, []string{"event"})

// BroadcastFanout tracks how many customers each presence broadcast reached.
var BroadcastFanout = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "techlink",
	Name:      "broadcast_fanout",
	Help:      "Connections reached per presence broadcast.",
	Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
})

// ─── Job workflow ───────────────────────────────────────────────────────────

// JobTransitions tracks workflow transitions (requested, accepted,
// rejected, cancelled, completed).
var JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "techlink",
	Name:      "job_transitions_total",
	Help:      "Total job workflow transitions by kind.",
}, []string{"transition"})

// ─── Journal ────────────────────────────────────────────────────────────────

// JournalErrors tracks failed journal writes. The relay path never
// blocks on the journal, so these are the only signal that events are
// being lost.
var JournalErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "techlink",
	Name:      "journal_errors_total",
	Help:      "Total failed event journal writes.",
})
