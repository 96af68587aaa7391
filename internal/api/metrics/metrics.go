// Package metrics defines and registers all custom Prometheus metrics for the
// association dashboard API. It is the single source of truth for metric
// names, labels, and help strings.
//
// Collectors are registered with the default registry through promauto at
// package initialisation; /metrics exposes them next to the echo request
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "associations"

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsResolvedTotal counts authorization gate outcomes applied to a session.
// Label:
//   - outcome: "authorized", "denied", "error" or "stale" (discarded result)
var SessionsResolvedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_resolved_total",
		Help:      "Total number of session resolutions by outcome.",
	},
	[]string{"outcome"},
)

// GateResolutionDuration measures one authorization gate lookup.
var GateResolutionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gate_resolution_duration_seconds",
		Help:      "Duration of the member lookup performed for a new credential.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// AccessDenialsTotal counts credentials that matched no member.
// Label:
//   - account_deleted: "true" when the identity account was removed, "false" when deletion failed
var AccessDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "access_denials_total",
		Help:      "Total number of credentials denied because no member matched their email.",
	},
	[]string{"account_deleted"},
)

// SignInsTotal counts sign-in and sign-up attempts.
// Labels:
//   - method: "password" or "signup"
//   - result: "ok" or "error"
var SignInsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sign_ins_total",
		Help:      "Total number of sign-in attempts by method and result.",
	},
	[]string{"method", "result"},
)

// AuthStreamQueueDepth tracks pending events in each auth-stream worker channel.
var AuthStreamQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auth_stream_queue_depth",
		Help:      "Current number of authentication events pending per stream worker.",
	},
	[]string{"worker_id"},
)

// ── Member metrics ────────────────────────────────────────────────────────────

// MemberWritesTotal counts directory writes.
// Labels:
//   - op: "add", "delete"
//   - result: "ok" or "error"
var MemberWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "member_writes_total",
		Help:      "Total number of member directory writes.",
	},
	[]string{"op", "result"},
)

// ImportRowsTotal counts spreadsheet rows processed by imports.
// Label:
//   - result: "imported", "skipped" or "failed"
var ImportRowsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "import_rows_total",
		Help:      "Total number of spreadsheet rows processed by member imports.",
	},
	[]string{"result"},
)
