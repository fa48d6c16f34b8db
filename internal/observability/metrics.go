// Package observability holds the prometheus counters and gauges this
// module emits, following the teacher's promauto idiom
// (control_plane/observability/metrics.go) one-to-one.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LeadershipTransitions tracks leadership acquisition/loss per trigger.
	LeadershipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_leader_transitions_total",
		Help: "Total number of leadership transitions per trigger",
	}, []string{"trigger", "event"})

	// LeaderStatus reports whether this replica currently holds leadership
	// for a given trigger (1) or not (0).
	LeaderStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ukur_leader_status",
		Help: "1 if this replica is leader for the trigger, else 0",
	}, []string{"trigger"})

	// TriggerFires counts every time a trigger actually invokes its workflow.
	TriggerFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_trigger_fires_total",
		Help: "Total number of trigger firings that passed the leader+idle gate",
	}, []string{"trigger"})

	// TriggerSuppressed counts fires skipped because of the leader/idle gate.
	TriggerSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_trigger_suppressed_total",
		Help: "Total number of trigger firings suppressed by the leader/idle gate",
	}, []string{"trigger", "reason"})

	// UpstreamErrors counts the §7 error taxonomy, one counter per kind.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_upstream_errors_total",
		Help: "Recoverable errors by taxonomy kind",
	}, []string{"kind", "feed"})

	// MoreDataPages counts pages followed in a MoreData chain.
	MoreDataPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_moredata_pages_total",
		Help: "Pages consumed while following a MoreData chain",
	}, []string{"feed"})

	// SubscriptionRenewals counts renew attempts and their outcome.
	SubscriptionRenewals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_subscription_renewals_total",
		Help: "Subscription renew attempts by feed and outcome",
	}, []string{"feed", "outcome"})

	// MatchedJourneys counts ET matching engine invocations by outcome.
	MatchedJourneys = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_matched_journeys_total",
		Help: "ET journeys processed by the matching engine, by outcome",
	}, []string{"outcome"})

	// NotifiedSubscriptions counts subscriptions notified, by delivery kind.
	NotifiedSubscriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ukur_notified_subscriptions_total",
		Help: "Subscriptions notified, by delivery kind",
	}, []string{"kind"})

	// MatchDuration tracks the ET matching engine's per-journey latency.
	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ukur_match_duration_seconds",
		Help:    "Duration of one ET matching engine invocation",
		Buckets: prometheus.DefBuckets,
	})

	// QueueDepth tracks the in-process et/sx queue depth.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ukur_queue_depth",
		Help: "Current depth of the internal per-kind queue",
	}, []string{"kind"})
)

// Error taxonomy kind labels, matching spec.md §7's table one row each.
const (
	KindUpstreamUnavailable = "upstream_unavailable"
	KindMalformedPayload    = "malformed_payload"
	KindRejectedCallback    = "rejected_callback"
	KindConfigMisuse        = "config_misuse"
	KindTransientLeadership = "transient_leadership"
	KindNotifyFailure       = "notify_failure"
)
