// Package metrics holds the process-wide prometheus instruments.
package metrics

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerEntries counts ledger apply attempts by transaction type and outcome.
	LedgerEntries = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Count of ledger apply attempts",
	}, []string{"type", "outcome"})

	LedgerApplySeconds = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name:    "ledger_apply_seconds",
		Help:    "Time spent applying a ledger entry, including the commit",
		Buckets: stdprometheus.DefBuckets,
	}, []string{"outcome"})

	AccountsOpened = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "accounts_opened_total",
		Help: "Count of accounts opened",
	}, []string{"account_type"})

	AuthAttempts = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "auth_attempts_total",
		Help: "Count of login and registration attempts",
	}, []string{"method", "outcome"})

	HistoryLookups = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "history_lookups_total",
		Help: "Count of history projections by source",
	}, []string{"source"})

	EventPublishFailures = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "event_publish_failures_total",
		Help: "Count of ledger events that could not be published",
	}, []string{"channel"})

	HTTPRequests = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: stdprometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
