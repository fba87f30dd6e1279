package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blocklist_requests_total",
		Help: "HTTP requests handled, by path and status code.",
	}, []string{"path", "status"})

	QuotaDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blocklist_quota_denied_total",
		Help: "Requests denied because the daily quota was exhausted.",
	})

	QuotaFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "blocklist_quota_fail_open_total",
		Help: "Quota checks admitted without charge because persistence was unavailable.",
	})

	RefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blocklist_refresh_runs_total",
		Help: "Dataset refresh runs, by outcome (updated, unchanged, failed, busy).",
	}, []string{"outcome"})

	AgentFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "blocklist_agent_fetch_failures_total",
		Help: "Per-agent upstream fetch failures during refresh.",
	}, []string{"agent"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
