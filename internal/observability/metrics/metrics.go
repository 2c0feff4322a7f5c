package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_gateway_request_duration_seconds",
		Help:    "Duration of outbound payment gateway requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "method"})

	gatewayRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_gateway_request_errors_total",
		Help: "Outbound payment gateway requests that returned an error.",
	}, []string{"gateway"})

	credentialRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_credential_refreshes_total",
		Help: "Gateway credential refresh attempts.",
	}, []string{"gateway", "result"})

	distributionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_distribution_runs_total",
		Help: "Daily payout distribution runs by result.",
	}, []string{"result"})

	distributionEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_distribution_entries_total",
		Help: "Payout ledger entries written by distribution runs.",
	})

	catalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_method_catalog_refreshes_total",
		Help: "Payout method catalog refresh attempts.",
	}, []string{"result"})
)

func ObserveGatewayRequest(gateway, method string, d time.Duration, err error) {
	gatewayRequestDuration.WithLabelValues(gateway, method).Observe(d.Seconds())
	if err != nil {
		gatewayRequestErrors.WithLabelValues(gateway).Inc()
	}
}

func IncCredentialRefresh(gateway string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	credentialRefreshes.WithLabelValues(gateway, result).Inc()
}

func IncDistributionRun(result string) {
	distributionRuns.WithLabelValues(result).Inc()
}

func AddDistributionEntries(n int) {
	if n > 0 {
		distributionEntries.Add(float64(n))
	}
}

func IncCatalogRefresh(err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	catalogRefreshes.WithLabelValues(result).Inc()
}
