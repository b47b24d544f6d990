// Package metrics exposes Prometheus counters for the login flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login results.
const (
	ResultSuccess            = "success"
	ResultProviderError      = "provider_error"
	ResultTokenExchange      = "token_exchange_failed"
	ResultProfileFetch       = "profile_fetch_failed"
	ResultIncompleteIdentity = "incomplete_identity"
	ResultSessionError       = "session_error"
)

var (
	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Completed OAuth callbacks by provider and result",
	}, []string{"provider", "result"})

	logouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logouts_total",
		Help: "Logouts by provider",
	}, []string{"provider"})

	stateRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_state_rejections_total",
		Help: "Provider requests rejected because of a missing or mismatched state token",
	}, []string{"provider"})
)

func AddLogin(provider, result string) {
	logins.WithLabelValues(provider, result).Inc()
}

func AddLogout(provider string) {
	logouts.WithLabelValues(provider).Inc()
}

func AddStateRejection(provider string) {
	stateRejections.WithLabelValues(provider).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
