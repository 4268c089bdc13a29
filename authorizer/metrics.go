package authorizer

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects Prometheus counters for the transport. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	authorized   prometheus.Counter
	unauthorized prometheus.Counter
	retries      prometheus.Counter
	retryOutcome *prometheus.CounterVec
}

// NewMetrics creates the collector and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authclient_requests_authorized_total",
			Help: "Requests dispatched with a bearer credential attached",
		}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authclient_unauthorized_total",
			Help: "Authorized requests rejected with HTTP 401",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authclient_retries_total",
			Help: "Requests re-dispatched after a session refresh",
		}),
		retryOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authclient_retry_outcome_total",
			Help: "Outcomes of the refresh-and-retry cycle",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.authorized, m.unauthorized, m.retries, m.retryOutcome)
	return m
}

func (m *Metrics) incAuthorized() {
	if m == nil {
		return
	}
	m.authorized.Inc()
}

func (m *Metrics) incUnauthorized() {
	if m == nil {
		return
	}
	m.unauthorized.Inc()
}

func (m *Metrics) incRetries() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) incRetryOutcome(outcome string) {
	if m == nil {
		return
	}
	m.retryOutcome.WithLabelValues(outcome).Inc()
}
