package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	authStepsTotal         *prometheus.CounterVec
	identityFallbacksTotal *prometheus.CounterVec
	invitesCreatedTotal    *prometheus.CounterVec
	storeErrorsTotal       *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers on reg. Pass a fresh registry in
// tests.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	authStepsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invite_service_auth_attempts_total",
		Help: "Auth flow steps by outcome",
	}, []string{"step", "result"})

	identityFallbacksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invite_service_identity_fallbacks_total",
		Help: "Identity sources that failed during callback",
	}, []string{"source"})

	invitesCreatedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invite_service_invites_created_total",
		Help: "Invite creations by generation strategy and outcome",
	}, []string{"strategy", "result"})

	storeErrorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invite_service_store_errors_total",
		Help: "Session store operations that failed",
	}, []string{"op"})

	reg.MustRegister(
		authStepsTotal,
		identityFallbacksTotal,
		invitesCreatedTotal,
		storeErrorsTotal,
	)

	return &PrometheusMetricsRecorder{
		authStepsTotal:         authStepsTotal,
		identityFallbacksTotal: identityFallbacksTotal,
		invitesCreatedTotal:    invitesCreatedTotal,
		storeErrorsTotal:       storeErrorsTotal,
	}
}

func (p *PrometheusMetricsRecorder) RecordAuthStep(step string, success bool) {
	p.authStepsTotal.WithLabelValues(step, result(success)).Inc()
}

func (p *PrometheusMetricsRecorder) RecordIdentityFallback(source string) {
	p.identityFallbacksTotal.WithLabelValues(source).Inc()
}

func (p *PrometheusMetricsRecorder) RecordInviteCreated(strategy string, success bool) {
	p.invitesCreatedTotal.WithLabelValues(strategy, result(success)).Inc()
}

func (p *PrometheusMetricsRecorder) RecordStoreError(op string) {
	p.storeErrorsTotal.WithLabelValues(op).Inc()
}
