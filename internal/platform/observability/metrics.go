package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voteverse"

// Metrics holds the process collectors. It satisfies the metrics ports of
// both contexts.
type Metrics struct {
	registry *prometheus.Registry

	votesCast            *prometheus.CounterVec
	voteRejections       *prometheus.CounterVec
	winnersMarked        *prometheus.CounterVec
	resultsPublished     prometheus.Counter
	verificationRequests *prometheus.CounterVec
	codeDeliveryFailures prometheus.Counter
	adminLogins          *prometheus.CounterVec
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		votesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "election",
			Name:      "votes_cast_total",
			Help:      "Ballots recorded, by district.",
		}, []string{"district"}),
		voteRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "election",
			Name:      "vote_rejections_total",
			Help:      "Ballots refused, by reason.",
		}, []string{"reason"}),
		winnersMarked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "election",
			Name:      "winners_marked_total",
			Help:      "Winner flags set by administrators, by district.",
		}, []string{"district"}),
		resultsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "election",
			Name:      "results_published_total",
			Help:      "Calls that flipped the published flag.",
		}),
		verificationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "verification_requests_total",
			Help:      "Phone verification requests, by outcome.",
		}, []string{"outcome"}),
		codeDeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "code_delivery_failures_total",
			Help:      "Verification codes the sender failed to deliver.",
		}),
		adminLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "admin_logins_total",
			Help:      "Administrator login attempts, by outcome.",
		}, []string{"outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) VoteCast(district string) {
	m.votesCast.WithLabelValues(district).Inc()
}

func (m *Metrics) VoteRejected(reason string) {
	m.voteRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) WinnerMarked(district string) {
	m.winnersMarked.WithLabelValues(district).Inc()
}

func (m *Metrics) ResultsPublished() {
	m.resultsPublished.Inc()
}

func (m *Metrics) VerificationRequested(outcome string) {
	m.verificationRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CodeDeliveryFailed() {
	m.codeDeliveryFailures.Inc()
}

func (m *Metrics) AdminLogin(outcome string) {
	m.adminLogins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
