// Package metrics provides Prometheus metrics for the intercom peripheral
// daemon, exposed over HTTP for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barnettlynn/doorlink/pkg/doorproto"
)

const namespace = "doorlink"

// Metrics implements doorproto.MetricsSink and exposes the underlying
// Prometheus collectors for a scrape endpoint.
type Metrics struct {
	authAttempts    prometheus.Counter
	unlocksGranted  *prometheus.CounterVec
	unlocksDenied   *prometheus.CounterVec
	actuatorLatency prometheus.Histogram
}

var _ doorproto.MetricsSink = (*Metrics)(nil)

func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		authAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total authentication attempts received on the Auth characteristic",
		}),
		unlocksGranted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlocks_granted_total",
			Help:      "Total successful unlocks by door id",
		}, []string{"door_id"}),
		unlocksDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unlocks_denied_total",
			Help:      "Total denied unlock attempts by response status code",
		}, []string{"status"}),
		actuatorLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actuator_latency_seconds",
			Help:      "Histogram of door-strike actuation latency",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2},
		}),
	}
}

func (m *Metrics) AuthAttempt() { m.authAttempts.Inc() }

func (m *Metrics) UnlockGranted(doorID string) { m.unlocksGranted.WithLabelValues(doorID).Inc() }

func (m *Metrics) UnlockDenied(status doorproto.StatusCode) {
	m.unlocksDenied.WithLabelValues(statusLabel(status)).Inc()
}

func (m *Metrics) ObserveActuatorLatency(seconds float64) { m.actuatorLatency.Observe(seconds) }

// Handler returns the Prometheus scrape handler to mount on a metrics
// listener.
func Handler() http.Handler { return promhttp.Handler() }

func statusLabel(s doorproto.StatusCode) string {
	switch s {
	case doorproto.StatusSuccess:
		return "success"
	case doorproto.StatusAuthFailed:
		return "auth_failed"
	case doorproto.StatusExpired:
		return "expired"
	case doorproto.StatusNotYetValid:
		return "not_yet_valid"
	case doorproto.StatusRevoked:
		return "revoked"
	case doorproto.StatusWrongDoor:
		return "wrong_door"
	case doorproto.StatusPermissionDenied:
		return "permission_denied"
	case doorproto.StatusRateLimited:
		return "rate_limited"
	case doorproto.StatusJammed:
		return "jammed"
	case doorproto.StatusChallengeExpired:
		return "challenge_expired"
	default:
		return "internal_error"
	}
}
