package bridge

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_provider",
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "Bridge requests by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wallet_provider",
			Subsystem: "bridge",
			Name:      "request_duration_seconds",
			Help:      "Time until the host answered a bridge request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	if reg == nil {
		return m
	}

	m.requests = register(reg, m.requests)
	m.duration = register(reg, m.duration)

	return m
}

// register returns the already registered collector when another transport in the
// process registered first.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) observe(method, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, outcome).Inc()
	if outcome != outcomeUnavailable {
		m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}
