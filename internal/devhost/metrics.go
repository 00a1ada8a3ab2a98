package devhost

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests *prometheus.CounterVec
	pushes   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_provider",
			Subsystem: "host",
			Name:      "requests_total",
			Help:      "Requests answered by the development host, by method and outcome.",
		}, []string{"method", "outcome"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_provider",
			Subsystem: "host",
			Name:      "pushes_total",
			Help:      "Events pushed by the development host.",
		}, []string{"event"}),
	}

	if reg == nil {
		return m
	}

	m.requests = register(reg, m.requests)
	m.pushes = register(reg, m.pushes)

	return m
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	err := reg.Register(c)
	if err == nil {
		return c
	}

	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing
		}
	}
	panic(err)
}
