package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "seatkeeper"

type Manager struct {
	registry *prometheus.Registry

	ChecksTotal        *prometheus.CounterVec
	CheckDuration      prometheus.Histogram
	RateLimitedTotal   prometheus.Counter
	AdminRequestsTotal *prometheus.CounterVec
}

func NewManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "license",
			Name:      "checks_total",
			Help:      "Total number of license checks by reason and seat outcome",
		}, []string{"reason", "outcome"}),
		CheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "license",
			Name:      "check_duration_seconds",
			Help:      "Time spent deciding a license check",
			Buckets:   prometheus.DefBuckets,
		}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "license",
			Name:      "checks_rate_limited_total",
			Help:      "Total number of license checks rejected by the rate limiter",
		}),
		AdminRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Total number of admin API requests by operation and status code",
		}, []string{"operation", "code"}),
	}

	registry.MustRegister(m.ChecksTotal)
	registry.MustRegister(m.CheckDuration)
	registry.MustRegister(m.RateLimitedTotal)
	registry.MustRegister(m.AdminRequestsTotal)

	log.Debug().Msg("Metrics manager initialized")
	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *Manager) ObserveCheck(reason, outcome string, elapsed time.Duration) {
	m.ChecksTotal.WithLabelValues(reason, outcome).Inc()
	m.CheckDuration.Observe(elapsed.Seconds())
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
