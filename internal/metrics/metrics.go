// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the service layer records metrics through.
type Recorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordIPBlock()
	RecordSuspiciousSession()
	RecordSessionsExpired(count int64)
}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	registry           *prometheus.Registry
	loginSuccess       prometheus.Counter
	loginFail          *prometheus.CounterVec
	ipBlocks           prometheus.Counter
	suspiciousSessions prometheus.Counter
	sessionsExpired    prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on a fresh
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labguard_login_success_total",
			Help: "Total number of successful logins.",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labguard_login_failure_total",
			Help: "Total number of failed login attempts by failure reason.",
		}, []string{"reason"}),
		ipBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labguard_ip_blocks_total",
			Help: "Total number of attempts that tripped an IP block.",
		}),
		suspiciousSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labguard_suspicious_sessions_total",
			Help: "Total number of sessions flagged as suspicious.",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labguard_sessions_expired_total",
			Help: "Total number of sessions expired by the idle sweep.",
		}),
	}

	registry.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.ipBlocks,
		c.suspiciousSessions,
		c.sessionsExpired,
	)
	return c
}

func (c *Collector) RecordLoginSuccess()             { c.loginSuccess.Inc() }
func (c *Collector) RecordLoginFailure(reason string) { c.loginFail.WithLabelValues(reason).Inc() }
func (c *Collector) RecordIPBlock()                  { c.ipBlocks.Inc() }
func (c *Collector) RecordSuspiciousSession()        { c.suspiciousSessions.Inc() }

func (c *Collector) RecordSessionsExpired(count int64) {
	c.sessionsExpired.Add(float64(count))
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
