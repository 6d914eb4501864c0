// Package metrics exposes Prometheus counters for the authentication flow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

type Collector struct {
	logins     *prometheus.CounterVec
	migrations prometheus.Counter
	tokens     *prometheus.CounterVec
	registered prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_auth_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_auth_credential_migrations_total",
			Help: "Legacy credentials rehashed on login",
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_auth_tokens_issued_total",
			Help: "Access tokens issued by role",
		}, []string{"role"}),
		registered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_auth_registrations_total",
			Help: "Users registered",
		}),
	}

	reg.MustRegister(c.logins, c.migrations, c.tokens, c.registered)

	return c
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordMigration() {
	c.migrations.Inc()
}

func (c *Collector) RecordTokenIssued(role string) {
	c.tokens.WithLabelValues(role).Inc()
}

func (c *Collector) RecordRegistration() {
	c.registered.Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
