package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginFailure)
	c.RecordLogin(LoginFailure)
	c.RecordMigration()
	c.RecordTokenIssued("Admin")
	c.RecordRegistration()

	require.Equal(t, float64(1), testutil.ToFloat64(c.logins.WithLabelValues(LoginSuccess)))
	require.Equal(t, float64(2), testutil.ToFloat64(c.logins.WithLabelValues(LoginFailure)))
	require.Equal(t, float64(1), testutil.ToFloat64(c.migrations))
	require.Equal(t, float64(1), testutil.ToFloat64(c.tokens.WithLabelValues("Admin")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.registered))
}

func TestHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordMigration()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "marketplace_auth_credential_migrations_total 1")
}
