package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sagarc03/sitehost"
	"github.com/sagarc03/sitehost/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *metrics.ServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNew_RegistryPopulated(t *testing.T) {
	m := metrics.New()

	body := scrape(t, m)

	assert.Contains(t, body, "http_inflight_requests")
	assert.Contains(t, body, "http_requests_rate_limited_total")
	assert.Contains(t, body, "sitehost_swept_blobs_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestRecorder(t *testing.T) {
	m := metrics.New()

	m.PublishCompleted(sitehost.KindHTML, true)
	m.PublishCompleted(sitehost.KindHTML, true)
	m.PublishFailed("duplicate")
	m.Resolved(sitehost.OutcomeRendered)
	m.Resolved(sitehost.OutcomeNotFound)
	m.SiteDeleted(false)
	m.BlobsSwept(3)
	m.IncRateLimited()

	body := scrape(t, m)

	assert.Contains(t, body, `sitehost_publish_total{created="true",kind="html"} 2`)
	assert.Contains(t, body, `sitehost_publish_failed_total{reason="duplicate"} 1`)
	assert.Contains(t, body, `sitehost_resolve_total{outcome="rendered"} 1`)
	assert.Contains(t, body, `sitehost_resolve_total{outcome="not_found"} 1`)
	assert.Contains(t, body, `sitehost_site_deleted_total{blob_removed="false"} 1`)
	assert.Contains(t, body, "sitehost_swept_blobs_total 3")
	assert.Contains(t, body, "http_requests_rate_limited_total 1")
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/site/{identifier}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, id := range []string{"alpha", "beta", "gamma"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/site/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := scrape(t, m)

	assert.Contains(t, body, `http_requests_total{method="GET",route="/site/{identifier}",status="200"} 3`)
	assert.Contains(t, body, `status="404"`)
	assert.False(t, strings.Contains(body, "alpha"), "identifiers never become label values")

	count, err := testutil.GatherAndCount(m.Registry(), "http_request_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

func TestMiddleware_ImplicitStatus(t *testing.T) {
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/healthz", func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Contains(t, scrape(t, m), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
