package http_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sagarc03/sitehost"
	sitehosthttp "github.com/sagarc03/sitehost/http"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	sitehosthttp.SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestScreenHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	sitehosthttp.ScreenHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestMaxBody(t *testing.T) {
	var readErr error
	handler := sitehosthttp.MaxBody(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		if readErr != nil {
			sitehosthttp.HandleError(w, r, readErr)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("within limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abcd")))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("over limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("abcdef")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestRequireSignedIn(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sitehosthttp.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/auth", rec.Header().Get("Location"))
	})

	t.Run("signed in", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req = req.WithContext(sitehosthttp.WithPrincipal(req.Context(), owner()))

		sitehosthttp.RequireSignedIn(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name      string
		principal sitehost.Principal
		status    int
		location  string
	}{
		{"anonymous", sitehost.Principal{}, http.StatusSeeOther, "/auth"},
		{"owner", owner(), http.StatusSeeOther, "/dashboard"},
		{"admin", admin(), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req = req.WithContext(sitehosthttp.WithPrincipal(req.Context(), tt.principal))

			sitehosthttp.RequireAdmin(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), tt.location))
			}
		})
	}
}

func TestPrincipalFromContext_Anonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	p := sitehosthttp.PrincipalFromContext(req.Context())

	assert.False(t, p.IsAuthenticated())
}

func TestIPLimiter(t *testing.T) {
	t.Run("burst then deny", func(t *testing.T) {
		var denied atomic.Int32
		limiter := sitehosthttp.NewIPLimiter(t.Context(),
			sitehosthttp.WithRate(0.001, 2),
			sitehosthttp.WithOnDenied(func(string) { denied.Add(1) }),
		)

		assert.True(t, limiter.Allow("192.0.2.1"))
		assert.True(t, limiter.Allow("192.0.2.1"))
		assert.False(t, limiter.Allow("192.0.2.1"))
		assert.False(t, limiter.Allow("192.0.2.1"))
		assert.Equal(t, int32(2), denied.Load())
	})

	t.Run("buckets are per ip", func(t *testing.T) {
		limiter := sitehosthttp.NewIPLimiter(t.Context(), sitehosthttp.WithRate(0.001, 1))

		assert.True(t, limiter.Allow("192.0.2.1"))
		assert.False(t, limiter.Allow("192.0.2.1"))
		assert.True(t, limiter.Allow("192.0.2.2"))
	})

	t.Run("evicted visitors start fresh", func(t *testing.T) {
		limiter := sitehosthttp.NewIPLimiter(t.Context(),
			sitehosthttp.WithRate(0.001, 1),
			sitehosthttp.WithTTL(20*time.Millisecond),
		)

		assert.True(t, limiter.Allow("192.0.2.1"))
		assert.False(t, limiter.Allow("192.0.2.1"))

		assert.Eventually(t, func() bool {
			return limiter.Allow("192.0.2.1")
		}, time.Second, 25*time.Millisecond)
	})

	t.Run("nil limiter lets everything through", func(t *testing.T) {
		var limiter *sitehosthttp.IPLimiter
		rec := httptest.NewRecorder()

		limiter.Limit(http.NotFoundHandler())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
