package http_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sagarc03/sitehost"
	sitehosthttp "github.com/sagarc03/sitehost/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHandler_ViewSite(t *testing.T) {
	site := sitehost.Site{Identifier: "hello", Kind: sitehost.KindHTML, ETag: "abc123"}

	tests := []struct {
		name       string
		resolution sitehost.Resolution
		wantStatus int
		wantBody   string
	}{
		{
			name:       "rendered in an opaque-origin sandbox",
			resolution: sitehost.Resolution{Outcome: sitehost.OutcomeRendered, Site: site, Content: `<h1 class="x">Hi</h1>`},
			wantStatus: http.StatusOK,
			wantBody:   `sandbox="allow-scripts allow-forms"`,
		},
		{
			name:       "not found",
			resolution: sitehost.Resolution{Outcome: sitehost.OutcomeNotFound, Err: sitehost.ErrNotFound},
			wantStatus: http.StatusNotFound,
			wantBody:   "Site not found",
		},
		{
			name:       "retrieval error",
			resolution: sitehost.Resolution{Outcome: sitehost.OutcomeRetrievalError, Site: site, Err: errors.New("bucket unreachable")},
			wantStatus: http.StatusBadGateway,
			wantBody:   "could not be loaded",
		},
		{
			name:       "zip is not supported yet",
			resolution: sitehost.Resolution{Outcome: sitehost.OutcomeUnsupported, Site: site, Err: sitehost.ErrUnsupportedFileType},
			wantStatus: http.StatusNotImplemented,
			wantBody:   "Coming soon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, sitehosthttp.HandlerConfig{})
			srv.sites.On("Resolve", mock.Anything, "hello").Return(tt.resolution)

			rec := srv.serve(httptest.NewRequest(http.MethodGet, "/site/hello", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}

	t.Run("content is escaped into srcdoc", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{})
		srv.sites.On("Resolve", mock.Anything, "hello").
			Return(sitehost.Resolution{Outcome: sitehost.OutcomeRendered, Site: site, Content: `<script>alert("x")</script>`})

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "/site/hello", nil))

		body := rec.Body.String()
		assert.Contains(t, body, `srcdoc="&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt;"`)
		assert.NotContains(t, body, "allow-same-origin")
		assert.NotContains(t, body, `<script>alert`)
		assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	})

	t.Run("viewer is public", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{})
		srv.sites.On("Resolve", mock.Anything, "hello").
			Return(sitehost.Resolution{Outcome: sitehost.OutcomeRendered, Site: site, Content: "hi"})

		rec := srv.serve(withSession(httptest.NewRequest(http.MethodGet, "/site/hello", nil), "ignored"))

		assert.Equal(t, http.StatusOK, rec.Code)
		srv.accounts.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
	})
}

func TestHandler_RawSite(t *testing.T) {
	t.Run("serves html under a sandbox policy", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{})
		srv.sites.On("Resolve", mock.Anything, "hello").Return(sitehost.Resolution{
			Outcome: sitehost.OutcomeRendered,
			Site:    sitehost.Site{Identifier: "hello", Kind: sitehost.KindHTML, ETag: "abc123"},
			Content: "<p>raw</p>",
		})

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "/site/hello/raw", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<p>raw</p>", rec.Body.String())
		assert.Equal(t, "sandbox allow-scripts allow-forms", rec.Header().Get("Content-Security-Policy"))
		assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
		assert.Empty(t, rec.Header().Get("X-Frame-Options"))
	})

	t.Run("unknown site", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{})
		srv.sites.On("Resolve", mock.Anything, "nope").
			Return(sitehost.Resolution{Outcome: sitehost.OutcomeNotFound, Err: sitehost.ErrNotFound})

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "/site/nope/raw", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandler_ContentOrigin(t *testing.T) {
	const origin = "https://content.test"
	rendered := sitehost.Resolution{
		Outcome: sitehost.OutcomeRendered,
		Site:    sitehost.Site{Identifier: "hello", Kind: sitehost.KindHTML},
		Content: "<p>raw</p>",
	}

	t.Run("viewer frames the content origin", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{ContentOrigin: origin + "/"})
		srv.sites.On("Resolve", mock.Anything, "hello").Return(rendered)

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "http://console.test/site/hello", nil))

		body := rec.Body.String()
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, body, `src="https://content.test/site/hello/raw"`)
		assert.Contains(t, body, `sandbox="allow-scripts allow-same-origin allow-forms"`)
		assert.NotContains(t, body, "srcdoc")
	})

	t.Run("raw content redirects off the console origin", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{ContentOrigin: origin})

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "http://console.test/site/hello/raw", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, origin+"/site/hello/raw", rec.Header().Get("Location"))
		srv.sites.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("raw content is served on the content origin", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{ContentOrigin: origin})
		srv.sites.On("Resolve", mock.Anything, "hello").Return(rendered)

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "https://content.test/site/hello/raw", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "<p>raw</p>", rec.Body.String())
		assert.Equal(t, "sandbox allow-scripts allow-same-origin allow-forms", rec.Header().Get("Content-Security-Policy"))
	})

	t.Run("console and api are not served on the content origin", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{ContentOrigin: origin})
		srv.signIn(admin(), "tok")

		for _, path := range []string{"/", "/dashboard", "/admin", "/auth", "/api/v1/sites"} {
			req := withSession(httptest.NewRequest(http.MethodGet, "https://content.test"+path, nil), "tok")

			rec := srv.serve(req)

			assert.Equal(t, http.StatusNotFound, rec.Code, path)
		}
		srv.accounts.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything)
	})

	t.Run("health stays reachable on the content origin", func(t *testing.T) {
		srv := newTestServer(t, sitehosthttp.HandlerConfig{ContentOrigin: origin})

		rec := srv.serve(httptest.NewRequest(http.MethodGet, "https://content.test/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestParseContentOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		wantErr bool
	}{
		{"https://content.example.com", false},
		{"http://localhost:5709/", false},
		{"content.example.com", true},
		{"ftp://content.example.com", true},
		{"https://content.example.com/sites", true},
		{"https://user:pw@content.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			_, err := sitehosthttp.ParseContentOrigin(tt.origin)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
