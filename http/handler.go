package http

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
)

const (
	// DefaultMaxUploadSize applies when HandlerConfig.MaxUploadSize is unset.
	DefaultMaxUploadSize = 10 << 20
	// multipartMemory is how much of a multipart upload is held in memory
	// before spilling to a temporary file.
	multipartMemory = 8 << 20
	// multipartOverhead covers form fields and part headers around an upload.
	multipartOverhead = 64 << 10
	// formBodyLimit caps JSON and URL-encoded bodies that carry no upload.
	formBodyLimit = 64 << 10
)

// SiteService is the site workflow surface used by the handlers.
// *sitehost.SiteService implements it.
type SiteService interface {
	Publish(ctx context.Context, p sitehost.Principal, req sitehost.PublishRequest) (sitehost.Site, bool, error)
	Resolve(ctx context.Context, identifier string) sitehost.Resolution
	ListByOwner(ctx context.Context, p sitehost.Principal, q sitehost.ListQuery) (sitehost.ListResult, error)
	ListAll(ctx context.Context, p sitehost.Principal, q sitehost.ListQuery) (sitehost.ListResult, error)
	Delete(ctx context.Context, p sitehost.Principal, id uuid.UUID) (sitehost.DeleteResult, error)
}

// AccountService is the account surface used by the handlers.
// *sitehost.AccountService implements it.
type AccountService interface {
	SignIn(ctx context.Context, email, password string) (sitehost.Session, error)
	Authenticate(ctx context.Context, token string) (sitehost.Principal, error)
	SignOut(ctx context.Context, token string) error
	Provision(ctx context.Context, admin sitehost.Principal, acct sitehost.NewAccount) (sitehost.Principal, error)
	SetupRequired(ctx context.Context) (bool, error)
	Bootstrap(ctx context.Context, acct sitehost.NewAccount) (sitehost.Principal, error)
}

// Instrumentation exposes request metrics. *metrics.ServerMetrics
// implements it.
type Instrumentation interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// MaxUploadSize caps publish request bodies (default: 10 MiB)
	MaxUploadSize int64
	// SecureCookies marks session and CSRF cookies Secure
	SecureCookies bool
	CORS          CORSConfig
	// SignInLimiter throttles sign-in attempts per client IP; nil disables it
	SignInLimiter *IPLimiter
	// Metrics adds request metrics and GET /metrics; nil disables both
	Metrics Instrumentation
	// HealthCheck backs GET /healthz; nil always reports ok
	HealthCheck func(ctx context.Context) error
	// ContentOrigin is the separate origin hosted sites are served from,
	// e.g. https://usercontent.example.com. Empty serves them from the
	// console origin inside an opaque-origin sandbox.
	ContentOrigin string
}

// Handler serves the console screens, the site viewer and the JSON API.
type Handler struct {
	config      HandlerConfig
	sites       SiteService
	accounts    AccountService
	contentHost string
}

// NewHandler creates a new Handler with the given configuration and services.
func NewHandler(config *HandlerConfig, sites SiteService, accounts AccountService) *Handler {
	cfg := *config
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	cfg.ContentOrigin = strings.TrimRight(cfg.ContentOrigin, "/")

	h := &Handler{
		config:   cfg,
		sites:    sites,
		accounts: accounts,
	}
	if cfg.ContentOrigin != "" {
		if u, err := url.Parse(cfg.ContentOrigin); err == nil {
			h.contentHost = strings.ToLower(u.Host)
		}
	}
	return h
}

// ParseContentOrigin validates a content origin: an absolute http(s) URL
// with a host and nothing after it.
func ParseContentOrigin(origin string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return nil, fmt.Errorf("content origin: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("content origin %q: must be an http or https origin", origin)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return nil, fmt.Errorf("content origin %q: must not carry a path, query or credentials", origin)
	}
	return u, nil
}

// onContentHost reports whether r was addressed to the content origin.
func (h *Handler) onContentHost(r *http.Request) bool {
	return h.contentHost != "" && strings.EqualFold(r.Host, h.contentHost)
}

// ContentHostOnly keeps the console and the API off the content origin, so
// hosted pages never share an origin with anything that holds a session.
func (h *Handler) ContentHostOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.onContentHost(r) && r.URL.Path != "/healthz" && !strings.HasPrefix(r.URL.Path, "/site/") {
			renderHTML(w, http.StatusNotFound, errorPage("Page not found", "There is nothing at this address."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router returns an http.Handler with every route mounted.
//
// Console screens use the session cookie and CSRF double-submit tokens.
// The JSON API takes a bearer token; the session cookie only reaches its
// read-only routes. Site routes are public and, with a content origin,
// the only thing served there.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)
	if h.config.Metrics != nil {
		r.Use(h.config.Metrics.Middleware)
	}
	r.Use(SecurityHeaders)
	r.Use(h.ContentHostOnly)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", h.handleHealth)
	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics.Handler())
	}

	r.Route("/site/{identifier}", func(r chi.Router) {
		r.Get("/", h.handleViewSite)
		r.Get("/raw", h.handleRawSite)
	})

	r.Group(func(r chi.Router) {
		r.Use(ScreenHeaders)
		r.Use(MaxBody(h.config.MaxUploadSize + multipartOverhead))
		r.Use(h.Authenticate)
		r.Use(h.EnsureCSRFToken)
		r.Use(h.RequireCSRF)
		h.screenRoutes(r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthenticateAPI)
		h.apiRoutes(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "not_found", "No such endpoint")
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderHTML(w, http.StatusNotFound, errorPage("Page not found", "There is nothing at this address."))
	})

	return r
}

func (h *Handler) screenRoutes(r chi.Router) {
	limitSignIn := h.config.SignInLimiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renderHTML(w, http.StatusTooManyRequests, signInPage(r, "", "Too many sign-in attempts. Wait a moment and try again."))
	}))

	r.Get("/", h.handleHome)

	r.Get("/auth", h.handleSignInPage)
	r.With(limitSignIn).Post("/auth", h.handleSignIn)
	r.Post("/auth/logout", h.handleSignOut)

	r.Get("/setup", h.handleSetupPage)
	r.Post("/setup", h.handleSetup)

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(RequireSignedIn)
		r.Get("/", h.handleDashboard)
		r.Post("/sites", h.handleUploadSite)
		r.Post("/sites/{id}/delete", h.handleDashboardDelete)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/", h.handleAdmin)
		r.Post("/users", h.handleCreateUser)
		r.Post("/sites/{id}/delete", h.handleAdminDelete)
	})
}

func (h *Handler) apiRoutes(r chi.Router) {
	limitSignIn := h.config.SignInLimiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusTooManyRequests, "too_many_requests", "Too many sign-in attempts")
	}))

	r.With(MaxBody(formBodyLimit), limitSignIn).Post("/auth/sign-in", h.apiSignIn)
	r.Post("/auth/sign-out", h.apiSignOut)

	r.Group(func(r chi.Router) {
		r.Use(requireRole(""))
		r.Get("/sites", h.apiListSites)
		r.With(MaxBody(h.config.MaxUploadSize)).Put("/sites/{identifier}", h.apiPublishSite)
		r.Delete("/sites/{id}", h.apiDeleteSite)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireRole(sitehost.RoleAdmin))
		r.Get("/sites", h.apiListAllSites)
		r.Delete("/sites/{id}", h.apiDeleteSite)
		r.With(MaxBody(formBodyLimit)).Post("/users", h.apiCreateUser)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.config.HealthCheck != nil {
		if err := h.config.HealthCheck(r.Context()); err != nil {
			logError(r, errorClass{status: http.StatusServiceUnavailable}, err)
			WriteError(w, http.StatusServiceUnavailable, "unavailable", "Health check failed")
			return
		}
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
