package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sagarc03/sitehost"
)

// SessionCookieName is the cookie that carries the session token for
// browser screens.
const SessionCookieName = "sitehost_session"

type principalContextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p sitehost.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the request's principal, or the anonymous
// zero value.
func PrincipalFromContext(ctx context.Context) sitehost.Principal {
	p, _ := ctx.Value(principalContextKey{}).(sitehost.Principal)
	return p
}

// sessionToken reads a bearer token, falling back to the session cookie
// when allowCookie is set.
func sessionToken(r *http.Request, allowCookie bool) (token string, fromCookie bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, value, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value), false
		}
	}
	if !allowCookie {
		return "", false
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(c.Value), true
	}
	return "", false
}

// isSafeMethod reports whether the method only reads.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Authenticate resolves the session token, if any, and stores the principal
// in the request context. Requests without a valid token continue as
// anonymous; guards decide what they may reach.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return h.authenticate(next, func(*http.Request) bool { return true })
}

// AuthenticateAPI is Authenticate for the JSON API. The session cookie
// only authenticates safe methods; anything that changes state needs a
// bearer token, which a page in the browser cannot attach on its own.
func (h *Handler) AuthenticateAPI(next http.Handler) http.Handler {
	return h.authenticate(next, func(r *http.Request) bool { return isSafeMethod(r.Method) })
}

func (h *Handler) authenticate(next http.Handler, allowCookie func(*http.Request) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r, allowCookie(r))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		p, err := h.accounts.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, sitehost.ErrUnauthorized) {
				slog.Error("authenticate session", "error", err)
			}
			if fromCookie {
				h.clearSessionCookie(w)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireSignedIn redirects anonymous browsers to the sign-in screen.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFromContext(r.Context()).IsAuthenticated() {
			http.Redirect(w, r, "/auth", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin sends anonymous browsers to sign in and signed-in
// non-administrators back to their dashboard.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if err := sitehost.Authorize(p, sitehost.RoleAdmin); err != nil {
			if errors.Is(err, sitehost.ErrUnauthorized) {
				http.Redirect(w, r, "/auth", http.StatusSeeOther)
				return
			}
			redirectWithError(w, r, "/dashboard", "You do not have access to the admin console")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole is the JSON API guard. An empty role only demands a
// signed-in principal.
func requireRole(role sitehost.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sitehost.Authorize(PrincipalFromContext(r.Context()), role); err != nil {
				HandleError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, session sitehost.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

func redirectWithNotice(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?notice="+url.QueryEscape(message), http.StatusSeeOther)
}
