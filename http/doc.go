// Package http serves sitehost over HTTP: the browser console, the public
// site viewer and a JSON API.
//
// # Routes
//
// Console screens render server-side with gomponents and use a session
// cookie plus CSRF double-submit tokens:
//
//	GET  /                         landing page
//	GET  /auth, POST /auth         sign in
//	POST /auth/logout              sign out
//	GET  /setup, POST /setup       create the first administrator
//	GET  /dashboard                owner's sites and upload form
//	POST /dashboard/sites          publish (multipart: site_name, file)
//	POST /dashboard/sites/{id}/delete
//	GET  /admin                    every site and the user form
//	POST /admin/users
//	POST /admin/sites/{id}/delete
//
// Sites are public:
//
//	GET /site/{identifier}         full-page sandboxed iframe
//	GET /site/{identifier}/raw     raw HTML under a CSP sandbox
//
// The JSON API under /api/v1 accepts "Authorization: Bearer <token>" or the
// session cookie and answers errors as {"error": code, "message": text}.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    MaxUploadSize: 10 << 20,
//	    Metrics:       metrics.New(),
//	}, siteService, accountService)
//	server := &nethttp.Server{Addr: ":5708", Handler: handler.Router()}
//
// Anonymous browsers are redirected to /auth before any service call, and
// signed-in non-administrators are sent back to /dashboard from /admin.
package http
