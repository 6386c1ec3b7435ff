package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/sagarc03/sitehost"
)

const (
	// sandboxIsolated runs content in an opaque origin: no cookies, no
	// storage and no script access to the page that frames it.
	sandboxIsolated = "allow-scripts allow-forms"
	// sandboxContentOrigin keeps the content's own origin. Only used when
	// that origin is the dedicated content origin.
	sandboxContentOrigin = "allow-scripts allow-same-origin allow-forms"
)

// frameSandbox is the iframe sandbox for hosted content.
func (h *Handler) frameSandbox() string {
	if h.config.ContentOrigin != "" {
		return sandboxContentOrigin
	}
	return sandboxIsolated
}

// rawPolicy is the Content-Security-Policy for raw hosted content.
func (h *Handler) rawPolicy() string {
	return "sandbox " + h.frameSandbox()
}

func (h *Handler) rawURL(identifier string) string {
	return h.config.ContentOrigin + "/site/" + url.PathEscape(identifier) + "/raw"
}

// handleViewSite renders a published site inside a sandboxed frame. With a
// content origin the frame loads the raw content from there; otherwise the
// content is inlined through srcdoc.
func (h *Handler) handleViewSite(w http.ResponseWriter, r *http.Request) {
	res := h.sites.Resolve(r.Context(), chi.URLParam(r, "identifier"))
	if res.Outcome != sitehost.OutcomeRendered {
		writeOutcome(w, r, res)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	if h.config.ContentOrigin != "" && !h.onContentHost(r) {
		renderHTML(w, http.StatusOK, viewerPage(res.Site, h.frameSandbox(), h.rawURL(res.Site.Identifier), ""))
		return
	}
	renderHTML(w, http.StatusOK, viewerPage(res.Site, h.frameSandbox(), "", res.Content))
}

// handleRawSite serves the site's HTML directly under a CSP sandbox so it
// can be embedded by URL. With a content origin it is only served there.
func (h *Handler) handleRawSite(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if h.config.ContentOrigin != "" && !h.onContentHost(r) {
		http.Redirect(w, r, h.rawURL(identifier), http.StatusFound)
		return
	}

	res := h.sites.Resolve(r.Context(), identifier)
	if res.Outcome != sitehost.OutcomeRendered {
		writeOutcome(w, r, res)
		return
	}

	w.Header().Set("Content-Security-Policy", h.rawPolicy())
	w.Header().Set("Cache-Control", "no-cache")
	if res.Site.ETag != "" {
		w.Header().Set("ETag", `"`+res.Site.ETag+`"`)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, res.Content)
}

// writeOutcome renders the error screen for every outcome but rendered.
func writeOutcome(w http.ResponseWriter, r *http.Request, res sitehost.Resolution) {
	switch res.Outcome {
	case sitehost.OutcomeNotFound:
		renderHTML(w, http.StatusNotFound, errorPage("Site not found", "No site is published under this name."))
	case sitehost.OutcomeUnsupported:
		renderHTML(w, http.StatusNotImplemented, errorPage("Coming soon", "ZIP sites need extra processing and cannot be viewed yet."))
	default:
		slog.Error("resolve site", "error", res.Err, "path", r.URL.Path)
		renderHTML(w, http.StatusBadGateway, errorPage("Site unavailable", "The site could not be loaded. Try again later."))
	}
}
