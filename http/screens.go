package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
)

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if p.IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	setupRequired, err := h.accounts.SetupRequired(r.Context())
	if err != nil {
		slog.Error("check setup state", "error", err)
	}

	renderHTML(w, http.StatusOK, homePage(p, setupRequired))
}

func (h *Handler) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	if PrincipalFromContext(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	renderHTML(w, http.StatusOK, signInPage(r, "", ""))
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.PostFormValue("email"))

	session, err := h.accounts.SignIn(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		class := classify(err)
		logError(r, class, err)
		renderHTML(w, class.status, signInPage(r, email, class.message))
		return
	}

	h.setSessionCookie(w, session)
	redirectWithNotice(w, r, "/dashboard", "Signed in successfully")
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token, _ := sessionToken(r, true); token != "" {
		if err := h.accounts.SignOut(r.Context(), token); err != nil {
			slog.Warn("sign out", "error", err)
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/auth", http.StatusSeeOther)
}

func (h *Handler) handleSetupPage(w http.ResponseWriter, r *http.Request) {
	required, err := h.accounts.SetupRequired(r.Context())
	if err != nil {
		slog.Error("check setup state", "error", err)
		renderHTML(w, http.StatusInternalServerError, errorPage("Setup unavailable", "The setup state could not be checked. Try again later."))
		return
	}
	if !required {
		renderHTML(w, http.StatusNotFound, errorPage("Setup already completed", "An administrator already exists. Sign in instead."))
		return
	}
	renderHTML(w, http.StatusOK, setupPage(r, "", "", ""))
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	acct := accountFromForm(r)

	_, err := h.accounts.Bootstrap(r.Context(), acct)
	if err != nil {
		if errors.Is(err, sitehost.ErrAlreadySetUp) {
			renderHTML(w, http.StatusNotFound, errorPage("Setup already completed", "An administrator already exists. Sign in instead."))
			return
		}
		class := classify(err)
		logError(r, class, err)
		renderHTML(w, class.status, setupPage(r, acct.Email, acct.Username, class.message))
		return
	}

	slog.Info("administrator created through setup", "email", acct.Email)
	redirectWithNotice(w, r, "/auth", "Administrator created. Sign in to continue.")
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	result, err := h.sites.ListByOwner(r.Context(), p, sitehost.ListQuery{Cursor: r.URL.Query().Get("cursor")})
	if err != nil {
		h.renderListError(w, r, err, "/dashboard")
		return
	}

	renderHTML(w, http.StatusOK, dashboardPage(r, p, result))
}

func (h *Handler) handleUploadSite(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	name := r.FormValue("site_name")
	file, header, err := r.FormFile("file")
	if err != nil || strings.TrimSpace(name) == "" {
		if file != nil {
			_ = file.Close()
		}
		redirectWithError(w, r, "/dashboard", "Choose a file and enter a site name")
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > h.config.MaxUploadSize {
		redirectWithError(w, r, "/dashboard", fmt.Sprintf("Upload is larger than %s", formatBytes(h.config.MaxUploadSize)))
		return
	}

	site, created, err := h.sites.Publish(r.Context(), p, sitehost.PublishRequest{
		Identifier: name,
		Filename:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Content:    file,
	})
	if err != nil {
		class := classify(err)
		logError(r, class, err)
		redirectWithError(w, r, "/dashboard", class.message)
		return
	}

	if created {
		redirectWithNotice(w, r, "/dashboard", "Site published at "+site.URL)
		return
	}
	redirectWithNotice(w, r, "/dashboard", "Site updated at "+site.URL)
}

func (h *Handler) handleDashboardDelete(w http.ResponseWriter, r *http.Request) {
	h.deleteSite(w, r, "/dashboard")
}

func (h *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())

	result, err := h.sites.ListAll(r.Context(), p, sitehost.ListQuery{Cursor: r.URL.Query().Get("cursor")})
	if err != nil {
		h.renderListError(w, r, err, "/admin")
		return
	}

	renderHTML(w, http.StatusOK, adminPage(r, p, result))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	acct := accountFromForm(r)

	created, err := h.accounts.Provision(r.Context(), p, acct)
	if err != nil {
		class := classify(err)
		logError(r, class, err)
		redirectWithError(w, r, "/admin", class.message)
		return
	}

	slog.Info("user provisioned", "admin", p.ID, "user", created.ID, "email", created.Email)
	redirectWithNotice(w, r, "/admin", "User "+created.Email+" created")
}

func (h *Handler) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	h.deleteSite(w, r, "/admin")
}

func (h *Handler) deleteSite(w http.ResponseWriter, r *http.Request, back string) {
	p := PrincipalFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		redirectWithError(w, r, back, "Site not found")
		return
	}

	result, err := h.sites.Delete(r.Context(), p, id)
	if err != nil {
		class := classify(err)
		logError(r, class, err)
		redirectWithError(w, r, back, class.message)
		return
	}

	if !result.BlobRemoved {
		redirectWithNotice(w, r, back, "Site "+result.Site.Identifier+" deleted. Its content will be cleaned up later.")
		return
	}
	redirectWithNotice(w, r, back, "Site "+result.Site.Identifier+" deleted")
}

// renderListError sends a stale cursor back to the first page and shows
// any other failure as an error screen.
func (h *Handler) renderListError(w http.ResponseWriter, r *http.Request, err error, back string) {
	class := classify(err)
	logError(r, class, err)
	if errors.Is(err, sitehost.ErrInvalidInput) && r.URL.Query().Get("cursor") != "" {
		redirectWithError(w, r, back, "That page is no longer available")
		return
	}
	renderHTML(w, class.status, errorPage("Could not load sites", class.message))
}

func accountFromForm(r *http.Request) sitehost.NewAccount {
	return sitehost.NewAccount{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Username: strings.TrimSpace(r.PostFormValue("username")),
	}
}
