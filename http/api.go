package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type deleteResponse struct {
	Site        sitehost.Site `json:"site"`
	BlobRemoved bool          `json:"blob_removed"`
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body", sitehost.ErrInvalidInput)
	}
	return nil
}

func (h *Handler) apiSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	session, err := h.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) apiSignOut(w http.ResponseWriter, r *http.Request) {
	token, _ := sessionToken(r, false)
	if err := h.accounts.SignOut(r.Context(), token); err != nil {
		HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func listQuery(r *http.Request) sitehost.ListQuery {
	q := r.URL.Query()

	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = max(1, min(500, parsed))
		}
	}

	return sitehost.ListQuery{
		Prefix: q.Get("prefix"),
		Limit:  limit,
		Cursor: q.Get("cursor"),
	}
}

func (h *Handler) apiListSites(w http.ResponseWriter, r *http.Request) {
	result, err := h.sites.ListByOwner(r.Context(), PrincipalFromContext(r.Context()), listQuery(r))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) apiListAllSites(w http.ResponseWriter, r *http.Request) {
	result, err := h.sites.ListAll(r.Context(), PrincipalFromContext(r.Context()), listQuery(r))
	if err != nil {
		HandleError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, result)
}

// apiPublishSite stores the request body as the site's content. The
// filename query parameter drives the html/zip allow-list.
func (h *Handler) apiPublishSite(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if unescaped, err := url.PathUnescape(identifier); err == nil {
		identifier = unescaped
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "filename query parameter is required")
		return
	}

	site, created, err := h.sites.Publish(r.Context(), PrincipalFromContext(r.Context()), sitehost.PublishRequest{
		Identifier: identifier,
		Filename:   filename,
		MimeType:   r.Header.Get("Content-Type"),
		Content:    r.Body,
	})
	if err != nil {
		HandleError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	_ = WriteJSON(w, status, site)
}

func (h *Handler) apiDeleteSite(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusNotFound, "not_found", "Site not found")
		return
	}

	result, err := h.sites.Delete(r.Context(), PrincipalFromContext(r.Context()), id)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, deleteResponse{Site: result.Site, BlobRemoved: result.BlobRemoved})
}

func (h *Handler) apiCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleError(w, r, err)
		return
	}

	created, err := h.accounts.Provision(r.Context(), PrincipalFromContext(r.Context()), sitehost.NewAccount{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, created)
}
