package e2e_test

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/sitehost"
)

func TestE2E_Publishing_SQLite(t *testing.T) {
	runPublishingTests(t, newStack(t, sqliteBackend(t)))
}

func TestE2E_Publishing_Postgres(t *testing.T) {
	runPublishingTests(t, newStack(t, postgresBackend(t)))
}

// runPublishingTests walks the publish, resolve and delete lifecycle
// shared by every registry backend. Subtests depend on earlier ones.
func runPublishingTests(t *testing.T, s *stack) {
	t.Helper()

	ownerA := s.signUp(t, "owner-a@example.com", false)
	ownerB := s.signUp(t, "owner-b@example.com", false)
	admin := s.signUp(t, "admin@example.com", true)

	var demo sitehost.Site

	t.Run("owner publishes a site that then renders", func(t *testing.T) {
		resp, site := s.publish(t, ownerA, "demo", "<h1>first</h1>")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "demo", site.Identifier)
		assert.Equal(t, s.URL+"/site/demo", site.URL)
		demo = site

		status, body := s.get(t, "/site/demo")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, body, html.EscapeString("<h1>first</h1>"))

		status, body = s.get(t, "/site/demo/raw")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "<h1>first</h1>", body)
	})

	t.Run("another owner cannot take the identifier", func(t *testing.T) {
		resp, _ := s.publish(t, ownerB, "demo", "<h1>hijack</h1>")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		all := listSites(t, s, admin, "/api/v1/admin/sites")
		require.Len(t, all, 1)
		assert.Equal(t, demo.OwnerID, all[0].OwnerID)

		_, body := s.get(t, "/site/demo/raw")
		assert.Equal(t, "<h1>first</h1>", body)
	})

	t.Run("republish replaces content in place", func(t *testing.T) {
		resp, site := s.publish(t, ownerA, "demo", "<h1>second</h1>")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, demo.ID, site.ID)
		assert.Equal(t, demo.StorageKey, site.StorageKey)
		assert.NotEqual(t, demo.ETag, site.ETag)

		_, body := s.get(t, "/site/demo/raw")
		assert.Equal(t, "<h1>second</h1>", body)
	})

	t.Run("unknown identifier is not found", func(t *testing.T) {
		status, body := s.get(t, "/site/unknown-xyz")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body, "Site not found")
	})

	t.Run("owner sees only their sites", func(t *testing.T) {
		resp, _ := s.publish(t, ownerB, "b-notes", "<p>b</p>")
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		mine := listSites(t, s, ownerA, "/api/v1/sites")
		require.Len(t, mine, 1)
		assert.Equal(t, "demo", mine[0].Identifier)

		resp = s.do(t, http.MethodGet, "/api/v1/admin/sites", ownerA, "", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("malformed cursor is rejected as bad input", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/v1/sites?cursor=junk!", ownerA, "", nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("admin delete stops resolution even when blob removal fails", func(t *testing.T) {
		s.store.failDelete.Store(true)
		defer s.store.failDelete.Store(false)

		resp := s.do(t, http.MethodDelete, "/api/v1/admin/sites/"+demo.ID.String(), admin, "", nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			BlobRemoved bool `json:"blob_removed"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.False(t, result.BlobRemoved)

		status, body := s.get(t, "/site/demo")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Contains(t, body, "Site not found")
	})

	t.Run("sweep collects the blob the delete left behind", func(t *testing.T) {
		result, err := s.sites.Sweep(t.Context(), sitehost.SweepOptions{})
		require.NoError(t, err)

		assert.Equal(t, []string{demo.StorageKey}, result.Orphaned)
		assert.Equal(t, 1, result.Removed)

		status, _ := s.get(t, "/site/b-notes/raw")
		assert.Equal(t, http.StatusOK, status)
	})
}

func TestE2E_SweepKeepsBlobRepublishedMidSweep(t *testing.T) {
	s := newStack(t, sqliteBackend(t))
	owner := s.signUp(t, "racer@example.com", false)
	admin := s.signUp(t, "admin@example.com", true)

	resp, site := s.publish(t, owner, "phoenix", "<h1>first</h1>")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	s.store.failDelete.Store(true)
	resp = s.do(t, http.MethodDelete, "/api/v1/admin/sites/"+site.ID.String(), admin, "", nil)
	resp.Body.Close()
	s.store.failDelete.Store(false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	republished := false
	s.store.beforeDeleteVersion = func(key string) {
		if key != site.StorageKey || republished {
			return
		}
		republished = true
		resp, _ := s.publish(t, owner, "phoenix", "<h1>back</h1>")
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	result, err := s.sites.Sweep(t.Context(), sitehost.SweepOptions{})
	require.NoError(t, err)

	assert.True(t, republished)
	assert.Empty(t, result.Orphaned)
	assert.Zero(t, result.Removed)

	status, body := s.get(t, "/site/phoenix/raw")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<h1>back</h1>", body)
}

func TestE2E_AnonymousUploadScreenRedirects(t *testing.T) {
	s := newStack(t, sqliteBackend(t))

	for _, path := range []string{"/dashboard", "/admin"} {
		status, _ := s.get(t, path)
		assert.Equal(t, http.StatusSeeOther, status, path)
	}

	resp := s.do(t, http.MethodGet, "/dashboard", "", "", nil)
	resp.Body.Close()
	assert.Equal(t, "/auth", resp.Header.Get("Location"))

	all, err := s.db.GetSiteRegistry().ListAll(t.Context(), sitehost.ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, all.Items)
}

func TestE2E_ConcurrentPublishSameIdentifier(t *testing.T) {
	s := newStack(t, sqliteBackend(t))

	const owners = 5
	tokens := make([]string, owners)
	for i := range tokens {
		tokens[i] = s.signUp(t, "racer"+string(rune('a'+i))+"@example.com", false)
	}

	statuses := make([]int, owners)
	errs := make([]error, owners)
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPut, s.URL+"/api/v1/sites/contested?filename=index.html", strings.NewReader("<p>mine</p>"))
			if err != nil {
				errs[i] = err
				return
			}
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := s.client.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i, token)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	created := 0
	for _, status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	assert.Equal(t, 1, created)

	site, err := s.db.GetSiteRegistry().FindByIdentifier(t.Context(), "contested")
	require.NoError(t, err)
	assert.NotEmpty(t, site.OwnerID)
}

func TestE2E_SetupBootstrapsFirstAdmin(t *testing.T) {
	s := newStack(t, sqliteBackend(t))

	status, body := s.get(t, "/setup")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "csrf_token")

	_, err := s.accounts.Bootstrap(t.Context(), sitehost.NewAccount{Email: "root@example.com", Password: testPassword})
	require.NoError(t, err)

	status, _ = s.get(t, "/setup")
	assert.Equal(t, http.StatusNotFound, status)

	admin := s.signIn(t, "root@example.com")
	body2, _ := json.Marshal(map[string]string{"email": "new@example.com", "password": testPassword})
	resp := s.do(t, http.MethodPost, "/api/v1/admin/users", admin, "application/json", bytes.NewReader(body2))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.NotEmpty(t, s.signIn(t, "new@example.com"))
}

func TestE2E_SignOutRevokesToken(t *testing.T) {
	s := newStack(t, sqliteBackend(t))
	token := s.signUp(t, "leaver@example.com", false)

	resp := s.do(t, http.MethodPost, "/api/v1/auth/sign-out", token, "", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/sites", token, "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestE2E_Health(t *testing.T) {
	s := newStack(t, sqliteBackend(t))

	status, body := s.get(t, "/healthz")

	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func listSites(t *testing.T, s *stack, token, path string) []sitehost.Site {
	t.Helper()

	resp := s.do(t, http.MethodGet, path, token, "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result sitehost.ListResult
	require.NoError(t, json.Unmarshal(data, &result))
	return result.Items
}
