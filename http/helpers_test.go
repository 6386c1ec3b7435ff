package http_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sagarc03/sitehost"
	sitehosthttp "github.com/sagarc03/sitehost/http"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testCSRFToken = "test-csrf-token-0123456789abcdef"

// MockSiteService is a mock implementation of http.SiteService
type MockSiteService struct {
	mock.Mock
}

func (m *MockSiteService) Publish(ctx context.Context, p sitehost.Principal, req sitehost.PublishRequest) (sitehost.Site, bool, error) {
	args := m.Called(ctx, p, req)
	return args.Get(0).(sitehost.Site), args.Bool(1), args.Error(2)
}

func (m *MockSiteService) Resolve(ctx context.Context, identifier string) sitehost.Resolution {
	args := m.Called(ctx, identifier)
	return args.Get(0).(sitehost.Resolution)
}

func (m *MockSiteService) ListByOwner(ctx context.Context, p sitehost.Principal, q sitehost.ListQuery) (sitehost.ListResult, error) {
	args := m.Called(ctx, p, q)
	return args.Get(0).(sitehost.ListResult), args.Error(1)
}

func (m *MockSiteService) ListAll(ctx context.Context, p sitehost.Principal, q sitehost.ListQuery) (sitehost.ListResult, error) {
	args := m.Called(ctx, p, q)
	return args.Get(0).(sitehost.ListResult), args.Error(1)
}

func (m *MockSiteService) Delete(ctx context.Context, p sitehost.Principal, id uuid.UUID) (sitehost.DeleteResult, error) {
	args := m.Called(ctx, p, id)
	return args.Get(0).(sitehost.DeleteResult), args.Error(1)
}

// MockAccountService is a mock implementation of http.AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) SignIn(ctx context.Context, email, password string) (sitehost.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(sitehost.Session), args.Error(1)
}

func (m *MockAccountService) Authenticate(ctx context.Context, token string) (sitehost.Principal, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(sitehost.Principal), args.Error(1)
}

func (m *MockAccountService) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAccountService) Provision(ctx context.Context, admin sitehost.Principal, acct sitehost.NewAccount) (sitehost.Principal, error) {
	args := m.Called(ctx, admin, acct)
	return args.Get(0).(sitehost.Principal), args.Error(1)
}

func (m *MockAccountService) SetupRequired(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountService) Bootstrap(ctx context.Context, acct sitehost.NewAccount) (sitehost.Principal, error) {
	args := m.Called(ctx, acct)
	return args.Get(0).(sitehost.Principal), args.Error(1)
}

type testServer struct {
	router   http.Handler
	sites    *MockSiteService
	accounts *MockAccountService
}

func newTestServer(t *testing.T, cfg sitehosthttp.HandlerConfig) *testServer {
	t.Helper()
	sites := new(MockSiteService)
	accounts := new(MockAccountService)
	handler := sitehosthttp.NewHandler(&cfg, sites, accounts)
	return &testServer{router: handler.Router(), sites: sites, accounts: accounts}
}

func (s *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// signIn makes token resolve to p for every request that carries it.
func (s *testServer) signIn(p sitehost.Principal, token string) {
	s.accounts.On("Authenticate", mock.Anything, token).Return(p, nil)
}

func owner() sitehost.Principal {
	return sitehost.Principal{ID: uuid.New(), Email: "owner@example.com", Username: "owner"}
}

func admin() sitehost.Principal {
	return sitehost.Principal{ID: uuid.New(), Email: "admin@example.com", Roles: []sitehost.Role{sitehost.RoleAdmin}}
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: sitehosthttp.SessionCookieName, Value: token})
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// formPost builds a URL-encoded console form with a matching CSRF pair.
func formPost(t *testing.T, target string, values url.Values) *http.Request {
	t.Helper()
	if values == nil {
		values = url.Values{}
	}
	values.Set("csrf_token", testCSRFToken)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "sitehost_csrf", Value: testCSRFToken})
	return req
}

// uploadPost builds the dashboard's multipart upload with a CSRF pair.
func uploadPost(t *testing.T, siteName, filename, contentType, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("csrf_token", testCSRFToken))
	require.NoError(t, mw.WriteField("site_name", siteName))
	if filename != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/dashboard/sites", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "sitehost_csrf", Value: testCSRFToken})
	return req
}

func redirectQuery(t *testing.T, rec *httptest.ResponseRecorder) (string, url.Values) {
	t.Helper()
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Path, loc.Query()
}
