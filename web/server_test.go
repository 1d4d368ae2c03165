package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/loandash"
	"github.com/etnz/loandash/api"
	"github.com/etnz/loandash/session"
)

func init() { gin.SetMode(gin.TestMode) }

const masters = `{"loans":{"HDFC_1":{"lender":"HDFC","loan_id":"1","outstanding":250000,"emi":45000}},"total_outstanding":250000,"total_emi":45000}`

type fakeBackend struct {
	mu        sync.Mutex
	token     string // the only valid token
	uploadErr error
	month     string
	loggedOut bool
}

func (f *fakeBackend) CheckAuth(ctx context.Context, token string) (loandash.Identity, error) {
	if token == "" || token != f.token {
		return loandash.Identity{}, loandash.ErrUnauthorized
	}
	return loandash.Identity{UserID: "u1", Email: "a@b.c"}, nil
}

func (f *fakeBackend) FetchPortfolio(ctx context.Context, token string) (*loandash.Snapshot, error) {
	if token != "" && token != f.token {
		return nil, loandash.ErrUnauthorized
	}
	return loandash.DecodeSnapshot([]byte(masters))
}

func (f *fakeBackend) UploadCSV(ctx context.Context, token, filename string, content io.Reader, month string) (api.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.month = month
	if f.uploadErr != nil {
		return api.UploadResult{}, f.uploadErr
	}
	return api.UploadResult{Status: "success", Month: month, LoansParsed: 1, FilesGenerated: []string{"masters.json"}}, nil
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (api.LoginResult, error) {
	if password != "secret" {
		return api.LoginResult{}, &loandash.ValidationError{Status: 401, Message: "Invalid email or password"}
	}
	return api.LoginResult{Token: f.token, UserID: "u1", Email: email}, nil
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	f.loggedOut = true
	return nil
}

func newServer(t *testing.T, token string, public bool) (*Server, *fakeBackend, *session.MemoryStore) {
	t.Helper()
	backend := &fakeBackend{token: "valid"}
	store := session.NewMemoryStore(loandash.Session{Token: token})
	now := func() time.Time { return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC) }
	s := New(backend, store, Options{Public: public, Now: now, Gatherer: prometheus.NewRegistry()})
	return s, backend, store
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, month string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("lender,emi\nHDFC,45000\n"))
	require.NoError(t, err)
	if month != "" {
		require.NoError(t, mw.WriteField("month", month))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestDashboard_RedirectsWhenUnauthenticated(t *testing.T) {
	for _, token := range []string{"", "expired"} {
		s, _, store := newServer(t, token, false)
		w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login?reason="), w.Header().Get("Location"))
		assert.False(t, store.Get().Authenticated(), "session cleared")
		assert.NotContains(t, w.Body.String(), "HDFC")
	}
}

func TestDashboard_Authenticated(t *testing.T) {
	s, _, store := newServer(t, "valid", false)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<h1>Debt Empire v2.0</h1>")
	assert.Contains(t, body, "a@b.c")
	assert.Contains(t, body, "HDFC")
	assert.Contains(t, body, "Rs 2.50L")
	assert.Contains(t, body, `placeholder="feb26"`)
	assert.Contains(t, body, `action="/logout"`)
	assert.Equal(t, "a@b.c", store.Get().Email, "identity saved")
}

func TestDashboard_Public(t *testing.T) {
	s, _, _ := newServer(t, "", true)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "HDFC")
	assert.NotContains(t, w.Body.String(), `action="/logout"`)
}

func TestDashboard_PublicExpiredToken(t *testing.T) {
	s, _, store := newServer(t, "expired", true)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login?reason="), w.Header().Get("Location"))
	assert.Equal(t, loandash.Session{}, store.Get(), "session cleared")

	// the next visit is anonymous
	w = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "HDFC")
}

func TestUpload_FlashAfterUpload(t *testing.T) {
	s, backend, _ := newServer(t, "valid", false)

	w := serve(s, uploadRequest(t, "Jan26"))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, "jan26", backend.month)

	w = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), "Success! Parsed 1 loans. Files: masters.json")

	// shown once
	w = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, w.Body.String(), "Success!")
}

func TestUpload_DefaultMonth(t *testing.T) {
	s, backend, _ := newServer(t, "valid", false)
	serve(s, uploadRequest(t, ""))
	assert.Equal(t, "feb26", backend.month)
}

func TestUpload_Failure(t *testing.T) {
	s, backend, _ := newServer(t, "valid", false)
	backend.uploadErr = &loandash.ValidationError{Status: 400, Message: "Missing column: EMI"}

	serve(s, uploadRequest(t, "jan26"))
	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), "Error: Missing column: EMI")
}

func TestUpload_Busy(t *testing.T) {
	s, backend, _ := newServer(t, "valid", false)
	require.True(t, s.uploads.TryAcquire(1))
	defer s.uploads.Release(1)

	serve(s, uploadRequest(t, "jan26"))
	assert.Empty(t, backend.month, "no upload while another is in flight")

	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, w.Body.String(), "An upload is already in progress")
}

func TestUpload_Unauthenticated(t *testing.T) {
	s, backend, _ := newServer(t, "", false)
	w := serve(s, uploadRequest(t, "jan26"))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/login"))
	assert.Empty(t, backend.month)
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLogin(t *testing.T) {
	s, _, store := newServer(t, "", false)

	w := serve(s, postForm("/login", url.Values{"email": {"a@b.c"}, "password": {"wrong"}}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	assert.False(t, store.Get().Authenticated())

	w = serve(s, postForm("/login", url.Values{"email": {"a@b.c"}, "password": {"secret"}}))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.Equal(t, loandash.Session{Token: "valid", UserID: "u1", Email: "a@b.c"}, store.Get())
}

func TestShowLogin(t *testing.T) {
	s, _, _ := newServer(t, "", false)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/login?reason=Please+log+in", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please log in")
}

func TestLogout(t *testing.T) {
	s, backend, store := newServer(t, "valid", false)
	w := serve(s, httptest.NewRequest(http.MethodPost, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.True(t, backend.loggedOut)
	assert.False(t, store.Get().Authenticated())
}

func TestHealthzAndMetrics(t *testing.T) {
	s, _, _ := newServer(t, "", false)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRun_StopsWithContext(t *testing.T) {
	s, _, _ := newServer(t, "", false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
