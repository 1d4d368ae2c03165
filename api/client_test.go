package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etnz/loandash"
)

// backend is a fake backend recording the requests it receives.
type backend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func newBackend(t *testing.T, h http.HandlerFunc) *backend {
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		b.mu.Lock()
		b.requests = append(b.requests, r)
		b.bodies = append(b.bodies, body)
		b.mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *backend) last() *http.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func newClient(b *backend) *Client {
	return New(Config{BaseURL: b.URL + "/", Timeout: 5 * time.Second}, nil, nil)
}

func TestCheckAuth(t *testing.T) {
	t.Run("no token means no request", func(t *testing.T) {
		b := newBackend(t, reply(200, `{}`))
		_, err := newClient(b).CheckAuth(context.Background(), "")
		assert.ErrorIs(t, err, loandash.ErrUnauthorized)
		assert.Equal(t, 0, b.count())
	})

	t.Run("success", func(t *testing.T) {
		b := newBackend(t, reply(200, `{"user_id":"u1","email":"a@b.c","phone":null}`))
		id, err := newClient(b).CheckAuth(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, loandash.Identity{UserID: "u1", Email: "a@b.c"}, id)

		r := b.last()
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
	})

	for _, status := range []int{401, 403, 404, 500} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			b := newBackend(t, reply(status, `{"detail":"nope"}`))
			_, err := newClient(b).CheckAuth(context.Background(), "tok")
			assert.ErrorIs(t, err, loandash.ErrUnauthorized)
		})
	}
}

func TestFetchPortfolio(t *testing.T) {
	t.Run("success keeps loan order", func(t *testing.T) {
		b := newBackend(t, reply(200, `{"loans":{"b":{"lender":"B"},"a":{"lender":"A"}},"total_outstanding":10,"total_emi":1}`))
		s, err := newClient(b).FetchPortfolio(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, s.Keys())
		assert.Equal(t, "/api/masters", b.last().URL.Path)
	})

	t.Run("public deployment sends no authorization", func(t *testing.T) {
		b := newBackend(t, reply(200, `{"loans":{}}`))
		_, err := newClient(b).FetchPortfolio(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, b.last().Header.Get("Authorization"))
	})

	t.Run("401 is unauthorized", func(t *testing.T) {
		b := newBackend(t, reply(401, `{"detail":"Invalid token"}`))
		_, err := newClient(b).FetchPortfolio(context.Background(), "tok")
		assert.ErrorIs(t, err, loandash.ErrUnauthorized)
	})

	t.Run("500 is a server error", func(t *testing.T) {
		b := newBackend(t, reply(500, `{"detail":"disk full"}`))
		_, err := newClient(b).FetchPortfolio(context.Background(), "tok")
		var se *loandash.ServerError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, 500, se.Status)
		assert.Contains(t, se.Error(), "disk full")
		assert.False(t, errors.Is(err, loandash.ErrUnauthorized))
	})

	t.Run("garbage is a server error", func(t *testing.T) {
		b := newBackend(t, reply(200, `<html>`))
		_, err := newClient(b).FetchPortfolio(context.Background(), "tok")
		var se *loandash.ServerError
		assert.ErrorAs(t, err, &se)
	})

	t.Run("unreachable backend is a network error", func(t *testing.T) {
		b := newBackend(t, reply(200, `{}`))
		c := newClient(b)
		b.Close()
		_, err := c.FetchPortfolio(context.Background(), "tok")
		var ne *loandash.NetworkError
		assert.ErrorAs(t, err, &ne)
		assert.True(t, loandash.IsTransient(err))
	})

	t.Run("cancelled context", func(t *testing.T) {
		b := newBackend(t, reply(200, `{}`))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newClient(b).FetchPortfolio(ctx, "tok")
		var ne *loandash.NetworkError
		assert.ErrorAs(t, err, &ne)
		assert.Equal(t, 0, b.count())
	})
}

func TestUploadCSV(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		b := newBackend(t, reply(200, `{"status":"success","month":"feb26","loans_parsed":12,"files_generated":["masters.json","feb26.json"]}`))
		res, err := newClient(b).UploadCSV(context.Background(), "tok", "loans_feb26.csv", strings.NewReader("a,b\n1,2\n"), "feb26")
		require.NoError(t, err)
		assert.Equal(t, 12, res.LoansParsed)
		assert.Equal(t, []string{"masters.json", "feb26.json"}, res.FilesGenerated)

		r := b.last()
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload-csv", r.URL.Path)
		assert.Equal(t, "feb26", r.URL.Query().Get("month_name"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, h, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "loans_feb26.csv", h.Filename)
		content, _ := io.ReadAll(f)
		assert.Equal(t, "a,b\n1,2\n", string(content))
	})

	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", 400, `{"detail":"Missing column: EMI"}`, "Missing column: EMI"},
		{"error", 400, `{"error":"CSV validation failed","details":"EMI missing"}`, "CSV validation failed"},
		{"detail list", 422, `{"detail":[{"loc":["query"],"msg":"field required"},{"msg":"bad month"}]}`, "field required; bad month"},
		{"empty", 400, `{}`, "Upload failed"},
		{"not json", 502, `Bad Gateway`, "Upload failed"},
		{"server", 500, `{"detail":"Processing error: boom"}`, "Processing error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, reply(tt.status, tt.body))
			_, err := newClient(b).UploadCSV(context.Background(), "", "x.csv", strings.NewReader(""), "feb26")
			var ve *loandash.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.want, ve.Message)
			assert.Equal(t, tt.status, ve.Status)
		})
	}

	t.Run("401 is unauthorized", func(t *testing.T) {
		b := newBackend(t, reply(401, `{"detail":"Token expired"}`))
		_, err := newClient(b).UploadCSV(context.Background(), "tok", "x.csv", strings.NewReader(""), "feb26")
		assert.ErrorIs(t, err, loandash.ErrUnauthorized)
	})
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		b := newBackend(t, reply(200, `{"message":"Login successful","user_id":"u1","email":"a@b.c","token":"tok"}`))
		res, err := newClient(b).Login(context.Background(), "a@b.c", "secret")
		require.NoError(t, err)
		assert.Equal(t, "tok", res.Token)
		assert.JSONEq(t, `{"email":"a@b.c","password":"secret"}`, string(b.bodies[0]))
	})

	t.Run("rejected", func(t *testing.T) {
		b := newBackend(t, reply(401, `{"detail":"Invalid email or password"}`))
		_, err := newClient(b).Login(context.Background(), "a@b.c", "bad")
		var ve *loandash.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "Invalid email or password", ve.Message)
	})
}

func TestSignup(t *testing.T) {
	b := newBackend(t, reply(201, `{"message":"User created successfully","user_id":"u1","email":"a@b.c","token":"tok"}`))
	res, err := newClient(b).Signup(context.Background(), "a@b.c", "secret", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, "/api/auth/signup", b.last().URL.Path)
	assert.JSONEq(t, `{"email":"a@b.c","password":"secret","confirm_password":"secret"}`, string(b.bodies[0]))
}

func TestLogout(t *testing.T) {
	b := newBackend(t, reply(200, `{"message":"Logged out successfully"}`))
	c := newClient(b)
	require.NoError(t, c.Logout(context.Background(), ""))
	assert.Equal(t, 0, b.count())
	require.NoError(t, c.Logout(context.Background(), "tok"))
	assert.Equal(t, http.MethodPost, b.last().Method)
}

func TestFiles(t *testing.T) {
	b := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ots-pdfs":
			reply(200, `{"pdfs":["HDFC_ots.pdf","ICICI_ots.pdf"]}`)(w, r)
		case "/api/ots-pdfs/HDFC_ots.pdf":
			io.WriteString(w, "%PDF-1.4")
		default:
			reply(404, `{"detail":"Projection file not found for mar26"}`)(w, r)
		}
	})
	c := newClient(b)

	names, err := c.ListOTSLetters(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"HDFC_ots.pdf", "ICICI_ots.pdf"}, names)

	var buf bytes.Buffer
	require.NoError(t, c.DownloadOTSLetter(context.Background(), "tok", "HDFC_ots.pdf", &buf))
	assert.Equal(t, "%PDF-1.4", buf.String())

	err = c.DownloadProjection(context.Background(), "tok", "mar26", &buf)
	var se *loandash.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Status)
	assert.Equal(t, "/api/projections/mar26", b.last().URL.Path)
}

func TestHealth(t *testing.T) {
	b := newBackend(t, reply(200, `{"status":"ok","service":"Debt Empire API","version":"2.0"}`))
	h, err := newClient(b).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Empty(t, b.last().Header.Get("Authorization"))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	b := newBackend(t, reply(401, `{}`))
	c := New(Config{BaseURL: b.URL}, nil, m)

	_, _ = c.FetchPortfolio(context.Background(), "tok")
	_, _ = c.FetchPortfolio(context.Background(), "tok")
	_, _ = c.CheckAuth(context.Background(), "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("fetch_portfolio", outcomeUnauthorized)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requests.WithLabelValues("check_auth", outcomeUnauthorized)))
}

func TestRateLimit(t *testing.T) {
	b := newBackend(t, reply(200, `{"status":"ok"}`))
	c := New(Config{BaseURL: b.URL, RateLimit: 1, Burst: 1}, nil, nil)

	_, err := c.Health(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Health(ctx)
	var ne *loandash.NetworkError
	assert.ErrorAs(t, err, &ne, "the limiter refuses to wait past the deadline")
	assert.Equal(t, 1, b.count())
}
