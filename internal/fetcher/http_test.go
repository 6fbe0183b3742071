package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-cli/internal/resilience"
)

func newTestFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = "test-agent"
	}
	opts.Timeout = 5 * time.Second
	opts.RetryBase = time.Millisecond
	return NewHTTPFetcher(opts)
}

func TestGet_SendsConfiguredHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	f := newTestFetcher(HTTPOptions{Header: http.Header{"Accept": {"application/json"}}})
	resp, err := f.Get(context.Background(), srv.URL+"/data")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(resp.Body))
}

func TestGet_RejectsNonHTTPScheme(t *testing.T) {
	_, err := newTestFetcher(HTTPOptions{}).Get(context.Background(), "file:///etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestGet_ReturnsClientErrorsAsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/gone", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		w.WriteHeader(http.StatusGone)
		w.Write([]byte("gone"))
	}))
	defer srv.Close()

	resp, err := newTestFetcher(HTTPOptions{}).Get(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, srv.URL+"/gone", resp.URL)
	assert.Equal(t, "text/html; charset=euc-kr", resp.ContentType())
	assert.Equal(t, "gone", string(resp.Body))
}

func TestGet_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := newTestFetcher(HTTPOptions{MaxBodyBytes: 16})
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	f = newTestFetcher(HTTPOptions{MaxBodyBytes: 64})
	resp, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 64)
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("success"))
	}))
	defer srv.Close()

	resp, err := newTestFetcher(HTTPOptions{MaxRetries: 3}).Get(context.Background(), srv.URL+"/retry")
	require.NoError(t, err)
	assert.Equal(t, "success", string(resp.Body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryExhausted_IsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(HTTPOptions{MaxRetries: 2}).Get(context.Background(), srv.URL+"/fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all retries exhausted")
	assert.True(t, resilience.IsTransient(err))
}

func TestDoWithRetry_429SlowsHost(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	lim := NewAdaptiveLimiter(100, 100)
	f := newTestFetcher(HTTPOptions{RateLimiters: map[string]*AdaptiveLimiter{u.Host: lim}})

	resp, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	// halved on 429, then raised 20% on success
	assert.InDelta(t, 60.0, float64(lim.Limit()), 0.1)
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(HTTPOptions{}).Get(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLimiterFor_UnknownHostIsReused(t *testing.T) {
	f := newTestFetcher(HTTPOptions{})
	u, _ := url.Parse("https://www.example.go.kr/board")
	a := f.limiterFor(u)
	b := f.limiterFor(u)
	assert.Same(t, a, b)
	assert.Equal(t, defaultHostRate, a.Limit())
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, defaultUserAgent, f.opts.UserAgent)
	assert.Equal(t, defaultMaxRetries, f.opts.MaxRetries)
	assert.Equal(t, int64(defaultMaxBodyBytes), f.opts.MaxBodyBytes)
	assert.Contains(t, f.limiters, "apis.data.go.kr")
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)
	lim.OnSuccess()
	assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)
	for range 10 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)

	for range 10 {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("abcd"), 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	_, err = ReadLimited(strings.NewReader("abcde"), 4)
	assert.ErrorIs(t, err, ErrTooLarge)
}
