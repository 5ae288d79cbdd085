package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erauner12/gamesdb/internal/auth"
	"github.com/erauner12/gamesdb/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessions hands out sessions whose token changes on every renewal
type fakeSessions struct {
	mu       sync.Mutex
	current  *session.Session
	renewals int
	err      error
}

func newFakeSessions() *fakeSessions {
	f := &fakeSessions{}
	f.current = f.build(0)
	return f
}

func (f *fakeSessions) build(n int) *session.Session {
	return session.New(
		auth.Token{Value: fmt.Sprintf("token-%d", n), ExpiresAt: time.Now().Add(time.Hour)},
		session.Options{ClientID: "test-client", RequestTimeout: time.Second, ResourceTimeout: 5 * time.Second},
	)
}

func (f *fakeSessions) Session(ctx context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.current, nil
}

func (f *fakeSessions) Renew(ctx context.Context, stale *session.Session) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stale == f.current {
		f.renewals++
		f.current = f.build(f.renewals)
	}
	return f.current, nil
}

func TestHTTPClient_InjectsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-0", r.Header.Get("Authorization"))
		assert.Equal(t, "test-client", r.Header.Get("Client-ID"))
		assert.NotEmpty(t, r.Header.Get("X-Correlation-ID"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewHTTPClient(newFakeSessions(), Limits{})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPClient_RenewsOn401AndRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "fields name;", string(body), "body must be resent on retry")

		if r.Header.Get("Authorization") == "Bearer token-0" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sessions := newFakeSessions()
	c := NewHTTPClient(sessions, Limits{})
	req, _ := http.NewRequest(http.MethodPost, server.URL, strings.NewReader("fields name;"))

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, sessions.renewals)
}

func TestHTTPClient_Persistent401IsTransportError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	sessions := newFakeSessions()
	c := NewHTTPClient(sessions, Limits{})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := c.Do(context.Background(), req)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusUnauthorized, terr.StatusCode)
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")
	assert.Equal(t, 1, sessions.renewals)
}

func TestHTTPClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		header     map[string]string
		body       string
		retryAfter time.Duration
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "bad request", status: http.StatusBadRequest, body: `[{"title":"Syntax Error"}]`},
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "2"}, retryAfter: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewHTTPClient(newFakeSessions(), Limits{})
			req, _ := http.NewRequest(http.MethodPost, server.URL, nil)

			_, err := c.Do(context.Background(), req)

			var terr *TransportError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.status, terr.StatusCode)
			assert.Equal(t, tt.retryAfter, terr.RetryAfter)
			if tt.body != "" && tt.status != http.StatusTooManyRequests {
				assert.Contains(t, terr.Error(), tt.body)
			}
			assert.Equal(t, int32(1), calls.Load(), "no automatic retry")
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewHTTPClient(newFakeSessions(), Limits{})
	req, _ := http.NewRequest(http.MethodGet, url, nil)

	_, err := c.Do(context.Background(), req)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Zero(t, terr.StatusCode)
	assert.Error(t, terr.Err)
}

func TestHTTPClient_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewHTTPClient(newFakeSessions(), Limits{})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := c.Do(ctx, req)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient_SessionErrorPropagates(t *testing.T) {
	sessions := newFakeSessions()
	sessions.err = session.ErrConfigurationTimeout

	c := NewHTTPClient(sessions, Limits{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)

	_, err := c.Do(context.Background(), req)
	assert.ErrorIs(t, err, session.ErrConfigurationTimeout)

	var terr *TransportError
	assert.False(t, errors.As(err, &terr))
}

func TestHTTPClient_MaxOpenRequests(t *testing.T) {
	var open, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := open.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		open.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewHTTPClient(newFakeSessions(), Limits{MaxOpenRequests: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
			resp, err := c.Do(context.Background(), req)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestHTTPClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewHTTPClient(newFakeSessions(), Limits{RequestsPerSecond: 20, Burst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		resp, err := c.Do(context.Background(), req)
		require.NoError(t, err)
		resp.Body.Close()
	}
	// burst 1 at 20/s: the 2nd and 3rd requests wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	assert.Zero(t, parseRetryAfter("-3"))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))

	d := parseRetryAfter(time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat))
	assert.Greater(t, d, 8*time.Second)
	assert.LessOrEqual(t, d, 10*time.Second)
}
