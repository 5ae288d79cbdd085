package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/erauner12/gamesdb/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a failed response is kept for the error
const maxErrorBody = 512

// SessionProvider hands out the ready session and replaces it when the API
// rejects its token
type SessionProvider interface {
	Session(ctx context.Context) (*session.Session, error)
	Renew(ctx context.Context, stale *session.Session) (*session.Session, error)
}

// Limits throttles outbound requests. Zero values disable the limit.
type Limits struct {
	RequestsPerSecond float64
	Burst             int
	MaxOpenRequests   int64
}

// HTTPClient executes catalog requests.
//
// Every request gets an X-Correlation-ID and a child logger. Authenticated
// clients send requests through the current session; a 401 renews the session
// and retries once. Non-2xx responses are returned as *TransportError.
type HTTPClient struct {
	sessions SessionProvider
	plain    *http.Client // used when sessions is nil
	limiter  *rate.Limiter
	open     *semaphore.Weighted
}

// NewHTTPClient creates a client authenticated through sessions
func NewHTTPClient(sessions SessionProvider, limits Limits) *HTTPClient {
	c := newHTTPClient(limits)
	c.sessions = sessions
	return c
}

// NewPublicHTTPClient creates a client for endpoints that need no
// credentials, such as the image CDN
func NewPublicHTTPClient(httpClient *http.Client, limits Limits) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := newHTTPClient(limits)
	c.plain = httpClient
	return c
}

func newHTTPClient(limits Limits) *HTTPClient {
	c := &HTTPClient{}
	if limits.RequestsPerSecond > 0 {
		burst := limits.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}
	if limits.MaxOpenRequests > 0 {
		c.open = semaphore.NewWeighted(limits.MaxOpenRequests)
	}
	return c
}

// Do executes req. On success the caller owns resp.Body and must close it.
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	correlationID := uuid.New().String()

	logger := log.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("correlationId", correlationID).
		Logger()

	body, err := readBody(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	return c.doWithRetry(ctx, req, body, &logger, correlationID, 0)
}

func (c *HTTPClient) doWithRetry(ctx context.Context, req *http.Request, body []byte, logger *zerolog.Logger, correlationID string, retryCount int) (*http.Response, error) {
	reqClone, err := cloneRequest(ctx, req, body)
	if err != nil {
		return nil, fmt.Errorf("failed to clone request: %w", err)
	}
	reqClone.Header.Set("X-Correlation-ID", correlationID)

	httpClient := c.plain
	var sess *session.Session
	if c.sessions != nil {
		sess, err = c.sessions.Session(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("no session available")
			return nil, err
		}
		httpClient = sess.HTTPClient()
		logger.Debug().Str("sessionId", sess.ID).Msg("using session")
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return nil, c.transportError(req, 0, err)
	}

	start := time.Now()
	resp, err := httpClient.Do(reqClone)
	duration := time.Since(start)

	if err != nil {
		release()
		if ctx.Err() != nil {
			logger.Debug().Err(err).Dur("duration", duration).Msg("HTTP request cancelled")
			return nil, c.transportError(req, 0, ctx.Err())
		}
		logger.Error().Err(err).Dur("duration", duration).Msg("HTTP request failed")
		return nil, c.transportError(req, 0, err)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("retryCount", retryCount).
		Msg("HTTP request completed")

	switch {
	case resp.StatusCode == http.StatusUnauthorized && sess != nil && retryCount == 0:
		drain(resp)
		release()
		return c.handleUnauthorized(ctx, req, body, sess, logger, correlationID)

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		logger.Warn().
			Dur("retryAfter", retryAfter).
			Str("rateLimitRemaining", resp.Header.Get("X-RateLimit-Remaining")).
			Msg("rate limited")
		drain(resp)
		release()
		terr := c.transportError(req, resp.StatusCode, nil)
		terr.RetryAfter = retryAfter
		return nil, terr

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := readErrorBody(resp)
		release()
		logger.Warn().Int("status", resp.StatusCode).Str("body", msg).Msg("HTTP request rejected")
		var cause error
		if msg != "" {
			cause = errors.New(msg)
		}
		return nil, c.transportError(req, resp.StatusCode, cause)
	}

	resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	return resp, nil
}

// handleUnauthorized renews the session after the API rejected its token and
// retries the request once
func (c *HTTPClient) handleUnauthorized(ctx context.Context, req *http.Request, body []byte, stale *session.Session, logger *zerolog.Logger, correlationID string) (*http.Response, error) {
	logger.Warn().Str("sessionId", stale.ID).Msg("401 Unauthorized - renewing session and retrying")

	if _, err := c.sessions.Renew(ctx, stale); err != nil {
		return nil, err
	}
	return c.doWithRetry(ctx, req, body, logger, correlationID, 1)
}

// acquire waits for the rate limiter and an open request slot
func (c *HTTPClient) acquire(ctx context.Context) (release func(), err error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.open == nil {
		return func() {}, nil
	}
	if err := c.open.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var released bool
	return func() {
		if !released {
			released = true
			c.open.Release(1)
		}
	}, nil
}

func (c *HTTPClient) transportError(req *http.Request, status int, err error) *TransportError {
	return &TransportError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: status,
		Err:        err,
	}
}

// releasingBody gives the open request slot back once the caller is done
// with the body
type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// cloneRequest creates a copy of req bound to ctx with a fresh body reader
func cloneRequest(ctx context.Context, req *http.Request, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	reqClone, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), reader)
	if err != nil {
		return nil, err
	}

	// Credentials come from the session
	for k, v := range req.Header {
		if k == "Authorization" || k == "Client-Id" {
			continue
		}
		reqClone.Header[k] = v
	}
	return reqClone, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(b))
}

// parseRetryAfter parses the Retry-After header
// Supports both integer seconds and HTTP-date format
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
