// Package session owns the process-wide authenticated catalog session.
package session

import (
	"net"
	"net/http"
	"time"

	"github.com/erauner12/gamesdb/internal/auth"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Session is an authenticated HTTP client bound to one access token.
// It is never mutated after construction; a new token means a new Session.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`

	token auth.Token
	http  *http.Client
}

// Options configures how sessions are built
type Options struct {
	ClientID string

	// RequestTimeout bounds connecting and waiting for response headers
	RequestTimeout time.Duration
	// ResourceTimeout bounds the whole exchange including the body
	ResourceTimeout time.Duration

	// Base overrides the underlying transport (tests)
	Base http.RoundTripper
}

// New builds a session whose requests carry Client-ID and a bearer token
func New(token auth.Token, opts Options) *Session {
	base := opts.Base
	if base == nil {
		base = newBaseTransport(opts.RequestTimeout)
	}

	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(token.OAuth2()),
		Base:   &clientIDTransport{clientID: opts.ClientID, base: base},
	}

	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		ExpiresAt: token.ExpiresAt,
		token:     token,
		http:      &http.Client{Transport: transport, Timeout: opts.ResourceTimeout},
	}
}

// HTTPClient returns the authenticated client
func (s *Session) HTTPClient() *http.Client {
	return s.http
}

// Token returns the token the session was built with
func (s *Session) Token() auth.Token {
	return s.token
}

func newBaseTransport(requestTimeout time.Duration) http.RoundTripper {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: requestTimeout, KeepAlive: 30 * time.Second}).DialContext
	t.ResponseHeaderTimeout = requestTimeout
	return t
}

// clientIDTransport adds the Client-ID header IGDB requires next to the bearer token
type clientIDTransport struct {
	clientID string
	base     http.RoundTripper
}

func (t *clientIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	clone.Header.Set("Client-ID", t.clientID)
	return t.base.RoundTrip(clone)
}
