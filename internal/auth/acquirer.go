package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Acquirer obtains a fresh access token from the authentication endpoint.
// It makes a single attempt; retry policy belongs to the caller.
type Acquirer interface {
	Acquire(ctx context.Context) (Token, error)
}

// ClientCredentialsAcquirer requests tokens with the client_credentials grant
type ClientCredentialsAcquirer struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	// Now returns the current time; overridden in tests
	Now func() time.Time
}

var _ Acquirer = (*ClientCredentialsAcquirer)(nil)

// NewClientCredentialsAcquirer creates an acquirer for endpoint
func NewClientCredentialsAcquirer(endpoint, clientID, clientSecret string, httpClient *http.Client) *ClientCredentialsAcquirer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClientCredentialsAcquirer{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
		Now:          time.Now,
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Acquire performs one round-trip to the token endpoint
func (a *ClientCredentialsAcquirer) Acquire(ctx context.Context) (Token, error) {
	body, err := json.Marshal(tokenRequest{
		ClientID:     a.clientID,
		ClientSecret: a.clientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return Token{}, &AuthError{Reason: ReasonMalformed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return Token{}, &AuthError{Reason: ReasonUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", a.endpoint).Msg("token request failed")
		return Token{}, &AuthError{Reason: ReasonUnreachable, Err: err}
	}
	defer resp.Body.Close()

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("token request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		authErr := &AuthError{Reason: ReasonRejected, StatusCode: resp.StatusCode}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if msg = bytes.TrimSpace(msg); len(msg) > 0 {
			authErr.Err = errors.New(string(msg))
		}
		log.Warn().Int("status", resp.StatusCode).Msg("token endpoint rejected credentials")
		return Token{}, authErr
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, &AuthError{Reason: ReasonMalformed, StatusCode: resp.StatusCode, Err: err}
	}
	if tr.AccessToken == "" || tr.ExpiresIn <= 0 {
		return Token{}, &AuthError{
			Reason:     ReasonMalformed,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("missing access_token or expires_in"),
		}
	}

	token := Token{
		Value:     tr.AccessToken,
		ExpiresAt: a.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}

	log.Info().Time("expiresAt", token.ExpiresAt).Msg("acquired new access token")
	return token, nil
}
