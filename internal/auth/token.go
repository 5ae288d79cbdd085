package auth

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// TokenKey is the storage key the access token record lives under
const TokenKey = "igdb_access_token"

// Token is a bearer token and the instant it stops being accepted
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token can still be presented at now.
func (t Token) Valid(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// OAuth2 converts the token for use with an oauth2.Transport
func (t Token) OAuth2() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: t.Value,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}
}

// tokenRecord is the persisted shape of a Token
type tokenRecord struct {
	Token          string    `json:"token"`
	ExpirationDate time.Time `json:"expirationDate"`
}

func encodeToken(t Token) ([]byte, error) {
	return json.Marshal(tokenRecord{Token: t.Value, ExpirationDate: t.ExpiresAt.UTC()})
}

// decodeToken turns stored bytes back into a Token.
// Undecodable or expired records are reported as absent, never as errors.
func decodeToken(data []byte, now time.Time) *Token {
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warn().Err(err).Msg("discarding undecodable stored token")
		return nil
	}

	t := Token{Value: rec.Token, ExpiresAt: rec.ExpirationDate}
	if !t.Valid(now) {
		return nil
	}
	return &t
}
