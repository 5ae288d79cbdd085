// Package devstub is a local stand-in for the Twitch token endpoint, the IGDB
// query API and the IGDB image CDN. Tests and cmd/devstub run it so the
// catalog client can be exercised without real credentials.
package devstub

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erauner12/gamesdb/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Paths the stub serves, relative to its base URL
const (
	TokenPath = "/oauth2/token"
	APIPath   = "/v4"
	ImagePath = "/igdb/image/upload"
)

// Config configures the stub
type Config struct {
	ClientID     string
	ClientSecret string
	TokenTTL     time.Duration // lifetime of issued tokens (default 1h)
	TokenDelay   time.Duration // artificial latency of the token endpoint

	Games     int // fixture counts (defaults 23, 12, 4)
	Companies int
	Engines   int
}

// Server is the stub. Create it with New and mount Routes().
type Server struct {
	cfg    Config
	secret []byte
	data   fixtures

	generation atomic.Int64 // bumped by Rotate; tokens of older generations are rejected
	failTokens atomic.Int32

	tokenRequests atomic.Int64
	queryRequests atomic.Int64
	imageRequests atomic.Int64

	mu          sync.Mutex
	lastQueries map[string]string
}

// New creates a stub
func New(cfg Config) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Games <= 0 {
		cfg.Games = 23
	}
	if cfg.Companies <= 0 {
		cfg.Companies = 12
	}
	if cfg.Engines <= 0 {
		cfg.Engines = 4
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("devstub: read random secret: %v", err))
	}

	return &Server{
		cfg:         cfg,
		secret:      secret,
		data:        newFixtures(cfg.Games, cfg.Companies, cfg.Engines),
		lastQueries: make(map[string]string),
	}
}

// Routes returns the stub's HTTP handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post(TokenPath, s.issueToken)

	r.Route(APIPath, func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/games", s.serveGames)
		r.Post("/companies", s.serveCompanies)
		r.Post("/game_engines", s.serveEngines)
	})

	r.Get(ImagePath+"/{size}/{file}", s.serveImage)
	return r
}

// Rotate invalidates every token issued so far
func (s *Server) Rotate() {
	gen := s.generation.Add(1)
	log.Info().Int64("generation", gen).Msg("devstub: tokens rotated")
}

// FailTokenRequests makes the next n token requests fail with 401
func (s *Server) FailTokenRequests(n int) {
	s.failTokens.Store(int32(n))
}

// TokenRequests is the number of token requests received
func (s *Server) TokenRequests() int64 { return s.tokenRequests.Load() }

// QueryRequests is the number of API query requests received, authorized or not
func (s *Server) QueryRequests() int64 { return s.queryRequests.Load() }

// ImageRequests is the number of image requests received
func (s *Server) ImageRequests() int64 { return s.imageRequests.Load() }

// LastQuery returns the last query body received for an endpoint ("games", ...)
func (s *Server) LastQuery(endpoint string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQueries[endpoint]
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// issueToken handles POST /oauth2/token with a JSON or form body
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	s.tokenRequests.Add(1)
	if s.cfg.TokenDelay > 0 {
		select {
		case <-time.After(s.cfg.TokenDelay):
		case <-r.Context().Done():
			return
		}
	}

	var req tokenRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid form body")
			return
		}
		req = tokenRequest{
			ClientID:     r.PostForm.Get("client_id"),
			ClientSecret: r.PostForm.Get("client_secret"),
			GrantType:    r.PostForm.Get("grant_type"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if n := s.failTokens.Load(); n > 0 && s.failTokens.CompareAndSwap(n, n-1) {
		log.Warn().Msg("devstub: failing token request on purpose")
		writeMessage(w, http.StatusUnauthorized, "invalid client secret")
		return
	}
	if req.GrantType != "client_credentials" {
		writeMessage(w, http.StatusBadRequest, "unsupported grant type")
		return
	}
	if req.ClientID != s.cfg.ClientID || req.ClientSecret != s.cfg.ClientSecret {
		writeMessage(w, http.StatusUnauthorized, "invalid client secret")
		return
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": req.ClientID,
		"gen": s.generation.Load(),
		"iat": now.Unix(),
		"exp": now.Add(s.cfg.TokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		log.Error().Err(err).Msg("devstub: failed to sign token")
		writeMessage(w, http.StatusInternalServerError, "token signing failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.cfg.TokenTTL / time.Second),
		TokenType:   "bearer",
	})
}

// requireToken rejects API requests without a current bearer token and Client-ID
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.queryRequests.Add(1)

		clientID := r.Header.Get("Client-ID")
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || clientID == "" {
			writeMessage(w, http.StatusUnauthorized, "Authorization Failure. Have you tried:")
			return
		}
		if err := s.verify(raw, clientID); err != nil {
			log.Debug().Err(err).Msg("devstub: rejected token")
			writeMessage(w, http.StatusUnauthorized, "Authorization Failure. Have you tried:")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) verify(raw, clientID string) error {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("unexpected claims")
	}
	if sub, _ := claims.GetSubject(); sub != clientID {
		return fmt.Errorf("token issued to %q, used by %q", sub, clientID)
	}
	gen, _ := claims["gen"].(float64)
	if int64(gen) != s.generation.Load() {
		return errors.New("token was rotated")
	}
	return nil
}

func (s *Server) serveGames(w http.ResponseWriter, r *http.Request) {
	serveQuery(s, w, r, "games", s.data.games, gameRecord)
}

func (s *Server) serveCompanies(w http.ResponseWriter, r *http.Request) {
	serveQuery(s, w, r, "companies", s.data.companies, companyRecord)
}

func (s *Server) serveEngines(w http.ResponseWriter, r *http.Request) {
	serveQuery(s, w, r, "game_engines", s.data.engines, engineRecord)
}

func serveQuery[T any](s *Server, w http.ResponseWriter, r *http.Request, endpoint string, items []T, rec func(T) record) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unreadable body")
		return
	}

	s.mu.Lock()
	s.lastQueries[endpoint] = string(body)
	s.mu.Unlock()

	q, err := parseQuery(string(body))
	if err != nil {
		writeSyntaxError(w, err)
		return
	}
	page, err := selectPage(items, rec, q)
	if err != nil {
		writeSyntaxError(w, err)
		return
	}

	log.Debug().Str("endpoint", endpoint).Int("limit", q.Limit).Int("offset", q.Offset).Int("count", len(page)).Msg("devstub: query served")
	writeJSON(w, http.StatusOK, page)
}

// serveImage handles GET /igdb/image/upload/t_<size>/<id>.jpg
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	s.imageRequests.Add(1)

	size, ok := strings.CutPrefix(chi.URLParam(r, "size"), "t_")
	id, isJPEG := strings.CutSuffix(chi.URLParam(r, "file"), ".jpg")
	if !ok || !isJPEG || id == "" || !catalog.ImageSize(size).Valid() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	_, _ = w.Write(ImageBytes(id, catalog.ImageSize(size)))
}

// ImageBytes is the body served for an image
func ImageBytes(id string, size catalog.ImageSize) []byte {
	// JPEG SOI marker followed by a readable tag
	return append([]byte{0xFF, 0xD8, 0xFF}, []byte(fmt.Sprintf("devstub:%s:%s", size, id))...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"status": status, "message": msg})
}

// writeSyntaxError mimics the API's error list
func writeSyntaxError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, []map[string]any{{
		"title":  "Syntax Error",
		"status": http.StatusBadRequest,
		"cause":  err.Error(),
	}})
}
