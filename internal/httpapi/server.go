// Package httpapi exposes the catalog client over a small local JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/erauner12/gamesdb/internal/auth"
	"github.com/erauner12/gamesdb/internal/client"
	"github.com/erauner12/gamesdb/internal/discover"
	"github.com/erauner12/gamesdb/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Sessions is the part of the session configurator the API drives.
// Configuration goes through the feed so failures reach its state.
type Sessions interface {
	State() session.State
	Reset()
}

// Server holds the handlers' dependencies
type Server struct {
	Sessions Sessions
	Fetcher  *client.Fetcher
	Images   *client.ImageFetcher
	Feed     *discover.Feed
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.GetSession)
		r.Post("/session/configure", s.ConfigureSession)
		r.Delete("/session", s.ResetSession)

		r.Get("/discover", s.GetDiscover)
		r.Post("/discover/refresh", s.RefreshDiscover)
		r.Post("/discover/games/more", s.LoadMoreGames)
		r.Post("/discover/games/seen/{index}", s.SeenGame)
		r.Get("/discover/games/{index}", s.SelectGame)

		r.Get("/catalog/{entity}", s.ListCatalog)
		r.Get("/images/{size}/{imageID}", s.GetImage)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeError maps the client's error taxonomy to a status code
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	logger := log.Ctx(r.Context())
	if status >= 500 {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("request rejected")
	}

	if retry := retryAfter(err); retry != "" {
		w.Header().Set("Retry-After", retry)
	}
	writeJSON(w, status, errorResponse{
		Error:         code,
		Message:       err.Error(),
		CorrelationID: GetCorrelationID(r.Context()),
	})
}

func classify(err error) (int, string) {
	var (
		transportErr *client.TransportError
		decodingErr  *client.DecodingError
		invalidInput *badRequestError
	)
	switch {
	case errors.As(err, &invalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, client.ErrInvalidURL):
		return http.StatusBadRequest, "invalid_url"
	case errors.Is(err, session.ErrConfigurationTimeout):
		return http.StatusGatewayTimeout, "configuration_timeout"
	case errors.Is(err, auth.ErrAuth):
		return http.StatusBadGateway, "auth_error"
	case errors.As(err, &transportErr):
		if transportErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, "not_found"
		}
		if transportErr.StatusCode == http.StatusTooManyRequests {
			return http.StatusTooManyRequests, "rate_limited"
		}
		if errors.Is(err, context.Canceled) {
			return 499, "cancelled"
		}
		return http.StatusBadGateway, "transport_error"
	case errors.As(err, &decodingErr):
		return http.StatusBadGateway, "decoding_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func retryAfter(err error) string {
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) && transportErr.RetryAfter > 0 {
		secs := int(transportErr.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		return strconv.Itoa(secs)
	}
	return ""
}

// badRequestError marks invalid input from the caller
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}
