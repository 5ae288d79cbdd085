package httpapi

import (
	"net/http"
	"time"

	"github.com/erauner12/gamesdb/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionResponse describes the catalog session without exposing the token
type SessionResponse struct {
	Phase     session.Phase `json:"phase"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func sessionResponse(st session.State) SessionResponse {
	resp := SessionResponse{Phase: st.Phase}
	if st.Session != nil {
		exp := st.Session.Token().ExpiresAt.UTC()
		resp.ExpiresAt = &exp
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// GET /v1/session
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse(s.Sessions.State()))
}

// POST /v1/session/configure
// Foreground re-entry: joins a running configuration attempt or starts one.
// A failure is also published on the discover feed.
func (s *Server) ConfigureSession(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if err := s.Feed.Foreground(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	st := s.Sessions.State()
	logger.Info().Str("phase", st.Phase.String()).Msg("catalog session configured")
	writeJSON(w, http.StatusOK, sessionResponse(st))
}

// DELETE /v1/session
// Drops the live session; the stored token is kept for the next configure
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	s.Sessions.Reset()
	log.Ctx(r.Context()).Info().Msg("catalog session reset")
	w.WriteHeader(http.StatusNoContent)
}
