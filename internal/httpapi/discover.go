package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GET /v1/discover
func (s *Server) GetDiscover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Feed.Snapshot())
}

// POST /v1/discover/refresh
func (s *Server) RefreshDiscover(w http.ResponseWriter, r *http.Request) {
	if err := s.Feed.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Feed.Snapshot())
}

type loadMoreResponse struct {
	Loaded  int  `json:"loaded"`
	HasMore bool `json:"hasMore"`
	Page    int  `json:"currentPage"`
}

// POST /v1/discover/games/more
func (s *Server) LoadMoreGames(w http.ResponseWriter, r *http.Request) {
	n, err := s.Feed.LoadMoreGames(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	cursor := s.Feed.Snapshot().GamesCursor
	writeJSON(w, http.StatusOK, loadMoreResponse{Loaded: n, HasMore: cursor.HasMore, Page: cursor.CurrentPage})
}

// POST /v1/discover/games/seen/{index}
// Reports that a game was displayed; starts a background page load when it is
// near the end of the list
func (s *Server) SeenGame(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The load outlives this request
	ctx := log.Ctx(r.Context()).WithContext(context.WithoutCancel(r.Context()))
	if handle := s.Feed.Prefetch(ctx, index); handle != nil {
		writeJSON(w, http.StatusAccepted, map[string]bool{"prefetching": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"prefetching": false})
}

// GET /v1/discover/games/{index}
func (s *Server) SelectGame(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	game, ok := s.Feed.SelectGame(index)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:         "not_found",
			Message:       "no game loaded at index " + strconv.Itoa(index),
			CorrelationID: GetCorrelationID(r.Context()),
		})
		return
	}
	writeJSON(w, http.StatusOK, game)
}

func indexParam(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		return 0, badRequest("index must be a non-negative integer")
	}
	return index, nil
}
