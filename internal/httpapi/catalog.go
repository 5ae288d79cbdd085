package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/erauner12/gamesdb/internal/catalog"
	"github.com/erauner12/gamesdb/internal/client"
	"github.com/erauner12/gamesdb/internal/query"
	"github.com/go-chi/chi/v5"
)

type catalogResponse struct {
	Entity string `json:"entity"`
	Page   int    `json:"page"`
	Items  any    `json:"items"`
}

// GET /v1/catalog/{entity}?page=&filter=&search=
// page=0 fetches without pagination
func (s *Server) ListCatalog(w http.ResponseWriter, r *http.Request) {
	entity, err := catalog.EntityByName(chi.URLParam(r, "entity"))
	if err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 0 {
			writeError(w, r, badRequest("page must be a non-negative integer"))
			return
		}
	}

	req := s.Fetcher.Page(entity, page)
	if filter := r.URL.Query().Get("filter"); filter != "" {
		req.Filter = filter
	}
	req.Search = r.URL.Query().Get("search")
	if err := req.Validate(); err != nil {
		writeError(w, r, badRequest(err.Error()))
		return
	}

	items, err := fetchEntity(r.Context(), s.Fetcher, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogResponse{Entity: entity.Name, Page: page, Items: items})
}

func fetchEntity(ctx context.Context, f *client.Fetcher, req query.PageRequest) (any, error) {
	switch req.Entity.Name {
	case catalog.Companies.Name:
		return client.FetchPage[catalog.Company](ctx, f, req)
	case catalog.GameEngines.Name:
		return client.FetchPage[catalog.GameEngine](ctx, f, req)
	default:
		return client.FetchPage[catalog.Game](ctx, f, req)
	}
}

// GET /v1/images/{size}/{imageID}
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	size := catalog.ImageSize(chi.URLParam(r, "size"))
	data, err := s.Images.Fetch(r.Context(), chi.URLParam(r, "imageID"), size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
