package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/erauner12/gamesdb/internal/catalog"
	"github.com/erauner12/gamesdb/internal/query"
	"github.com/rs/zerolog/log"
)

// Fetcher requests pages of catalog entities
type Fetcher struct {
	http     *HTTPClient
	baseURL  *url.URL
	pageSize int
}

// NewFetcher creates a fetcher for the API rooted at baseURL
func NewFetcher(httpClient *HTTPClient, baseURL string, pageSize int) (*Fetcher, error) {
	u, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	return &Fetcher{http: httpClient, baseURL: u, pageSize: pageSize}, nil
}

// PageSize is the limit used for paginated requests
func (f *Fetcher) PageSize() int {
	return f.pageSize
}

// FetchPage executes req and decodes the result list
func FetchPage[T any](ctx context.Context, f *Fetcher, req query.PageRequest) ([]T, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint := f.baseURL.JoinPath(req.Entity.Path).String()
	payload := req.Build()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidURL, endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "text/plain")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: http.MethodPost, URL: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn().Err(err).Str("entity", req.Entity.Name).Int("bytes", len(data)).Msg("unexpected response schema")
		return nil, &DecodingError{Target: req.Entity.Name, Err: err}
	}

	log.Debug().
		Str("entity", req.Entity.Name).
		Int("limit", req.Limit).
		Int("offset", req.Offset).
		Int("count", len(items)).
		Msg("fetched page")
	return items, nil
}

// Page returns the request for a 1-based page of the entity's list view
func (f *Fetcher) Page(entity catalog.Entity, page int) query.PageRequest {
	return query.ForPage(entity, f.pageSize, page)
}

// Games fetches a page of games. page < 1 fetches without pagination.
func (f *Fetcher) Games(ctx context.Context, page int) ([]catalog.Game, error) {
	return FetchPage[catalog.Game](ctx, f, f.Page(catalog.Games, page))
}

// Companies fetches a page of companies
func (f *Fetcher) Companies(ctx context.Context, page int) ([]catalog.Company, error) {
	return FetchPage[catalog.Company](ctx, f, f.Page(catalog.Companies, page))
}

// GameEngines fetches a page of game engines
func (f *Fetcher) GameEngines(ctx context.Context, page int) ([]catalog.GameEngine, error) {
	return FetchPage[catalog.GameEngine](ctx, f, f.Page(catalog.GameEngines, page))
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}
