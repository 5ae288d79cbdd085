package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erauner12/gamesdb/internal/catalog"
	"github.com/erauner12/gamesdb/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// companiesServer answers every query with count companies
func companiesServer(t *testing.T, count int, seen func(path, body string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			seen(r.URL.Path, string(body))
		}
		items := make([]catalog.Company, count)
		for i := range items {
			items[i] = catalog.Company{ID: i + 1, Name: fmt.Sprintf("Company %d", i+1)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	}))
}

func TestFetcher_Companies(t *testing.T) {
	var path, body string
	server := companiesServer(t, 3, func(p, b string) { path, body = p, b })
	defer server.Close()

	f, err := NewFetcher(NewHTTPClient(newFakeSessions(), Limits{}), server.URL+"/v4", 10)
	require.NoError(t, err)

	companies, err := f.Companies(context.Background(), 2)
	require.NoError(t, err)

	assert.Len(t, companies, 3)
	assert.Equal(t, "Company 1", companies[0].Name)
	assert.Equal(t, "/v4/companies", path)
	assert.Equal(t, "where logo != null;\nfields name,published,developed,logo.image_id;\nlimit 10;\noffset 10;", body)
}

func TestFetchPage_CustomRequest(t *testing.T) {
	var body string
	server := companiesServer(t, 1, func(_, b string) { body = b })
	defer server.Close()

	f, err := NewFetcher(NewHTTPClient(newFakeSessions(), Limits{}), server.URL, 10)
	require.NoError(t, err)

	req := query.PageRequest{Entity: catalog.Games, Fields: []string{"name"}, Search: "halo"}
	_, err = FetchPage[catalog.Game](context.Background(), f, req)
	require.NoError(t, err)
	assert.Equal(t, "search \"halo\";\nfields name;", body)
}

func TestFetchPage_DecodingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"not a list"}`))
	}))
	defer server.Close()

	f, err := NewFetcher(NewHTTPClient(newFakeSessions(), Limits{}), server.URL, 10)
	require.NoError(t, err)

	_, err = f.Games(context.Background(), 1)

	var derr *DecodingError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "games", derr.Target)
}

func TestFetchPage_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	f, err := NewFetcher(NewHTTPClient(newFakeSessions(), Limits{}), server.URL, 10)
	require.NoError(t, err)

	_, err = f.GameEngines(context.Background(), 1)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusForbidden, terr.StatusCode)
	assert.True(t, strings.HasSuffix(terr.URL, "/game_engines"))
}

func TestNewFetcher_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "api.igdb.com/v4", "ftp://host", "http://%zz"} {
		_, err := NewFetcher(nil, raw, 10)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}

	_, err := NewFetcher(nil, "https://api.igdb.com/v4", 0)
	assert.Error(t, err)
}

func TestPager_HasMoreFromFetcher(t *testing.T) {
	tests := []struct {
		returned int
		hasMore  bool
	}{
		{returned: 10, hasMore: true},
		{returned: 7, hasMore: false},
		{returned: 0, hasMore: false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d items", tt.returned), func(t *testing.T) {
			server := companiesServer(t, tt.returned, nil)
			defer server.Close()

			f, err := NewFetcher(NewHTTPClient(newFakeSessions(), Limits{}), server.URL, 10)
			require.NoError(t, err)

			pager := NewPager[catalog.Company](f.PageSize(), f.Companies)
			_, err = pager.LoadFirst(context.Background())
			require.NoError(t, err)

			cursor := pager.Cursor()
			assert.Equal(t, tt.hasMore, cursor.HasMore)
			assert.Equal(t, 1, cursor.CurrentPage)
			assert.False(t, cursor.InFlight)
		})
	}
}
