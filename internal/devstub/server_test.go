package devstub

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/erauner12/gamesdb/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStub(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	stub := New(Config{ClientID: "cid", ClientSecret: "secret"})
	server := httptest.NewServer(stub.Routes())
	t.Cleanup(server.Close)
	return stub, server
}

func requestToken(t *testing.T, baseURL, id, secret string) (*http.Response, tokenResponse) {
	t.Helper()
	body, _ := json.Marshal(tokenRequest{ClientID: id, ClientSecret: secret, GrantType: "client_credentials"})
	resp, err := http.Post(baseURL+TokenPath, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var tr tokenResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	}
	return resp, tr
}

func query(t *testing.T, baseURL, token, endpoint, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, baseURL+APIPath+"/"+endpoint, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Client-ID", "cid")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestIssueToken(t *testing.T) {
	stub, server := newTestStub(t)

	resp, tr := requestToken(t, server.URL, "cid", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, tr.AccessToken)
	assert.Equal(t, int64(3600), tr.ExpiresIn)

	resp, _ = requestToken(t, server.URL, "cid", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, int64(2), stub.TokenRequests())
}

func TestIssueToken_Form(t *testing.T) {
	_, server := newTestStub(t)

	resp, err := http.PostForm(server.URL+TokenPath, map[string][]string{
		"client_id":     {"cid"},
		"client_secret": {"secret"},
		"grant_type":    {"client_credentials"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFailTokenRequests(t *testing.T) {
	stub, server := newTestStub(t)
	stub.FailTokenRequests(2)

	for i := 0; i < 2; i++ {
		resp, _ := requestToken(t, server.URL, "cid", "secret")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := requestToken(t, server.URL, "cid", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuery_RequiresToken(t *testing.T) {
	stub, server := newTestStub(t)

	resp := query(t, server.URL, "", "games", "fields name;")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = query(t, server.URL, "forged.token.value", "games", "fields name;")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, int64(2), stub.QueryRequests())
}

func TestQuery_Pagination(t *testing.T) {
	stub, server := newTestStub(t)
	_, tr := requestToken(t, server.URL, "cid", "secret")

	pages := map[int]int{0: 10, 10: 10, 20: 3, 30: 0}
	for offset, want := range pages {
		body := "where rating_count > 5;\nfields name;\nlimit 10;\noffset " + strconv.Itoa(offset) + ";"
		resp := query(t, server.URL, tr.AccessToken, "games", body)

		var games []catalog.Game
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&games))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, games, want, "offset %d", offset)
		if want > 0 {
			assert.Equal(t, offset+1, games[0].ID)
		}
	}
	assert.Contains(t, stub.LastQuery("games"), "limit 10;")
}

func TestQuery_DefaultFiltersExcludeExtras(t *testing.T) {
	_, server := newTestStub(t)
	_, tr := requestToken(t, server.URL, "cid", "secret")

	resp := query(t, server.URL, tr.AccessToken, "companies", "fields name;\nlimit 500;")
	var all []catalog.Company
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	resp.Body.Close()
	assert.Len(t, all, 13)

	resp = query(t, server.URL, tr.AccessToken, "companies", "where logo != null;\nfields name;\nlimit 500;")
	var withLogo []catalog.Company
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&withLogo))
	resp.Body.Close()
	assert.Len(t, withLogo, 12)
}

func TestQuery_Search(t *testing.T) {
	_, server := newTestStub(t)
	_, tr := requestToken(t, server.URL, "cid", "secret")

	resp := query(t, server.URL, tr.AccessToken, "game_engines", "search \"engine 002\";\nfields name;")
	var engines []catalog.GameEngine
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&engines))
	resp.Body.Close()

	require.Len(t, engines, 1)
	assert.Equal(t, "Engine 002", engines[0].Name)
}

func TestQuery_SyntaxError(t *testing.T) {
	_, server := newTestStub(t)
	_, tr := requestToken(t, server.URL, "cid", "secret")

	for _, body := range []string{"", "fields name;\nlimit 0;", "where nonsense;\nfields name;", "fields name;\nsort name asc;"} {
		resp := query(t, server.URL, tr.AccessToken, "games", body)
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Contains(t, string(data), "Syntax Error")
	}
}

func TestRotate(t *testing.T) {
	stub, server := newTestStub(t)
	_, tr := requestToken(t, server.URL, "cid", "secret")

	resp := query(t, server.URL, tr.AccessToken, "games", "fields name;")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stub.Rotate()

	resp = query(t, server.URL, tr.AccessToken, "games", "fields name;")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, fresh := requestToken(t, server.URL, "cid", "secret")
	resp = query(t, server.URL, fresh.AccessToken, "games", "fields name;")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeImage(t *testing.T) {
	stub, server := newTestStub(t)

	resp, err := http.Get(server.URL + ImagePath + "/t_cover_big_2x/co0001.jpg")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, ImageBytes("co0001", catalog.CoverBig), data)

	for _, path := range []string{"/cover_big_2x/co0001.jpg", "/t_giant/co0001.jpg", "/t_thumb_2x/co0001.png"} {
		resp, err := http.Get(server.URL + ImagePath + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	assert.Equal(t, int64(4), stub.ImageRequests())
}

func TestParseQuery(t *testing.T) {
	q, err := parseQuery("search \"say \\\"hi\\\"\";\nwhere rating_count >= 7;\nfields name, cover.image_id;\nlimit 5;\noffset 15;")
	require.NoError(t, err)

	assert.Equal(t, `say "hi"`, q.Search)
	assert.Equal(t, &condition{Field: "rating_count", Op: ">=", Value: "7"}, q.Where)
	assert.Equal(t, []string{"name", "cover.image_id"}, q.Fields)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 15, q.Offset)

	q, err = parseQuery("fields *;")
	require.NoError(t, err)
	assert.Equal(t, defaultLimit, q.Limit)
	assert.Zero(t, q.Offset)
}
