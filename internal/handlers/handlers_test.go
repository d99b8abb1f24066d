package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcrossing/internal/core"
	"bookcrossing/internal/middleware"
	"bookcrossing/internal/models"
	"bookcrossing/internal/sqlstore"
)

type testAPI struct {
	t      *testing.T
	server *httptest.Server
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	s, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := core.NewEngine(s, core.WithLogger(logger))

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(middleware.HeaderAuthenticator{}, logger))
		Routes(r, engine, logger)
	})
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return &testAPI{t: t, server: server}
}

// do wysyła żądanie jako userID (pusty = anonimowo) i dekoduje odpowiedź do out
func (a *testAPI) do(method, path, userID string, body any, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		if raw, ok := body.(string); ok {
			reader = bytes.NewBufferString(raw)
		} else {
			data, err := json.Marshal(body)
			require.NoError(a.t, err)
			reader = bytes.NewReader(data)
		}
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(a.t, err)
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
		if userID == "root" {
			req.Header.Set(middleware.HeaderUserRole, string(models.RoleAdmin))
		}
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestBookLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	var genre models.Genre
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/genres", "", map[string]string{"name": "Фантастика"}, nil))
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPost, "/api/genres", "alice", map[string]string{"name": "Фантастика"}, nil))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/genres", "root", map[string]string{"name": "Фантастика"}, &genre))

	var shelf models.SafeShelf
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/safeshelves", "root", map[string]any{
		"name": "Biblioteka Główna", "address": "ul. Książkowa 1", "latitude": 52.23, "longitude": 21.01,
	}, &shelf))

	var created createBookResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/books", "alice", map[string]any{
		"title":           "Дюна",
		"description":     "Классика",
		"new_author_name": "Frank Herbert",
		"genre_ids":       []string{genre.ID},
	}, &created))
	assert.Len(t, created.ISBN, 13)
	bookPath := "/api/books/" + created.BookID

	var views []*models.BookView
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/books", "", nil, &views))
	assert.Empty(t, views)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/books?status=all&search="+url.QueryEscape("дюна"), "", nil, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Frank Herbert", views[0].AuthorName)

	release := map[string]string{"safe_shelf_id": shelf.ID}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPut, bookPath+"/release", "bob", release, nil))
	var released bookResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodPut, bookPath+"/release", "alice", release, &released))
	assert.Equal(t, models.StatusAvailable, released.Book.Status)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPut, bookPath+"/release", "alice", release, nil))

	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/books/available?safe_shelf_id="+shelf.ID, "", nil, &views))
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Shelf)
	assert.Equal(t, "Biblioteka Główna", views[0].Shelf.Name)

	var reserved bookResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, bookPath+"/reserve", "bob", nil, &reserved))
	assert.Equal(t, models.StatusReserved, reserved.Book.Status)

	take := map[string]string{"book_id": created.BookID}
	var body middleware.ErrorBody
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/api/inventory", "carol", take, &body))
	assert.Equal(t, "conflict", string(body.Kind))

	var taken takeResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/inventory", "bob", take, &taken))
	assert.Equal(t, "bob", taken.Entry.UserID)
	assert.Equal(t, models.StatusInHand, taken.Book.Status)
	assert.Nil(t, taken.Book.SafeShelfID)

	var holdings []*models.Holding
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/inventory", "bob", nil, &holdings))
	require.Len(t, holdings, 1)
	assert.Equal(t, created.BookID, holdings[0].Book.ID)
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/api/inventory/bob", "alice", nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/inventory/bob", "root", nil, &holdings))
	assert.Len(t, holdings, 1)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/inventory", "", nil, nil))

	var stats models.Stats
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/stats", "", nil, &stats))
	assert.Equal(t, 1, stats.TotalBooks)
	assert.Equal(t, 1, stats.InHandBooks)
	assert.Equal(t, 1, stats.TotalSafeShelves)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, bookPath, "alice", nil, nil))
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, bookPath, "root", nil, nil))
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, bookPath, "", nil, &body))
	assert.Equal(t, "not_found", string(body.Kind))
}

func TestRequestValidation(t *testing.T) {
	api := newTestAPI(t)
	var body middleware.ErrorBody

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/books?status=lost", "", nil, &body))
	assert.Equal(t, "validation", string(body.Kind))

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/books", "alice", `{"title":`, &body))
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/books", "alice", `{"title":"Lalka","colour":"red"}`, &body))

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/books", "alice", map[string]any{"title": "Lalka"}, &body))
	assert.Contains(t, body.Error, "description")

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/safeshelves", "root", map[string]any{"name": "Biegun", "latitude": 91}, &body))
	assert.Contains(t, body.Error, "latitude")

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/books", "alice", map[string]any{
		"title": "Lalka", "description": "Powieść", "author_id": "missing",
	}, &body))
}

func TestAuthorsAndReviews(t *testing.T) {
	api := newTestAPI(t)

	var first, second models.Author
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/authors", "alice", map[string]string{"name": "Olga Tokarczuk"}, &first))
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/authors", "bob", map[string]string{"name": "Olga Tokarczuk"}, &second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/authors", "", map[string]string{"name": "Ktoś"}, nil))

	var authors []*models.Author
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/authors?search=tokar", "", nil, &authors))
	assert.Len(t, authors, 1)

	var created createBookResponse
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/books", "alice", map[string]any{
		"title": "Bieguni", "description": "Powieść", "author_id": first.ID,
	}, &created))

	reviewsPath := "/api/books/" + created.BookID + "/reviews"
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, reviewsPath, "bob", map[string]any{"text": "Super", "rating": 6}, nil))
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, reviewsPath, "bob", map[string]any{"text": "Super", "rating": 5}, nil))

	var reviews []*models.Review
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, reviewsPath, "", nil, &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, "bob", reviews[0].UserID)

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/books/missing/reviews", "", nil, nil))
}
