package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
)

func TestCreateAuthorIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	catalog := env.engine.Catalog()

	first, err := catalog.CreateAuthor(ctx, alice, "Stanisław Lem", "Pisarz")
	require.NoError(t, err)
	second, err := catalog.CreateAuthor(ctx, bob, "Stanisław Lem", "Inny opis")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Pisarz", second.Description)

	other, err := catalog.CreateAuthor(ctx, alice, "stanisław lem", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	book := env.createBook(t, alice, "Cyberiada")
	fromBook, err := catalog.CreateAuthor(ctx, alice, "Frank Herbert", "")
	require.NoError(t, err)
	assert.Equal(t, book.AuthorID, fromBook.ID)
}

func TestConcurrentCreateAuthorReturnsSingleAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const workers = 6
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := env.engine.Catalog().CreateAuthor(ctx, alice, "Wisława Szymborska", "")
			if assert.NoError(t, err) {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	authors, err := env.engine.Catalog().ListAuthors(ctx, "Szymborska")
	require.NoError(t, err)
	assert.Len(t, authors, 1)
}

func TestCreateAuthorValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.Catalog().CreateAuthor(ctx, nil, "Ktoś", "")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = env.engine.Catalog().CreateAuthor(ctx, alice, "   ", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListAuthorsSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	catalog := env.engine.Catalog()

	_, err := catalog.CreateAuthor(ctx, alice, "Фёдор Достоевский", "")
	require.NoError(t, err)
	_, err = catalog.CreateAuthor(ctx, alice, "Лев Толстой", "")
	require.NoError(t, err)

	all, err := catalog.ListAuthors(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := catalog.ListAuthors(ctx, "толст")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Лев Толстой", found[0].Name)
}

func TestCreateGenre(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	catalog := env.engine.Catalog()

	_, err := catalog.CreateGenre(ctx, alice, "Kryminał")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = catalog.CreateGenre(ctx, admin, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	genres, err := catalog.ListGenres(ctx)
	require.NoError(t, err)
	require.Len(t, genres, 1)

	genre, err := catalog.CreateGenre(ctx, admin, "Kryminał")
	require.NoError(t, err)

	genres, err = catalog.ListGenres(ctx)
	require.NoError(t, err)
	assert.Len(t, genres, 2)

	got, err := catalog.GetGenre(ctx, genre.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kryminał", got.Name)

	_, err = catalog.CreateGenre(ctx, admin, "Kryminał")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCreateShelf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	shelves := env.engine.Shelves()

	tests := []struct {
		name   string
		caller *models.Caller
		in     NewShelf
		want   error
	}{
		{"member", alice, NewShelf{Name: "Kawiarnia"}, apperr.ErrPermission},
		{"anonymous", nil, NewShelf{Name: "Kawiarnia"}, apperr.ErrUnauthenticated},
		{"no name", admin, NewShelf{}, apperr.ErrValidation},
		{"latitude", admin, NewShelf{Name: "Biegun", Latitude: 91}, apperr.ErrValidation},
		{"longitude", admin, NewShelf{Name: "Antypody", Longitude: -181}, apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shelves.CreateShelf(ctx, tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	shelf, err := shelves.CreateShelf(ctx, admin, NewShelf{Name: "Kawiarnia Czytelnia", Latitude: -90, Longitude: 180})
	require.NoError(t, err)
	list, err := shelves.ListShelves(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	got, err := shelves.GetShelf(ctx, shelf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kawiarnia Czytelnia", got.Name)

	_, err = shelves.GetShelf(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReadCacheDeduplicatesLoads(t *testing.T) {
	cache := newReadCache[int](time.Minute)
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.get(context.Background(), "k", func(context.Context) (int, error) {
				loads.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	loaded := loads.Load()

	v, err := cache.get(context.Background(), "k", func(context.Context) (int, error) {
		loads.Add(1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, loaded, loads.Load())

	cache.purge()
	v, err = cache.get(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestReadCacheDoesNotStoreErrors(t *testing.T) {
	cache := newReadCache[string](time.Minute)

	_, err := cache.get(context.Background(), "k", func(context.Context) (string, error) {
		return "", apperr.NotFound("test", "brak")
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	v, err := cache.get(context.Background(), "k", func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestReadCacheCancelledCallerDoesNotFailOthers(t *testing.T) {
	cache := newReadCache[int](time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.get(firstCtx, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 42, ctx.Err()
		})
		firstErr <- err
	}()
	<-started

	secondDone := make(chan struct{})
	var second int
	var secondErr error
	go func() {
		defer close(secondDone)
		second, secondErr = cache.get(context.Background(), "k", func(context.Context) (int, error) {
			return 0, nil
		})
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	<-secondDone
	require.NoError(t, secondErr)
	assert.Equal(t, 42, second)
}
