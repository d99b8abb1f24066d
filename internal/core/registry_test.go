package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

func TestGeneratedISBNIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		isbn := generateISBN()
		require.Len(t, isbn, 13)
		assert.Equal(t, isbnPrefix, isbn[:3])
		assert.True(t, ValidISBN13(isbn), isbn)
	}
}

func TestValidISBN13(t *testing.T) {
	assert.True(t, ValidISBN13("9780306406157"))
	assert.False(t, ValidISBN13("9780306406158"))
	assert.False(t, ValidISBN13("978030640615"))
	assert.False(t, ValidISBN13("97803064061x7"))
}

func TestParseStatusFilter(t *testing.T) {
	status, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, status)

	status, err = ParseStatusFilter("all")
	require.NoError(t, err)
	assert.Equal(t, models.BookStatus(""), status)

	status, err = ParseStatusFilter("reserved")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, status)

	_, err = ParseStatusFilter("lost")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestISBNRegeneratedOnCollision(t *testing.T) {
	first, second := generateISBN(), generateISBN()
	for second == first {
		second = generateISBN()
	}
	sequence := []string{first, first, first, second}
	next := 0
	gen := func() string {
		isbn := sequence[next%len(sequence)]
		next++
		return isbn
	}

	env := newTestEnv(t, WithISBNGenerator(gen))
	a := env.createBook(t, alice, "Pierwsza")
	b := env.createBook(t, alice, "Druga")

	assert.Equal(t, first, a.ISBN)
	assert.Equal(t, second, b.ISBN)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	valid := NewBook{Title: "Lalka", Description: "Powieść", NewAuthorName: "Bolesław Prus"}

	tests := []struct {
		name   string
		caller *models.Caller
		mutate func(*NewBook)
		want   error
	}{
		{"no caller", nil, func(*NewBook) {}, apperr.ErrUnauthenticated},
		{"no title", alice, func(b *NewBook) { b.Title = "  " }, apperr.ErrValidation},
		{"no description", alice, func(b *NewBook) { b.Description = "" }, apperr.ErrValidation},
		{"no author", alice, func(b *NewBook) { b.NewAuthorName = "" }, apperr.ErrValidation},
		{"both authors", alice, func(b *NewBook) { b.AuthorID = "a1" }, apperr.ErrValidation},
		{"unknown author", alice, func(b *NewBook) { b.NewAuthorName = ""; b.AuthorID = "missing" }, apperr.ErrNotFound},
		{"unknown genre", alice, func(b *NewBook) { b.GenreIDs = []string{"missing"} }, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := env.engine.Create(ctx, tt.caller, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	books, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestCreateWithExistingAuthorID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author, err := env.engine.Catalog().CreateAuthor(ctx, alice, "Olga Tokarczuk", "")
	require.NoError(t, err)

	book, err := env.engine.Create(ctx, bob, NewBook{
		Title:       "Bieguni",
		Description: "Powieść",
		AuthorID:    author.ID,
		GenreIDs:    []string{env.genre.ID, env.genre.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, author.ID, book.AuthorID)
	assert.Equal(t, []string{env.genre.ID}, book.GenreIDs)
	assert.Equal(t, "bob", env.possessor(t, book.ID))
}

type failingEntryStore struct {
	store.Store
}

func (s failingEntryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.Store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, failingEntryTx{Tx: tx})
	})
}

type failingEntryTx struct {
	store.Tx
}

var errInventoryDown = errors.New("inwentarz niedostępny")

func (failingEntryTx) InsertEntry(context.Context, *models.InventoryEntry) error {
	return errInventoryDown
}

func TestCreateRollsBackWhenInventoryFails(t *testing.T) {
	s := openTestStore(t)
	env := newTestEnvWithStore(t, failingEntryStore{Store: s})
	ctx := context.Background()

	_, err := env.engine.Create(ctx, alice, NewBook{
		Title:         "Niedokończona",
		Description:   "Nie powinna zostać zapisana",
		NewAuthorName: "Autor Widmo",
		GenreIDs:      []string{env.genre.ID},
	})
	require.ErrorIs(t, err, errInventoryDown)

	books, err := s.ListBooks(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Empty(t, books)

	_, err = s.FindAuthorByName(ctx, "Autor Widmo")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, env.events.Events())
}

func TestListBooksFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	onShelf := env.shelved(t, alice, "Solaris")
	env.createBook(t, alice, "Solaris. Wydanie drugie")

	all, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{Search: "SOLARIS"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Solaris", all[0].Title)

	available, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{Search: "solaris", Status: models.StatusAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, onShelf.ID, available[0].ID)

	byShelf, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{SafeShelfID: env.shelf.ID})
	require.NoError(t, err)
	assert.Len(t, byShelf, 1)

	byGenre, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{GenreID: env.genre.ID})
	require.NoError(t, err)
	assert.Len(t, byGenre, 2)

	view, err := env.engine.GetBookView(ctx, onShelf.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", view.AuthorName)
	require.NotNil(t, view.Shelf)
	assert.Equal(t, env.shelf.Address, view.Shelf.Address)
}
