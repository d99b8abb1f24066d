// Package storetest zawiera wspólny zestaw testów dla implementacji store.Store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

// Fixture to autor, gatunek i półka potrzebne do zapisania książki
type Fixture struct {
	Author *models.Author
	Genre  *models.Genre
	Shelf  *models.SafeShelf
}

// SeedFixture zapisuje autora, gatunek i półkę o unikalnych nazwach
func SeedFixture(t *testing.T, s store.Store) Fixture {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	fx := Fixture{
		Author: &models.Author{ID: uuid.NewString(), Name: "Frank Herbert " + uuid.NewString(), CreatedAt: now},
		Genre:  &models.Genre{ID: uuid.NewString(), Name: "Fantastyka " + uuid.NewString()},
		Shelf: &models.SafeShelf{
			ID: uuid.NewString(), Name: "Biblioteka Główna", Address: "ul. Książkowa 1",
			Hours: "8-20", Latitude: 52.2297, Longitude: 21.0122, CreatedAt: now,
		},
	}
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertAuthor(ctx, fx.Author); err != nil {
			return err
		}
		if err := tx.InsertGenre(ctx, fx.Genre); err != nil {
			return err
		}
		return tx.InsertShelf(ctx, fx.Shelf)
	})
	require.NoError(t, err)
	return fx
}

func newBook(fx Fixture, title string) *models.Book {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Book{
		ID:          uuid.NewString(),
		Title:       title,
		ISBN:        "978" + uuid.NewString()[:10],
		Description: "opis",
		AuthorID:    fx.Author.ID,
		GenreIDs:    []string{fx.Genre.ID},
		Status:      models.StatusInHand,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func insertHeldBook(t *testing.T, s store.Store, book *models.Book, userID string) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertBook(ctx, book); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, &models.InventoryEntry{BookID: book.ID, UserID: userID, AcquiredAt: book.CreatedAt})
	})
	require.NoError(t, err)
}

// moveToShelf przenosi książkę z rąk na półkę tak, jak robi to silnik
func moveToShelf(t *testing.T, s store.Store, book *models.Book, shelfID string) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetBook(ctx, book.ID)
		if err != nil {
			return err
		}
		if err := tx.DeleteEntry(ctx, book.ID); err != nil {
			return err
		}
		current.Status = models.StatusAvailable
		current.SafeShelfID = &shelfID
		current.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateBook(ctx, current, current.Version); err != nil {
			return err
		}
		*book = *current
		return nil
	})
	require.NoError(t, err)
}

// Features opisuje różnice między implementacjami magazynu
type Features struct {
	// ForeignKeys oznacza, że magazyn odrzuca książkę z nieistniejącym autorem
	ForeignKeys bool
}

// RunContract sprawdza zachowanie wspólne dla wszystkich implementacji store.Store
func RunContract(t *testing.T, s store.Store, features Features) {
	ctx := context.Background()

	t.Run("book round trip", func(t *testing.T) {
		fx := SeedFixture(t, s)
		book := newBook(fx, "Diuna")
		insertHeldBook(t, s, book, "u1")

		got, err := s.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, book.Title, got.Title)
		assert.Equal(t, book.ISBN, got.ISBN)
		assert.Equal(t, models.StatusInHand, got.Status)
		assert.Nil(t, got.SafeShelfID)
		assert.Nil(t, got.Reservation)
		assert.Equal(t, []string{fx.Genre.ID}, got.GenreIDs)
		assert.True(t, book.CreatedAt.Equal(got.CreatedAt))

		entry, err := s.GetEntry(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "u1", entry.UserID)
		assert.NoError(t, got.CheckConsistency(entry))
	})

	t.Run("missing records are not found", func(t *testing.T) {
		_, err := s.GetBook(ctx, uuid.NewString())
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.GetEntry(ctx, uuid.NewString())
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.GetShelf(ctx, uuid.NewString())
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = s.FindAuthorByName(ctx, "Nikt "+uuid.NewString())
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("author names are unique and case sensitive", func(t *testing.T) {
		fx := SeedFixture(t, s)
		dup := &models.Author{ID: uuid.NewString(), Name: fx.Author.Name, CreatedAt: time.Now().UTC()}
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertAuthor(ctx, dup)
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)

		found, err := s.FindAuthorByName(ctx, fx.Author.Name)
		require.NoError(t, err)
		assert.Equal(t, fx.Author.ID, found.ID)

		_, err = s.FindAuthorByName(ctx, "frank herbert")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("duplicate isbn conflicts", func(t *testing.T) {
		fx := SeedFixture(t, s)
		first := newBook(fx, "Pierwsza")
		insertHeldBook(t, s, first, "u1")

		exists, err := s.ISBNExists(ctx, first.ISBN)
		require.NoError(t, err)
		assert.True(t, exists)

		second := newBook(fx, "Druga")
		second.ISBN = first.ISBN
		err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertBook(ctx, second)
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("unknown author is rejected", func(t *testing.T) {
		if !features.ForeignKeys {
			t.Skip("magazyn bez kluczy obcych")
		}
		fx := SeedFixture(t, s)
		book := newBook(fx, "Bez autora")
		book.AuthorID = uuid.NewString()
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertBook(ctx, book)
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("second possessor conflicts", func(t *testing.T) {
		fx := SeedFixture(t, s)
		book := newBook(fx, "Jedna kopia")
		insertHeldBook(t, s, book, "u1")

		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertEntry(ctx, &models.InventoryEntry{BookID: book.ID, UserID: "u2", AcquiredAt: time.Now().UTC()})
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)

		entry, err := s.GetEntry(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, "u1", entry.UserID)
	})

	t.Run("deleting missing entry is not found", func(t *testing.T) {
		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.DeleteEntry(ctx, uuid.NewString())
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("update uses version compare and swap", func(t *testing.T) {
		fx := SeedFixture(t, s)
		book := newBook(fx, "Wersjonowana")
		insertHeldBook(t, s, book, "u1")
		moveToShelf(t, s, book, fx.Shelf.ID)
		assert.Equal(t, int64(1), book.Version)

		stale := book.Clone()
		stale.Status = models.StatusReserved
		stale.Reservation = &models.Reservation{UserID: "u2", ExpiresAt: time.Now().UTC().Add(time.Hour)}
		update := func(expected int64) error {
			return s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				if _, err := tx.GetBook(ctx, book.ID); err != nil {
					return err
				}
				return tx.UpdateBook(ctx, stale, expected)
			})
		}
		assert.ErrorIs(t, update(0), apperr.ErrConflict)

		err := update(book.Version)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stale.Version)

		got, err := s.GetBook(ctx, book.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusReserved, got.Status)
		require.NotNil(t, got.Reservation)
		assert.Equal(t, "u2", got.Reservation.UserID)
		assert.Equal(t, fx.Shelf.ID, got.ShelfID())
	})

	t.Run("failed transaction rolls back", func(t *testing.T) {
		fx := SeedFixture(t, s)
		book := newBook(fx, "Wycofana")
		boom := errors.New("awaria inwentarza")

		err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if err := tx.InsertBook(ctx, book); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.GetBook(ctx, book.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		exists, err := s.ISBNExists(ctx, book.ISBN)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("list filters", func(t *testing.T) {
		fx := SeedFixture(t, s)
		dune := newBook(fx, "Дюна")
		insertHeldBook(t, s, dune, "u1")
		moveToShelf(t, s, dune, fx.Shelf.ID)
		held := newBook(fx, "Дюна. Мессия")
		insertHeldBook(t, s, held, "u1")

		available, err := s.ListBooks(ctx, models.BookFilter{GenreID: fx.Genre.ID, Status: models.StatusAvailable})
		require.NoError(t, err)
		require.Len(t, available, 1)
		assert.Equal(t, dune.ID, available[0].ID)
		assert.Equal(t, []string{fx.Genre.ID}, available[0].GenreIDs)

		all, err := s.ListBooks(ctx, models.BookFilter{AuthorID: fx.Author.ID})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Дюна", all[0].Title)

		found, err := s.ListBooks(ctx, models.BookFilter{AuthorID: fx.Author.ID, Search: "мессия"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, held.ID, found[0].ID)

		onShelf, err := s.ListBooks(ctx, models.BookFilter{SafeShelfID: fx.Shelf.ID})
		require.NoError(t, err)
		require.Len(t, onShelf, 1)
		assert.Equal(t, dune.ID, onShelf[0].ID)
	})

	t.Run("entries for user", func(t *testing.T) {
		fx := SeedFixture(t, s)
		user := uuid.NewString()
		book := newBook(fx, "Moja")
		insertHeldBook(t, s, book, user)

		entries, err := s.ListEntriesForUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, book.ID, entries[0].BookID)

		entries, err = s.ListEntriesForUser(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("count by status", func(t *testing.T) {
		before, err := s.CountBooksByStatus(ctx)
		require.NoError(t, err)

		fx := SeedFixture(t, s)
		insertHeldBook(t, s, newBook(fx, "Policzona"), "u1")

		after, err := s.CountBooksByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, before[models.StatusInHand]+1, after[models.StatusInHand])
		assert.Equal(t, before[models.StatusAvailable], after[models.StatusAvailable])
	})

	t.Run("delete removes entry and reviews", func(t *testing.T) {
		fx := SeedFixture(t, s)
		book := newBook(fx, "Do usunięcia")
		insertHeldBook(t, s, book, "u1")
		review := &models.Review{ID: uuid.NewString(), BookID: book.ID, UserID: "u2", Text: "Świetna", Rating: 5, CreatedAt: time.Now().UTC()}
		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertReview(ctx, review)
		}))

		reviews, err := s.ListReviews(ctx, book.ID)
		require.NoError(t, err)
		require.Len(t, reviews, 1)

		require.NoError(t, s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.GetBook(ctx, book.ID); err != nil {
				return err
			}
			reviews, err := tx.ListReviews(ctx, book.ID)
			if err != nil {
				return err
			}
			for _, r := range reviews {
				if err := tx.DeleteReview(ctx, r.ID); err != nil {
					return err
				}
			}
			if err := tx.DeleteEntry(ctx, book.ID); err != nil {
				return err
			}
			return tx.DeleteBook(ctx, book.ID)
		}))

		_, err = s.GetBook(ctx, book.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		exists, err := s.ISBNExists(ctx, book.ISBN)
		require.NoError(t, err)
		assert.False(t, exists)
		reviews, err = s.ListReviews(ctx, book.ID)
		require.NoError(t, err)
		assert.Empty(t, reviews)

		err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.DeleteBook(ctx, book.ID)
		})
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("reference lists", func(t *testing.T) {
		fx := SeedFixture(t, s)

		authors, err := s.ListAuthors(ctx)
		require.NoError(t, err)
		assert.Contains(t, authorIDs(authors), fx.Author.ID)

		genres, err := s.ListGenres(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, genres)

		shelves, err := s.ListShelves(ctx)
		require.NoError(t, err)
		var found *models.SafeShelf
		for _, sh := range shelves {
			if sh.ID == fx.Shelf.ID {
				found = sh
			}
		}
		require.NotNil(t, found)
		assert.InDelta(t, 52.2297, found.Latitude, 1e-9)
	})
}

func authorIDs(authors []*models.Author) []string {
	ids := make([]string, 0, len(authors))
	for _, a := range authors {
		ids = append(ids, a.ID)
	}
	return ids
}
