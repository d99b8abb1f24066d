// Package store definiuje kontrakt trwałego magazynu dla rdzenia wymiany.
//
// Każda zmiana stanu książki przechodzi przez RunInTx, więc aktualizacja
// książki i wpisu inwentarza jest widoczna w całości albo wcale.
// Implementacje: sqlstore (SQLite, Postgres) oraz firebase (Firestore).
package store

import (
	"context"

	"bookcrossing/internal/models"
)

// Reader to odczyty dostępne zarówno w transakcji, jak i poza nią.
// Brak rekordu sygnalizowany jest błędem apperr.ErrNotFound.
type Reader interface {
	GetBook(ctx context.Context, id string) (*models.Book, error)
	GetEntry(ctx context.Context, bookID string) (*models.InventoryEntry, error)
	GetAuthor(ctx context.Context, id string) (*models.Author, error)
	FindAuthorByName(ctx context.Context, name string) (*models.Author, error)
	GetGenre(ctx context.Context, id string) (*models.Genre, error)
	GetShelf(ctx context.Context, id string) (*models.SafeShelf, error)
	ISBNExists(ctx context.Context, isbn string) (bool, error)
	ListReviews(ctx context.Context, bookID string) ([]*models.Review, error)
}

// Tx to jednostka atomowa. Implementacja Firestore wymaga, by wszystkie
// odczyty poprzedzały zapisy, dlatego wywołujący najpierw czyta, potem pisze.
// Funkcja przekazana do RunInTx może zostać wykonana ponownie.
type Tx interface {
	Reader

	InsertAuthor(ctx context.Context, author *models.Author) error
	InsertGenre(ctx context.Context, genre *models.Genre) error
	InsertShelf(ctx context.Context, shelf *models.SafeShelf) error

	// InsertBook zapisuje nową książkę wraz z powiązaniami z gatunkami.
	// Duplikat ISBN zwraca apperr.ErrConflict.
	InsertBook(ctx context.Context, book *models.Book) error
	// UpdateBook zapisuje stan książki, jeśli wersja w magazynie równa się
	// expectedVersion; w przeciwnym razie zwraca apperr.ErrConflict.
	UpdateBook(ctx context.Context, book *models.Book, expectedVersion int64) error
	DeleteBook(ctx context.Context, id string) error

	// InsertEntry zwraca apperr.ErrConflict, gdy książka ma już posiadacza.
	InsertEntry(ctx context.Context, entry *models.InventoryEntry) error
	// DeleteEntry zwraca apperr.ErrNotFound, gdy książka nie ma posiadacza.
	DeleteEntry(ctx context.Context, bookID string) error

	InsertReview(ctx context.Context, review *models.Review) error
	DeleteReview(ctx context.Context, id string) error
}

// Store to pełny magazyn: transakcje oraz zapytania listujące
type Store interface {
	Reader

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListBooks(ctx context.Context, filter models.BookFilter) ([]*models.Book, error)
	ListAuthors(ctx context.Context) ([]*models.Author, error)
	ListGenres(ctx context.Context) ([]*models.Genre, error)
	ListShelves(ctx context.Context) ([]*models.SafeShelf, error)
	ListEntriesForUser(ctx context.Context, userID string) ([]*models.InventoryEntry, error)
	CountBooksByStatus(ctx context.Context) (map[models.BookStatus]int, error)

	Close() error
}
