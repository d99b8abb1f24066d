package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

// ListBooks zwraca książki spełniające filtr.
// Po statusie filtruje Firestore, reszta kryteriów i sortowanie są w Go.
func (s *Store) ListBooks(ctx context.Context, filter models.BookFilter) ([]*models.Book, error) {
	q := s.fs.Collection(BooksCollection).Query
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	books := make([]*models.Book, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError("pobieranie książek", err)
		}
		book, err := decodeBook(doc)
		if err != nil {
			return nil, err
		}
		if store.Matches(book, filter) {
			books = append(books, book)
		}
	}

	store.SortByTitle(books)
	return books, nil
}

// CountBooksByStatus liczy książki w każdym statusie zapytaniem agregującym
func (s *Store) CountBooksByStatus(ctx context.Context) (map[models.BookStatus]int, error) {
	counts := make(map[models.BookStatus]int, 3)
	for _, status := range []models.BookStatus{models.StatusInHand, models.StatusAvailable, models.StatusReserved} {
		res, err := s.countQuery(status).Get(ctx)
		if err != nil {
			return nil, mapError("liczenie książek", err)
		}
		n, err := aggregateInt(res, "n")
		if err != nil {
			return nil, err
		}
		if n > 0 {
			counts[status] = n
		}
	}
	return counts, nil
}

// countQuery buduje zapytanie liczące książki w danym statusie
func (s *Store) countQuery(status models.BookStatus) *firestore.AggregationQuery {
	q := s.fs.Collection(BooksCollection).Where("status", "==", string(status))
	return q.NewAggregationQuery().WithCount("n")
}

func aggregateInt(res firestore.AggregationResult, alias string) (int, error) {
	switch v := res[alias].(type) {
	case *firestorepb.Value:
		return int(v.GetIntegerValue()), nil
	case int64:
		return int(v), nil
	}
	return 0, fmt.Errorf("nieoczekiwany wynik agregacji %q: %T", alias, res[alias])
}

// InsertBook zapisuje książkę i rezerwuje jej ISBN w indeksie isbns
func (t *tx) InsertBook(ctx context.Context, book *models.Book) error {
	if book.GenreIDs == nil {
		book.GenreIDs = []string{}
	}
	if err := t.create("zapis książki", t.fs.Collection(BooksCollection).Doc(book.ID), book); err != nil {
		return err
	}
	return t.create("zapis ISBN", t.fs.Collection(ISBNsCollection).Doc(book.ISBN), indexDoc{ID: book.ID})
}

// UpdateBook zapisuje stan książki odczytanej wcześniej w tej transakcji.
// Wersja jest porównywana z odczytem, a dokument chroni warunek LastUpdateTime.
func (t *tx) UpdateBook(ctx context.Context, book *models.Book, expectedVersion int64) error {
	seen, ok := t.seen[book.ID]
	if !ok {
		return apperr.Conflict("aktualizacja książki", "książka %s nie została odczytana w transakcji", book.ID)
	}
	if seen.version != expectedVersion {
		return apperr.Conflict("aktualizacja książki", "książka %s została zmieniona równolegle", book.ID)
	}

	var reservation any = firestore.Delete
	if book.Reservation != nil {
		reservation = book.Reservation
	}
	updates := []firestore.Update{
		{Path: "status", Value: string(book.Status)},
		{Path: "safe_shelf_id", Value: book.SafeShelfID},
		{Path: "reservation", Value: reservation},
		{Path: "version", Value: expectedVersion + 1},
		{Path: "updated_at", Value: book.UpdatedAt},
	}
	ref := t.fs.Collection(BooksCollection).Doc(book.ID)
	if err := t.tx.Update(ref, updates, firestore.LastUpdateTime(seen.updateTime)); err != nil {
		return mapError("aktualizacja książki", err)
	}
	book.Version = expectedVersion + 1
	return nil
}

// DeleteBook usuwa książkę; indeks ISBN znika, jeśli książkę odczytano w transakcji
func (t *tx) DeleteBook(ctx context.Context, id string) error {
	if err := t.delete("usunięcie książki", t.fs.Collection(BooksCollection).Doc(id)); err != nil {
		return err
	}
	if seen, ok := t.seen[id]; ok && seen.isbn != "" {
		if err := t.tx.Delete(t.fs.Collection(ISBNsCollection).Doc(seen.isbn)); err != nil {
			return mapError("usunięcie ISBN", err)
		}
	}
	return nil
}
