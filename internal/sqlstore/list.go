package sqlstore

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

const (
	tableBooks      = "books"
	tableBookGenres = "book_genres"
)

// ListBooks zwraca książki spełniające filtr, posortowane po tytule.
// Filtry po kolumnach wykonuje baza, frazę tytułu sprawdza store.MatchesSearch.
func (s *Store) ListBooks(ctx context.Context, filter models.BookFilter) ([]*models.Book, error) {
	query, args, err := s.booksQuery(filter).ToSQL()
	if err != nil {
		return nil, mapError("budowa zapytania książek", err)
	}

	var rows []bookRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, mapError("pobieranie książek", err)
	}

	books := make([]*models.Book, 0, len(rows))
	for i := range rows {
		b := rows[i].toModel()
		if !store.MatchesSearch(b.Title, filter.Search) {
			continue
		}
		books = append(books, b)
	}
	if err := s.loadGenres(ctx, books); err != nil {
		return nil, err
	}
	store.SortByTitle(books)
	return books, nil
}

func (s *Store) booksQuery(filter models.BookFilter) *goqu.SelectDataset {
	ds := s.dialect.From(tableBooks).
		Prepared(true).
		Select(
			"id", "title", "isbn", "description", "author_id", "status", "safe_shelf_id",
			"reserved_by", "reserved_until", "version", "created_at", "updated_at",
		)

	var where []goqu.Expression
	if filter.Status != "" {
		where = append(where, goqu.C("status").Eq(string(filter.Status)))
	}
	if filter.AuthorID != "" {
		where = append(where, goqu.C("author_id").Eq(filter.AuthorID))
	}
	if filter.SafeShelfID != "" {
		where = append(where, goqu.C("safe_shelf_id").Eq(filter.SafeShelfID))
	}
	if filter.GenreID != "" {
		inGenre := s.dialect.From(tableBookGenres).
			Select("book_id").
			Where(goqu.C("genre_id").Eq(filter.GenreID))
		where = append(where, goqu.C("id").In(inGenre))
	}
	if len(where) > 0 {
		ds = ds.Where(goqu.And(where...))
	}

	return ds.Order(goqu.I("title").Asc(), goqu.I("id").Asc())
}

// ListAuthors zwraca wszystkich autorów alfabetycznie
func (s *Store) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	var rows []authorRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, description, created_at FROM authors ORDER BY name, id`); err != nil {
		return nil, mapError("pobieranie autorów", err)
	}
	authors := make([]*models.Author, 0, len(rows))
	for i := range rows {
		authors = append(authors, rows[i].toModel())
	}
	return authors, nil
}

// ListGenres zwraca wszystkie gatunki
func (s *Store) ListGenres(ctx context.Context) ([]*models.Genre, error) {
	var genres []*models.Genre
	if err := s.db.SelectContext(ctx, &genres, `SELECT id, name FROM genres ORDER BY name, id`); err != nil {
		return nil, mapError("pobieranie gatunków", err)
	}
	return genres, nil
}

// ListShelves zwraca wszystkie bezpieczne półki
func (s *Store) ListShelves(ctx context.Context) ([]*models.SafeShelf, error) {
	var rows []shelfRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+shelfColumns+` FROM safe_shelves ORDER BY name, id`); err != nil {
		return nil, mapError("pobieranie półek", err)
	}
	shelves := make([]*models.SafeShelf, 0, len(rows))
	for i := range rows {
		shelves = append(shelves, rows[i].toModel())
	}
	return shelves, nil
}

// ListEntriesForUser zwraca wpisy inwentarza użytkownika, najnowsze pierwsze
func (s *Store) ListEntriesForUser(ctx context.Context, userID string) ([]*models.InventoryEntry, error) {
	var rows []entryRow
	query := s.db.Rebind(`SELECT book_id, user_id, acquired_at FROM inventory
		WHERE user_id = ? ORDER BY acquired_at DESC, book_id`)
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, mapError("pobieranie inwentarza", err)
	}
	entries := make([]*models.InventoryEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toModel())
	}
	return entries, nil
}

// CountBooksByStatus zlicza książki w każdym stanie
func (s *Store) CountBooksByStatus(ctx context.Context) (map[models.BookStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM books GROUP BY status`); err != nil {
		return nil, mapError("zliczanie książek", err)
	}
	counts := make(map[models.BookStatus]int, len(rows))
	for _, r := range rows {
		counts[models.BookStatus(r.Status)] = r.N
	}
	return counts, nil
}
