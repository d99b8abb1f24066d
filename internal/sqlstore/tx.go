package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

var _ store.Tx = (*tx)(nil)

// tx to transakcja SQL realizująca store.Tx
type tx struct {
	reader
	tx *sqlx.Tx
}

func (t *tx) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	return res, nil
}

func (t *tx) InsertAuthor(ctx context.Context, a *models.Author) error {
	_, err := t.exec(ctx, "zapis autora",
		`INSERT INTO authors (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.Description, a.CreatedAt.UTC())
	return err
}

func (t *tx) InsertGenre(ctx context.Context, g *models.Genre) error {
	_, err := t.exec(ctx, "zapis gatunku", `INSERT INTO genres (id, name) VALUES (?, ?)`, g.ID, g.Name)
	return err
}

func (t *tx) InsertShelf(ctx context.Context, s *models.SafeShelf) error {
	_, err := t.exec(ctx, "zapis półki",
		`INSERT INTO safe_shelves (`+shelfColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Address, s.Hours, s.Description, s.Latitude, s.Longitude, s.CreatedAt.UTC())
	return err
}

// bookStateArgs zwraca kolumny stanu książki w postaci akceptowanej przez sterowniki
func bookStateArgs(b *models.Book) (shelf, reservedBy sql.NullString, reservedUntil sql.NullTime) {
	if b.SafeShelfID != nil {
		shelf = sql.NullString{String: *b.SafeShelfID, Valid: true}
	}
	if b.Reservation != nil {
		reservedBy = sql.NullString{String: b.Reservation.UserID, Valid: true}
		reservedUntil = sql.NullTime{Time: b.Reservation.ExpiresAt.UTC(), Valid: true}
	}
	return shelf, reservedBy, reservedUntil
}

func (t *tx) InsertBook(ctx context.Context, b *models.Book) error {
	shelf, reservedBy, reservedUntil := bookStateArgs(b)
	_, err := t.exec(ctx, "zapis książki",
		`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.ISBN, b.Description, b.AuthorID, string(b.Status), shelf,
		reservedBy, reservedUntil, b.Version, b.CreatedAt.UTC(), b.UpdatedAt.UTC())
	if err != nil {
		return err
	}

	for _, genreID := range b.GenreIDs {
		if _, err := t.exec(ctx, "zapis gatunku książki",
			`INSERT INTO book_genres (book_id, genre_id) VALUES (?, ?)`, b.ID, genreID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateBook zapisuje stan książki metodą compare-and-swap na kolumnie version
func (t *tx) UpdateBook(ctx context.Context, b *models.Book, expectedVersion int64) error {
	shelf, reservedBy, reservedUntil := bookStateArgs(b)
	next := expectedVersion + 1
	res, err := t.exec(ctx, "aktualizacja książki",
		`UPDATE books SET status = ?, safe_shelf_id = ?, reserved_by = ?, reserved_until = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(b.Status), shelf, reservedBy, reservedUntil, next, b.UpdatedAt.UTC(), b.ID, expectedVersion)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapError("aktualizacja książki", err)
	}
	if n == 0 {
		return apperr.Conflict("aktualizacja książki", "książka %s została zmieniona równolegle", b.ID)
	}
	b.Version = next
	return nil
}

func (t *tx) DeleteBook(ctx context.Context, id string) error {
	if _, err := t.exec(ctx, "usunięcie gatunków książki", `DELETE FROM book_genres WHERE book_id = ?`, id); err != nil {
		return err
	}
	res, err := t.exec(ctx, "usunięcie książki", `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "usunięcie książki", "książka %s nie istnieje", id)
}

func (t *tx) InsertEntry(ctx context.Context, e *models.InventoryEntry) error {
	_, err := t.exec(ctx, "zapis wpisu inwentarza",
		`INSERT INTO inventory (book_id, user_id, acquired_at) VALUES (?, ?, ?)`,
		e.BookID, e.UserID, e.AcquiredAt.UTC())
	return err
}

func (t *tx) DeleteEntry(ctx context.Context, bookID string) error {
	res, err := t.exec(ctx, "usunięcie wpisu inwentarza", `DELETE FROM inventory WHERE book_id = ?`, bookID)
	if err != nil {
		return err
	}
	return requireAffected(res, "usunięcie wpisu inwentarza", "książka %s nie ma posiadacza", bookID)
}

func (t *tx) InsertReview(ctx context.Context, r *models.Review) error {
	_, err := t.exec(ctx, "zapis opinii",
		`INSERT INTO reviews (id, book_id, user_id, text, rating, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.BookID, r.UserID, r.Text, r.Rating, r.CreatedAt.UTC())
	return err
}

func (t *tx) DeleteReview(ctx context.Context, id string) error {
	res, err := t.exec(ctx, "usunięcie opinii", `DELETE FROM reviews WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "usunięcie opinii", "opinia %s nie istnieje", id)
}

func requireAffected(res sql.Result, op, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return apperr.NotFound(op, format, args...)
	}
	return nil
}
