package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"bookcrossing/internal/models"
)

// reader realizuje store.Reader na połączeniu lub transakcji
type reader struct {
	q sqlx.ExtContext
	// lock to klauzula blokady dopisywana do odczytu książki ("" poza transakcją)
	lock string
}

const bookColumns = `id, title, isbn, description, author_id, status, safe_shelf_id,
	reserved_by, reserved_until, version, created_at, updated_at`

type bookRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	ISBN          string         `db:"isbn"`
	Description   string         `db:"description"`
	AuthorID      string         `db:"author_id"`
	Status        string         `db:"status"`
	SafeShelfID   sql.NullString `db:"safe_shelf_id"`
	ReservedBy    sql.NullString `db:"reserved_by"`
	ReservedUntil sql.NullTime   `db:"reserved_until"`
	Version       int64          `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (r *bookRow) toModel() *models.Book {
	b := &models.Book{
		ID:          r.ID,
		Title:       r.Title,
		ISBN:        r.ISBN,
		Description: r.Description,
		AuthorID:    r.AuthorID,
		GenreIDs:    []string{},
		Status:      models.BookStatus(r.Status),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.SafeShelfID.Valid {
		id := r.SafeShelfID.String
		b.SafeShelfID = &id
	}
	if r.ReservedBy.Valid {
		b.Reservation = &models.Reservation{UserID: r.ReservedBy.String}
		if r.ReservedUntil.Valid {
			b.Reservation.ExpiresAt = r.ReservedUntil.Time.UTC()
		}
	}
	return b
}

func (r reader) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var row bookRow
	query := r.q.Rebind(`SELECT ` + bookColumns + ` FROM books WHERE id = ?` + r.lock)
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		return nil, notFoundOr(err, "pobranie książki", "książka %s nie istnieje", id)
	}
	book := row.toModel()
	if err := r.loadGenres(ctx, []*models.Book{book}); err != nil {
		return nil, err
	}
	return book, nil
}

// loadGenres uzupełnia GenreIDs dla listy książek jednym zapytaniem
func (r reader) loadGenres(ctx context.Context, books []*models.Book) error {
	if len(books) == 0 {
		return nil
	}
	byID := make(map[string]*models.Book, len(books))
	ids := make([]string, 0, len(books))
	for _, b := range books {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}

	query, args, err := sqlx.In(`SELECT book_id, genre_id FROM book_genres WHERE book_id IN (?) ORDER BY genre_id`, ids)
	if err != nil {
		return mapError("pobranie gatunków książek", err)
	}
	var links []struct {
		BookID  string `db:"book_id"`
		GenreID string `db:"genre_id"`
	}
	if err := sqlx.SelectContext(ctx, r.q, &links, r.q.Rebind(query), args...); err != nil {
		return mapError("pobranie gatunków książek", err)
	}
	for _, l := range links {
		if b, ok := byID[l.BookID]; ok {
			b.GenreIDs = append(b.GenreIDs, l.GenreID)
		}
	}
	return nil
}

type entryRow struct {
	BookID     string    `db:"book_id"`
	UserID     string    `db:"user_id"`
	AcquiredAt time.Time `db:"acquired_at"`
}

func (r *entryRow) toModel() *models.InventoryEntry {
	return &models.InventoryEntry{BookID: r.BookID, UserID: r.UserID, AcquiredAt: r.AcquiredAt.UTC()}
}

func (r reader) GetEntry(ctx context.Context, bookID string) (*models.InventoryEntry, error) {
	var row entryRow
	query := r.q.Rebind(`SELECT book_id, user_id, acquired_at FROM inventory WHERE book_id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, bookID); err != nil {
		return nil, notFoundOr(err, "pobranie wpisu inwentarza", "książka %s nie ma posiadacza", bookID)
	}
	return row.toModel(), nil
}

type authorRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *authorRow) toModel() *models.Author {
	return &models.Author{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt.UTC()}
}

func (r reader) GetAuthor(ctx context.Context, id string) (*models.Author, error) {
	var row authorRow
	query := r.q.Rebind(`SELECT id, name, description, created_at FROM authors WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		return nil, notFoundOr(err, "pobranie autora", "autor %s nie istnieje", id)
	}
	return row.toModel(), nil
}

// FindAuthorByName szuka autora po dokładnej nazwie (wielkość liter ma znaczenie)
func (r reader) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	var row authorRow
	query := r.q.Rebind(`SELECT id, name, description, created_at FROM authors WHERE name = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, name); err != nil {
		return nil, notFoundOr(err, "wyszukanie autora", "autor %q nie istnieje", name)
	}
	return row.toModel(), nil
}

func (r reader) GetGenre(ctx context.Context, id string) (*models.Genre, error) {
	var g models.Genre
	query := r.q.Rebind(`SELECT id, name FROM genres WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &g, query, id); err != nil {
		return nil, notFoundOr(err, "pobranie gatunku", "gatunek %s nie istnieje", id)
	}
	return &g, nil
}

type shelfRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Address     string    `db:"address"`
	Hours       string    `db:"hours"`
	Description string    `db:"description"`
	Latitude    float64   `db:"latitude"`
	Longitude   float64   `db:"longitude"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *shelfRow) toModel() *models.SafeShelf {
	return &models.SafeShelf{
		ID:          r.ID,
		Name:        r.Name,
		Address:     r.Address,
		Hours:       r.Hours,
		Description: r.Description,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

const shelfColumns = `id, name, address, hours, description, latitude, longitude, created_at`

func (r reader) GetShelf(ctx context.Context, id string) (*models.SafeShelf, error) {
	var row shelfRow
	query := r.q.Rebind(`SELECT ` + shelfColumns + ` FROM safe_shelves WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.q, &row, query, id); err != nil {
		return nil, notFoundOr(err, "pobranie półki", "półka %s nie istnieje", id)
	}
	return row.toModel(), nil
}

func (r reader) ISBNExists(ctx context.Context, isbn string) (bool, error) {
	var n int
	query := r.q.Rebind(`SELECT COUNT(*) FROM books WHERE isbn = ?`)
	if err := sqlx.GetContext(ctx, r.q, &n, query, isbn); err != nil {
		return false, mapError("sprawdzenie ISBN", err)
	}
	return n > 0, nil
}

type reviewRow struct {
	ID        string    `db:"id"`
	BookID    string    `db:"book_id"`
	UserID    string    `db:"user_id"`
	Text      string    `db:"text"`
	Rating    int       `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
}

func (r reader) ListReviews(ctx context.Context, bookID string) ([]*models.Review, error) {
	var rows []reviewRow
	query := r.q.Rebind(`SELECT id, book_id, user_id, text, rating, created_at FROM reviews
		WHERE book_id = ? ORDER BY created_at DESC, id`)
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, bookID); err != nil {
		return nil, mapError("pobranie opinii", err)
	}
	reviews := make([]*models.Review, 0, len(rows))
	for _, row := range rows {
		reviews = append(reviews, &models.Review{
			ID:        row.ID,
			BookID:    row.BookID,
			UserID:    row.UserID,
			Text:      row.Text,
			Rating:    row.Rating,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return reviews, nil
}
