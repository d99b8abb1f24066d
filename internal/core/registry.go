package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

const (
	maxTitleLen       = 300
	maxDescriptionLen = 5000
	maxISBNAttempts   = 10
	// maxCreateAttempts ponawia tworzenie po konflikcie ISBN lub nazwy autora
	maxCreateAttempts = 3
)

// StatusAll w zapytaniu wyłącza filtr po statusie
const StatusAll = "all"

// NewBook to dane nowej książki. Autor podawany jest przez AuthorID
// albo przez NewAuthorName (tworzony, jeśli nie istnieje).
type NewBook struct {
	Title                string
	Description          string
	AuthorID             string
	NewAuthorName        string
	NewAuthorDescription string
	GenreIDs             []string
}

// Registry przechowuje książki i ich status
type Registry struct {
	store   store.Store
	catalog *Catalog
	shelves *ShelfRegistry
	ledger  *Ledger
	now     func() time.Time
	newISBN func() string
}

// GetBook pobiera książkę po ID
func (r *Registry) GetBook(ctx context.Context, id string) (*models.Book, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("pobranie książki", "brak ID książki")
	}
	return r.store.GetBook(ctx, id)
}

// ListBooks zwraca książki spełniające filtr, posortowane po tytule.
// Książka z wygasłą rezerwacją jest traktowana jak dostępna.
func (r *Registry) ListBooks(ctx context.Context, filter models.BookFilter) ([]*models.Book, error) {
	now := r.now()
	switch filter.Status {
	case models.StatusAvailable:
		books, err := r.store.ListBooks(ctx, filter)
		if err != nil {
			return nil, err
		}
		reserved := filter
		reserved.Status = models.StatusReserved
		held, err := r.store.ListBooks(ctx, reserved)
		if err != nil {
			return nil, err
		}
		for _, b := range held {
			if b.IsAvailable(now) {
				books = append(books, b.Settled(now))
			}
		}
		store.SortByTitle(books)
		return books, nil
	case models.StatusReserved:
		books, err := r.store.ListBooks(ctx, filter)
		if err != nil {
			return nil, err
		}
		return slices.DeleteFunc(books, func(b *models.Book) bool { return b.IsAvailable(now) }), nil
	}

	books, err := r.store.ListBooks(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i, b := range books {
		books[i] = b.Settled(now)
	}
	return books, nil
}

// countExpiredReservations liczy rezerwacje, które wygasły przed now
func (r *Registry) countExpiredReservations(ctx context.Context) (int, error) {
	reserved, err := r.store.ListBooks(ctx, models.BookFilter{Status: models.StatusReserved})
	if err != nil {
		return 0, err
	}
	now := r.now()
	n := 0
	for _, b := range reserved {
		if b.IsAvailable(now) {
			n++
		}
	}
	return n, nil
}

// ListBookViews zwraca książki z nazwą autora, gatunkami i półką
func (r *Registry) ListBookViews(ctx context.Context, filter models.BookFilter) ([]*models.BookView, error) {
	books, err := r.ListBooks(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*models.BookView, 0, len(books))
	for _, b := range books {
		v, err := r.View(ctx, b)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// View denormalizuje książkę do wyświetlenia
func (r *Registry) View(ctx context.Context, book *models.Book) (*models.BookView, error) {
	view := &models.BookView{Book: book}

	author, err := r.catalog.GetAuthor(ctx, book.AuthorID)
	switch {
	case err == nil:
		view.AuthorName = author.Name
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	}

	if view.GenreNames, err = r.catalog.genreNames(ctx, book.GenreIDs); err != nil {
		return nil, err
	}

	view.Shelf, err = r.shelves.summary(ctx, book.SafeShelfID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	return view, nil
}

// ParseStatusFilter zamienia parametr zapytania na filtr statusu.
// Pusty parametr oznacza książki dostępne, "all" wyłącza filtr.
func ParseStatusFilter(s string) (models.BookStatus, error) {
	switch strings.TrimSpace(s) {
	case "":
		return models.StatusAvailable, nil
	case StatusAll:
		return "", nil
	}
	status, err := models.ParseBookStatus(s)
	if err != nil {
		return "", apperr.Validation("filtr książek", "nieznany status %q", s)
	}
	return status, nil
}

// CreateBook rejestruje książkę u twórcy: status in_hand i wpis w inwentarzu
// powstają w jednej transakcji.
func (r *Registry) CreateBook(ctx context.Context, in NewBook, creatorID string) (*models.Book, error) {
	const op = "tworzenie książki"
	if strings.TrimSpace(creatorID) == "" {
		return nil, apperr.Unauthenticated(op, "brak użytkownika tworzącego")
	}
	in, err := normalizeNewBook(op, in)
	if err != nil {
		return nil, err
	}

	var book *models.Book
	createdAuthor := false
	for attempt := 1; ; attempt++ {
		err = r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			book, createdAuthor, err = r.createBook(ctx, tx, in, creatorID, r.now().UTC())
			return err
		})
		if err == nil || !errors.Is(err, apperr.ErrConflict) || attempt == maxCreateAttempts {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if createdAuthor {
		r.catalog.invalidateAuthors()
	}
	return book, nil
}

// createBook wykonuje najpierw wszystkie odczyty, potem zapisy
func (r *Registry) createBook(ctx context.Context, tx store.Tx, in NewBook, creatorID string, now time.Time) (*models.Book, bool, error) {
	const op = "tworzenie książki"

	var author *models.Author
	var err error
	if in.AuthorID != "" {
		author, err = tx.GetAuthor(ctx, in.AuthorID)
		if err != nil {
			return nil, false, err
		}
	} else if author, err = lookupAuthor(ctx, tx, in.NewAuthorName); err != nil {
		return nil, false, err
	}

	for _, id := range in.GenreIDs {
		if _, err := tx.GetGenre(ctx, id); err != nil {
			return nil, false, err
		}
	}

	isbn, err := r.uniqueISBN(ctx, tx)
	if err != nil {
		return nil, false, err
	}

	createdAuthor := false
	if author == nil {
		author = r.catalog.newAuthor(in.NewAuthorName, in.NewAuthorDescription)
		if err := tx.InsertAuthor(ctx, author); err != nil {
			return nil, false, err
		}
		createdAuthor = true
	}

	book := &models.Book{
		ID:          uuid.NewString(),
		Title:       in.Title,
		ISBN:        isbn,
		Description: in.Description,
		AuthorID:    author.ID,
		GenreIDs:    in.GenreIDs,
		Status:      models.StatusInHand,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.InsertBook(ctx, book); err != nil {
		return nil, false, err
	}
	if _, err := r.ledger.recordPossession(ctx, tx, creatorID, book.ID, now); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return book, createdAuthor, nil
}

func (r *Registry) uniqueISBN(ctx context.Context, tx store.Reader) (string, error) {
	for i := 0; i < maxISBNAttempts; i++ {
		isbn := r.newISBN()
		exists, err := tx.ISBNExists(ctx, isbn)
		if err != nil {
			return "", err
		}
		if !exists {
			return isbn, nil
		}
	}
	return "", apperr.Conflict("generowanie ISBN", "nie udało się wygenerować unikalnego ISBN")
}

// updateStatus zmienia status książki w transakcji.
// Pilnuje reguł obecności półki i rezerwacji oraz porównuje wersję.
func (r *Registry) updateStatus(ctx context.Context, tx store.Tx, book *models.Book, status models.BookStatus,
	shelfID *string, reservation *models.Reservation, now time.Time) error {
	switch status {
	case models.StatusInHand:
		if shelfID != nil || reservation != nil {
			return fmt.Errorf("status in_hand nie może mieć półki ani rezerwacji")
		}
	case models.StatusAvailable:
		if shelfID == nil || reservation != nil {
			return fmt.Errorf("status available wymaga półki i wyklucza rezerwację")
		}
	case models.StatusReserved:
		if shelfID == nil || reservation == nil {
			return fmt.Errorf("status reserved wymaga półki i rezerwacji")
		}
	default:
		return fmt.Errorf("nieznany status %q", status)
	}

	expected := book.Version
	book.Status = status
	book.SafeShelfID = shelfID
	book.Reservation = reservation
	book.UpdatedAt = now.UTC()
	if err := tx.UpdateBook(ctx, book, expected); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return apperr.Conflict("zmiana statusu", "książka %s została zmieniona przez inną operację", book.ID)
		}
		return err
	}
	return nil
}

func normalizeNewBook(op string, in NewBook) (NewBook, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AuthorID = strings.TrimSpace(in.AuthorID)
	in.NewAuthorName = strings.TrimSpace(in.NewAuthorName)
	in.NewAuthorDescription = strings.TrimSpace(in.NewAuthorDescription)

	switch {
	case in.Title == "":
		return in, apperr.Validation(op, "tytuł jest wymagany")
	case len([]rune(in.Title)) > maxTitleLen:
		return in, apperr.Validation(op, "tytuł jest za długi")
	case in.Description == "":
		return in, apperr.Validation(op, "opis jest wymagany")
	case len([]rune(in.Description)) > maxDescriptionLen:
		return in, apperr.Validation(op, "opis jest za długi")
	case in.AuthorID == "" && in.NewAuthorName == "":
		return in, apperr.Validation(op, "autor jest wymagany")
	case in.AuthorID != "" && in.NewAuthorName != "":
		return in, apperr.Validation(op, "podaj ID autora albo nazwę nowego autora, nie oba")
	}
	if in.NewAuthorName != "" {
		if _, err := normalizeAuthorName(op, in.NewAuthorName); err != nil {
			return in, err
		}
	}

	seen := make(map[string]bool, len(in.GenreIDs))
	genres := make([]string, 0, len(in.GenreIDs))
	for _, id := range in.GenreIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		genres = append(genres, id)
	}
	in.GenreIDs = genres
	return in, nil
}
