package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

const (
	maxAuthorNameLen = 200
	maxGenreNameLen  = 100
)

// Catalog obsługuje dane słownikowe: autorów i gatunki.
// Odczyty idą przez cache, walidacja kluczy obcych w transakcjach czyta magazyn.
type Catalog struct {
	store store.Store
	now   func() time.Time

	authors    *readCache[*models.Author]
	authorList *readCache[[]*models.Author]
	genres     *readCache[*models.Genre]
	genreList  *readCache[[]*models.Genre]
}

func newCatalog(s store.Store, ttl time.Duration, now func() time.Time) *Catalog {
	return &Catalog{
		store:      s,
		now:        now,
		authors:    newReadCache[*models.Author](ttl),
		authorList: newReadCache[[]*models.Author](ttl),
		genres:     newReadCache[*models.Genre](ttl),
		genreList:  newReadCache[[]*models.Genre](ttl),
	}
}

// GetAuthor pobiera autora po ID
func (c *Catalog) GetAuthor(ctx context.Context, id string) (*models.Author, error) {
	return c.authors.get(ctx, id, func(ctx context.Context) (*models.Author, error) {
		return c.store.GetAuthor(ctx, id)
	})
}

// ListAuthors zwraca autorów, opcjonalnie zawężonych do nazw zawierających search
func (c *Catalog) ListAuthors(ctx context.Context, search string) ([]*models.Author, error) {
	all, err := c.authorList.get(ctx, "all", func(ctx context.Context) ([]*models.Author, error) {
		return c.store.ListAuthors(ctx)
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(search) == "" {
		return all, nil
	}
	matched := make([]*models.Author, 0)
	for _, a := range all {
		if store.MatchesSearch(a.Name, search) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

// CreateAuthor zwraca istniejącego autora o identycznej nazwie albo tworzy nowego.
// Porównanie nazw jest dokładne i uwzględnia wielkość liter.
func (c *Catalog) CreateAuthor(ctx context.Context, caller *models.Caller, name, description string) (*models.Author, error) {
	const op = "tworzenie autora"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}
	name, err := normalizeAuthorName(op, name)
	if err != nil {
		return nil, err
	}

	var author *models.Author
	err = c.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := lookupAuthor(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			author = existing
			return nil
		}
		author = c.newAuthor(name, description)
		return tx.InsertAuthor(ctx, author)
	})
	if errors.Is(err, apperr.ErrConflict) {
		// Równoległe utworzenie tego samego autora; zwracamy zwycięzcę
		return c.store.FindAuthorByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	c.invalidateAuthors()
	return author, nil
}

func (c *Catalog) newAuthor(name, description string) *models.Author {
	return &models.Author{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   c.now().UTC(),
	}
}

func (c *Catalog) invalidateAuthors() {
	c.authorList.purge()
}

// GetGenre pobiera gatunek po ID
func (c *Catalog) GetGenre(ctx context.Context, id string) (*models.Genre, error) {
	return c.genres.get(ctx, id, func(ctx context.Context) (*models.Genre, error) {
		return c.store.GetGenre(ctx, id)
	})
}

// ListGenres zwraca wszystkie gatunki
func (c *Catalog) ListGenres(ctx context.Context) ([]*models.Genre, error) {
	return c.genreList.get(ctx, "all", func(ctx context.Context) ([]*models.Genre, error) {
		return c.store.ListGenres(ctx)
	})
}

// CreateGenre dodaje gatunek (tylko administrator)
func (c *Catalog) CreateGenre(ctx context.Context, caller *models.Caller, name string) (*models.Genre, error) {
	const op = "tworzenie gatunku"
	if err := requireAdmin(op, caller); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation(op, "nazwa gatunku jest wymagana")
	}
	if len([]rune(name)) > maxGenreNameLen {
		return nil, apperr.Validation(op, "nazwa gatunku jest za długa")
	}

	genre := &models.Genre{ID: uuid.NewString(), Name: name}
	err := c.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertGenre(ctx, genre)
	})
	if errors.Is(err, apperr.ErrConflict) {
		return nil, apperr.Conflict(op, "gatunek %q już istnieje", name)
	}
	if err != nil {
		return nil, err
	}
	c.genreList.purge()
	return genre, nil
}

// genreNames zamienia ID gatunków na nazwy; nieznane ID są pomijane
func (c *Catalog) genreNames(ctx context.Context, ids []string) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		g, err := c.GetGenre(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		names = append(names, g.Name)
	}
	return names, nil
}

func normalizeAuthorName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation(op, "nazwa autora jest wymagana")
	}
	if len([]rune(name)) > maxAuthorNameLen {
		return "", apperr.Validation(op, "nazwa autora jest za długa")
	}
	return name, nil
}

// lookupAuthor szuka autora w transakcji; brak autora to (nil, nil)
func lookupAuthor(ctx context.Context, tx store.Reader, name string) (*models.Author, error) {
	a, err := tx.FindAuthorByName(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
