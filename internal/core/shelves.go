package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

// NewShelf to dane nowej bezpiecznej półki
type NewShelf struct {
	Name        string
	Address     string
	Hours       string
	Description string
	Latitude    float64
	Longitude   float64
}

// ShelfRegistry przechowuje bezpieczne półki
type ShelfRegistry struct {
	store store.Store
	now   func() time.Time

	shelves   *readCache[*models.SafeShelf]
	shelfList *readCache[[]*models.SafeShelf]
}

func newShelfRegistry(s store.Store, ttl time.Duration, now func() time.Time) *ShelfRegistry {
	return &ShelfRegistry{
		store:     s,
		now:       now,
		shelves:   newReadCache[*models.SafeShelf](ttl),
		shelfList: newReadCache[[]*models.SafeShelf](ttl),
	}
}

// GetShelf pobiera półkę po ID
func (r *ShelfRegistry) GetShelf(ctx context.Context, id string) (*models.SafeShelf, error) {
	return r.shelves.get(ctx, id, func(ctx context.Context) (*models.SafeShelf, error) {
		return r.store.GetShelf(ctx, id)
	})
}

// ListShelves zwraca wszystkie półki
func (r *ShelfRegistry) ListShelves(ctx context.Context) ([]*models.SafeShelf, error) {
	return r.shelfList.get(ctx, "all", func(ctx context.Context) ([]*models.SafeShelf, error) {
		return r.store.ListShelves(ctx)
	})
}

// CreateShelf dodaje półkę (tylko administrator)
func (r *ShelfRegistry) CreateShelf(ctx context.Context, caller *models.Caller, in NewShelf) (*models.SafeShelf, error) {
	const op = "tworzenie półki"
	if err := requireAdmin(op, caller); err != nil {
		return nil, err
	}
	shelf := &models.SafeShelf{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Address:     strings.TrimSpace(in.Address),
		Hours:       strings.TrimSpace(in.Hours),
		Description: strings.TrimSpace(in.Description),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		CreatedAt:   r.now().UTC(),
	}
	if shelf.Name == "" {
		return nil, apperr.Validation(op, "nazwa półki jest wymagana")
	}
	if shelf.Latitude < -90 || shelf.Latitude > 90 {
		return nil, apperr.Validation(op, "szerokość geograficzna poza zakresem [-90, 90]")
	}
	if shelf.Longitude < -180 || shelf.Longitude > 180 {
		return nil, apperr.Validation(op, "długość geograficzna poza zakresem [-180, 180]")
	}

	err := r.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertShelf(ctx, shelf)
	})
	if err != nil {
		return nil, err
	}
	r.shelfList.purge()
	return shelf, nil
}

// summary zwraca skrócone dane półki albo nil, gdy książka nie leży na półce
func (r *ShelfRegistry) summary(ctx context.Context, shelfID *string) (*models.ShelfSummary, error) {
	if shelfID == nil {
		return nil, nil
	}
	shelf, err := r.GetShelf(ctx, *shelfID)
	if err != nil {
		return nil, err
	}
	return &models.ShelfSummary{ID: shelf.ID, Name: shelf.Name, Address: shelf.Address}, nil
}
