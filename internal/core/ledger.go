package core

import (
	"context"
	"errors"
	"time"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

// Ledger to inwentarz: kto aktualnie trzyma którą książkę.
// Klucz wpisu to ID książki, więc książka ma co najwyżej jednego posiadacza.
type Ledger struct {
	store store.Store
}

// recordPossession zapisuje posiadanie w transakcji tx.
// Nie czyta przed zapisem; duplikat odrzuca magazyn (klucz główny / Create).
func (l *Ledger) recordPossession(ctx context.Context, tx store.Tx, userID, bookID string, at time.Time) (*models.InventoryEntry, error) {
	entry := &models.InventoryEntry{BookID: bookID, UserID: userID, AcquiredAt: at.UTC()}
	err := tx.InsertEntry(ctx, entry)
	if errors.Is(err, apperr.ErrConflict) {
		return nil, apperr.Conflict("zapis posiadania", "książka %s ma już posiadacza", bookID)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// releasePossession usuwa wpis posiadania książki
func (l *Ledger) releasePossession(ctx context.Context, tx store.Tx, bookID string) error {
	err := tx.DeleteEntry(ctx, bookID)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.NotFound("zwolnienie posiadania", "książka %s nie ma posiadacza", bookID)
	}
	return err
}

// Possessor zwraca aktywny wpis posiadania książki
func (l *Ledger) Possessor(ctx context.Context, bookID string) (*models.InventoryEntry, error) {
	return l.store.GetEntry(ctx, bookID)
}

// ListForUser zwraca książki trzymane przez użytkownika razem z wpisami
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]*models.Holding, error) {
	entries, err := l.store.ListEntriesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings := make([]*models.Holding, 0, len(entries))
	for _, e := range entries {
		book, err := l.store.GetBook(ctx, e.BookID)
		if errors.Is(err, apperr.ErrNotFound) {
			// książka usunięta między odczytami
			continue
		}
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, &models.Holding{Book: book, Entry: e})
	}
	return holdings, nil
}
