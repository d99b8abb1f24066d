package firebase

import (
	"context"
	"slices"

	"cloud.google.com/go/firestore"

	"bookcrossing/internal/models"
)

// InsertEntry zapisuje posiadacza książki. Dokument ma ID książki,
// więc drugi posiadacz kończy transakcję konfliktem.
func (t *tx) InsertEntry(ctx context.Context, entry *models.InventoryEntry) error {
	return t.create("zapis wpisu inwentarza", t.fs.Collection(InventoryCollection).Doc(entry.BookID), entry)
}

func (t *tx) DeleteEntry(ctx context.Context, bookID string) error {
	return t.delete("usunięcie wpisu inwentarza", t.fs.Collection(InventoryCollection).Doc(bookID))
}

// ListEntriesForUser zwraca książki posiadane przez użytkownika, najnowsze pierwsze
func (s *Store) ListEntriesForUser(ctx context.Context, userID string) ([]*models.InventoryEntry, error) {
	entries := make([]*models.InventoryEntry, 0)
	q := s.fs.Collection(InventoryCollection).Where("user_id", "==", userID)
	err := s.each(ctx, q, func(doc *firestore.DocumentSnapshot) error {
		var e models.InventoryEntry
		if err := doc.DataTo(&e); err != nil {
			return mapError("parsowanie wpisu inwentarza", err)
		}
		e.AcquiredAt = e.AcquiredAt.UTC()
		entries = append(entries, &e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b *models.InventoryEntry) int {
		return b.AcquiredAt.Compare(a.AcquiredAt)
	})
	return entries, nil
}
