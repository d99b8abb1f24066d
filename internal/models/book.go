package models

import (
	"fmt"
	"time"
)

// BookStatus określa stan książki w cyklu wymiany
type BookStatus string

const (
	StatusInHand    BookStatus = "in_hand"   // U użytkownika (wpis w inwentarzu)
	StatusAvailable BookStatus = "available" // Na bezpiecznej półce, dostępna dla każdego
	StatusReserved  BookStatus = "reserved"  // Na półce, zarezerwowana przez użytkownika
)

// Valid sprawdza czy status jest znany
func (s BookStatus) Valid() bool {
	switch s {
	case StatusInHand, StatusAvailable, StatusReserved:
		return true
	}
	return false
}

// ParseBookStatus zamienia tekst na status
func ParseBookStatus(s string) (BookStatus, error) {
	status := BookStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("nieznany status książki: %q", s)
	}
	return status, nil
}

// Book reprezentuje fizyczną książkę w obiegu.
// Posiadacz nie jest polem książki - źródłem prawdy jest inwentarz.
type Book struct {
	ID          string       `json:"id" firestore:"id"`
	Title       string       `json:"title" firestore:"title"`
	ISBN        string       `json:"isbn" firestore:"isbn"`
	Description string       `json:"description" firestore:"description"`
	AuthorID    string       `json:"author_id" firestore:"author_id"`
	GenreIDs    []string     `json:"genre_ids" firestore:"genre_ids"`
	Status      BookStatus   `json:"status" firestore:"status"`
	SafeShelfID *string      `json:"safe_shelf_id" firestore:"safe_shelf_id"`
	Reservation *Reservation `json:"reservation,omitempty" firestore:"reservation,omitempty"`
	Version     int64        `json:"version" firestore:"version"`
	CreatedAt   time.Time    `json:"created_at" firestore:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" firestore:"updated_at"`
}

// ShelfID zwraca ID półki lub pusty string
func (b *Book) ShelfID() string {
	if b.SafeShelfID == nil {
		return ""
	}
	return *b.SafeShelfID
}

// IsAvailable sprawdza czy książkę można zabrać lub zarezerwować w chwili now.
// Wygasła rezerwacja nie blokuje książki.
func (b *Book) IsAvailable(now time.Time) bool {
	switch b.Status {
	case StatusAvailable:
		return true
	case StatusReserved:
		return b.Reservation == nil || b.Reservation.IsExpired(now)
	}
	return false
}

// Settled zwraca książkę widzianą w chwili now: wygasła rezerwacja
// wraca do stanu available. Zapisany rekord nie jest zmieniany.
func (b *Book) Settled(now time.Time) *Book {
	if b.Status != StatusReserved || !b.IsAvailable(now) {
		return b
	}
	c := b.Clone()
	c.Status = StatusAvailable
	c.Reservation = nil
	return c
}

// IsReservedBy sprawdza czy książka ma aktywną rezerwację danego użytkownika
func (b *Book) IsReservedBy(userID string, now time.Time) bool {
	return b.Status == StatusReserved && b.Reservation != nil &&
		b.Reservation.UserID == userID && !b.Reservation.IsExpired(now)
}

// HasGenre sprawdza czy książka należy do gatunku
func (b *Book) HasGenre(genreID string) bool {
	for _, id := range b.GenreIDs {
		if id == genreID {
			return true
		}
	}
	return false
}

// CheckConsistency weryfikuje zgodność statusu z wpisem inwentarza i półką.
// entry to aktywny wpis dla tej książki albo nil.
func (b *Book) CheckConsistency(entry *InventoryEntry) error {
	switch b.Status {
	case StatusInHand:
		if entry == nil {
			return fmt.Errorf("książka %s in_hand bez wpisu w inwentarzu", b.ID)
		}
		if b.SafeShelfID != nil {
			return fmt.Errorf("książka %s in_hand przypisana do półki %s", b.ID, *b.SafeShelfID)
		}
		if b.Reservation != nil {
			return fmt.Errorf("książka %s in_hand z rezerwacją", b.ID)
		}
	case StatusAvailable, StatusReserved:
		if entry != nil {
			return fmt.Errorf("książka %s %s, ale posiada ją %s", b.ID, b.Status, entry.UserID)
		}
		if b.SafeShelfID == nil || *b.SafeShelfID == "" {
			return fmt.Errorf("książka %s %s bez półki", b.ID, b.Status)
		}
		if b.Status == StatusReserved && b.Reservation == nil {
			return fmt.Errorf("książka %s reserved bez rezerwacji", b.ID)
		}
		if b.Status == StatusAvailable && b.Reservation != nil {
			return fmt.Errorf("książka %s available z rezerwacją", b.ID)
		}
	default:
		return fmt.Errorf("książka %s ma nieznany status %q", b.ID, b.Status)
	}
	if entry != nil && entry.BookID != b.ID {
		return fmt.Errorf("wpis inwentarza %s nie należy do książki %s", entry.BookID, b.ID)
	}
	return nil
}

// Clone zwraca głęboką kopię książki
func (b *Book) Clone() *Book {
	c := *b
	if b.GenreIDs != nil {
		c.GenreIDs = append([]string(nil), b.GenreIDs...)
	}
	if b.SafeShelfID != nil {
		id := *b.SafeShelfID
		c.SafeShelfID = &id
	}
	if b.Reservation != nil {
		r := *b.Reservation
		c.Reservation = &r
	}
	return &c
}

// BookFilter opisuje kryteria wyszukiwania książek.
// Pusty Status oznacza brak filtra po statusie.
type BookFilter struct {
	Search      string
	AuthorID    string
	GenreID     string
	SafeShelfID string
	Status      BookStatus
}
