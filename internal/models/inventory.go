package models

import "time"

// InventoryEntry oznacza, że użytkownik aktualnie posiada książkę.
// Dla jednej książki istnieje co najwyżej jeden wpis.
type InventoryEntry struct {
	BookID     string    `json:"book_id" firestore:"book_id"`
	UserID     string    `json:"user_id" firestore:"user_id"`
	AcquiredAt time.Time `json:"acquired_at" firestore:"acquired_at"`
}

// Holding łączy książkę z wpisem inwentarza (widok "moje książki")
type Holding struct {
	Book  *Book           `json:"book"`
	Entry *InventoryEntry `json:"entry"`
}
