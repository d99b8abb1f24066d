package models

// ShelfSummary to skrócone dane półki do list książek
type ShelfSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// BookView to książka zdenormalizowana do wyświetlania
type BookView struct {
	*Book
	AuthorName string        `json:"author_name"`
	GenreNames []string      `json:"genre_names"`
	Shelf      *ShelfSummary `json:"shelf,omitempty"`
}

// Stats zawiera liczniki dla strony głównej
type Stats struct {
	TotalBooks       int `json:"total_books"`
	AvailableBooks   int `json:"available_books"`
	InHandBooks      int `json:"in_hand_books"`
	ReservedBooks    int `json:"reserved_books"`
	TotalSafeShelves int `json:"total_safeshelves"`
}
