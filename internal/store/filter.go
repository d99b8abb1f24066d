package store

import (
	"cmp"
	"slices"
	"strings"

	"bookcrossing/internal/models"
)

// MatchesSearch sprawdza czy tytuł zawiera frazę, bez względu na wielkość liter.
// Porównanie odbywa się w Go, bo LOWER() w SQLite nie obsługuje cyrylicy ani polskich znaków.
func MatchesSearch(title, search string) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(title), strings.ToLower(search))
}

// Matches sprawdza książkę względem wszystkich kryteriów filtra
func Matches(b *models.Book, f models.BookFilter) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.AuthorID != "" && b.AuthorID != f.AuthorID {
		return false
	}
	if f.GenreID != "" && !b.HasGenre(f.GenreID) {
		return false
	}
	if f.SafeShelfID != "" && b.ShelfID() != f.SafeShelfID {
		return false
	}
	return MatchesSearch(b.Title, f.Search)
}

// SortByTitle porządkuje książki po tytule, a przy równych tytułach po ID
func SortByTitle(books []*models.Book) {
	slices.SortStableFunc(books, func(a, b *models.Book) int {
		if c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
