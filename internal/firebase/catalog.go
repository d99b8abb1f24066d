package firebase

import (
	"cmp"
	"context"
	"slices"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"bookcrossing/internal/models"
)

// InsertAuthor zapisuje autora i indeks jego nazwy.
// Istniejąca nazwa kończy transakcję konfliktem.
func (t *tx) InsertAuthor(ctx context.Context, author *models.Author) error {
	if err := t.create("zapis autora", t.fs.Collection(AuthorsCollection).Doc(author.ID), author); err != nil {
		return err
	}
	return t.create("zapis nazwy autora", t.fs.Collection(AuthorNamesCollection).Doc(nameKey(author.Name)), indexDoc{ID: author.ID})
}

// InsertGenre zapisuje gatunek i indeks jego nazwy
func (t *tx) InsertGenre(ctx context.Context, genre *models.Genre) error {
	if err := t.create("zapis gatunku", t.fs.Collection(GenresCollection).Doc(genre.ID), genre); err != nil {
		return err
	}
	return t.create("zapis nazwy gatunku", t.fs.Collection(GenreNamesCollection).Doc(nameKey(genre.Name)), indexDoc{ID: genre.ID})
}

func (t *tx) InsertShelf(ctx context.Context, shelf *models.SafeShelf) error {
	return t.create("zapis półki", t.fs.Collection(ShelvesCollection).Doc(shelf.ID), shelf)
}

func (t *tx) InsertReview(ctx context.Context, review *models.Review) error {
	return t.create("zapis opinii", t.fs.Collection(ReviewsCollection).Doc(review.ID), review)
}

func (t *tx) DeleteReview(ctx context.Context, id string) error {
	return t.delete("usunięcie opinii", t.fs.Collection(ReviewsCollection).Doc(id))
}

// ListAuthors zwraca wszystkich autorów posortowanych po nazwie
func (s *Store) ListAuthors(ctx context.Context) ([]*models.Author, error) {
	authors := make([]*models.Author, 0)
	err := s.each(ctx, s.fs.Collection(AuthorsCollection).Query, func(doc *firestore.DocumentSnapshot) error {
		var a models.Author
		if err := doc.DataTo(&a); err != nil {
			return mapError("parsowanie autora", err)
		}
		a.ID = doc.Ref.ID
		a.CreatedAt = a.CreatedAt.UTC()
		authors = append(authors, &a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(authors, func(a, b *models.Author) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return authors, nil
}

// ListGenres zwraca wszystkie gatunki posortowane po nazwie
func (s *Store) ListGenres(ctx context.Context) ([]*models.Genre, error) {
	genres := make([]*models.Genre, 0)
	err := s.each(ctx, s.fs.Collection(GenresCollection).Query, func(doc *firestore.DocumentSnapshot) error {
		var g models.Genre
		if err := doc.DataTo(&g); err != nil {
			return mapError("parsowanie gatunku", err)
		}
		g.ID = doc.Ref.ID
		genres = append(genres, &g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(genres, func(a, b *models.Genre) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return genres, nil
}

// ListShelves zwraca wszystkie bezpieczne półki posortowane po nazwie
func (s *Store) ListShelves(ctx context.Context) ([]*models.SafeShelf, error) {
	shelves := make([]*models.SafeShelf, 0)
	err := s.each(ctx, s.fs.Collection(ShelvesCollection).Query, func(doc *firestore.DocumentSnapshot) error {
		shelf, err := decodeShelf(doc)
		if err != nil {
			return err
		}
		shelves = append(shelves, shelf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(shelves, func(a, b *models.SafeShelf) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return shelves, nil
}

// each przechodzi po wynikach zapytania poza transakcją
func (s *Store) each(ctx context.Context, q firestore.Query, fn func(doc *firestore.DocumentSnapshot) error) error {
	iter := q.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return mapError("pobieranie dokumentów", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}
