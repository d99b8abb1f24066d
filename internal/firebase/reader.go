package firebase

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bookcrossing/internal/models"
)

// Nazwy kolekcji w Firestore
const (
	BooksCollection       = "books"
	InventoryCollection   = "inventory"
	AuthorsCollection     = "authors"
	AuthorNamesCollection = "author_names"
	GenresCollection      = "genres"
	GenreNamesCollection  = "genre_names"
	ShelvesCollection     = "safe_shelves"
	ISBNsCollection       = "isbns"
	ReviewsCollection     = "reviews"
)

// docSource ukrywa różnicę między odczytem w transakcji i poza nią
type docSource interface {
	get(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error)
	documents(ctx context.Context, q firestore.Query) *firestore.DocumentIterator
}

type directSource struct{}

func (directSource) get(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	return ref.Get(ctx)
}

func (directSource) documents(ctx context.Context, q firestore.Query) *firestore.DocumentIterator {
	return q.Documents(ctx)
}

type txSource struct {
	tx *firestore.Transaction
}

func (s txSource) get(_ context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	return s.tx.Get(ref)
}

func (s txSource) documents(_ context.Context, q firestore.Query) *firestore.DocumentIterator {
	return s.tx.Documents(q)
}

// indexDoc to dokument indeksu unikalności (nazwa autora, gatunku, ISBN)
type indexDoc struct {
	ID string `firestore:"id"`
}

// nameKey zamienia dowolną nazwę na bezpieczne ID dokumentu
func nameKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

// reader realizuje store.Reader
type reader struct {
	fs  *firestore.Client
	src docSource
}

func (r reader) getBook(ctx context.Context, id string) (*models.Book, *firestore.DocumentSnapshot, error) {
	doc, err := r.src.get(ctx, r.fs.Collection(BooksCollection).Doc(id))
	if err != nil {
		return nil, nil, notFoundOr(err, "pobranie książki", "książka %s nie istnieje", id)
	}
	book, err := decodeBook(doc)
	if err != nil {
		return nil, nil, err
	}
	return book, doc, nil
}

func (r reader) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, _, err := r.getBook(ctx, id)
	return book, err
}

func decodeBook(doc *firestore.DocumentSnapshot) (*models.Book, error) {
	var book models.Book
	if err := doc.DataTo(&book); err != nil {
		return nil, mapError("parsowanie książki", err)
	}
	// Ustaw ID z dokumentu Firestore
	book.ID = doc.Ref.ID
	if book.GenreIDs == nil {
		book.GenreIDs = []string{}
	}
	book.CreatedAt = book.CreatedAt.UTC()
	book.UpdatedAt = book.UpdatedAt.UTC()
	if book.Reservation != nil {
		book.Reservation.ExpiresAt = book.Reservation.ExpiresAt.UTC()
	}
	return &book, nil
}

func (r reader) GetEntry(ctx context.Context, bookID string) (*models.InventoryEntry, error) {
	doc, err := r.src.get(ctx, r.fs.Collection(InventoryCollection).Doc(bookID))
	if err != nil {
		return nil, notFoundOr(err, "pobranie wpisu inwentarza", "książka %s nie ma posiadacza", bookID)
	}
	var entry models.InventoryEntry
	if err := doc.DataTo(&entry); err != nil {
		return nil, mapError("parsowanie wpisu inwentarza", err)
	}
	entry.AcquiredAt = entry.AcquiredAt.UTC()
	return &entry, nil
}

func (r reader) GetAuthor(ctx context.Context, id string) (*models.Author, error) {
	doc, err := r.src.get(ctx, r.fs.Collection(AuthorsCollection).Doc(id))
	if err != nil {
		return nil, notFoundOr(err, "pobranie autora", "autor %s nie istnieje", id)
	}
	var author models.Author
	if err := doc.DataTo(&author); err != nil {
		return nil, mapError("parsowanie autora", err)
	}
	author.ID = doc.Ref.ID
	author.CreatedAt = author.CreatedAt.UTC()
	return &author, nil
}

// FindAuthorByName czyta indeks author_names, a potem autora
func (r reader) FindAuthorByName(ctx context.Context, name string) (*models.Author, error) {
	doc, err := r.src.get(ctx, r.fs.Collection(AuthorNamesCollection).Doc(nameKey(name)))
	if err != nil {
		return nil, notFoundOr(err, "wyszukanie autora", "autor %q nie istnieje", name)
	}
	var idx indexDoc
	if err := doc.DataTo(&idx); err != nil {
		return nil, mapError("parsowanie indeksu autora", err)
	}
	return r.GetAuthor(ctx, idx.ID)
}

func (r reader) GetGenre(ctx context.Context, id string) (*models.Genre, error) {
	doc, err := r.src.get(ctx, r.fs.Collection(GenresCollection).Doc(id))
	if err != nil {
		return nil, notFoundOr(err, "pobranie gatunku", "gatunek %s nie istnieje", id)
	}
	var genre models.Genre
	if err := doc.DataTo(&genre); err != nil {
		return nil, mapError("parsowanie gatunku", err)
	}
	genre.ID = doc.Ref.ID
	return &genre, nil
}

func (r reader) GetShelf(ctx context.Context, id string) (*models.SafeShelf, error) {
	doc, err := r.src.get(ctx, r.fs.Collection(ShelvesCollection).Doc(id))
	if err != nil {
		return nil, notFoundOr(err, "pobranie półki", "półka %s nie istnieje", id)
	}
	return decodeShelf(doc)
}

func decodeShelf(doc *firestore.DocumentSnapshot) (*models.SafeShelf, error) {
	var shelf models.SafeShelf
	if err := doc.DataTo(&shelf); err != nil {
		return nil, mapError("parsowanie półki", err)
	}
	shelf.ID = doc.Ref.ID
	shelf.CreatedAt = shelf.CreatedAt.UTC()
	return &shelf, nil
}

func (r reader) ISBNExists(ctx context.Context, isbn string) (bool, error) {
	_, err := r.src.get(ctx, r.fs.Collection(ISBNsCollection).Doc(isbn))
	switch {
	case err == nil:
		return true, nil
	case status.Code(err) == codes.NotFound:
		return false, nil
	}
	return false, mapError("sprawdzenie ISBN", err)
}

// ListReviews zwraca opinie o książce, najnowsze pierwsze.
// Sortowanie w Go, żeby nie wymagać indeksu złożonego.
func (r reader) ListReviews(ctx context.Context, bookID string) ([]*models.Review, error) {
	q := r.fs.Collection(ReviewsCollection).Where("book_id", "==", bookID)
	iter := r.src.documents(ctx, q)
	defer iter.Stop()

	reviews := make([]*models.Review, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapError("pobieranie opinii", err)
		}
		var review models.Review
		if err := doc.DataTo(&review); err != nil {
			return nil, mapError("parsowanie opinii", err)
		}
		review.ID = doc.Ref.ID
		review.CreatedAt = review.CreatedAt.UTC()
		reviews = append(reviews, &review)
	}

	slices.SortStableFunc(reviews, func(a, b *models.Review) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return reviews, nil
}
