package firebase

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"bookcrossing/internal/models"
	"bookcrossing/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store implementuje store.Store na Firestore.
// Unikalność (ISBN, nazwy autorów i gatunków, posiadacz książki) zapewniają
// dokumenty indeksów tworzone przez tx.Create w tej samej transakcji.
type Store struct {
	reader
}

// NewStore tworzy magazyn na istniejącym kliencie Firestore
func NewStore(fs *firestore.Client) *Store {
	return &Store{reader: reader{fs: fs, src: directSource{}}}
}

// RunInTx wykonuje fn w transakcji Firestore.
// Firestore może ponowić fn przy konflikcie, więc fn nie może mieć skutków ubocznych.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	err := s.fs.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		return fn(ctx, newTx(s.fs, ftx))
	})
	return mapError("transakcja Firestore", err)
}

// Close nic nie robi - połączenie zamyka firebase.Client
func (s *Store) Close() error {
	return nil
}

// seenBook to stan książki odczytany w bieżącej transakcji
type seenBook struct {
	updateTime time.Time
	version    int64
	isbn       string
}

// tx realizuje store.Tx. Zapisy nie mogą czytać, dlatego UpdateBook
// i DeleteBook korzystają z danych zapamiętanych przy GetBook.
type tx struct {
	reader
	tx   *firestore.Transaction
	seen map[string]seenBook
}

func newTx(fs *firestore.Client, ftx *firestore.Transaction) *tx {
	return &tx{
		reader: reader{fs: fs, src: txSource{tx: ftx}},
		tx:     ftx,
		seen:   make(map[string]seenBook),
	}
}

// GetBook odczytuje książkę i zapamiętuje czas aktualizacji dokumentu
func (t *tx) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, doc, err := t.getBook(ctx, id)
	if err != nil {
		return nil, err
	}
	t.seen[id] = seenBook{updateTime: doc.UpdateTime, version: book.Version, isbn: book.ISBN}
	return book, nil
}

// create zapisuje nowy dokument; istniejący kończy transakcję konfliktem
func (t *tx) create(op string, ref *firestore.DocumentRef, data any) error {
	if err := t.tx.Create(ref, data); err != nil {
		return mapError(op, err)
	}
	return nil
}

// delete usuwa dokument, którego brak kończy transakcję błędem NotFound
func (t *tx) delete(op string, ref *firestore.DocumentRef) error {
	if err := t.tx.Delete(ref, firestore.Exists); err != nil {
		return mapError(op, err)
	}
	return nil
}
