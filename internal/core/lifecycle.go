// Package core to rdzeń wymiany książek: katalog, półki, rejestr książek,
// inwentarz oraz silnik cyklu życia, który zmienia status książki i wpis
// posiadania w jednej transakcji magazynu.
//
// Stany książki:
//
//	in_hand(u)       - książkę trzyma użytkownik u (wpis w inwentarzu)
//	available(s)     - książka leży na półce s
//	reserved(u, s)   - książka leży na półce s, zarezerwowana przez u
//
// Z dwóch równoległych przejść tej samej książki wygrywa pierwsze zatwierdzone,
// drugie dostaje apperr.ErrConflict.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/notify"
	"bookcrossing/internal/store"
)

const (
	DefaultReservationTTL = 48 * time.Hour
	DefaultCacheTTL       = 5 * time.Minute
	maxReviewLen          = 2000
)

// Engine wykonuje przejścia cyklu życia książek
type Engine struct {
	store    store.Store
	catalog  *Catalog
	shelves  *ShelfRegistry
	registry *Registry
	ledger   *Ledger

	notifier       notify.Notifier
	logger         *slog.Logger
	now            func() time.Time
	reservationTTL time.Duration
	cacheTTL       time.Duration
	newISBN        func() string
}

// Option konfiguruje Engine
type Option func(*Engine)

// WithClock podmienia zegar (testy, wygasanie rezerwacji)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithReservationTTL ustawia czas trwania rezerwacji
func WithReservationTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.reservationTTL = ttl }
}

// WithCacheTTL ustawia czas życia cache autorów, gatunków i półek
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.cacheTTL = ttl }
}

// WithISBNGenerator podmienia generator ISBN
func WithISBNGenerator(gen func() string) Option {
	return func(e *Engine) { e.newISBN = gen }
}

// NewEngine tworzy silnik i jego rejestry na magazynie s
func NewEngine(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		logger:         slog.Default(),
		now:            time.Now,
		reservationTTL: DefaultReservationTTL,
		cacheTTL:       DefaultCacheTTL,
		newISBN:        generateISBN,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = notify.NewLogNotifier(e.logger)
	}

	e.catalog = newCatalog(s, e.cacheTTL, e.now)
	e.shelves = newShelfRegistry(s, e.cacheTTL, e.now)
	e.ledger = &Ledger{store: s}
	e.registry = &Registry{
		store:   s,
		catalog: e.catalog,
		shelves: e.shelves,
		ledger:  e.ledger,
		now:     e.now,
		newISBN: e.newISBN,
	}
	return e
}

func (e *Engine) Catalog() *Catalog { return e.catalog }

func (e *Engine) Shelves() *ShelfRegistry { return e.shelves }

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Ledger() *Ledger { return e.ledger }

// Create rejestruje nową książkę w rękach wywołującego
func (e *Engine) Create(ctx context.Context, caller *models.Caller, in NewBook) (*models.Book, error) {
	const op = "tworzenie książki"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}

	var book *models.Book
	err := e.observe(ctx, transitionCreate, "", caller.UserID, func(ctx context.Context) error {
		var err error
		book, err = e.registry.CreateBook(ctx, in, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notify.EventCreated, book, caller.UserID)
	return book, nil
}

// Release odkłada trzymaną książkę na bezpieczną półkę
func (e *Engine) Release(ctx context.Context, caller *models.Caller, bookID, shelfID string) (*models.Book, error) {
	const op = "odłożenie książki"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}
	if err := requireIDs(op, bookID, shelfID); err != nil {
		return nil, err
	}

	var book *models.Book
	err := e.observe(ctx, transitionRelease, bookID, caller.UserID, func(ctx context.Context) error {
		return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			book, err = tx.GetBook(ctx, bookID)
			if err != nil {
				return err
			}
			if _, err := tx.GetShelf(ctx, shelfID); err != nil {
				return err
			}
			if book.Status != models.StatusInHand {
				return apperr.Conflict(op, "książka została już odłożona na półkę")
			}
			entry, err := tx.GetEntry(ctx, bookID)
			if errors.Is(err, apperr.ErrNotFound) {
				return fmt.Errorf("%s: książka %s in_hand bez posiadacza", op, bookID)
			}
			if err != nil {
				return err
			}
			if !caller.CanActFor(entry.UserID) {
				return apperr.Permission(op, "tylko posiadacz może odłożyć książkę")
			}

			if err := e.ledger.releasePossession(ctx, tx, bookID); err != nil {
				return err
			}
			shelf := shelfID
			return e.registry.updateStatus(ctx, tx, book, models.StatusAvailable, &shelf, nil, e.now())
		})
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notify.EventReleased, book, caller.UserID)
	return book, nil
}

// Take zabiera książkę z półki do rąk wywołującego.
// Zarezerwowaną książkę może zabrać rezerwujący albo każdy po wygaśnięciu rezerwacji.
func (e *Engine) Take(ctx context.Context, caller *models.Caller, bookID string) (*models.Book, *models.InventoryEntry, error) {
	const op = "zabranie książki"
	if err := requireCaller(op, caller); err != nil {
		return nil, nil, err
	}
	if err := requireIDs(op, bookID); err != nil {
		return nil, nil, err
	}

	var (
		book   *models.Book
		entry  *models.InventoryEntry
		fromID string
	)
	err := e.observe(ctx, transitionTake, bookID, caller.UserID, func(ctx context.Context) error {
		return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			book, err = tx.GetBook(ctx, bookID)
			if err != nil {
				return err
			}
			now := e.now()
			switch {
			case book.Status == models.StatusInHand:
				return apperr.Conflict(op, "książka nie jest już dostępna")
			case book.Status == models.StatusReserved && !book.IsReservedBy(caller.UserID, now) && !book.IsAvailable(now):
				return apperr.Conflict(op, "książka jest zarezerwowana przez innego użytkownika")
			}
			fromID = book.ShelfID()

			if err := e.registry.updateStatus(ctx, tx, book, models.StatusInHand, nil, nil, now); err != nil {
				return err
			}
			entry, err = e.ledger.recordPossession(ctx, tx, caller.UserID, bookID, now)
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}
	e.notifyFrom(ctx, notify.EventTaken, book, caller.UserID, fromID)
	return book, entry, nil
}

// Reserve rezerwuje książkę leżącą na półce na czas ReservationTTL
func (e *Engine) Reserve(ctx context.Context, caller *models.Caller, bookID string) (*models.Book, error) {
	const op = "rezerwacja książki"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}
	if err := requireIDs(op, bookID); err != nil {
		return nil, err
	}

	var book *models.Book
	err := e.observe(ctx, transitionReserve, bookID, caller.UserID, func(ctx context.Context) error {
		return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			book, err = tx.GetBook(ctx, bookID)
			if err != nil {
				return err
			}
			now := e.now()
			if !book.IsAvailable(now) {
				return apperr.Conflict(op, "książka nie jest dostępna do rezerwacji")
			}
			reservation := &models.Reservation{UserID: caller.UserID, ExpiresAt: now.Add(e.reservationTTL).UTC()}
			return e.registry.updateStatus(ctx, tx, book, models.StatusReserved, book.SafeShelfID, reservation, now)
		})
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notify.EventReserved, book, caller.UserID)
	return book, nil
}

// CancelReservation zdejmuje rezerwację; może to zrobić rezerwujący lub administrator
func (e *Engine) CancelReservation(ctx context.Context, caller *models.Caller, bookID string) (*models.Book, error) {
	const op = "anulowanie rezerwacji"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}
	if err := requireIDs(op, bookID); err != nil {
		return nil, err
	}

	var book *models.Book
	err := e.observe(ctx, transitionCancel, bookID, caller.UserID, func(ctx context.Context) error {
		return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			book, err = tx.GetBook(ctx, bookID)
			if err != nil {
				return err
			}
			if book.Status != models.StatusReserved || book.Reservation == nil {
				return apperr.Conflict(op, "książka nie jest zarezerwowana")
			}
			if !caller.CanActFor(book.Reservation.UserID) {
				return apperr.Permission(op, "tylko rezerwujący może anulować rezerwację")
			}
			return e.registry.updateStatus(ctx, tx, book, models.StatusAvailable, book.SafeShelfID, nil, e.now())
		})
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notify.EventReservationCanceled, book, caller.UserID)
	return book, nil
}

// Delete usuwa książkę w dowolnym stanie razem z wpisem inwentarza i opiniami
func (e *Engine) Delete(ctx context.Context, caller *models.Caller, bookID string) error {
	const op = "usunięcie książki"
	if err := requireAdmin(op, caller); err != nil {
		return err
	}
	if err := requireIDs(op, bookID); err != nil {
		return err
	}

	var book *models.Book
	err := e.observe(ctx, transitionDelete, bookID, caller.UserID, func(ctx context.Context) error {
		return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			book, err = tx.GetBook(ctx, bookID)
			if err != nil {
				return err
			}
			held := true
			if _, err := tx.GetEntry(ctx, bookID); errors.Is(err, apperr.ErrNotFound) {
				held = false
			} else if err != nil {
				return err
			}
			reviews, err := tx.ListReviews(ctx, bookID)
			if err != nil {
				return err
			}

			for _, r := range reviews {
				if err := tx.DeleteReview(ctx, r.ID); err != nil {
					return err
				}
			}
			if held {
				if err := e.ledger.releasePossession(ctx, tx, bookID); err != nil {
					return err
				}
			}
			return tx.DeleteBook(ctx, bookID)
		})
	})
	if err != nil {
		return err
	}
	e.notify(ctx, notify.EventDeleted, book, caller.UserID)
	return nil
}

// GetBookView zwraca książkę zdenormalizowaną do wyświetlenia
func (e *Engine) GetBookView(ctx context.Context, bookID string) (*models.BookView, error) {
	book, err := e.registry.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return e.registry.View(ctx, book.Settled(e.now()))
}

// Holdings zwraca książki trzymane przez userID; cudze tylko dla administratora
func (e *Engine) Holdings(ctx context.Context, caller *models.Caller, userID string) ([]*models.Holding, error) {
	const op = "pobranie inwentarza"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = caller.UserID
	}
	if !caller.CanActFor(userID) {
		return nil, apperr.Permission(op, "brak dostępu do inwentarza innego użytkownika")
	}
	return e.ledger.ListForUser(ctx, userID)
}

// AddReview dopisuje opinię o książce
func (e *Engine) AddReview(ctx context.Context, caller *models.Caller, bookID, text string, rating int) (*models.Review, error) {
	const op = "dodanie opinii"
	if err := requireCaller(op, caller); err != nil {
		return nil, err
	}
	if err := requireIDs(op, bookID); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation(op, "treść opinii jest wymagana")
	}
	if len([]rune(text)) > maxReviewLen {
		return nil, apperr.Validation(op, "opinia jest za długa")
	}
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation(op, "ocena musi być z zakresu 1-5")
	}

	review := &models.Review{
		ID:        uuid.NewString(),
		BookID:    bookID,
		UserID:    caller.UserID,
		Text:      text,
		Rating:    rating,
		CreatedAt: e.now().UTC(),
	}
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetBook(ctx, bookID); err != nil {
			return err
		}
		return tx.InsertReview(ctx, review)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ListReviews zwraca opinie o książce, najnowsze pierwsze
func (e *Engine) ListReviews(ctx context.Context, bookID string) ([]*models.Review, error) {
	if _, err := e.registry.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return e.store.ListReviews(ctx, bookID)
}

// Stats zwraca liczniki dla strony głównej
func (e *Engine) Stats(ctx context.Context) (*models.Stats, error) {
	counts, err := e.store.CountBooksByStatus(ctx)
	if err != nil {
		return nil, err
	}
	expired, err := e.registry.countExpiredReservations(ctx)
	if err != nil {
		return nil, err
	}
	expired = min(expired, counts[models.StatusReserved])
	shelves, err := e.shelves.ListShelves(ctx)
	if err != nil {
		return nil, err
	}
	// wygasłe rezerwacje liczą się jako dostępne
	stats := &models.Stats{
		AvailableBooks:   counts[models.StatusAvailable] + expired,
		InHandBooks:      counts[models.StatusInHand],
		ReservedBooks:    counts[models.StatusReserved] - expired,
		TotalSafeShelves: len(shelves),
	}
	stats.TotalBooks = stats.AvailableBooks + stats.InHandBooks + stats.ReservedBooks
	return stats, nil
}

// VerifyBook sprawdza zgodność statusu książki z inwentarzem
func (e *Engine) VerifyBook(ctx context.Context, bookID string) error {
	book, err := e.store.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	entry, err := e.store.GetEntry(ctx, bookID)
	if errors.Is(err, apperr.ErrNotFound) {
		entry = nil
	} else if err != nil {
		return err
	}
	if err := book.CheckConsistency(entry); err != nil {
		return err
	}
	if book.SafeShelfID != nil {
		if _, err := e.store.GetShelf(ctx, *book.SafeShelfID); err != nil {
			return fmt.Errorf("książka %s na nieistniejącej półce: %w", bookID, err)
		}
	}
	return nil
}

func (e *Engine) notify(ctx context.Context, t notify.EventType, book *models.Book, userID string) {
	e.notifyFrom(ctx, t, book, userID, book.ShelfID())
}

// notifyFrom wysyła zdarzenie po zatwierdzeniu; błąd wysyłki tylko logujemy
func (e *Engine) notifyFrom(ctx context.Context, t notify.EventType, book *models.Book, userID, shelfID string) {
	event := notify.Event{
		Type:        t,
		BookID:      book.ID,
		Title:       book.Title,
		UserID:      userID,
		SafeShelfID: shelfID,
		At:          e.now().UTC(),
	}
	if err := e.notifier.Notify(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "nie udało się wysłać powiadomienia",
			slog.String("type", string(t)),
			slog.String("book_id", book.ID),
			slog.String("error", err.Error()),
		)
	}
}

func requireIDs(op string, ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return apperr.Validation(op, "brak wymaganego identyfikatora")
		}
	}
	return nil
}
