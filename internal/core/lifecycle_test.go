package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
	"bookcrossing/internal/notify"
	"bookcrossing/internal/sqlstore"
	"bookcrossing/internal/store"
)

var (
	admin = &models.Caller{UserID: "admin", Role: models.RoleAdmin}
	alice = &models.Caller{UserID: "alice", Role: models.RoleMember}
	bob   = &models.Caller{UserID: "bob", Role: models.RoleMember}
	carol = &models.Caller{UserID: "carol", Role: models.RoleMember}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	store  store.Store
	clock  *testClock
	events *notify.Recorder
	genre  *models.Genre
	shelf  *models.SafeShelf
}

func openTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, openTestStore(t), opts...)
}

func newTestEnvWithStore(t *testing.T, s store.Store, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  s,
		clock:  &testClock{now: time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)},
		events: &notify.Recorder{},
	}
	base := []Option{
		WithClock(env.clock.Now),
		WithNotifier(env.events),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithReservationTTL(time.Hour),
	}
	env.engine = NewEngine(s, append(base, opts...)...)

	ctx := context.Background()
	var err error
	env.genre, err = env.engine.Catalog().CreateGenre(ctx, admin, "Фантастика")
	require.NoError(t, err)
	env.shelf, err = env.engine.Shelves().CreateShelf(ctx, admin, NewShelf{
		Name: "Biblioteka Główna", Address: "ul. Książkowa 1", Hours: "8-20",
		Latitude: 52.2297, Longitude: 21.0122,
	})
	require.NoError(t, err)
	return env
}

func (env *testEnv) createBook(t *testing.T, caller *models.Caller, title string) *models.Book {
	t.Helper()
	book, err := env.engine.Create(context.Background(), caller, NewBook{
		Title:         title,
		Description:   "Opis książki " + title,
		NewAuthorName: "Frank Herbert",
		GenreIDs:      []string{env.genre.ID},
	})
	require.NoError(t, err)
	return book
}

func (env *testEnv) shelved(t *testing.T, caller *models.Caller, title string) *models.Book {
	t.Helper()
	book := env.createBook(t, caller, title)
	book, err := env.engine.Release(context.Background(), caller, book.ID, env.shelf.ID)
	require.NoError(t, err)
	return book
}

func (env *testEnv) possessor(t *testing.T, bookID string) string {
	t.Helper()
	entry, err := env.engine.Ledger().Possessor(context.Background(), bookID)
	if errors.Is(err, apperr.ErrNotFound) {
		return ""
	}
	require.NoError(t, err)
	return entry.UserID
}

func (env *testEnv) assertConsistent(t *testing.T, bookID string) {
	t.Helper()
	assert.NoError(t, env.engine.VerifyBook(context.Background(), bookID))
}

func TestDuneScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book, err := env.engine.Create(ctx, alice, NewBook{
		Title:                "Дюна",
		Description:          "Роман Фрэнка Герберта",
		NewAuthorName:        "Фрэнк Герберт",
		NewAuthorDescription: "Американский писатель",
		GenreIDs:             []string{env.genre.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInHand, book.Status)
	assert.True(t, ValidISBN13(book.ISBN))
	assert.Equal(t, "alice", env.possessor(t, book.ID))
	env.assertConsistent(t, book.ID)

	_, err = env.engine.Release(ctx, alice, book.ID, env.shelf.ID)
	require.NoError(t, err)
	assert.Equal(t, "", env.possessor(t, book.ID))
	env.assertConsistent(t, book.ID)

	status, err := ParseStatusFilter("")
	require.NoError(t, err)
	found, err := env.engine.Registry().ListBookViews(ctx, models.BookFilter{Search: "дюна", Status: status})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, book.ID, found[0].ID)
	assert.Equal(t, "Фрэнк Герберт", found[0].AuthorName)
	assert.Equal(t, []string{"Фантастика"}, found[0].GenreNames)
	require.NotNil(t, found[0].Shelf)
	assert.Equal(t, env.shelf.Name, found[0].Shelf.Name)

	taken, entry, err := env.engine.Take(ctx, bob, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInHand, taken.Status)
	assert.Nil(t, taken.SafeShelfID)
	assert.Equal(t, "bob", entry.UserID)
	assert.Equal(t, "bob", env.possessor(t, book.ID))
	env.assertConsistent(t, book.ID)

	aliceBooks, err := env.engine.Holdings(ctx, alice, "")
	require.NoError(t, err)
	assert.Empty(t, aliceBooks)
	bobBooks, err := env.engine.Holdings(ctx, bob, "")
	require.NoError(t, err)
	require.Len(t, bobBooks, 1)
	assert.Equal(t, book.ID, bobBooks[0].Book.ID)

	assert.Equal(t, []notify.EventType{notify.EventCreated, notify.EventReleased, notify.EventTaken}, env.events.Types())
	takenEvent := env.events.Events()[2]
	assert.Equal(t, env.shelf.ID, takenEvent.SafeShelfID)
}

func TestRoundTripIncrementsVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	book := env.createBook(t, alice, "Solaris")
	assert.Equal(t, int64(0), book.Version)

	released, err := env.engine.Release(ctx, alice, book.ID, env.shelf.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released.Version)
	assert.Equal(t, env.shelf.ID, released.ShelfID())

	taken, _, err := env.engine.Take(ctx, bob, book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), taken.Version)

	again, err := env.engine.Release(ctx, bob, book.ID, env.shelf.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.Version)
	assert.Equal(t, models.StatusAvailable, again.Status)
	env.assertConsistent(t, book.ID)
}

func TestReleaseErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.createBook(t, alice, "Lalka")

	_, err := env.engine.Release(ctx, alice, "missing", env.shelf.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.engine.Release(ctx, alice, book.ID, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.engine.Release(ctx, bob, book.ID, env.shelf.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)
	assert.Equal(t, "alice", env.possessor(t, book.ID))

	_, err = env.engine.Release(ctx, nil, book.ID, env.shelf.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = env.engine.Release(ctx, alice, book.ID, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = env.engine.Release(ctx, admin, book.ID, env.shelf.ID)
	require.NoError(t, err)

	_, err = env.engine.Release(ctx, alice, book.ID, env.shelf.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	env.assertConsistent(t, book.ID)
}

func TestTakeErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	held := env.createBook(t, alice, "Ferdydurke")

	_, _, err := env.engine.Take(ctx, bob, held.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, err = env.engine.Take(ctx, bob, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, _, err = env.engine.Take(ctx, nil, held.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Equal(t, "alice", env.possessor(t, held.ID))
}

func TestConcurrentTakeHasSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.shelved(t, alice, "Wiedźmin")

	const takers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
		others    []error
	)
	for i := 0; i < takers; i++ {
		caller := &models.Caller{UserID: "taker-" + string(rune('a'+i)), Role: models.RoleMember}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.engine.Take(ctx, caller, book.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, caller.UserID)
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, takers-1, conflicts)
	assert.Equal(t, winners[0], env.possessor(t, book.ID))
	env.assertConsistent(t, book.ID)
}

func TestReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.shelved(t, alice, "Quo vadis")

	reserved, err := env.engine.Reserve(ctx, bob, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReserved, reserved.Status)
	require.NotNil(t, reserved.Reservation)
	assert.Equal(t, env.clock.Now().Add(time.Hour), reserved.Reservation.ExpiresAt)
	env.assertConsistent(t, book.ID)

	_, err = env.engine.Reserve(ctx, carol, book.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, _, err = env.engine.Take(ctx, carol, book.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = env.engine.CancelReservation(ctx, carol, book.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	taken, entry, err := env.engine.Take(ctx, bob, book.ID)
	require.NoError(t, err)
	assert.Nil(t, taken.Reservation)
	assert.Equal(t, "bob", entry.UserID)
	env.assertConsistent(t, book.ID)
}

func TestExpiredReservationDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.shelved(t, alice, "Pan Tadeusz")

	_, err := env.engine.Reserve(ctx, bob, book.ID)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)

	_, _, err = env.engine.Take(ctx, carol, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", env.possessor(t, book.ID))
	env.assertConsistent(t, book.ID)
}

func TestExpiredReservationIsListedAsAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.shelved(t, alice, "Lalka")

	_, err := env.engine.Reserve(ctx, bob, book.ID)
	require.NoError(t, err)

	available, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{Status: models.StatusAvailable})
	require.NoError(t, err)
	assert.Empty(t, available)

	env.clock.Advance(2 * time.Hour)

	available, err = env.engine.Registry().ListBooks(ctx, models.BookFilter{Status: models.StatusAvailable})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, book.ID, available[0].ID)
	assert.Equal(t, models.StatusAvailable, available[0].Status)
	assert.Nil(t, available[0].Reservation)

	reserved, err := env.engine.Registry().ListBooks(ctx, models.BookFilter{Status: models.StatusReserved})
	require.NoError(t, err)
	assert.Empty(t, reserved)

	view, err := env.engine.GetBookView(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, view.Book.Status)

	stats, err := env.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AvailableBooks)
	assert.Equal(t, 0, stats.ReservedBooks)
	assert.Equal(t, 1, stats.TotalBooks)

	_, _, err = env.engine.Take(ctx, carol, book.ID)
	require.NoError(t, err)
	env.assertConsistent(t, book.ID)
}

func TestCancelReservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.shelved(t, alice, "Chłopi")

	_, err := env.engine.CancelReservation(ctx, bob, book.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = env.engine.Reserve(ctx, bob, book.ID)
	require.NoError(t, err)

	canceled, err := env.engine.CancelReservation(ctx, bob, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, canceled.Status)
	assert.Nil(t, canceled.Reservation)
	assert.Equal(t, env.shelf.ID, canceled.ShelfID())
	env.assertConsistent(t, book.ID)

	_, err = env.engine.Reserve(ctx, carol, book.ID)
	require.NoError(t, err)
	_, err = env.engine.CancelReservation(ctx, admin, book.ID)
	require.NoError(t, err)
}

func TestDeleteRequiresAdminAndCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.createBook(t, alice, "Przedwiośnie")
	_, err := env.engine.AddReview(ctx, bob, book.ID, "Warto przeczytać", 5)
	require.NoError(t, err)

	err = env.engine.Delete(ctx, alice, book.ID)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	require.NoError(t, env.engine.Delete(ctx, admin, book.ID))

	_, err = env.engine.Registry().GetBook(ctx, book.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "", env.possessor(t, book.ID))
	holdings, err := env.engine.Holdings(ctx, alice, "")
	require.NoError(t, err)
	assert.Empty(t, holdings)

	reviews, err := env.store.ListReviews(ctx, book.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	err = env.engine.Delete(ctx, admin, book.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestHoldingsPermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createBook(t, alice, "Kordian")

	_, err := env.engine.Holdings(ctx, bob, "alice")
	assert.ErrorIs(t, err, apperr.ErrPermission)

	holdings, err := env.engine.Holdings(ctx, admin, "alice")
	require.NoError(t, err)
	assert.Len(t, holdings, 1)

	_, err = env.engine.Holdings(ctx, nil, "alice")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestReviews(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.createBook(t, alice, "Potop")

	_, err := env.engine.AddReview(ctx, bob, book.ID, "", 3)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.engine.AddReview(ctx, bob, book.ID, "Dobra", 6)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.engine.AddReview(ctx, bob, "missing", "Dobra", 4)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.engine.AddReview(ctx, bob, book.ID, "Dobra", 4)
	require.NoError(t, err)
	env.clock.Advance(time.Minute)
	_, err = env.engine.AddReview(ctx, carol, book.ID, "Świetna", 5)
	require.NoError(t, err)

	reviews, err := env.engine.ListReviews(ctx, book.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "carol", reviews[0].UserID)

	_, err = env.engine.ListReviews(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.createBook(t, alice, "Jeden")
	env.shelved(t, alice, "Dwa")
	reserved := env.shelved(t, alice, "Trzy")
	_, err := env.engine.Reserve(ctx, bob, reserved.ID)
	require.NoError(t, err)

	stats, err := env.engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{
		TotalBooks:       3,
		AvailableBooks:   1,
		InHandBooks:      1,
		ReservedBooks:    1,
		TotalSafeShelves: 1,
	}, *stats)
}

func TestTransitionMetrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	book := env.createBook(t, alice, "Metryki")

	okBefore := testutil.ToFloat64(transitionsTotal.WithLabelValues(transitionRelease, outcomeOK))
	deniedBefore := testutil.ToFloat64(transitionsTotal.WithLabelValues(transitionRelease, string(apperr.KindPermission)))

	_, err := env.engine.Release(ctx, bob, book.ID, env.shelf.ID)
	require.Error(t, err)
	_, err = env.engine.Release(ctx, alice, book.ID, env.shelf.ID)
	require.NoError(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(transitionsTotal.WithLabelValues(transitionRelease, outcomeOK)))
	assert.Equal(t, deniedBefore+1, testutil.ToFloat64(transitionsTotal.WithLabelValues(transitionRelease, string(apperr.KindPermission))))
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, notify.Event) error {
	return errors.New("smtp niedostępny")
}

func TestNotifierFailureKeepsTransition(t *testing.T) {
	env := newTestEnv(t, WithNotifier(failingNotifier{}))
	ctx := context.Background()
	book := env.createBook(t, alice, "Powiadomienia")

	_, err := env.engine.Release(ctx, alice, book.ID, env.shelf.ID)
	require.NoError(t, err)
	env.assertConsistent(t, book.ID)
}
