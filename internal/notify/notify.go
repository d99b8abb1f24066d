// Package notify przekazuje zdarzenia cyklu życia książek do zewnętrznej wysyłki
// (e-mail, push). Rdzeń wywołuje Notifier dopiero po zatwierdzeniu transakcji.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventType określa rodzaj zdarzenia
type EventType string

const (
	EventCreated             EventType = "book_created"
	EventReleased            EventType = "book_released"
	EventTaken               EventType = "book_taken"
	EventReserved            EventType = "book_reserved"
	EventReservationCanceled EventType = "reservation_canceled"
	EventDeleted             EventType = "book_deleted"
)

// Event to zatwierdzona zmiana stanu książki
type Event struct {
	Type        EventType `json:"type"`
	BookID      string    `json:"book_id"`
	Title       string    `json:"title"`
	UserID      string    `json:"user_id"`
	SafeShelfID string    `json:"safe_shelf_id,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier odbiera zdarzenia. Błąd wysyłki nie cofa zmiany stanu.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier zapisuje zdarzenia w logu strukturalnym
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier tworzy notifier logujący; nil oznacza slog.Default()
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	n.logger.InfoContext(ctx, "zdarzenie książki",
		slog.String("type", string(e.Type)),
		slog.String("book_id", e.BookID),
		slog.String("title", e.Title),
		slog.String("user_id", e.UserID),
		slog.String("safe_shelf_id", e.SafeShelfID),
		slog.Time("at", e.At),
	)
	return nil
}

// Recorder zapamiętuje zdarzenia w pamięci (testy, narzędzia)
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events zwraca kopię zebranych zdarzeń
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types zwraca same typy zdarzeń w kolejności nadejścia
func (r *Recorder) Types() []EventType {
	events := r.Events()
	types := make([]EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
