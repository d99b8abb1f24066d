// Package apperr zawiera typowane błędy rdzenia wymiany książek.
//
// Rejestry i silnik cyklu życia zwracają *Error z określonym rodzajem (Kind),
// a warstwa HTTP tłumaczy rodzaj na kod statusu. Dzięki temu klient odróżnia
// "spróbuj ponownie" (Conflict) od "popraw dane" (Validation) i od "brak
// uprawnień" (Permission).
package apperr

import (
	"errors"
	"fmt"
)

// Kind określa rodzaj błędu
type Kind string

const (
	KindValidation      Kind = "validation"      // Niepoprawne dane wejściowe
	KindUnauthenticated Kind = "unauthenticated" // Brak uwierzytelnionego wywołującego
	KindPermission      Kind = "permission"      // Brak praw do zasobu
	KindNotFound        Kind = "not_found"       // Zasób nie istnieje
	KindConflict        Kind = "conflict"        // Naruszony warunek maszyny stanów
)

// Sentinele do porównań przez errors.Is
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrPermission      = &Error{Kind: KindPermission}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrConflict        = &Error{Kind: KindConflict}
)

// Error to błąd z rodzajem, nazwą operacji i opcjonalną przyczyną
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is dopasowuje błędy po rodzaju, więc errors.Is(err, ErrConflict) działa
// dla każdego konfliktu niezależnie od komunikatu.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Op == ""
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation tworzy błąd walidacji
func Validation(op, format string, args ...any) error {
	return newf(KindValidation, op, format, args...)
}

// Unauthenticated tworzy błąd braku uwierzytelnienia
func Unauthenticated(op, format string, args ...any) error {
	return newf(KindUnauthenticated, op, format, args...)
}

// Permission tworzy błąd braku uprawnień
func Permission(op, format string, args ...any) error {
	return newf(KindPermission, op, format, args...)
}

// NotFound tworzy błąd nieistniejącego zasobu
func NotFound(op, format string, args ...any) error {
	return newf(KindNotFound, op, format, args...)
}

// Conflict tworzy błąd konfliktu stanu
func Conflict(op, format string, args ...any) error {
	return newf(KindConflict, op, format, args...)
}

// Wrap opakowuje błąd backendu zachowując rodzaj
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf zwraca rodzaj błędu lub pusty string dla błędów nietypowanych
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message zwraca komunikat bez prefiksu operacji, do pokazania klientowi
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
