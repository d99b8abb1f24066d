package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"bookcrossing/internal/apperr"
)

// Kody błędów Postgresa (SQLSTATE)
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapError tłumaczy błędy sterowników na rodzaje apperr.
// Naruszenie unikalności to konflikt, naruszenie klucza obcego to brak rekordu.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, op, err)
		case pgForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, op, err)
		}
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperr.Wrap(apperr.KindConflict, op, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperr.Wrap(apperr.KindNotFound, op, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// notFoundOr zamienia sql.ErrNoRows na apperr.ErrNotFound z komunikatem
func notFoundOr(err error, op, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(op, format, args...)
	}
	return mapError(op, err)
}
