// Package sqlstore implementuje store.Store na bazie SQL.
// Obsługiwane są SQLite (modernc.org/sqlite, bez cgo) oraz Postgres (pgx).
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialekt goqu dla Postgresa
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialekt goqu dla SQLite
	_ "github.com/jackc/pgx/v5/stdlib"                  // sterownik database/sql "pgx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sterownik database/sql "sqlite"

	"bookcrossing/internal/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

var _ store.Store = (*Store)(nil)

// Store to magazyn SQL
type Store struct {
	reader
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	// forUpdate dopisywane do odczytu książki w transakcji (tylko Postgres)
	forUpdate string
}

func init() {
	// modernc rejestruje się jako "sqlite", którego sqlx nie zna domyślnie
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// OpenSQLite otwiera (lub tworzy) bazę SQLite pod ścieżką path.
// Transakcje zaczynają się od BEGIN IMMEDIATE, więc zapisy są szeregowane.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("utworzenie katalogu bazy: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate", path)
	db, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("otwarcie sqlite: %w", err)
	}
	return newStore(ctx, db, "sqlite3", "")
}

// OpenPostgres łączy się z Postgresem pod adresem dsn
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("brak DSN dla postgres")
	}
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("otwarcie postgres: %w", err)
	}
	return newStore(ctx, db, "postgres", " FOR UPDATE")
}

func newStore(ctx context.Context, db *sqlx.DB, dialect, forUpdate string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping bazy: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		reader:    reader{q: db},
		db:        db,
		dialect:   goqu.Dialect(dialect),
		forUpdate: forUpdate,
	}, nil
}

// Close zamyka połączenie z bazą
func (s *Store) Close() error {
	return s.db.Close()
}

// DB udostępnia połączenie na potrzeby testów
func (s *Store) DB() *sqlx.DB { return s.db }

// RunInTx wykonuje fn w jednej transakcji bazy.
// Błąd zwrócony przez fn wycofuje wszystkie zmiany.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rozpoczęcie transakcji: %w", mapError("begin", err))
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &tx{reader: reader{q: sqlTx, lock: s.forUpdate}, tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return mapError("zatwierdzenie transakcji", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Migracje schematu
// ---------------------------------------------------------------------------

const schemaVersion = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS authors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS safe_shelves (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		hours TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		isbn TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL,
		author_id TEXT NOT NULL REFERENCES authors(id),
		status TEXT NOT NULL CHECK (status IN ('in_hand', 'available', 'reserved')),
		safe_shelf_id TEXT REFERENCES safe_shelves(id),
		reserved_by TEXT,
		reserved_until TIMESTAMP,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_status ON books(status)`,
	`CREATE TABLE IF NOT EXISTS book_genres (
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		genre_id TEXT NOT NULL REFERENCES genres(id),
		PRIMARY KEY (book_id, genre_id)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		book_id TEXT PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		acquired_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_user ON inventory(user_id)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		book_id TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		text TEXT NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_book ON reviews(book_id)`,
}

func applyMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("utworzenie tabeli meta: %w", err)
	}

	var current string
	_ = db.GetContext(ctx, &current, `SELECT value FROM meta WHERE key = 'schema_version'`)
	if v, err := strconv.Atoi(strings.TrimSpace(current)); err == nil && v >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migracja schematu: %w", err)
		}
	}

	upsert := tx.Rebind(`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	if _, err := tx.ExecContext(ctx, upsert, strconv.Itoa(schemaVersion)); err != nil {
		return fmt.Errorf("zapis wersji schematu: %w", err)
	}

	return tx.Commit()
}
