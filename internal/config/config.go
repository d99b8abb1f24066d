// Package config wczytuje konfigurację serwera z pliku .env i zmiennych środowiskowych.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backendy magazynu
const (
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Tryby uwierzytelniania
const (
	AuthFirebase = "firebase" // Tokeny ID Firebase w nagłówku Authorization
	AuthHeader   = "header"   // X-User-ID / X-User-Role z zaufanej bramy
)

// Config to pełna konfiguracja serwera
type Config struct {
	Port      string
	LogLevel  slog.Level
	LogFormat string

	StoreBackend string
	SQLitePath   string
	PostgresDSN  string

	Firebase FirebaseConfig
	AuthMode string

	CatalogCacheTTL time.Duration
	ReservationTTL  time.Duration
	RequestTimeout  time.Duration
}

// FirebaseConfig zawiera dane dostępowe Firebase
type FirebaseConfig struct {
	CredentialsPath string
	CredentialsJSON string
	ProjectID       string
	EmulatorHost    string
}

// HasCredentials sprawdza czy podano plik lub JSON z kluczem serwisowym
func (f FirebaseConfig) HasCredentials() bool {
	return f.CredentialsPath != "" || f.CredentialsJSON != ""
}

// LoadDotEnv wczytuje plik .env; brak pliku nie jest błędem i zwraca false
func LoadDotEnv(paths ...string) (bool, error) {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("błąd wczytywania .env: %w", err)
	}
	return true, nil
}

// Load czyta konfigurację ze zmiennych środowiskowych procesu
func Load() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup czyta konfigurację przez podaną funkcję (testy podają mapę)
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Port:         get("PORT", "8080"),
		LogFormat:    strings.ToLower(get("LOG_FORMAT", "json")),
		StoreBackend: strings.ToLower(get("STORE_BACKEND", BackendSQLite)),
		SQLitePath:   get("SQLITE_PATH", "data/bookcrossing.db"),
		PostgresDSN:  get("POSTGRES_DSN", ""),
		Firebase: FirebaseConfig{
			CredentialsPath: get("FIREBASE_CREDENTIALS_PATH", ""),
			CredentialsJSON: get("FIREBASE_CREDENTIALS_JSON", ""),
			ProjectID:       get("FIREBASE_PROJECT_ID", ""),
			EmulatorHost:    get("FIRESTORE_EMULATOR_HOST", ""),
		},
		AuthMode: strings.ToLower(get("AUTH_MODE", AuthFirebase)),
	}

	var errs []error
	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	durations := []struct {
		key  string
		def  string
		dest *time.Duration
	}{
		{"CATALOG_CACHE_TTL", "5m", &cfg.CatalogCacheTTL},
		{"RESERVATION_TTL", "48h", &cfg.ReservationTTL},
		{"REQUEST_TIMEOUT", "15s", &cfg.RequestTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(get(d.key, d.def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
			continue
		}
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s musi być dodatnie", d.key))
			continue
		}
		*d.dest = v
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("niepoprawna konfiguracja: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error

	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT: nieznany format %q (json|text)", c.LogFormat))
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, fmt.Errorf("SQLITE_PATH jest wymagane"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("POSTGRES_DSN jest wymagane dla backendu postgres"))
		}
	case BackendFirestore:
		if !c.Firebase.HasCredentials() && c.Firebase.EmulatorHost == "" {
			errs = append(errs, fmt.Errorf("backend firestore wymaga FIREBASE_CREDENTIALS_PATH, FIREBASE_CREDENTIALS_JSON lub FIRESTORE_EMULATOR_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND: nieznany backend %q (sqlite|postgres|firestore)", c.StoreBackend))
	}

	switch c.AuthMode {
	case AuthFirebase:
		if !c.Firebase.HasCredentials() {
			errs = append(errs, fmt.Errorf("AUTH_MODE=firebase wymaga FIREBASE_CREDENTIALS_PATH lub FIREBASE_CREDENTIALS_JSON"))
		}
	case AuthHeader:
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE: nieznany tryb %q (firebase|header)", c.AuthMode))
	}

	if c.Firebase.CredentialsPath != "" {
		if _, err := os.Stat(c.Firebase.CredentialsPath); err != nil {
			errs = append(errs, fmt.Errorf("plik credentials nie istnieje: %s", c.Firebase.CredentialsPath))
		}
	}
	return errs
}

// NeedsFirebase mówi czy trzeba inicjalizować aplikację Firebase
func (c *Config) NeedsFirebase() bool {
	return c.StoreBackend == BackendFirestore || c.AuthMode == AuthFirebase
}

// NewLogger tworzy logger slog zgodny z LOG_FORMAT i LOG_LEVEL
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
