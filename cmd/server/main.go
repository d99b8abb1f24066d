package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookcrossing/internal/backend"
	"bookcrossing/internal/config"
	"bookcrossing/internal/core"
	"bookcrossing/internal/firebase"
	"bookcrossing/internal/handlers"
	authmw "bookcrossing/internal/middleware"
	"bookcrossing/internal/notify"
)

func main() {
	// Wczytaj zmienne środowiskowe z pliku .env
	found, err := config.LoadDotEnv()
	if err != nil {
		slog.Error("błąd wczytywania .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("nieprawidłowa konfiguracja", "error", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if !found {
		logger.Info("brak pliku .env - używam zmiennych systemowych")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("serwer zakończył działanie z błędem", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fbClient, err := backend.Firebase(ctx, cfg)
	if err != nil {
		return err
	}
	if fbClient != nil {
		defer fbClient.Close()
		logger.Info("Firebase zainicjalizowany", "project_id", cfg.Firebase.ProjectID)
	}

	s, err := backend.Open(ctx, cfg, fbClient)
	if err != nil {
		return err
	}
	defer s.Close()
	logger.Info("magazyn otwarty", "backend", cfg.StoreBackend)

	auth, err := newAuthenticator(cfg, fbClient)
	if err != nil {
		return err
	}

	engine := core.NewEngine(s,
		core.WithLogger(logger),
		core.WithNotifier(notify.NewLogNotifier(logger)),
		core.WithReservationTTL(cfg.ReservationTTL),
		core.WithCacheTTL(cfg.CatalogCacheTTL),
	)

	// Inicjalizacja routera Chi
	r := chi.NewRouter()

	// Middleware do logowania requestów
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		r.Use(authmw.Authenticate(auth, logger))
		handlers.Routes(r, engine, logger)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serwer uruchomiony", "port", cfg.Port, "auth_mode", cfg.AuthMode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("nie można uruchomić serwera: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("zamykanie serwera")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("błąd zamykania serwera: %w", err)
	}
	return nil
}

func newAuthenticator(cfg *config.Config, fbClient *firebase.Client) (authmw.Authenticator, error) {
	if cfg.AuthMode == config.AuthHeader {
		return authmw.HeaderAuthenticator{}, nil
	}
	if fbClient == nil || fbClient.Auth == nil {
		return nil, fmt.Errorf("tryb AUTH_MODE=firebase wymaga danych dostępowych Firebase")
	}
	return authmw.FirebaseAuthenticator{Verifier: fbClient.Auth}, nil
}
