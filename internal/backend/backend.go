// Package backend otwiera magazyn wybrany w konfiguracji.
package backend

import (
	"context"
	"fmt"

	"bookcrossing/internal/config"
	"bookcrossing/internal/firebase"
	"bookcrossing/internal/sqlstore"
	"bookcrossing/internal/store"
)

// Open otwiera magazyn wybrany przez STORE_BACKEND.
// Dla Firestore fbClient musi mieć zainicjalizowanego klienta Firestore.
func Open(ctx context.Context, cfg *config.Config, fbClient *firebase.Client) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return sqlstore.OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendPostgres:
		return sqlstore.OpenPostgres(ctx, cfg.PostgresDSN)
	case config.BackendFirestore:
		if fbClient == nil || fbClient.Firestore == nil {
			return nil, fmt.Errorf("klient Firestore nie został zainicjalizowany")
		}
		return firebase.NewStore(fbClient.Firestore), nil
	}
	return nil, fmt.Errorf("nieznany backend magazynu: %q", cfg.StoreBackend)
}

// Firebase inicjalizuje Firebase, jeśli konfiguracja go wymaga; w przeciwnym razie zwraca nil
func Firebase(ctx context.Context, cfg *config.Config) (*firebase.Client, error) {
	if !cfg.NeedsFirebase() {
		return nil, nil
	}
	return firebase.InitFirebase(ctx, cfg.Firebase, cfg.StoreBackend == config.BackendFirestore)
}
