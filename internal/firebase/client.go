// Package firebase łączy serwis z Firebase: Auth (weryfikacja tokenów, role)
// oraz Firestore jako alternatywny magazyn książek i inwentarza.
package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"bookcrossing/internal/config"
)

// ClaimAdmin to custom claim nadający rolę administratora
const ClaimAdmin = "admin"

// Client zawiera klientów Firebase
type Client struct {
	App       *firebase.App
	Auth      *auth.Client
	Firestore *firestore.Client
}

// InitFirebase inicjalizuje aplikację Firebase.
// Firestore jest otwierany tylko, gdy withFirestore jest true.
func InitFirebase(ctx context.Context, cfg config.FirebaseConfig, withFirestore bool) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsPath != "":
		// Tryb lokalny - użyj pliku
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	case cfg.CredentialsJSON != "":
		// Tryb produkcyjny - JSON ze zmiennej środowiskowej
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.EmulatorHost == "":
		return nil, fmt.Errorf("brak FIREBASE_CREDENTIALS_PATH lub FIREBASE_CREDENTIALS_JSON")
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("błąd inicjalizacji Firebase App: %w", err)
	}

	client := &Client{App: app}

	if cfg.HasCredentials() {
		client.Auth, err = app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("błąd inicjalizacji Firebase Auth: %w", err)
		}
	}

	if withFirestore {
		client.Firestore, err = app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("błąd inicjalizacji Firestore: %w", err)
		}
	}

	return client, nil
}

// Close zamyka połączenia z Firebase
func (c *Client) Close() error {
	if c.Firestore != nil {
		return c.Firestore.Close()
	}
	return nil
}

// SetAdmin nadaje lub odbiera użytkownikowi rolę administratora
func (c *Client) SetAdmin(ctx context.Context, uid string, admin bool) error {
	if c.Auth == nil {
		return fmt.Errorf("klient Firebase Auth nie został zainicjalizowany")
	}
	user, err := c.Auth.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("błąd pobierania użytkownika %s: %w", uid, err)
	}

	claims := make(map[string]interface{}, len(user.CustomClaims)+1)
	for k, v := range user.CustomClaims {
		claims[k] = v
	}
	if admin {
		claims[ClaimAdmin] = true
	} else {
		delete(claims, ClaimAdmin)
	}

	if err := c.Auth.SetCustomUserClaims(ctx, uid, claims); err != nil {
		return fmt.Errorf("błąd ustawiania uprawnień: %w", err)
	}
	return nil
}

// UserByEmail zwraca UID użytkownika o podanym adresie
func (c *Client) UserByEmail(ctx context.Context, email string) (string, error) {
	if c.Auth == nil {
		return "", fmt.Errorf("klient Firebase Auth nie został zainicjalizowany")
	}
	user, err := c.Auth.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("błąd wyszukiwania użytkownika %s: %w", email, err)
	}
	return user.UID, nil
}

// CreateUser zakłada konto w Firebase Auth i zwraca UID
func (c *Client) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	if c.Auth == nil {
		return "", fmt.Errorf("klient Firebase Auth nie został zainicjalizowany")
	}
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)

	user, err := c.Auth.CreateUser(ctx, params)
	if err != nil {
		return "", fmt.Errorf("błąd tworzenia użytkownika w Firebase Auth: %w", err)
	}
	return user.UID, nil
}
