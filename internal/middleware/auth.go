package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/firebase"
	"bookcrossing/internal/models"
)

// Klucze do przechowywania wartości w context
type contextKey string

const callerKey contextKey = "caller"

// Nagłówki ustawiane przez bramę w trybie AUTH_MODE=header
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Authenticator ustala wywołującego na podstawie żądania.
// Brak danych uwierzytelniających to (nil, nil), niepoprawne dane to błąd.
type Authenticator interface {
	Authenticate(r *http.Request) (*models.Caller, error)
}

// TokenVerifier weryfikuje tokeny ID Firebase (spełnia go *auth.Client)
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseAuthenticator weryfikuje nagłówek "Authorization: Bearer <token>"
type FirebaseAuthenticator struct {
	Verifier TokenVerifier
}

func (a FirebaseAuthenticator) Authenticate(r *http.Request) (*models.Caller, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	// Sprawdź format: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return nil, apperr.Unauthenticated("uwierzytelnienie", "nieprawidłowy format Authorization")
	}

	token, err := a.Verifier.VerifyIDToken(r.Context(), parts[1])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthenticated, "weryfikacja tokenu", err)
	}

	caller := &models.Caller{UserID: token.UID, Role: models.RoleMember}
	if isAdmin, _ := token.Claims[firebase.ClaimAdmin].(bool); isAdmin {
		caller.Role = models.RoleAdmin
	}
	return caller, nil
}

// HeaderAuthenticator ufa nagłówkom X-User-ID i X-User-Role.
// Tylko za bramą, która sama uwierzytelnia, oraz w testach.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (*models.Caller, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return nil, nil
	}

	caller := &models.Caller{UserID: userID, Role: models.RoleMember}
	switch role := models.UserRole(r.Header.Get(HeaderUserRole)); role {
	case "", models.RoleMember:
	case models.RoleAdmin:
		caller.Role = models.RoleAdmin
	default:
		return nil, apperr.Unauthenticated("uwierzytelnienie", "nieznana rola %q", role)
	}
	return caller, nil
}

// Authenticate dodaje wywołującego do kontekstu, jeśli żądanie go wskazuje.
// Żądania anonimowe przechodzą dalej, niepoprawne dostają 401.
func Authenticate(a Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := a.Authenticate(r)
			if err != nil {
				logger.Debug("odrzucone uwierzytelnienie", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, apperr.KindUnauthenticated, "nieprawidłowy token")
				return
			}
			if caller != nil {
				r = r.WithContext(WithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth wymaga uwierzytelnionego wywołującego
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, apperr.KindUnauthenticated, "wymagane uwierzytelnienie")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin wymaga roli administratora
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := CallerFromContext(r.Context())
		if caller == nil {
			writeError(w, http.StatusUnauthorized, apperr.KindUnauthenticated, "wymagane uwierzytelnienie")
			return
		}
		if !caller.IsAdmin() {
			writeError(w, http.StatusForbidden, apperr.KindPermission, "brak uprawnień")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithCaller zapisuje wywołującego w kontekście
func WithCaller(ctx context.Context, caller *models.Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext pobiera wywołującego z kontekstu lub nil
func CallerFromContext(ctx context.Context) *models.Caller {
	caller, _ := ctx.Value(callerKey).(*models.Caller)
	return caller
}

// ErrorBody to treść odpowiedzi z błędem
type ErrorBody struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind,omitempty"`
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorBody{Error: msg, Kind: kind}); err != nil {
		slog.Warn("błąd zapisu odpowiedzi", "error", err)
	}
}
