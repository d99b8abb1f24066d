package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"bookcrossing/internal/apperr"
	"bookcrossing/internal/middleware"
	"bookcrossing/internal/models"
)

// maxBodySize ogranicza rozmiar treści żądania JSON
const maxBodySize = 1 << 20

var validate = newValidator()

// newValidator raportuje błędy pól pod nazwami z tagów json
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// handler zawiera zależności wspólne dla wszystkich handlerów
type handler struct {
	logger *slog.Logger
}

func (h handler) caller(r *http.Request) *models.Caller {
	return middleware.CallerFromContext(r.Context())
}

// statusFor tłumaczy rodzaj błędu na kod HTTP
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError wysyła błąd jako JSON. Błędy nietypowane są logowane,
// a klient dostaje ogólny komunikat.
func (h handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := apperr.Message(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("błąd obsługi żądania",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"error", err,
		)
		msg = "błąd wewnętrzny serwera"
	}
	writeJSON(w, status, middleware.ErrorBody{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("błąd zapisu odpowiedzi", "error", err)
	}
}

// decodeJSON czyta treść żądania do dst i sprawdza tagi validate
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "odczyt żądania"
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation(op, "brak treści żądania")
		}
		return apperr.Validation(op, "nieprawidłowe dane JSON: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(op, err)
	}
	return nil
}

func validationError(op string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(op, "%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation(op, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("pole %s jest wymagane", field)
	case "max":
		return fmt.Sprintf("pole %s jest za długie (max %s)", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("pole %s musi być co najmniej %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("pole %s może być co najwyżej %s", field, fe.Param())
	}
	return fmt.Sprintf("pole %s jest nieprawidłowe (%s)", field, fe.Tag())
}

func urlID(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}
