package firebase

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bookcrossing/internal/apperr"
)

// mapError tłumaczy kody gRPC Firestore na rodzaje apperr.
// Błędy już typowane przechodzą bez zmian.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != "" {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return apperr.Wrap(apperr.KindNotFound, op, err)
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		return apperr.Wrap(apperr.KindConflict, op, err)
	case codes.Unknown:
		// błędy spoza gRPC (np. zwrócone przez funkcję transakcji)
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notFoundOr zamienia brak dokumentu na apperr.ErrNotFound z komunikatem
func notFoundOr(err error, op, format string, args ...any) error {
	if status.Code(err) == codes.NotFound {
		return apperr.NotFound(op, format, args...)
	}
	return mapError(op, err)
}
