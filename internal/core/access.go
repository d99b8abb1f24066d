package core

import (
	"bookcrossing/internal/apperr"
	"bookcrossing/internal/models"
)

func requireCaller(op string, caller *models.Caller) error {
	if caller == nil || caller.UserID == "" {
		return apperr.Unauthenticated(op, "wymagane zalogowanie")
	}
	return nil
}

func requireAdmin(op string, caller *models.Caller) error {
	if err := requireCaller(op, caller); err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return apperr.Permission(op, "operacja wymaga roli administratora")
	}
	return nil
}
