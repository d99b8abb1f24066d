package handlers

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"bookcrossing/internal/core"
	"bookcrossing/internal/middleware"
)

// Routes rejestruje API pod routerem r (montowanym jako /api).
// Wywołujący musi być już ustalony przez middleware.Authenticate.
func Routes(r chi.Router, engine *core.Engine, logger *slog.Logger) {
	books := NewBooksHandler(engine, logger)
	inventory := NewInventoryHandler(engine, logger)
	catalog := NewCatalogHandler(engine, logger)

	// Książki - odczyt publiczny, zmiany stanu dla zalogowanych
	r.Route("/books", func(r chi.Router) {
		r.Get("/", books.List)
		r.Get("/available", books.ListAvailable)
		r.Get("/{id}", books.Get)
		r.Get("/{id}/reviews", books.Reviews)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Post("/", books.Create)
			r.Post("/{id}/reviews", books.AddReview)
			r.Put("/{id}/release", books.Release)
			r.Post("/{id}/reserve", books.Reserve)
			r.Delete("/{id}/reserve", books.CancelReservation)
		})

		r.With(middleware.RequireAdmin).Delete("/{id}", books.Delete)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/", inventory.Own)
		r.Post("/", inventory.Take)
		r.Get("/{user_id}", inventory.ByUser)
	})

	r.Route("/authors", func(r chi.Router) {
		r.Get("/", catalog.ListAuthors)
		r.With(middleware.RequireAuth).Post("/", catalog.CreateAuthor)
	})

	r.Route("/genres", func(r chi.Router) {
		r.Get("/", catalog.ListGenres)
		r.With(middleware.RequireAdmin).Post("/", catalog.CreateGenre)
	})

	r.Route("/safeshelves", func(r chi.Router) {
		r.Get("/", catalog.ListShelves)
		r.Get("/{id}", catalog.GetShelf)
		r.With(middleware.RequireAdmin).Post("/", catalog.CreateShelf)
	})

	r.Get("/stats", catalog.Stats)
}
