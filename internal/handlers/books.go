package handlers

import (
	"log/slog"
	"net/http"

	"bookcrossing/internal/core"
	"bookcrossing/internal/models"
)

// BooksHandler obsługuje książki i ich cykl wymiany
type BooksHandler struct {
	handler
	engine *core.Engine
}

// NewBooksHandler tworzy nowy handler dla książek
func NewBooksHandler(engine *core.Engine, logger *slog.Logger) *BooksHandler {
	return &BooksHandler{handler: handler{logger: logger}, engine: engine}
}

type createBookRequest struct {
	Title                string   `json:"title" validate:"required"`
	Description          string   `json:"description" validate:"required"`
	AuthorID             string   `json:"author_id"`
	NewAuthorName        string   `json:"new_author_name"`
	NewAuthorDescription string   `json:"new_author_description"`
	GenreIDs             []string `json:"genre_ids" validate:"dive,required"`
}

type createBookResponse struct {
	BookID string `json:"book_id"`
	ISBN   string `json:"isbn"`
}

type releaseRequest struct {
	SafeShelfID string `json:"safe_shelf_id" validate:"required"`
}

type createReviewRequest struct {
	Text   string `json:"text" validate:"required"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

// bookResponse to odpowiedź operacji zmieniających stan książki
type bookResponse struct {
	Book *models.Book `json:"book"`
}

// Create rejestruje nową książkę w rękach wywołującego (POST /api/books)
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	book, err := h.engine.Create(r.Context(), h.caller(r), core.NewBook{
		Title:                req.Title,
		Description:          req.Description,
		AuthorID:             req.AuthorID,
		NewAuthorName:        req.NewAuthorName,
		NewAuthorDescription: req.NewAuthorDescription,
		GenreIDs:             req.GenreIDs,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createBookResponse{BookID: book.ID, ISBN: book.ISBN})
}

// List zwraca książki według filtrów (GET /api/books).
// Bez parametru status zwracane są tylko dostępne książki, status=all zwraca wszystkie.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := core.ParseStatusFilter(q.Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.list(w, r, status)
}

// ListAvailable zwraca książki dostępne na półkach (GET /api/books/available)
func (h *BooksHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.StatusAvailable)
}

func (h *BooksHandler) list(w http.ResponseWriter, r *http.Request, status models.BookStatus) {
	q := r.URL.Query()
	views, err := h.engine.Registry().ListBookViews(r.Context(), models.BookFilter{
		Search:      q.Get("search"),
		AuthorID:    q.Get("author_id"),
		GenreID:     q.Get("genre_id"),
		SafeShelfID: q.Get("safe_shelf_id"),
		Status:      status,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Get zwraca szczegóły książki (GET /api/books/{id})
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetBookView(r.Context(), urlID(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Reviews zwraca opinie o książce (GET /api/books/{id}/reviews)
func (h *BooksHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.engine.ListReviews(r.Context(), urlID(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

// AddReview dopisuje opinię (POST /api/books/{id}/reviews)
func (h *BooksHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	review, err := h.engine.AddReview(r.Context(), h.caller(r), urlID(r, "id"), req.Text, req.Rating)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// Release odkłada książkę na półkę (PUT /api/books/{id}/release)
func (h *BooksHandler) Release(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	book, err := h.engine.Release(r.Context(), h.caller(r), urlID(r, "id"), req.SafeShelfID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{Book: book})
}

// Reserve rezerwuje książkę z półki (POST /api/books/{id}/reserve)
func (h *BooksHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	book, err := h.engine.Reserve(r.Context(), h.caller(r), urlID(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{Book: book})
}

// CancelReservation anuluje rezerwację (DELETE /api/books/{id}/reserve)
func (h *BooksHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	book, err := h.engine.CancelReservation(r.Context(), h.caller(r), urlID(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookResponse{Book: book})
}

// Delete usuwa książkę (DELETE /api/books/{id}, tylko administrator)
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), h.caller(r), urlID(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
