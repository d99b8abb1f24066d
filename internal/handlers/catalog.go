package handlers

import (
	"log/slog"
	"net/http"

	"bookcrossing/internal/core"
)

// CatalogHandler obsługuje autorów, gatunki, bezpieczne półki i statystyki
type CatalogHandler struct {
	handler
	engine *core.Engine
}

// NewCatalogHandler tworzy nowy handler katalogu
func NewCatalogHandler(engine *core.Engine, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{handler: handler{logger: logger}, engine: engine}
}

type createAuthorRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type createGenreRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type createShelfRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Address     string  `json:"address" validate:"max=500"`
	Hours       string  `json:"hours" validate:"max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// ListAuthors zwraca autorów, opcjonalnie filtrowanych po nazwie (GET /api/authors?search=)
func (h *CatalogHandler) ListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := h.engine.Catalog().ListAuthors(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authors)
}

// CreateAuthor zwraca istniejącego autora o tej nazwie albo tworzy nowego (POST /api/authors)
func (h *CatalogHandler) CreateAuthor(w http.ResponseWriter, r *http.Request) {
	var req createAuthorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	author, err := h.engine.Catalog().CreateAuthor(r.Context(), h.caller(r), req.Name, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, author)
}

func (h *CatalogHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.engine.Catalog().ListGenres(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

func (h *CatalogHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var req createGenreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	genre, err := h.engine.Catalog().CreateGenre(r.Context(), h.caller(r), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, genre)
}

// ListShelves zwraca wszystkie bezpieczne półki (GET /api/safeshelves)
func (h *CatalogHandler) ListShelves(w http.ResponseWriter, r *http.Request) {
	shelves, err := h.engine.Shelves().ListShelves(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shelves)
}

func (h *CatalogHandler) GetShelf(w http.ResponseWriter, r *http.Request) {
	shelf, err := h.engine.Shelves().GetShelf(r.Context(), urlID(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shelf)
}

// CreateShelf dodaje bezpieczną półkę (POST /api/safeshelves, tylko administrator)
func (h *CatalogHandler) CreateShelf(w http.ResponseWriter, r *http.Request) {
	var req createShelfRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	shelf, err := h.engine.Shelves().CreateShelf(r.Context(), h.caller(r), core.NewShelf{
		Name:        req.Name,
		Address:     req.Address,
		Hours:       req.Hours,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shelf)
}

// Stats zwraca liczniki dla strony głównej (GET /api/stats)
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
