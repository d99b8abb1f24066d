package handlers

import (
	"log/slog"
	"net/http"

	"bookcrossing/internal/core"
	"bookcrossing/internal/models"
)

// InventoryHandler obsługuje książki trzymane przez użytkowników
type InventoryHandler struct {
	handler
	engine *core.Engine
}

// NewInventoryHandler tworzy nowy handler inwentarza
func NewInventoryHandler(engine *core.Engine, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{handler: handler{logger: logger}, engine: engine}
}

type takeRequest struct {
	BookID string `json:"book_id" validate:"required"`
}

type takeResponse struct {
	Entry *models.InventoryEntry `json:"entry"`
	Book  *models.Book           `json:"book"`
}

// Take zabiera książkę z półki do inwentarza wywołującego (POST /api/inventory)
func (h *InventoryHandler) Take(w http.ResponseWriter, r *http.Request) {
	var req takeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	book, entry, err := h.engine.Take(r.Context(), h.caller(r), req.BookID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, takeResponse{Entry: entry, Book: book})
}

// Own zwraca książki wywołującego (GET /api/inventory)
func (h *InventoryHandler) Own(w http.ResponseWriter, r *http.Request) {
	h.holdings(w, r, "")
}

// ByUser zwraca książki wskazanego użytkownika (GET /api/inventory/{user_id}).
// Cudzy inwentarz widzi tylko administrator.
func (h *InventoryHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	h.holdings(w, r, urlID(r, "user_id"))
}

func (h *InventoryHandler) holdings(w http.ResponseWriter, r *http.Request, userID string) {
	holdings, err := h.engine.Holdings(r.Context(), h.caller(r), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holdings)
}
