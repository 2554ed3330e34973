package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/shopping"
	"github.com/dukerupert/shoplist/internal/store"
	"github.com/dukerupert/shoplist/internal/validate"
)

type ShoppingHandler struct {
	repo    *shopping.Repository
	session *shopping.Session
	logger  *slog.Logger
}

func NewShoppingHandler(repo *shopping.Repository, session *shopping.Session, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{repo: repo, session: session, logger: logger}
}

// writeFailure maps domain errors to status codes. Anything unexpected is
// logged and reported as a 500 with a generic message.
func (h *ShoppingHandler) writeFailure(w http.ResponseWriter, err error, action string) {
	if ve, ok := validate.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "fields": ve})
		return
	}
	switch {
	case errors.Is(err, store.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, "category does not exist")
	default:
		h.logger.Error("request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// --- Categories ---

// categoryRequest fields left out of an update keep their stored values.
type categoryRequest struct {
	Name     *string `json:"name"`
	Selected *bool   `json:"is_selected"`
}

func (h *ShoppingHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.Categories(r.Context())
	if err != nil {
		h.writeFailure(w, err, "list categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *ShoppingHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var name string
	if req.Name != nil {
		name = *req.Name
	}
	c, err := h.session.AddCategory(r.Context(), name)
	if err != nil {
		h.writeFailure(w, err, "create category")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ShoppingHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.repo.Category(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err, "get category")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Selected != nil {
		existing.Selected = *req.Selected
	}

	c, err := h.session.UpdateCategory(r.Context(), *existing)
	if err != nil {
		h.writeFailure(w, err, "update category")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ShoppingHandler) ToggleCategorySelected(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.session.ToggleCategorySelection(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err, "toggle category")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ShoppingHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.session.DeleteCategory(r.Context(), id); err != nil {
		h.writeFailure(w, err, "delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Items ---

// itemRequest fields left out of an update keep their stored values. On
// create, a missing quantity means the default.
type itemRequest struct {
	Name       *string `json:"name"`
	Quantity   *int    `json:"quantity"`
	Checked    *bool   `json:"is_checked"`
	CategoryID *int64  `json:"category_id"`
}

func (h *ShoppingHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	items, err := h.repo.ItemsByCategory(r.Context(), categoryID)
	if err != nil {
		h.writeFailure(w, err, "list items")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ShoppingHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	categoryID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var (
		name     string
		quantity = model.DefaultQuantity
	)
	if req.Name != nil {
		name = *req.Name
	}
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	item, err := h.session.AddItem(r.Context(), name, categoryID, quantity)
	if err != nil {
		h.writeFailure(w, err, "create item")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ShoppingHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.repo.Item(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err, "get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Quantity != nil {
		existing.Quantity = *req.Quantity
	}
	if req.Checked != nil {
		existing.Checked = *req.Checked
	}
	if req.CategoryID != nil {
		existing.CategoryID = *req.CategoryID
	}

	item, err := h.session.UpdateItem(r.Context(), *existing)
	if err != nil {
		h.writeFailure(w, err, "update item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) ToggleItemChecked(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	item, err := h.session.ToggleItemChecked(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err, "toggle checked")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ShoppingHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.session.DeleteItem(r.Context(), id); err != nil {
		h.writeFailure(w, err, "delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Selection and sharing ---

func (h *ShoppingHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *ShoppingHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CategoryID *int64 `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	id := shopping.DeselectCategory
	if req.CategoryID != nil {
		id = *req.CategoryID
	}

	if err := h.session.SelectCategory(r.Context(), id); err != nil {
		h.writeFailure(w, err, "select category")
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

func (h *ShoppingHandler) Share(w http.ResponseWriter, r *http.Request) {
	text, err := h.session.ShareSelectedCategories(r.Context())
	if err != nil {
		h.writeFailure(w, err, "share")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}
