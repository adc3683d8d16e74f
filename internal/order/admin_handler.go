package order

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ecom-server/internal/account"
	"ecom-server/internal/httpjson"
)

// AdminHandler serves order management and sales reporting. Mounted
// behind the admin session middleware.
type AdminHandler struct {
	repo    *Repository
	respond *httpjson.Responder
}

func NewAdminHandler(repo *Repository, respond *httpjson.Responder) *AdminHandler {
	return &AdminHandler{repo: repo, respond: respond}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing failed shipped cancelled completed"`
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.All(r.Context())
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  orders,
	})
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	o, err := h.repo.ByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Order not found")
			return
		}
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   o,
	})
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	var req updateStatusRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	o, err := h.repo.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Order not found")
			return
		}
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order status updated",
		"order":   o,
	})
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Order not found")
			return
		}
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order deleted successfully",
	})
}

// ProductSales reports the admin's sales over the trailing seven days,
// broken down by category and day.
func (h *AdminHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	sales, err := h.repo.SalesSince(r.Context(), identity.ID, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sales":   sales,
	})
}
