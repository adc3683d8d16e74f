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

// Handler serves a customer's own orders. All routes sit behind the
// session middleware.
type Handler struct {
	repo    *Repository
	respond *httpjson.Responder
}

func NewHandler(repo *Repository, respond *httpjson.Responder) *Handler {
	return &Handler{repo: repo, respond: respond}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var (
		orders []Order
		err    error
	)
	if r.URL.Query().Get("recent") == "true" {
		orders, err = h.repo.ByUserSince(r.Context(), identity.ID, time.Now().UTC().AddDate(0, 0, -7))
	} else {
		orders, err = h.repo.ByUser(r.Context(), identity.ID)
	}
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  orders,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	o, err := h.repo.One(r.Context(), id, identity.ID)
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
