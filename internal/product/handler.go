package product

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"ecom-server/internal/httpjson"
)

// Handler serves the public catalog endpoints.
type Handler struct {
	repo    *Repository
	respond *httpjson.Responder
}

func NewHandler(repo *Repository, respond *httpjson.Responder) *Handler {
	return &Handler{repo: repo, respond: respond}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	cursor := query.Get("cursor")
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			h.respond.Fail(w, http.StatusBadRequest, "Invalid cursor")
			return
		}
	}

	category := query.Get("category")
	if category != "" && !CategoryAllowed(category) {
		h.respond.Fail(w, http.StatusBadRequest, "Unknown category")
		return
	}

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 50 {
			h.respond.Fail(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.repo.List(r.Context(), cursor, category, limit)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"products":    page.Products,
		"hasNextPage": page.HasNextPage,
		"nextCursor":  page.NextCursor,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Product not found")
			return
		}
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"product": p,
	})
}
