package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"ecom-server/internal/account"
	"ecom-server/internal/httpjson"
	"ecom-server/internal/observability"
)

const (
	maxProductImages   = 10
	maxImageBytes      = 5 << 20
	maxProductFormSize = maxProductImages*maxImageBytes + (1 << 20)
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Uploader is the slice of the media client the catalog needs.
type Uploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (url, publicID string, err error)
	Destroy(ctx context.Context, publicID string) error
}

// AdminHandler serves the catalog management endpoints. Mounted behind
// the admin session middleware; products are scoped to the admin that
// created them.
type AdminHandler struct {
	repo     *Repository
	uploader Uploader
	respond  *httpjson.Responder
	logger   *observability.Logger
}

func NewAdminHandler(repo *Repository, uploader Uploader, respond *httpjson.Responder, logger *observability.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, uploader: uploader, respond: respond, logger: logger}
}

func (h *AdminHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	products, err := h.repo.ListByOwner(r.Context(), identity.ID)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"products": products,
	})
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	input, files, ok := h.parseForm(w, r, true)
	if !ok {
		return
	}
	input.OwnerID = identity.ID

	images, err := h.uploadAll(r.Context(), files)
	if err != nil {
		h.respond.Err(w, err)
		return
	}
	input.Images = images

	p, err := h.repo.Create(r.Context(), input)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Product created successfully",
		"product": p,
	})
}

// Update replaces the scalar fields and prepends any newly uploaded
// images to the existing list.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	id := r.PathValue("id")
	existing, ok := h.owned(w, r, identity.ID, id)
	if !ok {
		return
	}

	input, files, ok := h.parseForm(w, r, false)
	if !ok {
		return
	}
	input.OwnerID = identity.ID

	newImages, err := h.uploadAll(r.Context(), files)
	if err != nil {
		h.respond.Err(w, err)
		return
	}
	input.Images = append(newImages, existing.Images...)
	if len(input.Images) > maxProductImages {
		h.respond.Fail(w, http.StatusBadRequest, fmt.Sprintf("A product can have at most %d images", maxProductImages))
		return
	}

	p, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product updated successfully",
		"product": p,
	})
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	id := r.PathValue("id")
	existing, ok := h.owned(w, r, identity.ID, id)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Product not found")
			return
		}
		h.respond.Err(w, err)
		return
	}

	// Remote cleanup is best-effort; the row is already gone.
	for _, img := range existing.Images {
		if err := h.uploader.Destroy(r.Context(), img.PublicID); err != nil {
			h.logger.Warn("image_destroy_failed", map[string]any{"public_id": img.PublicID, "error": err.Error()})
		}
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product deleted successfully",
	})
}

func (h *AdminHandler) owned(w http.ResponseWriter, r *http.Request, ownerID, id string) (Product, bool) {
	if _, err := uuid.Parse(id); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid product id")
		return Product{}, false
	}

	p, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Product not found")
			return Product{}, false
		}
		h.respond.Err(w, err)
		return Product{}, false
	}
	if p.OwnerID != ownerID {
		h.respond.Fail(w, http.StatusForbidden, "This action is not allowed")
		return Product{}, false
	}

	return p, true
}

// parseForm validates the multipart fields shared by create and update.
// The create path additionally requires at least one image and a stock
// of at least one.
func (h *AdminHandler) parseForm(w http.ResponseWriter, r *http.Request, creating bool) (ProductInput, []*multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProductFormSize)
	if err := r.ParseMultipartForm(maxProductFormSize); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Body must be multipart form data")
		return ProductInput{}, nil, false
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if len(name) < 3 || len(name) > 20 {
		h.respond.Fail(w, http.StatusBadRequest, "Name must be between 3 and 20 characters")
		return ProductInput{}, nil, false
	}

	description := strings.TrimSpace(r.FormValue("description"))
	if len(description) < 10 {
		h.respond.Fail(w, http.StatusBadRequest, "Description must be at least 10 characters")
		return ProductInput{}, nil, false
	}

	price, err := strconv.ParseFloat(r.FormValue("price"), 64)
	if err != nil || price <= 0 {
		h.respond.Fail(w, http.StatusBadRequest, "Price must be a positive number")
		return ProductInput{}, nil, false
	}

	minStock := 0
	if creating {
		minStock = 1
	}
	countInStock, err := strconv.Atoi(r.FormValue("countInStock"))
	if err != nil || countInStock < minStock {
		h.respond.Fail(w, http.StatusBadRequest, fmt.Sprintf("countInStock must be at least %d", minStock))
		return ProductInput{}, nil, false
	}

	categories := r.Form["categories"]
	if len(categories) == 0 {
		h.respond.Fail(w, http.StatusBadRequest, "At least one category is required")
		return ProductInput{}, nil, false
	}
	for _, c := range categories {
		if !CategoryAllowed(c) {
			h.respond.Fail(w, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", c))
			return ProductInput{}, nil, false
		}
	}

	files := r.MultipartForm.File["images"]
	if creating && len(files) == 0 {
		h.respond.Fail(w, http.StatusBadRequest, "At least one image is required")
		return ProductInput{}, nil, false
	}
	if len(files) > maxProductImages {
		h.respond.Fail(w, http.StatusBadRequest, fmt.Sprintf("A product can have at most %d images", maxProductImages))
		return ProductInput{}, nil, false
	}
	for _, file := range files {
		if file.Size > maxImageBytes {
			h.respond.Fail(w, http.StatusBadRequest, "Each image must be 5MB or smaller")
			return ProductInput{}, nil, false
		}
		if !allowedImageTypes[file.Header.Get("Content-Type")] {
			h.respond.Fail(w, http.StatusBadRequest, "Images must be jpeg, png or webp")
			return ProductInput{}, nil, false
		}
	}

	return ProductInput{
		Name:         name,
		Description:  description,
		Price:        price,
		Categories:   categories,
		CountInStock: countInStock,
	}, files, true
}

func (h *AdminHandler) uploadAll(ctx context.Context, files []*multipart.FileHeader) ([]Image, error) {
	images := make([]Image, 0, len(files))
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}

		url, publicID, err := h.uploader.Upload(ctx, file.Filename, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}

		images = append(images, Image{URL: url, PublicID: publicID})
	}
	return images, nil
}
