package media

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"ecom-server/internal/account"
	"ecom-server/internal/httpjson"
	"ecom-server/internal/observability"
	"ecom-server/internal/product"
)

const maxUploadBytes = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Uploader abstracts the Cloudinary client for tests.
type Uploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (url, publicID string, err error)
	Destroy(ctx context.Context, publicID string) error
}

// ProfileStore is the slice of the account repository the profile image
// endpoint needs.
type ProfileStore interface {
	AccountByID(ctx context.Context, id string) (account.Account, error)
	SetImage(ctx context.Context, id string, img *account.Image) error
}

// ProductImages is the slice of the product repository the image
// deletion endpoint needs.
type ProductImages interface {
	Get(ctx context.Context, id string) (product.Product, error)
	SetImages(ctx context.Context, id string, images []product.Image) error
}

type Handler struct {
	uploader Uploader
	profiles ProfileStore
	products ProductImages
	respond  *httpjson.Responder
	logger   *observability.Logger
}

func NewHandler(uploader Uploader, profiles ProfileStore, products ProductImages, respond *httpjson.Responder, logger *observability.Logger) *Handler {
	return &Handler{
		uploader: uploader,
		profiles: profiles,
		products: products,
		respond:  respond,
		logger:   logger,
	}
}

// UploadProfileImage replaces the caller's profile picture. The previous
// upload is destroyed best-effort once the new one is in place.
func (h *Handler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Body must be multipart form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "An image file is required")
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		h.respond.Fail(w, http.StatusBadRequest, "Image must be 5MB or smaller")
		return
	}
	if !allowedImageTypes[header.Header.Get("Content-Type")] {
		h.respond.Fail(w, http.StatusBadRequest, "Image must be jpeg, png or webp")
		return
	}

	acc, err := h.profiles.AccountByID(r.Context(), identity.ID)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	url, publicID, err := h.uploader.Upload(r.Context(), header.Filename, file)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	img := &account.Image{URL: url, PublicID: publicID}
	if err := h.profiles.SetImage(r.Context(), identity.ID, img); err != nil {
		h.respond.Err(w, err)
		return
	}

	if acc.Image != nil && acc.Image.PublicID != "" {
		if err := h.uploader.Destroy(r.Context(), acc.Image.PublicID); err != nil {
			h.logger.Warn("image_destroy_failed", map[string]any{"public_id": acc.Image.PublicID, "error": err.Error()})
		}
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Profile image updated",
		"image":   img,
	})
}

type deleteProductImageRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	PublicID  string `json:"publicId" validate:"required"`
}

// DeleteProductImage removes one image from a product the caller owns.
// A product keeps at least one image at all times.
func (h *Handler) DeleteProductImage(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req deleteProductImageRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}
	if _, err := uuid.Parse(req.ProductID); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	p, err := h.products.Get(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.respond.Fail(w, http.StatusNotFound, "Product not found")
			return
		}
		h.respond.Err(w, err)
		return
	}
	if p.OwnerID != identity.ID {
		h.respond.Fail(w, http.StatusForbidden, "This action is not allowed")
		return
	}

	if len(p.Images) <= 1 {
		h.respond.Fail(w, http.StatusConflict, "Product must have at least one image")
		return
	}

	remaining := make([]product.Image, 0, len(p.Images))
	found := false
	for _, img := range p.Images {
		if img.PublicID == req.PublicID {
			found = true
			continue
		}
		remaining = append(remaining, img)
	}
	if !found {
		h.respond.Fail(w, http.StatusNotFound, "Image not found on product")
		return
	}

	if err := h.products.SetImages(r.Context(), req.ProductID, remaining); err != nil {
		h.respond.Err(w, err)
		return
	}

	if err := h.uploader.Destroy(r.Context(), req.PublicID); err != nil {
		h.logger.Warn("image_destroy_failed", map[string]any{"public_id": req.PublicID, "error": err.Error()})
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Image deleted successfully",
	})
}
