package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"ecom-server/internal/account"
	"ecom-server/internal/apperror"
	"ecom-server/internal/httpjson"
	"ecom-server/internal/order"
	"ecom-server/internal/product"
)

// StripeAPI is the slice of the Stripe client the handlers use.
type StripeAPI interface {
	CreateCheckoutSession(ctx context.Context, items []LineItem, successURL, cancelURL string, metadata map[string]string) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (Session, error)
}

// ProductFinder resolves cart product ids against the catalog.
type ProductFinder interface {
	ByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// OrderStore is the order persistence the confirmation step needs.
type OrderStore interface {
	Create(ctx context.Context, o order.Order) (order.Order, error)
	ExistsBySession(ctx context.Context, sessionID string) (bool, error)
}

// Handler drives the checkout flow: create a hosted session, then turn
// a paid session into an order exactly once. Prices always come from
// the catalog, never from the client.
type Handler struct {
	stripe    StripeAPI
	products  ProductFinder
	orders    OrderStore
	clientURL string
	respond   *httpjson.Responder
}

func NewHandler(stripe StripeAPI, products ProductFinder, orders OrderStore, clientURL string, respond *httpjson.Responder) *Handler {
	return &Handler{
		stripe:    stripe,
		products:  products,
		orders:    orders,
		clientURL: clientURL,
		respond:   respond,
	}
}

type cartEntry struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

type checkoutRequest struct {
	Cart []cartEntry `json:"cart" validate:"required,min=1,max=50,dive"`
}

type confirmOrderRequest struct {
	SessionID string `json:"sessionId" validate:"required,min=10"`
}

type checkSessionRequest struct {
	SessionID string `json:"sessionId" validate:"required,min=10"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req checkoutRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	_, lineItems, _, err := h.priceCart(r.Context(), req.Cart)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	cartJSON, err := json.Marshal(req.Cart)
	if err != nil {
		h.respond.Err(w, fmt.Errorf("marshal cart: %w", err))
		return
	}

	session, err := h.stripe.CreateCheckoutSession(r.Context(), lineItems,
		h.clientURL+"/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		h.clientURL+"/checkout/cancel",
		map[string]string{
			"userId": identity.ID,
			"cart":   string(cartJSON),
		},
	)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// ConfirmOrder turns a paid checkout session into an order. The cart is
// read back from session metadata and re-priced from the catalog; a
// session that already produced an order is rejected.
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req confirmOrderRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	session, err := h.stripe.RetrieveSession(r.Context(), req.SessionID)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	if session.PaymentStatus != "paid" {
		h.respond.Fail(w, http.StatusBadRequest, "Payment has not been completed")
		return
	}
	if session.Metadata["userId"] != identity.ID {
		h.respond.Fail(w, http.StatusForbidden, "This action is not allowed")
		return
	}

	exists, err := h.orders.ExistsBySession(r.Context(), session.ID)
	if err != nil {
		h.respond.Err(w, err)
		return
	}
	if exists {
		h.respond.Fail(w, http.StatusConflict, "Order already created")
		return
	}

	var cart []cartEntry
	if err := json.Unmarshal([]byte(session.Metadata["cart"]), &cart); err != nil || len(cart) == 0 {
		h.respond.Fail(w, http.StatusBadRequest, "Session metadata is invalid")
		return
	}

	orderItems, _, total, err := h.priceCart(r.Context(), cart)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	created, err := h.orders.Create(r.Context(), order.Order{
		UserID:          identity.ID,
		Items:           orderItems,
		TotalPrice:      total,
		StripeSessionID: session.ID,
		PaymentStatus:   session.PaymentStatus,
		Status:          order.StatusPending,
	})
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Order created successfully",
		"order":   created,
	})
}

// CheckSession reports whether a checkout session is paid and whether
// it already produced an order, for the success-page polling on the
// client. A session that belongs to another user is not disclosed.
func (h *Handler) CheckSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := account.FromContext(r)
	if !ok {
		h.respond.Fail(w, http.StatusUnauthorized, "Authentication failed. Please log in again.")
		return
	}

	var req checkSessionRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.respond.Err(w, err)
		return
	}

	session, err := h.stripe.RetrieveSession(r.Context(), req.SessionID)
	if err != nil {
		h.respond.Err(w, err)
		return
	}
	if session.Metadata["userId"] != identity.ID {
		h.respond.Fail(w, http.StatusForbidden, "This action is not allowed")
		return
	}

	exists, err := h.orders.ExistsBySession(r.Context(), session.ID)
	if err != nil {
		h.respond.Err(w, err)
		return
	}

	h.respond.JSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"paid":         session.PaymentStatus == "paid",
		"orderCreated": exists,
	})
}

// priceCart resolves and prices cart entries from the catalog, checking
// stock along the way.
func (h *Handler) priceCart(ctx context.Context, cart []cartEntry) ([]order.Item, []LineItem, float64, error) {
	ids := make([]string, 0, len(cart))
	for _, entry := range cart {
		ids = append(ids, entry.ProductID)
	}

	products, err := h.products.ByIDs(ctx, ids)
	if err != nil {
		return nil, nil, 0, err
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var (
		orderItems []order.Item
		lineItems  []LineItem
		total      float64
	)
	for _, entry := range cart {
		p, ok := byID[entry.ProductID]
		if !ok {
			return nil, nil, 0, apperror.New("One of the cart products no longer exists", http.StatusBadRequest)
		}
		if p.CountInStock < entry.Quantity {
			return nil, nil, 0, apperror.New(fmt.Sprintf("%q does not have enough stock", p.Name), http.StatusBadRequest)
		}

		orderItems = append(orderItems, order.Item{
			ProductID:   p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
			Categories:  p.Categories,
			Quantity:    entry.Quantity,
			Images:      p.Images,
		})
		lineItems = append(lineItems, LineItem{
			Name:       p.Name,
			UnitAmount: int64(math.Round(p.Price * 100)),
			Quantity:   entry.Quantity,
		})
		total += p.Price * float64(entry.Quantity)
	}

	return orderItems, lineItems, math.Round(total*100) / 100, nil
}
