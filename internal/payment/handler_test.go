package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecom-server/internal/account"
	"ecom-server/internal/httpjson"
	"ecom-server/internal/order"
	"ecom-server/internal/product"
)

type fakeStripe struct {
	created  []Session
	session  Session
	retrieve func(sessionID string) (Session, error)
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, items []LineItem, successURL, cancelURL string, metadata map[string]string) (Session, error) {
	f.session.Metadata = metadata
	f.created = append(f.created, f.session)
	return f.session, nil
}

func (f *fakeStripe) RetrieveSession(_ context.Context, sessionID string) (Session, error) {
	if f.retrieve != nil {
		return f.retrieve(sessionID)
	}
	return f.session, nil
}

type fakeProducts struct {
	products []product.Product
}

func (f *fakeProducts) ByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range f.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type fakeOrders struct {
	created  []order.Order
	existing map[string]bool
}

func (f *fakeOrders) Create(_ context.Context, o order.Order) (order.Order, error) {
	o.ID = fmt.Sprintf("order-%d", len(f.created)+1)
	f.created = append(f.created, o)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[o.StripeSessionID] = true
	return o, nil
}

func (f *fakeOrders) ExistsBySession(_ context.Context, sessionID string) (bool, error) {
	return f.existing[sessionID], nil
}

const productID = "0197b8f0-0000-7000-8000-000000000001"

func newHandlerFixture() (*Handler, *fakeStripe, *fakeOrders) {
	stripe := &fakeStripe{session: Session{ID: "cs_test_1", URL: "https://checkout/cs_test_1", PaymentStatus: "paid"}}
	products := &fakeProducts{products: []product.Product{{
		ID:           productID,
		Name:         "Keyboard",
		Description:  "Mechanical keyboard",
		Price:        129.99,
		CountInStock: 5,
	}}}
	orders := &fakeOrders{}

	h := NewHandler(stripe, products, orders, "https://shop.example", &httpjson.Responder{})
	return h, stripe, orders
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return account.WithIdentity(req, account.Identity{ID: "user-1", Email: "user@example.com", Role: account.RoleUser})
}

func TestCheckout(t *testing.T) {
	h, stripe, _ := newHandlerFixture()

	body := fmt.Sprintf(`{"cart":[{"productId":"%s","quantity":2}]}`, productID)
	rec := httptest.NewRecorder()
	h.Checkout(rec, authedRequest(http.MethodPost, "/checkout", body))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cs_test_1", resp["sessionId"])

	require.Len(t, stripe.created, 1)
	assert.Equal(t, "user-1", stripe.created[0].Metadata["userId"])
	assert.Contains(t, stripe.created[0].Metadata["cart"], productID)
}

func TestCheckoutRejectsOverselling(t *testing.T) {
	h, _, _ := newHandlerFixture()

	body := fmt.Sprintf(`{"cart":[{"productId":"%s","quantity":9}]}`, productID)
	rec := httptest.NewRecorder()
	h.Checkout(rec, authedRequest(http.MethodPost, "/checkout", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "stock")
}

func TestConfirmOrder(t *testing.T) {
	h, stripe, orders := newHandlerFixture()
	cart := fmt.Sprintf(`[{"productId":"%s","quantity":2}]`, productID)
	stripe.session.Metadata = map[string]string{"userId": "user-1", "cart": cart}

	rec := httptest.NewRecorder()
	h.ConfirmOrder(rec, authedRequest(http.MethodPost, "/confirm-order", `{"sessionId":"cs_test_1"}`))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, orders.created, 1)

	created := orders.created[0]
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, "cs_test_1", created.StripeSessionID)
	assert.Equal(t, order.StatusPending, created.Status)
	assert.InDelta(t, 259.98, created.TotalPrice, 0.001)
	require.Len(t, created.Items, 1)
	assert.Equal(t, 2, created.Items[0].Quantity)
	assert.Equal(t, 129.99, created.Items[0].Price)
}

func TestConfirmOrderRejectsReplay(t *testing.T) {
	h, stripe, orders := newHandlerFixture()
	cart := fmt.Sprintf(`[{"productId":"%s","quantity":1}]`, productID)
	stripe.session.Metadata = map[string]string{"userId": "user-1", "cart": cart}
	orders.existing = map[string]bool{"cs_test_1": true}

	rec := httptest.NewRecorder()
	h.ConfirmOrder(rec, authedRequest(http.MethodPost, "/confirm-order", `{"sessionId":"cs_test_1"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order already created")
	assert.Empty(t, orders.created)
}

func TestConfirmOrderRejectsUnpaidSession(t *testing.T) {
	h, stripe, orders := newHandlerFixture()
	stripe.session.PaymentStatus = "unpaid"
	stripe.session.Metadata = map[string]string{"userId": "user-1"}

	rec := httptest.NewRecorder()
	h.ConfirmOrder(rec, authedRequest(http.MethodPost, "/confirm-order", `{"sessionId":"cs_test_1"}`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, orders.created)
}

func TestConfirmOrderRejectsForeignSession(t *testing.T) {
	h, stripe, orders := newHandlerFixture()
	stripe.session.Metadata = map[string]string{"userId": "someone-else"}

	rec := httptest.NewRecorder()
	h.ConfirmOrder(rec, authedRequest(http.MethodPost, "/confirm-order", `{"sessionId":"cs_test_1"}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, orders.created)
}

func TestCheckSession(t *testing.T) {
	h, stripe, orders := newHandlerFixture()
	stripe.session.Metadata = map[string]string{"userId": "user-1"}
	orders.existing = map[string]bool{"cs_test_1": true}

	rec := httptest.NewRecorder()
	h.CheckSession(rec, authedRequest(http.MethodPost, "/check-stripeId", `{"sessionId":"cs_test_1"}`))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["paid"])
	assert.Equal(t, true, resp["orderCreated"])
}

func TestCheckSessionUnpaid(t *testing.T) {
	h, stripe, _ := newHandlerFixture()
	stripe.session.PaymentStatus = "unpaid"
	stripe.session.Metadata = map[string]string{"userId": "user-1"}

	rec := httptest.NewRecorder()
	h.CheckSession(rec, authedRequest(http.MethodPost, "/check-stripeId", `{"sessionId":"cs_test_1"}`))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["paid"])
	assert.Equal(t, false, resp["orderCreated"])
}

func TestCheckSessionForeign(t *testing.T) {
	h, stripe, _ := newHandlerFixture()
	stripe.session.Metadata = map[string]string{"userId": "someone-else"}

	rec := httptest.NewRecorder()
	h.CheckSession(rec, authedRequest(http.MethodPost, "/check-stripeId", `{"sessionId":"cs_test_1"}`))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
