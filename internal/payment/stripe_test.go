package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *StripeClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewStripeClient("sk_test_123")
	require.NoError(t, err)
	client.baseURL = server.URL
	return client
}

func TestCreateCheckoutSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "Keyboard", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "12999", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "user-1", r.PostForm.Get("metadata[userId]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/pay/cs_test_1","payment_status":"unpaid"}`))
	})

	session, err := client.CreateCheckoutSession(context.Background(),
		[]LineItem{{Name: "Keyboard", UnitAmount: 12999, Quantity: 2}},
		"https://shop.example/success", "https://shop.example/cancel",
		map[string]string{"userId": "user-1"},
	)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", session.URL)
}

func TestRetrieveSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","payment_status":"paid","metadata":{"userId":"user-1"}}`))
	})

	session, err := client.RetrieveSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "paid", session.PaymentStatus)
	assert.Equal(t, "user-1", session.Metadata["userId"])
}

func TestStripeErrorSurfacesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"Your card was declined."}}`))
	})

	_, err := client.RetrieveSession(context.Background(), "cs_test_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card was declined")
}

func TestCreateCheckoutSessionRejectsEmptyCart(t *testing.T) {
	client, err := NewStripeClient("sk_test_123")
	require.NoError(t, err)

	_, err = client.CreateCheckoutSession(context.Background(), nil, "s", "c", nil)
	assert.Error(t, err)
}

func TestNewStripeClientRequiresKey(t *testing.T) {
	_, err := NewStripeClient("  ")
	assert.Error(t, err)
}
