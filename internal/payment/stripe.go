package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StripeClient speaks the two Stripe Checkout endpoints this service
// needs over the form-encoded REST API.
type StripeClient struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

type Session struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

type stripeErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// LineItem is one priced entry of a checkout session. UnitAmount is in
// the currency's smallest unit.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
}

func NewStripeClient(secretKey string) (*StripeClient, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, fmt.Errorf("missing stripe secret key")
	}

	return &StripeClient{
		secretKey: secretKey,
		baseURL:   "https://api.stripe.com",
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

// CreateCheckoutSession opens a hosted payment page and returns the
// session carrying its redirect URL. Metadata rides along so the
// confirmation step can rebuild the order without trusting the client.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, items []LineItem, successURL, cancelURL string, metadata map[string]string) (Session, error) {
	if len(items) == 0 {
		return Session{}, fmt.Errorf("empty line items")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitAmount, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	return c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form)
}

// RetrieveSession fetches a checkout session by id, typically to check
// its payment_status after the customer returns.
func (c *StripeClient) RetrieveSession(ctx context.Context, sessionID string) (Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, fmt.Errorf("empty session id")
	}

	return c.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values) (Session, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Session{}, fmt.Errorf("build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return Session{}, fmt.Errorf("read stripe response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var stripeErr stripeErrorResponse
		if err := json.Unmarshal(raw, &stripeErr); err == nil && stripeErr.Error != nil && stripeErr.Error.Message != "" {
			return Session{}, fmt.Errorf("stripe request failed: %s", stripeErr.Error.Message)
		}
		return Session{}, fmt.Errorf("stripe request failed with status %d", resp.StatusCode)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("decode stripe response: %w", err)
	}
	if session.ID == "" {
		return Session{}, fmt.Errorf("stripe response missing session id")
	}

	return session, nil
}
