package order

import (
	"time"

	"ecom-server/internal/product"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusShipped    Status = "shipped"
	StatusCancelled  Status = "cancelled"
	StatusCompleted  Status = "completed"
)

func StatusValid(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusFailed, StatusShipped, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Item is a snapshot of the product at purchase time; later catalog
// edits never rewrite history.
type Item struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Categories  []string        `json:"categories"`
	Quantity    int             `json:"quantity"`
	Images      []product.Image `json:"images"`
	Sizes       []string        `json:"sizes,omitempty"`
}

type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Items           []Item    `json:"items"`
	TotalPrice      float64   `json:"totalPrice"`
	StripeSessionID string    `json:"stripeSessionId"`
	PaymentStatus   string    `json:"paymentStatus"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SalesPoint aggregates quantity sold and revenue for one category on
// one calendar day.
type SalesPoint struct {
	Day      string  `json:"day"`
	Category string  `json:"category"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}
