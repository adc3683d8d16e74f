package product

import "time"

// AllowedCategories is the closed set a product may be filed under.
var AllowedCategories = []string{"Electronics", "Clothing", "Home & Kitchen", "Books"}

func CategoryAllowed(category string) bool {
	for _, c := range AllowedCategories {
		if c == category {
			return true
		}
	}
	return false
}

type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Product rows keep images and categories in jsonb columns.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Images       []Image   `json:"images"`
	Categories   []string  `json:"categories"`
	CountInStock int       `json:"countInStock"`
	OwnerID      string    `json:"ownerId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ProductInput struct {
	Name         string
	Description  string
	Price        float64
	Images       []Image
	Categories   []string
	CountInStock int
	OwnerID      string
}

// Page is one cursor step of the catalog listing. NextCursor is the id
// of the last product returned and only meaningful when HasNextPage.
type Page struct {
	Products    []Product `json:"products"`
	HasNextPage bool      `json:"hasNextPage"`
	NextCursor  string    `json:"nextCursor,omitempty"`
}
