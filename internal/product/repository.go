package product

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultPageSize = 6

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, name, description, price, images, categories, count_in_stock, owner_id, created_at, updated_at`

// List pages through the catalog newest-first. UUIDv7 ids are
// time-ordered, so `id < cursor` continues exactly where the previous
// page stopped. One extra row is fetched to learn whether more follow.
func (r *Repository) List(ctx context.Context, cursor, category string, limit int) (Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	where := ""

	if cursor != "" {
		args = append(args, cursor)
		where = fmt.Sprintf(" WHERE id < $%d", len(args))
	}
	if category != "" {
		args = append(args, category)
		if where == "" {
			where = fmt.Sprintf(" WHERE categories ? $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND categories ? $%d", len(args))
		}
	}

	args = append(args, limit+1)
	query += where + fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products, err := collectProducts(rows)
	if err != nil {
		return Page{}, err
	}

	page := Page{Products: products}
	if len(products) > limit {
		page.Products = products[:limit]
		page.HasNextPage = true
		page.NextCursor = page.Products[limit-1].ID
	}

	return page, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// ByIDs resolves a cart's product ids in one round trip.
func (r *Repository) ByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, idArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query products by ids: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE owner_id = $1 ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query owned products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows)
}

func (r *Repository) Create(ctx context.Context, input ProductInput) (Product, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Product{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	p := Product{
		ID:           id.String(),
		Name:         input.Name,
		Description:  input.Description,
		Price:        input.Price,
		Images:       input.Images,
		Categories:   input.Categories,
		CountInStock: input.CountInStock,
		OwnerID:      input.OwnerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	images, err := json.Marshal(p.Images)
	if err != nil {
		return Product{}, fmt.Errorf("marshal images: %w", err)
	}
	categories, err := json.Marshal(p.Categories)
	if err != nil {
		return Product{}, fmt.Errorf("marshal categories: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, images, categories, count_in_stock, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Name, p.Description, p.Price, images, categories, p.CountInStock, p.OwnerID, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}

	return p, nil
}

func (r *Repository) Update(ctx context.Context, id string, input ProductInput) (Product, error) {
	images, err := json.Marshal(input.Images)
	if err != nil {
		return Product{}, fmt.Errorf("marshal images: %w", err)
	}
	categories, err := json.Marshal(input.Categories)
	if err != nil {
		return Product{}, fmt.Errorf("marshal categories: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, images = $5, categories = $6,
		    count_in_stock = $7, updated_at = $8
		WHERE id = $1
		RETURNING `+productColumns,
		id, input.Name, input.Description, input.Price, images, categories,
		input.CountInStock, time.Now().UTC(),
	)
	return scanProduct(row)
}

// SetImages replaces just the image list, used when a single image is
// removed through the media endpoint.
func (r *Repository) SetImages(ctx context.Context, id string, images []Image) error {
	payload, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `
		UPDATE products SET images = $2, updated_at = now() WHERE id = $1`,
		id, payload,
	); err != nil {
		return fmt.Errorf("set images: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func collectProducts(rows *sql.Rows) ([]Product, error) {
	products := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var (
		p          Product
		images     []byte
		categories []byte
	)

	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &images, &categories,
		&p.CountInStock, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}

	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return Product{}, fmt.Errorf("decode images: %w", err)
		}
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return Product{}, fmt.Errorf("decode categories: %w", err)
		}
	}

	return p, nil
}

// idArray renders a Postgres text[] literal for ANY($1).
func idArray(ids []string) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out + "}"
}
