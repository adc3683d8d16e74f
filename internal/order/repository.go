package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const orderColumns = `id, user_id, items, total_price, stripe_session_id, payment_status, status, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, o Order) (Order, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Order{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	now := time.Now().UTC()
	o.ID = id.String()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = StatusPending
	}

	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("marshal order items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, items, total_price, stripe_session_id, payment_status, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.UserID, items, o.TotalPrice, o.StripeSessionID, o.PaymentStatus, o.Status, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	return o, nil
}

func (r *Repository) ByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *Repository) ByUserSince(ctx context.Context, userID string, since time.Time) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY id DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *Repository) One(ctx context.Context, id, userID string) (Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	return scanOrder(row)
}

// ByID fetches an order regardless of its owner. Admin use only.
func (r *Repository) ByID(ctx context.Context, id string) (Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *Repository) All(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query all orders: %w", err)
	}
	defer rows.Close()

	return collectOrders(rows)
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, status)
	return scanOrder(row)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
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

// ExistsBySession guards the payment confirmation against replays: one
// checkout session creates at most one order.
func (r *Repository) ExistsBySession(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE stripe_session_id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return exists, nil
}

// SalesSince unnests the jsonb item snapshots into per-category daily
// totals for completed-payment orders created after the given time. An
// item tagged with several categories counts toward each of them.
func (r *Repository) SalesSince(ctx context.Context, ownerID string, since time.Time) ([]SalesPoint, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD'),
		       category,
		       SUM((item->>'quantity')::int),
		       SUM((item->>'price')::numeric * (item->>'quantity')::int)
		FROM orders,
		     jsonb_array_elements(items) AS item,
		     jsonb_array_elements_text(item->'categories') AS category
		WHERE payment_status = 'paid'
		  AND created_at >= $1
		  AND item->>'productId' IN (SELECT id FROM products WHERE owner_id = $2)
		GROUP BY 1, 2
		ORDER BY 1, 2`,
		since, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	sales := make([]SalesPoint, 0)
	for rows.Next() {
		var s SalesPoint
		if err := rows.Scan(&s.Day, &s.Category, &s.Quantity, &s.Revenue); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}

	return sales, nil
}

func collectOrders(rows *sql.Rows) ([]Order, error) {
	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o     Order
		items []byte
	)

	err := row.Scan(&o.ID, &o.UserID, &items, &o.TotalPrice, &o.StripeSessionID,
		&o.PaymentStatus, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return Order{}, fmt.Errorf("decode order items: %w", err)
		}
	}

	return o, nil
}
