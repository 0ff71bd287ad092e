package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DBTX is the subset of pgxpool.Pool used by PGStore.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	DB DBTX
}

// NewPGStore constructs a PostgreSQL backed order store.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{DB: db}
}

const selectOrder = `SELECT id, order_key, status, currency, total::text, payment_method, transaction_id,
	stock_reduced, paid_at, created_at, updated_at FROM orders WHERE id = $1`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
		method pgtype.Text
		txnID  pgtype.Text
		paidAt pgtype.Timestamptz
	)
	if err := row.Scan(&o.ID, &o.OrderKey, &status, &o.Currency, &o.Total, &method, &txnID,
		&o.StockReduced, &paidAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentMethod = method.String
	o.TransactionID = txnID.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return o, nil
}

// Get loads the order with the given id.
func (s *PGStore) Get(ctx context.Context, id int64) (Order, error) {
	ctx, span := otel.Tracer("order.PGStore").Start(ctx, "OrderStore.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	o, err := scanOrder(s.DB.QueryRow(ctx, selectOrder, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		span.RecordError(err)
		return Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	return o, nil
}

// PaymentComplete moves a pending or failed order to processing and records the
// processor transaction id.
func (s *PGStore) PaymentComplete(ctx context.Context, id int64, transactionID string) error {
	ctx, span := otel.Tracer("order.PGStore").Start(ctx, "OrderStore.PaymentComplete")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	tag, err := s.DB.Exec(ctx, `UPDATE orders
		SET status = $2, transaction_id = NULLIF($3, ''), paid_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'failed') AND total > 0`,
		id, string(StatusProcessing), strings.TrimSpace(transactionID))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("complete payment for order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus sets the order status.
func (s *PGStore) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("update order %d: invalid status %q", id, status)
	}
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update order %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddNote appends a note to the order history.
func (s *PGStore) AddNote(ctx context.Context, id int64, note string) error {
	if _, err := s.DB.Exec(ctx, `INSERT INTO order_notes (order_id, note) VALUES ($1, $2)`, id, note); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("add note to order %d: %w", id, err)
	}
	return nil
}

// Notes lists the order history oldest first.
func (s *PGStore) Notes(ctx context.Context, id int64) ([]Note, error) {
	rows, err := s.DB.Query(ctx, `SELECT id, order_id, note, created_at FROM order_notes WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list notes for order %d: %w", id, err)
	}
	notes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Note, error) {
		var n Note
		err := row.Scan(&n.ID, &n.OrderID, &n.Note, &n.CreatedAt)
		return n, err
	})
	if err != nil {
		return nil, fmt.Errorf("list notes for order %d: %w", id, err)
	}
	return notes, nil
}

// ReduceStock decrements managed product stock for each order item. The order's
// stock_reduced flag makes repeated calls a no-op.
func (s *PGStore) ReduceStock(ctx context.Context, id int64) error {
	ctx, span := otel.Tracer("order.PGStore").Start(ctx, "OrderStore.ReduceStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	return pgx.BeginFunc(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE orders SET stock_reduced = TRUE, updated_at = now()
			WHERE id = $1 AND stock_reduced = FALSE`, id)
		if err != nil {
			return fmt.Errorf("mark stock reduced for order %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE products p
			SET stock = p.stock - oi.qty
			FROM (SELECT product_id, SUM(qty) AS qty FROM order_items WHERE order_id = $1 AND product_id IS NOT NULL GROUP BY product_id) oi
			WHERE p.id = oi.product_id AND p.manage_stock`, id); err != nil {
			return fmt.Errorf("reduce stock for order %d: %w", id, err)
		}
		return nil
	})
}
