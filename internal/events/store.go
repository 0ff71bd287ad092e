package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DBTX is the subset of pgxpool.Pool used by PGStore.
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore writes events to the payment_events table.
type PGStore struct {
	DB DBTX
}

// Insert stores ev and returns it with the timestamp recorded by the database.
func (s PGStore) Insert(ctx context.Context, ev Event) (Event, error) {
	err := s.DB.QueryRow(ctx, `INSERT INTO payment_events (id, topic, order_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.OrderID, string(ev.Payload), ev.OccurredAt,
	).Scan(&ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert payment event: %w", err)
	}
	return ev, nil
}
