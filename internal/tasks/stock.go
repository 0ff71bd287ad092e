package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-asppay/internal/order"
)

// TypeReduceStock is the asynq task type for post-payment stock reduction.
const TypeReduceStock = "order:reduce_stock"

// ReduceStockPayload is the task payload.
type ReduceStockPayload struct {
	OrderID int64 `json:"order_id"`
}

// StockReducer applies stock reduction for an order.
type StockReducer interface {
	ReduceStock(ctx context.Context, orderID int64) error
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewReduceStockTask builds the task for orderID.
func NewReduceStockTask(orderID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(ReduceStockPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReduceStock, payload), nil
}

// StockQueue schedules stock reduction on the task queue. Without a client the
// reduction runs inline through Inline.
type StockQueue struct {
	Client   Enqueuer
	Inline   StockReducer
	Queue    string
	MaxRetry int
	Timeout  time.Duration
}

// ReduceStock enqueues the reduction for orderID. The task id is derived from the
// order so a repeated call while the task is pending is dropped.
func (q StockQueue) ReduceStock(ctx context.Context, orderID int64) error {
	if q.Client == nil {
		if q.Inline == nil {
			return errors.New("tasks: no stock reducer configured")
		}
		return q.Inline.ReduceStock(ctx, orderID)
	}
	task, err := NewReduceStockTask(orderID)
	if err != nil {
		return fmt.Errorf("build reduce stock task: %w", err)
	}
	opts := []asynq.Option{asynq.TaskID(fmt.Sprintf("reduce_stock:%d", orderID))}
	if q.Queue != "" {
		opts = append(opts, asynq.Queue(q.Queue))
	}
	if q.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(q.MaxRetry))
	}
	if q.Timeout > 0 {
		opts = append(opts, asynq.Timeout(q.Timeout))
	}
	if _, err := q.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue reduce stock for order %d: %w", orderID, err)
	}
	return nil
}

// StockHandler processes reduce-stock tasks.
type StockHandler struct {
	Orders StockReducer
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h StockHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReduceStockPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.Logger.Error().Err(err).Str("task", t.Type()).Msg("decode task payload")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.OrderID <= 0 {
		return fmt.Errorf("invalid order id %d: %w", p.OrderID, asynq.SkipRetry)
	}
	if err := h.Orders.ReduceStock(ctx, p.OrderID); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.Logger.Warn().Int64("order_id", p.OrderID).Msg("reduce stock for missing order")
			return fmt.Errorf("order %d: %w", p.OrderID, asynq.SkipRetry)
		}
		return err
	}
	h.Logger.Info().Int64("order_id", p.OrderID).Msg("order_stock_reduced")
	return nil
}

// NewServeMux routes task types to their handlers.
func NewServeMux(stock StockHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeReduceStock, stock)
	return mux
}
