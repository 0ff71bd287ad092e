package order

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order: not found")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusOnHold     Status = "on-hold"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusOnHold, StatusCompleted, StatusCancelled, StatusRefunded, StatusFailed:
		return true
	default:
		return false
	}
}

// Paid reports whether the status follows a completed payment.
func (s Status) Paid() bool {
	return s == StatusProcessing || s == StatusCompleted
}

// Order is the subset of the host order record used by payment methods.
type Order struct {
	ID            int64      `json:"id"`
	OrderKey      string     `json:"-"`
	Status        Status     `json:"status"`
	Currency      string     `json:"currency"`
	Total         string     `json:"total"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
	StockReduced  bool       `json:"-"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Note is a free-form entry in the order history.
type Note struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

// NeedsPayment reports whether the order is still waiting for a payment.
func (o Order) NeedsPayment() bool {
	if o.Status != StatusPending && o.Status != StatusFailed {
		return false
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(o.Total), 64)
	if err != nil {
		return false
	}
	return total > 0
}

// ReceivedURL is the shopper-facing confirmation page for the order.
func (o Order) ReceivedURL(siteURL string) string {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	q := url.Values{}
	q.Set("key", o.OrderKey)
	return fmt.Sprintf("%s/checkout/order-received/%d/?%s", base, o.ID, q.Encode())
}

// Reader loads orders.
type Reader interface {
	Get(ctx context.Context, id int64) (Order, error)
}

// Store is the host order storage used by the checkout flow.
type Store interface {
	Reader
	// PaymentComplete records a successful payment. It is a no-op when the order no
	// longer needs payment.
	PaymentComplete(ctx context.Context, id int64, transactionID string) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	AddNote(ctx context.Context, id int64, note string) error
	// ReduceStock decrements stock for the order items once per order.
	ReduceStock(ctx context.Context, id int64) error
	Notes(ctx context.Context, id int64) ([]Note, error)
}
