package checkout

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/noah-isme/toko-asppay/internal/common"
)

// ResultSuccess is the result value of a payment that produced a redirect.
const ResultSuccess = "success"

// MethodInfo is the shopper-facing description of a payment method.
type MethodInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	MethodTitle string `json:"methodTitle"`
}

// Result tells the checkout page where to send the shopper next.
type Result struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect"`
}

// Method is a payment method that can be offered at checkout.
type Method interface {
	ID() string
	Info(ctx context.Context) (MethodInfo, error)
	Available(ctx context.Context) bool
	// ProcessPayment prepares payment of orderID for the shopper session sessionID.
	ProcessPayment(ctx context.Context, sessionID string, orderID int64) (Result, error)
}

// Registry holds the payment methods registered with the checkout, in registration order.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	methods map[string]Method
}

// NewRegistry constructs a registry holding methods.
func NewRegistry(methods ...Method) *Registry {
	r := &Registry{methods: map[string]Method{}}
	for _, m := range methods {
		r.Register(m)
	}
	return r
}

// Register adds m, replacing any method registered under the same id.
func (r *Registry) Register(m Method) {
	if m == nil {
		return
	}
	id := normaliseID(m.ID())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.methods[id]; !exists {
		r.order = append(r.order, id)
	}
	r.methods[id] = m
}

// Get returns the method registered under id.
func (r *Registry) Get(id string) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[normaliseID(id)]
	return m, ok
}

// Available lists the methods currently accepting payments.
func (r *Registry) Available(ctx context.Context) ([]MethodInfo, error) {
	r.mu.RLock()
	methods := make([]Method, 0, len(r.order))
	for _, id := range r.order {
		methods = append(methods, r.methods[id])
	}
	r.mu.RUnlock()

	out := make([]MethodInfo, 0, len(methods))
	for _, m := range methods {
		if !m.Available(ctx) {
			continue
		}
		info, err := m.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe payment method %s: %w", m.ID(), err)
		}
		out = append(out, info)
	}
	return out, nil
}

// Pay starts payment of orderID with the method registered under methodID.
func (r *Registry) Pay(ctx context.Context, methodID, sessionID string, orderID int64) (Result, error) {
	m, ok := r.Get(methodID)
	if !ok {
		return Result{}, common.NewAppError("UNKNOWN_PAYMENT_METHOD", "payment method not found", http.StatusNotFound, nil)
	}
	if !m.Available(ctx) {
		return Result{}, common.NewAppError("PAYMENT_METHOD_UNAVAILABLE", "payment method is not available", http.StatusConflict, nil)
	}
	return m.ProcessPayment(ctx, sessionID, orderID)
}

func normaliseID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
