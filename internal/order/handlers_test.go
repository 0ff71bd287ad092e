package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/order"
)

type memStore struct {
	orders map[int64]order.Order
	notes  map[int64][]order.Note
}

func newMemStore(orders ...order.Order) *memStore {
	s := &memStore{orders: map[int64]order.Order{}, notes: map[int64][]order.Note{}}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *memStore) Get(_ context.Context, id int64) (order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func (s *memStore) PaymentComplete(_ context.Context, id int64, tx string) error {
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = order.StatusProcessing
	o.TransactionID = tx
	s.orders[id] = o
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, status order.Status) error {
	o, ok := s.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	s.orders[id] = o
	return nil
}

func (s *memStore) AddNote(_ context.Context, id int64, note string) error {
	if _, ok := s.orders[id]; !ok {
		return order.ErrNotFound
	}
	s.notes[id] = append(s.notes[id], order.Note{OrderID: id, Note: note})
	return nil
}

func (s *memStore) ReduceStock(context.Context, int64) error { return nil }

func (s *memStore) Notes(_ context.Context, id int64) ([]order.Note, error) {
	return s.notes[id], nil
}

func sampleOrder() order.Order {
	return order.Order{ID: 12, OrderKey: "wc_order_abc", Status: order.StatusPending, Currency: "INR", Total: "250.00"}
}

func TestReceived(t *testing.T) {
	h := &order.Handler{Store: newMemStore(sampleOrder())}
	r := chi.NewRouter()
	r.Get("/checkout/order-received/{orderID}", h.Received)

	cases := []struct {
		name string
		path string
		code int
	}{
		{name: "matching key", path: "/checkout/order-received/12?key=wc_order_abc", code: http.StatusOK},
		{name: "wrong key", path: "/checkout/order-received/12?key=wc_order_xyz", code: http.StatusNotFound},
		{name: "missing key", path: "/checkout/order-received/12", code: http.StatusNotFound},
		{name: "unknown order", path: "/checkout/order-received/99?key=wc_order_abc", code: http.StatusNotFound},
		{name: "bad id", path: "/checkout/order-received/x?key=wc_order_abc", code: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.Equal(t, tc.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/order-received/12?key=wc_order_abc", nil))
	require.JSONEq(t, `{"id":12,"status":"pending","total":"250.00","currency":"INR","needsPayment":true}`, rec.Body.String())
}

func TestAdminHandler(t *testing.T) {
	store := newMemStore(sampleOrder())
	h := &order.AdminHandler{Store: store}
	r := chi.NewRouter()
	r.Get("/admin/orders/{orderID}", h.Get)
	r.Patch("/admin/orders/{orderID}/status", h.PatchStatus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/orders/12/status",
		strings.NewReader(`{"status":"On-Hold","note":"awaiting bank transfer"}`)))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, order.StatusOnHold, store.orders[12].Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/orders/12/status", strings.NewReader(`{"status":"shipped"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/orders/77/status", strings.NewReader(`{"status":"failed"}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/orders/12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Order order.Order  `json:"order"`
		Notes []order.Note `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, order.StatusOnHold, body.Order.Status)
	require.Len(t, body.Notes, 1)
	require.Equal(t, "awaiting bank transfer", body.Notes[0].Note)
}

func TestNeedsPayment(t *testing.T) {
	cases := []struct {
		status order.Status
		total  string
		want   bool
	}{
		{order.StatusPending, "10.00", true},
		{order.StatusFailed, "10.00", true},
		{order.StatusPending, "0", false},
		{order.StatusPending, "n/a", false},
		{order.StatusProcessing, "10.00", false},
		{order.StatusCancelled, "10.00", false},
	}
	for _, tc := range cases {
		o := order.Order{Status: tc.status, Total: tc.total}
		require.Equal(t, tc.want, o.NeedsPayment(), "%s/%s", tc.status, tc.total)
	}
}
