package checkout_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/checkout"
	"github.com/noah-isme/toko-asppay/internal/session"
)

type fakeMethod struct {
	id        string
	available bool
	infoErr   error
	payErr    error

	gotSession string
	gotOrder   int64
}

func (m *fakeMethod) ID() string { return m.id }

func (m *fakeMethod) Info(context.Context) (checkout.MethodInfo, error) {
	if m.infoErr != nil {
		return checkout.MethodInfo{}, m.infoErr
	}
	return checkout.MethodInfo{ID: m.id, Title: strings.ToUpper(m.id)}, nil
}

func (m *fakeMethod) Available(context.Context) bool { return m.available }

func (m *fakeMethod) ProcessPayment(_ context.Context, sessionID string, orderID int64) (checkout.Result, error) {
	m.gotSession = sessionID
	m.gotOrder = orderID
	if m.payErr != nil {
		return checkout.Result{}, m.payErr
	}
	return checkout.Result{Result: checkout.ResultSuccess, Redirect: "https://shop.example/pay"}, nil
}

type fixedSessions struct{ id string }

func (s fixedSessions) Ensure(_ http.ResponseWriter, r *http.Request) (string, *http.Request) {
	return s.id, r.WithContext(session.WithID(r.Context(), s.id))
}

func TestRegistryAvailableKeepsRegistrationOrder(t *testing.T) {
	reg := checkout.NewRegistry(
		&fakeMethod{id: "cod", available: true},
		&fakeMethod{id: "bacs", available: false},
		&fakeMethod{id: "asppay", available: true},
	)

	methods, err := reg.Available(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 2)
	require.Equal(t, "cod", methods[0].ID)
	require.Equal(t, "asppay", methods[1].ID)
}

func TestRegistryRegisterReplacesSameID(t *testing.T) {
	first := &fakeMethod{id: "asppay", available: true}
	second := &fakeMethod{id: " ASPPAY ", available: true}
	reg := checkout.NewRegistry(first, nil, second)

	m, ok := reg.Get("asppay")
	require.True(t, ok)
	require.Same(t, second, m)

	methods, err := reg.Available(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 1)
}

func TestRegistryAvailableInfoError(t *testing.T) {
	reg := checkout.NewRegistry(&fakeMethod{id: "asppay", available: true, infoErr: errors.New("settings down")})
	_, err := reg.Available(context.Background())
	require.ErrorContains(t, err, "asppay")
}

func TestRegistryPay(t *testing.T) {
	m := &fakeMethod{id: "asppay", available: true}
	reg := checkout.NewRegistry(m, &fakeMethod{id: "off"})

	res, err := reg.Pay(context.Background(), "AspPay", "sid-1", 42)
	require.NoError(t, err)
	require.Equal(t, checkout.ResultSuccess, res.Result)
	require.Equal(t, "sid-1", m.gotSession)
	require.Equal(t, int64(42), m.gotOrder)

	_, err = reg.Pay(context.Background(), "missing", "sid-1", 42)
	require.Error(t, err)
	_, err = reg.Pay(context.Background(), "off", "sid-1", 42)
	require.Error(t, err)
}

func newRouter(h *checkout.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/checkout/payment-methods", h.PaymentMethods)
	r.Post("/checkout/orders/{orderID}/pay", h.Pay)
	return r
}

func TestHandlerPaymentMethods(t *testing.T) {
	h := &checkout.Handler{Registry: checkout.NewRegistry(&fakeMethod{id: "asppay", available: true})}

	rec := httptest.NewRecorder()
	newRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/payment-methods", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []checkout.MethodInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "ASPPAY", body.Data[0].Title)
}

func TestHandlerPay(t *testing.T) {
	m := &fakeMethod{id: "asppay", available: true}
	h := &checkout.Handler{Registry: checkout.NewRegistry(m), Sessions: fixedSessions{id: "sid-9"}}
	router := newRouter(h)

	t.Run("redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/checkout/orders/7/pay", strings.NewReader(`{"paymentMethod":"asppay"}`))
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res checkout.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Equal(t, "https://shop.example/pay", res.Redirect)
		require.Equal(t, "sid-9", m.gotSession)
		require.Equal(t, int64(7), m.gotOrder)
	})

	t.Run("method from query", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/orders/8/pay?method=asppay", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, int64(8), m.gotOrder)
	})

	cases := []struct {
		name string
		path string
		body string
		code int
	}{
		{name: "bad order id", path: "/checkout/orders/abc/pay", body: `{"paymentMethod":"asppay"}`, code: http.StatusBadRequest},
		{name: "missing method", path: "/checkout/orders/7/pay", body: `{}`, code: http.StatusBadRequest},
		{name: "invalid body", path: "/checkout/orders/7/pay", body: `{`, code: http.StatusBadRequest},
		{name: "unknown method", path: "/checkout/orders/7/pay", body: `{"paymentMethod":"paypal"}`, code: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))
			require.Equal(t, tc.code, rec.Code)
		})
	}
}
