package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/order"
	"github.com/noah-isme/toko-asppay/internal/resilience"
)

func testSettings() Settings {
	cfg := DefaultSettings()
	cfg.Enabled = true
	cfg.MerchantID = "M1"
	cfg.MerchantKey = "secret"
	return cfg
}

func testInput() DepositInput {
	return DepositInput{
		Order:       order.Order{ID: 5, OrderKey: "wc_order_k", Status: order.StatusPending, Total: "100.00"},
		MerchantRef: "abc123",
		SiteURL:     "https://shop.example/",
		Now:         time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC),
	}
}

func TestNewDepositRequest(t *testing.T) {
	req, err := NewDepositRequest(testSettings(), testInput())
	require.NoError(t, err)

	require.Equal(t, DepositRequest{
		MerchantID:      "M1",
		Country:         "IN",
		MerchantRef:     "abc123",
		Currency:        "INR",
		Amount:          "100.00",
		MerchantTxnDate: "20240101120000",
		SuccessURL:      "https://shop.example/checkout/order-received/5/?key=wc_order_k",
		FailURL:         "https://shop.example/checkout",
		CallbackURL:     "https://shop.example/wc-api/payment-success",
		Signature:       Sign("100.00", "INR", "abc123", "M1", "20240101120000", "secret"),
		Verno:           "03",
	}, req)
}

func TestNewDepositRequestUnsupportedCurrency(t *testing.T) {
	cfg := testSettings()
	cfg.Currency = "USD"
	_, err := NewDepositRequest(cfg, testInput())
	require.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestLiveModeOnlyChangesEndpoint(t *testing.T) {
	sandbox := testSettings()
	live := testSettings()
	live.LiveMode = true

	sandboxReq, err := NewDepositRequest(sandbox, testInput())
	require.NoError(t, err)
	liveReq, err := NewDepositRequest(live, testInput())
	require.NoError(t, err)

	require.Equal(t, sandboxReq, liveReq)
	require.Equal(t, SandboxEndpoint+DepositPath, DepositURL(sandbox.Endpoint()))
	require.Equal(t, LiveEndpoint+DepositPath, DepositURL(live.Endpoint()))
}

func TestDepositClientPostsJSON(t *testing.T) {
	var (
		gotPath        string
		gotContentType string
		gotBody        map[string]string
		rawBody        string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		rawBody = string(b)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<form action="/v2/pay" method="post"></form>`))
	}))
	defer srv.Close()

	req, err := NewDepositRequest(testSettings(), testInput())
	require.NoError(t, err)

	client := DepositClient{HTTP: resilience.HTTPClient{Client: srv.Client(), Timeout: time.Second}}
	resp, err := client.Deposit(context.Background(), srv.URL, req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(resp.Body), `action="/v2/pay"`)

	require.Equal(t, DepositPath, gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "M1", gotBody["Merchant_ID"])
	require.Equal(t, "03", gotBody["Verno"])
	require.Equal(t, req.Signature, gotBody["Signature"])
	require.Len(t, gotBody, 11)
	require.Contains(t, rawBody, "?key=wc_order_k")
}

func TestDepositClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := DepositClient{HTTP: resilience.HTTPClient{Client: &http.Client{}, Timeout: time.Second}}
	_, err := client.Deposit(context.Background(), url, DepositRequest{})
	require.Error(t, err)
}

func TestRewriteFormActions(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "relative",
			in:   `<form action="/v2/transaction/pay" method="post">`,
			want: `<form action="https://sitapi.pztc979894.com/v2/transaction/pay" method="post">`,
		},
		{
			name: "no leading slash",
			in:   `<form action='pay'>`,
			want: `<form action='https://sitapi.pztc979894.com/pay'>`,
		},
		{
			name: "absolute untouched",
			in:   `<form action="https://pay.example/x">`,
			want: `<form action="https://pay.example/x">`,
		},
		{
			name: "protocol relative untouched",
			in:   `<form action="//pay.example/x">`,
			want: `<form action="//pay.example/x">`,
		},
		{
			name: "several forms",
			in:   `<form action="/a"></form><form ACTION="/b"></form>`,
			want: `<form action="https://sitapi.pztc979894.com/a"></form><form ACTION="https://sitapi.pztc979894.com/b"></form>`,
		},
		{
			name: "data attribute untouched",
			in:   `<button data-action="submit">Pay</button>`,
			want: `<button data-action="submit">Pay</button>`,
		},
		{
			name: "form with data attribute",
			in:   `<form data-action="retry" action="/v2/retry">`,
			want: `<form data-action="retry" action="https://sitapi.pztc979894.com/v2/retry">`,
		},
		{
			name: "no form",
			in:   `<p>redirecting</p>`,
			want: `<p>redirecting</p>`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RewriteFormActions([]byte(tc.in), SandboxEndpoint+"/")
			require.Equal(t, tc.want, string(got))
		})
	}
}
