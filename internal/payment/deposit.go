package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/noah-isme/toko-asppay/internal/order"
	"github.com/noah-isme/toko-asppay/internal/resilience"
)

const (
	// DepositPath is appended to the processor endpoint for deposit calls.
	DepositPath = "/v2/transaction/deposit"
	// Verno is the processor API version sent with every deposit.
	Verno = "03"
	// TxnDateLayout formats Mer_txn_date as YYYYMMDDhhmmss.
	TxnDateLayout = "20060102150405"

	// DefaultDepositTimeout tolerates slow processor responses.
	DefaultDepositTimeout = 200 * time.Second

	maxDepositResponseBytes = 1 << 20
)

// ErrUnsupportedCurrency is returned when the settings currency has no country mapping.
var ErrUnsupportedCurrency = errors.New("payment: unsupported currency")

// DepositRequest is the payload of the outbound deposit call. It is built per
// checkout attempt and never stored.
type DepositRequest struct {
	MerchantID      string `json:"Merchant_ID"`
	Country         string `json:"Country"`
	MerchantRef     string `json:"Merchant_Ref"`
	Currency        string `json:"Currency"`
	Amount          string `json:"Amount"`
	MerchantTxnDate string `json:"Mer_txn_date"`
	SuccessURL      string `json:"Success_URL"`
	FailURL         string `json:"Fail_URL"`
	CallbackURL     string `json:"Callback_URL"`
	Signature       string `json:"Signature"`
	Verno           string `json:"Verno"`
}

// DepositInput carries everything NewDepositRequest needs besides the settings.
type DepositInput struct {
	Order       order.Order
	MerchantRef string
	SiteURL     string
	Now         time.Time
}

// SiteURLs returns the fail and callback URLs for site.
func SiteURLs(siteURL string) (failURL, callbackURL string) {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	return base + "/checkout", base + "/wc-api/payment-success"
}

// NewDepositRequest assembles and signs the deposit payload. The transaction date
// is rendered in the timezone of the configured currency.
func NewDepositRequest(cfg Settings, in DepositInput) (DepositRequest, error) {
	info, ok := cfg.Country()
	if !ok {
		return DepositRequest{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, cfg.Currency)
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	failURL, callbackURL := SiteURLs(in.SiteURL)
	req := DepositRequest{
		MerchantID:      cfg.MerchantID,
		Country:         info.CountryCode,
		MerchantRef:     in.MerchantRef,
		Currency:        cfg.Currency,
		Amount:          strings.TrimSpace(in.Order.Total),
		MerchantTxnDate: now.In(cfg.Location()).Format(TxnDateLayout),
		SuccessURL:      in.Order.ReceivedURL(in.SiteURL),
		FailURL:         failURL,
		CallbackURL:     callbackURL,
		Verno:           Verno,
	}
	req.Signature = Sign(req.Amount, req.Currency, req.MerchantRef, req.MerchantID, req.MerchantTxnDate, cfg.MerchantKey)
	return req, nil
}

// DepositURL returns the deposit endpoint for endpoint.
func DepositURL(endpoint string) string {
	return strings.TrimRight(endpoint, "/") + DepositPath
}

// DepositResponse is the processor reply relayed to the browser.
type DepositResponse struct {
	StatusCode int
	Body       []byte
}

// Depositor sends deposit requests to the processor.
type Depositor interface {
	Deposit(ctx context.Context, endpoint string, req DepositRequest) (DepositResponse, error)
}

// DepositClient posts deposit requests once, with no retries.
type DepositClient struct {
	HTTP resilience.HTTPClient
}

// Deposit posts req as JSON to the deposit URL of endpoint and returns the body.
func (c DepositClient) Deposit(ctx context.Context, endpoint string, req DepositRequest) (DepositResponse, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return DepositResponse{}, fmt.Errorf("encode deposit: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, DepositURL(endpoint), &buf)
	if err != nil {
		return DepositResponse{}, fmt.Errorf("build deposit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/html, application/json")

	resp, cancel, err := c.HTTP.Do(ctx, httpReq)
	if err != nil {
		return DepositResponse{}, fmt.Errorf("deposit: %w", err)
	}
	defer cancel()
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDepositResponseBytes))
	if err != nil {
		return DepositResponse{}, fmt.Errorf("read deposit response: %w", err)
	}
	return DepositResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

var formActionRe = regexp.MustCompile(`(?i)(\s)(action\s*=\s*)(["'])([^"']*)(["'])`)

// RewriteFormActions prefixes relative form actions in html with endpoint.
// Absolute and protocol-relative actions are left untouched.
func RewriteFormActions(html []byte, endpoint string) []byte {
	base := strings.TrimRight(endpoint, "/")
	return formActionRe.ReplaceAllFunc(html, func(m []byte) []byte {
		parts := formActionRe.FindSubmatch(m)
		action := string(parts[4])
		lower := strings.ToLower(action)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(action, "//") {
			return m
		}
		if action != "" && !strings.HasPrefix(action, "/") {
			action = "/" + action
		}
		var out bytes.Buffer
		out.Write(parts[1])
		out.Write(parts[2])
		out.Write(parts[3])
		out.WriteString(base)
		out.WriteString(action)
		out.Write(parts[5])
		return out.Bytes()
	})
}
