package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-asppay/internal/checkout"
	"github.com/noah-isme/toko-asppay/internal/common"
	"github.com/noah-isme/toko-asppay/internal/events"
	"github.com/noah-isme/toko-asppay/internal/obs"
	"github.com/noah-isme/toko-asppay/internal/order"
)

// SessionOrderKey is the session key holding the order awaiting deposit.
const SessionOrderKey = "asp-order-id"

var (
	// ErrGatewayUnavailable is returned when the gateway is disabled or misconfigured.
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	// ErrOrderNotPayable is returned for orders that no longer need payment.
	ErrOrderNotPayable = errors.New("payment: order does not need payment")
)

// SettingsSource loads the gateway settings for a request.
type SettingsSource interface {
	Load(ctx context.Context) (Settings, error)
}

// SessionStore is the checkout session used to hand the order id to the deposit step.
type SessionStore interface {
	Set(ctx context.Context, id, key, value string) error
	Pop(ctx context.Context, id, key string) (string, bool, error)
}

// CartStore clears the shopper cart after payment.
type CartStore interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
	Empty(ctx context.Context, sessionID string) error
}

// StockReducer reduces stock after a successful payment.
type StockReducer interface {
	ReduceStock(ctx context.Context, orderID int64) error
}

// EventEmitter records settled payment outcomes.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, orderID int64, payload any) (events.Event, error)
}

// OrderLocker serialises work on a single order across instances.
type OrderLocker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// Gateway is the AsianSuperPay checkout payment method.
type Gateway struct {
	Settings  SettingsSource
	Orders    order.Store
	Sessions  SessionStore
	Carts     CartStore
	Stock     StockReducer
	Depositor Depositor
	Locks     OrderLocker
	Events    EventEmitter
	Codec     ReferenceCodec
	SiteURL   string
	IconURL   string
	Clock     func() time.Time
	Logger    zerolog.Logger
}

var _ checkout.Method = (*Gateway)(nil)

func (g *Gateway) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

func (g *Gateway) siteURL() string {
	return strings.TrimRight(strings.TrimSpace(g.SiteURL), "/")
}

// ID implements checkout.Method.
func (g *Gateway) ID() string { return GatewayID }

// Info implements checkout.Method.
func (g *Gateway) Info(ctx context.Context) (checkout.MethodInfo, error) {
	cfg, err := g.Settings.Load(ctx)
	if err != nil {
		return checkout.MethodInfo{}, fmt.Errorf("load gateway settings: %w", err)
	}
	return checkout.MethodInfo{
		ID:          GatewayID,
		Title:       cfg.Title,
		Description: cfg.Description,
		Icon:        g.IconURL,
		MethodTitle: MethodTitle,
	}, nil
}

// Available implements checkout.Method.
func (g *Gateway) Available(ctx context.Context) bool {
	if g == nil || g.Settings == nil {
		return false
	}
	cfg, err := g.Settings.Load(ctx)
	if err != nil {
		g.Logger.Warn().Err(err).Msg("load gateway settings")
		return false
	}
	return cfg.Configured()
}

// RedirectURL is the same-site deposit endpoint for orderID.
func (g *Gateway) RedirectURL(orderID int64) string {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(orderID, 10))
	return g.siteURL() + "/wc-api/asp-payment?" + q.Encode()
}

// ProcessPayment stashes orderID in the shopper session and returns the redirect to
// the deposit endpoint.
func (g *Gateway) ProcessPayment(ctx context.Context, sessionID string, orderID int64) (checkout.Result, error) {
	ctx, span := otel.Tracer("payment.Gateway").Start(ctx, "Gateway.ProcessPayment")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	if strings.TrimSpace(sessionID) == "" {
		return checkout.Result{}, common.NewAppError("SESSION_REQUIRED", "checkout session required", http.StatusBadRequest, nil)
	}
	o, err := g.Orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return checkout.Result{}, common.NewAppError("ORDER_NOT_FOUND", "order not found", http.StatusNotFound, err)
		}
		span.RecordError(err)
		return checkout.Result{}, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if !o.NeedsPayment() {
		return checkout.Result{}, common.NewAppError("ORDER_NOT_PAYABLE", "order does not need payment", http.StatusConflict, ErrOrderNotPayable)
	}
	if err := g.Sessions.Set(ctx, sessionID, SessionOrderKey, strconv.FormatInt(orderID, 10)); err != nil {
		span.RecordError(err)
		return checkout.Result{}, fmt.Errorf("store session order: %w", err)
	}
	g.Logger.Info().Int64("order_id", orderID).Str("session_id", sessionID).Msg("checkout_redirect")
	return checkout.Result{Result: checkout.ResultSuccess, Redirect: g.RedirectURL(orderID)}, nil
}

// Deposit consumes the session order, checks it against the requested id and relays
// the processor's payment page. No outbound call is made on a mismatch.
func (g *Gateway) Deposit(ctx context.Context, sessionID, requestedID string) ([]byte, error) {
	ctx, span := otel.Tracer("payment.Gateway").Start(ctx, "Gateway.Deposit")
	defer span.End()

	orderID, err := g.claimSessionOrder(ctx, sessionID, requestedID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))

	cfg, err := g.Settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load gateway settings: %w", err)
	}
	if !cfg.Configured() {
		return nil, ErrGatewayUnavailable
	}
	o, err := g.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	ref, err := g.Codec.Encode(o.ID)
	if err != nil {
		return nil, err
	}
	req, err := NewDepositRequest(cfg, DepositInput{Order: o, MerchantRef: ref, SiteURL: g.siteURL(), Now: g.now()})
	if err != nil {
		return nil, err
	}

	mode := modeLabel(cfg)
	endpoint := cfg.Endpoint()
	span.SetAttributes(attribute.String("asppay.mode", mode), attribute.String("asppay.merchant_ref", ref))
	start := time.Now()
	resp, err := g.Depositor.Deposit(ctx, endpoint, req)
	obs.ObserveDeposit(mode, float64(time.Since(start).Milliseconds()))
	if err != nil {
		obs.IncDeposit(mode, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "deposit failed")
		g.Logger.Error().Err(err).Int64("order_id", o.ID).Str("merchant_ref", ref).Str("mode", mode).Msg("asppay_deposit_failed")
		return nil, err
	}
	// The processor's page is relayed whatever its status so the shopper sees its
	// own error message.
	if resp.StatusCode >= http.StatusBadRequest {
		obs.IncDeposit(mode, "rejected")
		span.SetStatus(codes.Error, "deposit rejected")
		g.Logger.Warn().Int64("order_id", o.ID).Str("merchant_ref", ref).Int("status", resp.StatusCode).Msg("asppay_deposit_rejected")
	} else {
		obs.IncDeposit(mode, "ok")
		g.Logger.Info().Int64("order_id", o.ID).Str("merchant_ref", ref).Str("mode", mode).Msg("asppay_deposit")
	}
	return RewriteFormActions(resp.Body, endpoint), nil
}

func (g *Gateway) claimSessionOrder(ctx context.Context, sessionID, requestedID string) (int64, error) {
	if strings.TrimSpace(sessionID) == "" {
		return 0, ErrSessionMismatch
	}
	stored, ok, err := g.Sessions.Pop(ctx, sessionID, SessionOrderKey)
	if err != nil {
		return 0, fmt.Errorf("read session order: %w", err)
	}
	if !ok {
		return 0, ErrSessionMismatch
	}
	want, err := strconv.ParseInt(strings.TrimSpace(stored), 10, 64)
	if err != nil {
		return 0, ErrSessionMismatch
	}
	got, err := strconv.ParseInt(strings.TrimSpace(requestedID), 10, 64)
	if err != nil || got != want {
		return 0, ErrSessionMismatch
	}
	return got, nil
}

// Reconcile applies a processor callback to its order. sessionID is the session of
// the callback request, if any; its cart is emptied after a successful payment.
func (g *Gateway) Reconcile(ctx context.Context, cb Callback, sessionID string) (Outcome, error) {
	ctx, span := otel.Tracer("payment.Gateway").Start(ctx, "Gateway.Reconcile")
	defer span.End()

	orderID, err := g.Codec.Decode(cb.MerchantRef)
	if err != nil {
		obs.IncCallback("invalid_reference")
		return Outcome{}, err
	}
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.Int("asppay.status", cb.Status.Code))

	if g.Locks == nil {
		return g.reconcile(ctx, orderID, cb, sessionID)
	}
	var out Outcome
	err = g.Locks.WithLock(ctx, "asppay:order:"+strconv.FormatInt(orderID, 10), 30*time.Second, func(ctx context.Context) error {
		var err error
		out, err = g.reconcile(ctx, orderID, cb, sessionID)
		return err
	})
	return out, err
}

func (g *Gateway) reconcile(ctx context.Context, orderID int64, cb Callback, sessionID string) (Outcome, error) {
	span := trace.SpanFromContext(ctx)
	log := g.Logger.With().Int64("order_id", orderID).Str("merchant_ref", cb.MerchantRef).Logger()

	o, err := g.Orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			obs.IncCallback("unknown_order")
		}
		return Outcome{}, fmt.Errorf("load order %d: %w", orderID, err)
	}
	out := Outcome{OrderID: orderID}

	switch {
	case cb.Succeeded() && o.NeedsPayment():
		if err := g.Orders.PaymentComplete(ctx, orderID, cb.OrderRef); err != nil {
			span.RecordError(err)
			return out, fmt.Errorf("complete payment: %w", err)
		}
		if err := g.Orders.AddNote(ctx, orderID, SuccessNote(cb.OrderRef)); err != nil {
			return out, fmt.Errorf("add order note: %w", err)
		}
		out.Paid = true
		if g.Stock != nil {
			if err := g.Stock.ReduceStock(ctx, orderID); err != nil {
				log.Error().Err(err).Msg("reduce stock")
			}
		}
		out.CartEmptied = g.emptyCart(ctx, sessionID, log)
		g.emit(ctx, events.TopicOrderPaid, orderID, map[string]any{
			"transactionId": cb.OrderRef,
			"total":         o.Total,
			"currency":      o.Currency,
		}, log)
		obs.IncCallback("paid")
		log.Info().Str("payment_id", cb.OrderRef).Bool("cart_emptied", out.CartEmptied).Msg("asppay_payment_complete")
	default:
		if err := g.Orders.UpdateStatus(ctx, orderID, order.StatusFailed); err != nil {
			span.RecordError(err)
			return out, fmt.Errorf("mark order failed: %w", err)
		}
		if err := g.Orders.AddNote(ctx, orderID, FailureNote(cb.StatusMsg)); err != nil {
			return out, fmt.Errorf("add order note: %w", err)
		}
		g.emit(ctx, events.TopicPaymentFailed, orderID, map[string]any{
			"status":    cb.Status.Code,
			"statusMsg": cb.StatusMsg,
		}, log)
		obs.IncCallback("failed")
		log.Warn().Int("status", cb.Status.Code).Str("status_msg", cb.StatusMsg).Msg("asppay_payment_failed")
	}
	return out, nil
}

func (g *Gateway) emit(ctx context.Context, topic string, orderID int64, payload map[string]any, log zerolog.Logger) {
	if g.Events == nil {
		return
	}
	if _, err := g.Events.Emit(ctx, topic, orderID, payload); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("emit payment event")
	}
}

func (g *Gateway) emptyCart(ctx context.Context, sessionID string, log zerolog.Logger) bool {
	if g.Carts == nil || strings.TrimSpace(sessionID) == "" {
		return false
	}
	ok, err := g.Carts.Exists(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Msg("check cart")
		return false
	}
	if !ok {
		return false
	}
	if err := g.Carts.Empty(ctx, sessionID); err != nil {
		log.Error().Err(err).Msg("empty cart")
		return false
	}
	return true
}

func modeLabel(cfg Settings) string {
	if cfg.LiveMode {
		return "live"
	}
	return "sandbox"
}
