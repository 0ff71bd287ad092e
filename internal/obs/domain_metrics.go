package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DepositTotal counts deposit attempts by outcome.
	DepositTotal *prometheus.CounterVec
	// DepositDuration records the processor round trip of deposit calls in milliseconds.
	DepositDuration *prometheus.HistogramVec
	// CallbackTotal counts processed payment callbacks by outcome.
	CallbackTotal *prometheus.CounterVec
	// CheckoutRedirectTotal counts checkout redirects by payment method.
	CheckoutRedirectTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the gateway collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DepositTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asppay_deposit_total",
			Help:      "Count of deposit requests by outcome.",
		}, []string{"mode", "result"}))
		DepositDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "asppay_deposit_duration_ms",
			Help:      "Processor round trip for deposit requests in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 200000},
		}, []string{"mode"}))
		CallbackTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "asppay_callback_total",
			Help:      "Count of processed payment callbacks by outcome.",
		}, []string{"result"}))
		CheckoutRedirectTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_redirect_total",
			Help:      "Count of checkout redirects issued by payment method.",
		}, []string{"method", "result"}))
	})
}

// IncDeposit records a deposit outcome when metrics are registered.
func IncDeposit(mode, result string) {
	if DepositTotal != nil {
		DepositTotal.WithLabelValues(mode, result).Inc()
	}
}

// ObserveDeposit records a deposit round trip when metrics are registered.
func ObserveDeposit(mode string, ms float64) {
	if DepositDuration != nil {
		DepositDuration.WithLabelValues(mode).Observe(ms)
	}
}

// IncCallback records a callback outcome when metrics are registered.
func IncCallback(result string) {
	if CallbackTotal != nil {
		CallbackTotal.WithLabelValues(result).Inc()
	}
}

// IncCheckoutRedirect records a checkout redirect when metrics are registered.
func IncCheckoutRedirect(method, result string) {
	if CheckoutRedirectTotal != nil {
		CheckoutRedirectTotal.WithLabelValues(method, result).Inc()
	}
}
