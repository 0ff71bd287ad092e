package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient sends a request once, guarded by a circuit breaker and a per-call
// timeout. Transport errors and 5xx responses count as failures.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// Do executes req. A 5xx response is returned to the caller together with a nil
// error; only the breaker sees it as a failure. The returned cancel func must be
// called once the response body has been consumed.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, context.CancelFunc, error) {
	if cl.Client == nil {
		return nil, nil, errors.New("resilience: http client not configured")
	}
	if cl.Breaker != nil {
		if err := cl.Breaker.Allow(ctx); err != nil {
			return nil, nil, err
		}
	}
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		cl.report(ctx, false)
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	cl.report(ctx, resp.StatusCode < http.StatusInternalServerError)
	return resp, cancel, nil
}

func (cl HTTPClient) report(ctx context.Context, success bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, success)
	}
}
