package resilience_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/resilience"
)

func TestHTTPClientSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	t.Cleanup(srv.Close)

	breaker := resilience.NewBreaker(resilience.BreakerConfig{Target: "single", MinRequests: 1, OpenFor: time.Minute})
	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker, Timeout: time.Second}

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	resp, cancel, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	cancel()

	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "upstream down", string(body))
	require.Equal(t, int32(1), hits.Load())

	_, _, err = cl.Do(context.Background(), req)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
	require.Equal(t, int32(1), hits.Load())
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	cl := resilience.HTTPClient{Client: srv.Client(), Timeout: 20 * time.Millisecond}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, _, err = cl.Do(context.Background(), req)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
