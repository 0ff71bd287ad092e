package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-asppay/internal/obs"
	"github.com/noah-isme/toko-asppay/internal/session"
)

func TestRequestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(session.Middleware{}.Handler)
	router.Use(obs.RequestLogger{Logger: logger}.Middleware)
	router.Get("/wc-api/asp-payment", func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/wc-api/asp-payment?id=5", nil)
	req.AddCookie(&http.Cookie{Name: "toko_session", Value: "9b2f6a4e-8c1d-4d7e-9f00-1a2b3c4d5e6f"})
	req.RemoteAddr = "203.0.113.9:5555"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inner map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inner))
	require.Equal(t, "inside", inner["message"])
	require.NotEmpty(t, inner["request_id"])

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "/wc-api/asp-payment", entry["route"])
	require.Equal(t, float64(http.StatusTeapot), entry["status"])
	require.Equal(t, "9b2f6a4e-8c1d-4d7e-9f00-1a2b3c4d5e6f", entry["session_id"])
	require.Equal(t, "203.0.113.9", entry["remote_addr"])
	require.Equal(t, inner["request_id"], entry["request_id"])
}
