package session

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// WithID stores the session id on the context.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the session id attached to the context, if any.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Cookie configures the session cookie.
type Cookie struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// Middleware attaches the shopper session, identified by cookie, to the request.
type Middleware struct {
	Cookie Cookie
}

func (m Middleware) name() string {
	if strings.TrimSpace(m.Cookie.Name) == "" {
		return "toko_session"
	}
	return m.Cookie.Name
}

// Handler reads the session cookie. Requests without a valid cookie carry no session.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(m.name()); err == nil {
			if id, err := uuid.Parse(strings.TrimSpace(c.Value)); err == nil {
				r = r.WithContext(WithID(r.Context(), id.String()))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Ensure returns the session id of the request, starting a new session and issuing
// its cookie when the request has none.
func (m Middleware) Ensure(w http.ResponseWriter, r *http.Request) (string, *http.Request) {
	if id, ok := ID(r.Context()); ok {
		return id, r
	}
	id := uuid.NewString()
	ttl := m.Cookie.TTL
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	sameSite := m.Cookie.SameSite
	if sameSite == 0 || sameSite == http.SameSiteDefaultMode {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name(),
		Value:    id,
		Path:     "/",
		Domain:   m.Cookie.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   m.Cookie.Secure,
		HttpOnly: true,
		SameSite: sameSite,
	})
	return id, r.WithContext(WithID(r.Context(), id))
}
