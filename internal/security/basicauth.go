package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/alexedwards/argon2id"
)

// BasicAuth guards operator endpoints with HTTP basic authentication. The password
// is checked against an argon2id hash so the plain secret never lives in config.
type BasicAuth struct {
	Realm        string
	User         string
	PasswordHash string
}

// Middleware rejects requests without valid credentials. When no user or hash is
// configured every request is rejected.
func (b BasicAuth) Middleware(next http.Handler) http.Handler {
	realm := strings.TrimSpace(b.Realm)
	if realm == "" {
		realm = "restricted"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.check(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b BasicAuth) check(r *http.Request) bool {
	user := strings.TrimSpace(b.User)
	hash := strings.TrimSpace(b.PasswordHash)
	if user == "" || hash == "" {
		return false
	}
	u, p, ok := r.BasicAuth()
	if !ok {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 {
		return false
	}
	match, err := argon2id.ComparePasswordAndHash(p, hash)
	return err == nil && match
}
