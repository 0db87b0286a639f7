package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// CookieName is the session cookie issued after a successful login.
const CookieName = "attendance_session"

// SessionToken derives the cookie value from the admin password so the
// password itself never travels in a cookie.
func SessionToken(password string) string {
	sum := sha256.Sum256([]byte("attendance:" + password))
	return hex.EncodeToString(sum[:])
}

// AuthMiddleware requires either the session cookie or a bearer token equal
// to the admin password. With an empty password every request passes.
func AuthMiddleware(password string, next http.Handler) http.Handler {
	if password == "" {
		return next
	}
	token := SessionToken(password)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Login and health checks stay reachable without a session
		if r.URL.Path == "/login" || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(CookieName); err == nil && equal(cookie.Value, token) {
			next.ServeHTTP(w, r)
			return
		}
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && equal(bearer, password) {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
