// Package handler holds the admin HTTP handlers that sit next to the live
// viewer endpoints.
package handler

import (
	"net/http"

	"attendance/internal/logger"
	"attendance/internal/middleware"
)

// LoginHandler handles POST /login by validating password and issuing the
// session cookie.
func LoginHandler(password string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if password == "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.FormValue("password") != password {
			logger.Warning("Failed login from %s", r.RemoteAddr)
			http.Error(w, "Invalid password", http.StatusUnauthorized)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.CookieName,
			Value:    middleware.SessionToken(password),
			Path:     "/",
			MaxAge:   2592000, // 30 days
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

// LogoutHandler clears the session cookie.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:   middleware.CookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}
