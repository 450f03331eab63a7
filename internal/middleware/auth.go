package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dukerupert/emberday/internal/auth"
	"github.com/dukerupert/emberday/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "emberday_session"

// RequireAuth validates the session cookie, rejects expired sessions, and
// populates AuthContext. Failures get a JSON 401; this is an API, not a
// browser app, so there is no redirect.
func RequireAuth(sessionStore *store.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}
			if time.Now().After(sess.ExpiresAt) {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"})
}
