// Package identity handles the chat surface's login cookie.
package identity

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	// CookieName carries the participant id for the browser chat surface.
	CookieName   = "bcfg_chat_user"
	cookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const userIDKey contextKey = iota

// Participant ids are opaque external strings (uuid-shaped or otherwise);
// constrain the charset so the cookie can't smuggle anything odd.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidUserID reports whether a value is acceptable as a participant id.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(strings.TrimSpace(id))
}

// SetLoginCookie issues the chat cookie after a successful login.
func SetLoginCookie(w http.ResponseWriter, userID string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    userID,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		Expires:  time.Now().Add(cookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// UserIDFromContext extracts the logged-in participant id, or "" when
// the request carried no valid cookie.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// Middleware injects the cookie-carried participant id into the request
// context. It does not reject requests; handlers decide whether a
// missing identity is an error.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(CookieName); err == nil && ValidUserID(c.Value) {
				ctx := context.WithValue(r.Context(), userIDKey, c.Value)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
