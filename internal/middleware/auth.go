package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"invite-service/internal/logger"
	"invite-service/internal/session"
)

// unexported, collision-proof context key
type userContextKeyType struct{}

var userKey = userContextKeyType{}

// UserFromContext extracts the authenticated user from context.
func UserFromContext(ctx context.Context) (*session.User, bool) {
	user, ok := ctx.Value(userKey).(*session.User)
	return user, ok && user != nil
}

func WithUser(ctx context.Context, user *session.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

type AuthMiddleware struct {
	Cookies  *session.Cookies
	Sessions *session.Repository
}

func NewAuthMiddleware(cookies *session.Cookies, sessions *session.Repository) *AuthMiddleware {
	return &AuthMiddleware{Cookies: cookies, Sessions: sessions}
}

// RequireAuth lets through only requests whose session completed login.
// Rejections use the {"message": ...} body of the invite routes it guards.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := a.Cookies.Read(r)
		if sessionID == "" {
			writeMessage(w, http.StatusUnauthorized, "Authentication required.")
			return
		}

		rec, err := a.Sessions.Get(r.Context(), sessionID)
		if err != nil {
			logger.Error("failed to load session", map[string]any{"error": err})
			writeMessage(w, http.StatusInternalServerError, "Internal server error.")
			return
		}
		if rec.Phase() != session.PhaseAuthenticated {
			writeMessage(w, http.StatusUnauthorized, "Authentication required.")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), rec.User)))
	})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
