package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ticketing-checkout/internal/models"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	UserContextKey      contextKey = "user"
	TenantContextKey    contextKey = "tenant"
	RequestIDContextKey contextKey = "request_id"
)

// SessionUserKey is the session value holding the signed-in user's id. The
// login flow that writes it lives outside this service.
const SessionUserKey = "user_id"

// UserLoader loads the user behind a session
type UserLoader interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// AuthMiddleware resolves the buyer from the session cookie
type AuthMiddleware struct {
	users       UserLoader
	store       sessions.Store
	sessionName string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(users UserLoader, store sessions.Store, sessionName string) *AuthMiddleware {
	if sessionName == "" {
		sessionName = "session"
	}
	return &AuthMiddleware{users: users, store: store, sessionName: sessionName}
}

// LoadUser adds the current user to the context when the session carries one.
func (m *AuthMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, m.sessionName)
		if err != nil {
			// Continue without user if session is invalid
			next.ServeHTTP(w, r)
			return
		}

		userID := sessionUserID(session.Values[SessionUserKey])
		if userID == 0 {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetByID(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, models.ErrUserNotFound) {
				zerolog.Ctx(r.Context()).Error().Err(err).Int("user_id", userID).Msg("failed to load session user")
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// session storage might convert types
func sessionUserID(v any) int {
	switch id := v.(type) {
	case int:
		return id
	case int64:
		return int(id)
	case float64:
		return int(id)
	case string:
		n, _ := strconv.Atoi(id)
		return n
	}
	return 0
}

// RequireAuth rejects requests without a signed-in user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Sign in to continue")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// GetUserFromContext retrieves the user from request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}
