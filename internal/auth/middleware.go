package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/searchdeck/searchdeck/internal/users"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the request-scoped result of a successful verification.
type Identity struct {
	UserID   int64
	Username string
	Email    string
}

// Middleware gates requests on a valid session token. Verified requests
// carry an Identity in their context; everything else is rejected with
// 401 before reaching the handler.
type Middleware struct {
	tokens     *TokenManager
	store      users.Store
	log        *slog.Logger
	extractors []TokenExtractor
}

// NewMiddleware builds the request gate. The extractors are tried in
// order; pass nil for the default cookie-then-bearer order.
func NewMiddleware(tokens *TokenManager, store users.Store, log *slog.Logger, extractors []TokenExtractor) *Middleware {
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	return &Middleware{
		tokens:     tokens,
		store:      store,
		log:        log,
		extractors: extractors,
	}
}

// RequireAuth verifies the session token and re-checks that the user
// row still exists before passing control downstream. A token whose
// user was deleted is treated the same as an invalid token; only a
// database failure during the re-check produces a 500.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ExtractToken(r, m.extractors)
		if tokenString == "" {
			m.reject(w, http.StatusUnauthorized, "No authentication token provided")
			return
		}

		claims, err := m.tokens.Verify(tokenString)
		if err != nil {
			m.reject(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := m.store.GetByID(r.Context(), claims.UserID)
		if errors.Is(err, users.ErrNotFound) {
			m.reject(w, http.StatusUnauthorized, "User not found")
			return
		}
		if err != nil {
			m.log.Error("user re-check failed", "user_id", claims.UserID, "error", err)
			writeAuthError(w, http.StatusInternalServerError, "Internal server error", "Could not verify user")
			return
		}

		identity := Identity{
			UserID:   user.ID,
			Username: user.Username,
			Email:    user.Email,
		}
		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) reject(w http.ResponseWriter, status int, details string) {
	writeAuthError(w, status, "Unauthorized", details)
}

func writeAuthError(w http.ResponseWriter, status int, errMsg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errMsg,
		"details": details,
	})
}

// IdentityFromContext retrieves the verified identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(Identity)
	return identity, ok
}
