package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Jaydeep869/Counter-Finger-Game/internal/domain"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type contextKey string

const userIDKey contextKey = "userID"

// UserIDFromContext extracts the authenticated user id set by RequireAuth.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// RequireAuth rejects requests without a valid bearer token before any
// service logic runs. Absent, malformed and expired tokens are all the
// same 401 to the caller.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
			return
		}

		userID, err := h.verifier.Verify(token)
		if err != nil {
			h.writeError(w, http.StatusUnauthorized, domain.ErrInvalidToken.Error())
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
