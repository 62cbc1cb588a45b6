package rest

import (
	"context"
	"net/http"
)

type contextKey string

const userIDKey = contextKey("userID")

const headerUserID = "X-User-ID"

// AuthMiddleware берет userID из заголовка X-User-ID.
// Заголовок ставит API Gateway после проверки токена
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUserID)
		if userID == "" {
			WriteJSONError(w, http.StatusUnauthorized, "Authentication error: User ID header is missing")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
