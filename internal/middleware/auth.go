package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warekiosk/kioskgo/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Auth verifies JWT bearer tokens and stores the claims on the request
// context. Step-up tokens from a pending PIN login are rejected here; they
// are only good for the verify-pin endpoint.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := claimsFromRequest(r, secret)
			if !ok {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}
			if utils.IsStepUpToken(claims) {
				http.Error(w, "PIN verification required", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminOnly allows only users whose token carries the admin flag. Must run
// inside Auth.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}
		if isAdmin, _ := claims["isAdmin"].(bool); !isAdmin {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClaimsFromContext returns the verified claims stored by Auth
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(UserContextKey).(jwt.MapClaims)
	return claims, ok
}

// UserIDFromContext returns the authenticated user's id, 0 if absent
func UserIDFromContext(ctx context.Context) uint {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0
	}
	id, _ := claims["id"].(float64)
	return uint(id)
}

func claimsFromRequest(r *http.Request, secret string) (jwt.MapClaims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	claims, err := utils.ValidateToken(parts[1], secret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// TokenUserID validates a raw token string and returns the user id it names.
// Used by the websocket endpoint where tokens arrive as a query parameter.
func TokenUserID(tokenString, secret string) (uint, bool) {
	claims, err := utils.ValidateToken(tokenString, secret)
	if err != nil || utils.IsStepUpToken(claims) {
		return 0, false
	}
	id, _ := claims["id"].(float64)
	if id == 0 {
		return 0, false
	}
	return uint(id), true
}
