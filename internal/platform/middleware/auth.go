package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserGUID  string
	Email     string
	AgentGUID string
	AgentCode string
}

// Context keys for storing authenticated user information.
type contextKeyUserGUID struct{}
type contextKeyClaims struct{}

var (
	ContextKeyUserGUID = contextKeyUserGUID{}
	ContextKeyClaims   = contextKeyClaims{}
)

// GetUserGUID retrieves the authenticated user GUID from the context.
func GetUserGUID(ctx context.Context) string {
	guid, ok := ctx.Value(ContextKeyUserGUID).(string)
	if !ok {
		return ""
	}
	return guid
}

// GetClaims retrieves the full claim set from the context.
func GetClaims(ctx context.Context) *JWTClaims {
	claims, ok := ctx.Value(ContextKeyClaims).(*JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// RequireAuth rejects requests without a valid bearer token. The session
// engines assume "a verifier is logged in"; this middleware is where that
// assumption is enforced.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err.Error(),
						"request_id", GetRequestID(ctx),
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}

				ctx := r.Context()
				ctx = context.WithValue(ctx, ContextKeyUserGUID, claims.UserGUID)
				ctx = context.WithValue(ctx, ContextKeyClaims, claims)

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", GetRequestID(ctx),
			)
			writeUnauthorized(w, "Missing or invalid Authorization header")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
