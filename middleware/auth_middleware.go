package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/channel-token-service/identity"
	"github.com/upb/channel-token-service/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating caller bearer tokens
type TokenValidator interface {
	// ValidateToken validates a JWT token and returns the caller identity
	ValidateToken(ctx context.Context, token string) (*identity.Identity, error)
}

// AuthMiddleware attaches the caller identity to the request context
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. A nil validator disables
// identity resolution; every request is then treated as anonymous.
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// OptionalAuth resolves the bearer token when one is present. Requests with
// no token pass through anonymously; whether anonymous callers may obtain
// tokens is decided by the token service. A token that fails validation is
// rejected with 401.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" || m.validator == nil {
			next.ServeHTTP(w, r)
			return
		}

		id, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", id.Subject))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
	})
}

// RequireAuth is OptionalAuth that also rejects anonymous requests with 401
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return m.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentityFromContext(r.Context()) == nil {
			m.logger.Warn("missing caller identity",
				zap.String("request_id", GetRequestIDFromContext(r.Context())))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
