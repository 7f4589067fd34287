package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/utils"
	"go.uber.org/zap"
)

// SubjectResolver maps a bearer token to an internal user, or nil.
// Satisfied by the identity service.
type SubjectResolver interface {
	ResolveToken(ctx context.Context, token string) *models.User
}

// AuthMiddleware resolves the caller's subject from the bearer token
type AuthMiddleware struct {
	resolver SubjectResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver SubjectResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// ResolveSubject resolves the bearer token to a subject and attaches it
// to the request context. Resolution failures attach no subject rather
// than rejecting the request: downstream reads then collapse to "no
// data", which is the required external behavior for unresolved callers.
func (m *AuthMiddleware) ResolveSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token := extractBearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		subject := m.resolver.ResolveToken(ctx, token)
		if subject == nil {
			m.logger.Debug("bearer token did not resolve to a subject",
				zap.String("request_id", GetRequestIDFromContext(ctx)))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(ctx, subject)))
	})
}

// RequireSubject rejects requests with no resolved subject. Used on
// write routes where a loud 401 is the right surface; read routes stay
// on ResolveSubject alone and answer with empty results instead.
func (m *AuthMiddleware) RequireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SubjectFromContext(r.Context()) == nil {
			_ = utils.WriteUnauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
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
