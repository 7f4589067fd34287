// Package identity maps authenticated external subjects to internal users.
// It is the only component that ever sees raw external identifiers; every
// downstream component receives the resolved subject or nil. All failure
// modes resolve to nil (fail closed); a resolver outcome is never an
// error surfaced to callers.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/duetcare/access-engine/services"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// maxSubjectLength bounds external subject identifiers; anything longer is
// malformed and resolves to nil.
const maxSubjectLength = 255

// Service resolves external subjects to internal users
type Service struct {
	users      repositories.UserRepository
	signingKey []byte
	issuer     string
	audience   string
	logger     *zap.Logger
}

// NewService creates a new identity resolver
func NewService(users repositories.UserRepository, signingKey []byte, issuer, audience string, logger *zap.Logger) *Service {
	return &Service{
		users:      users,
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
	}
}

// Resolve maps an external subject identifier to the unique internal user.
// Returns nil for any missing, malformed, unmapped, or deactivated
// subject. Pure lookup, no side effects.
func (s *Service) Resolve(ctx context.Context, externalSubject string) *models.User {
	subject := strings.TrimSpace(externalSubject)
	if subject == "" || len(subject) > maxSubjectLength {
		s.logger.Debug("subject rejected as malformed")
		return nil
	}

	user, err := s.users.GetByExternalSubject(ctx, subject)
	if err != nil {
		if !services.IsNotFoundError(err) {
			s.logger.Warn("subject lookup failed", zap.Error(err))
		}
		return nil
	}

	if !user.Active {
		s.logger.Debug("subject maps to deactivated user",
			zap.String("user_id", user.ID.String()))
		return nil
	}

	return user
}

// ResolveToken verifies a bearer token, extracts its subject claim, and
// resolves it. Any verification failure resolves to nil.
func (s *Service) ResolveToken(ctx context.Context, tokenString string) *models.User {
	if tokenString == "" {
		return nil
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		s.logger.Debug("token verification failed", zap.Error(err))
		return nil
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		s.logger.Debug("token has no subject claim", zap.Error(err))
		return nil
	}

	return s.Resolve(ctx, subject)
}

// IssueToken mints a signed bearer token for an external subject. Used by
// the pairing workflow's service accounts and by tests.
func (s *Service) IssueToken(externalSubject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   externalSubject,
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
