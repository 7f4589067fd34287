package middleware

import (
	"context"

	"github.com/duetcare/access-engine/models"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

const (
	// SubjectKey is the context key for the resolved subject
	SubjectKey contextKey = "subject"
)

// GetRequestIDFromContext retrieves the request ID attached by chi's
// RequestID middleware, or "" when the middleware did not run
func GetRequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

// SubjectFromContext retrieves the resolved subject from context. Returns
// nil for anonymous requests. Handlers read this once at entry and pass
// the subject explicitly into every engine call; nothing below the
// handler layer ever touches the request context for identity.
func SubjectFromContext(ctx context.Context) *models.User {
	if val := ctx.Value(SubjectKey); val != nil {
		if subject, ok := val.(*models.User); ok {
			return subject
		}
	}
	return nil
}

// WithSubject adds a resolved subject to the context
func WithSubject(ctx context.Context, subject *models.User) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}
