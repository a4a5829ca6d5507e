package auth

import (
	"context"
	"fmt"

	"github.com/petermazzocco/photocard-catalog/internal/errs"
	"github.com/petermazzocco/photocard-catalog/models"
)

// Session is the authenticated caller for one request.
type Session struct {
	UserID uint
	Role   models.Role
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func CurrentSession(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// AtLeast reports whether have ranks at or above want.
func AtLeast(have, want models.Role) bool {
	return have >= want
}

// RequireAtLeast fails closed when there is no session or its role ranks below want.
func RequireAtLeast(ctx context.Context, want models.Role) (Session, error) {
	s, ok := CurrentSession(ctx)
	if !ok {
		return Session{}, fmt.Errorf("%w: no session", errs.ErrUnauthorized)
	}
	if !AtLeast(s.Role, want) {
		return Session{}, fmt.Errorf("%w: role %s is below %s", errs.ErrUnauthorized, s.Role, want)
	}
	return s, nil
}
