package booking

import (
	"context"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uint64
	Role   string
}

type actorKey struct{}

// WithActor attaches the caller to ctx.  Operations run without an actor
// (startup jobs, tools) are not restricted.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func actorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// authorizeOwner allows staff, admins and the owning customer.
func authorizeOwner(ctx context.Context, ownerID uint64) error {
	a, ok := actorFrom(ctx)
	if !ok {
		return nil
	}
	switch a.Role {
	case model.RoleStaff, model.RoleAdmin:
		return nil
	}
	if a.UserID != 0 && a.UserID == ownerID {
		return nil
	}
	return ErrForbidden
}
