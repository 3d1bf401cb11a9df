package actorctx

import (
	"context"

	"github.com/geocoder89/tourhub/internal/domain/user"
)

type ctxKey struct{}

// WithIdentity attaches the authenticated account to ctx so logs and
// repositories downstream of the HTTP layer can see who is acting.
func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(user.Identity)
	return id, ok && id.ID > 0
}

func UserIDFrom(ctx context.Context) (int64, bool) {
	id, ok := IdentityFrom(ctx)
	return id.ID, ok
}
