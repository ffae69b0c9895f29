package devserver

import "context"

func contextWithUser(ctx context.Context, u user) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func userFrom(ctx context.Context) user {
	u, _ := ctx.Value(ctxKey{}).(user)
	return u
}
