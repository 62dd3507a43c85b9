// Package actorctx carries request-scoped identity on a context.Context so
// code below the HTTP layer (loggers, job producers) can see who acted, in
// which project, and under which request.
package actorctx

import "context"

type (
	userKey    struct{}
	requestKey struct{}
	projectKey struct{}
)

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

func UserIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, userKey{})
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestKey{}, requestID)
}

func RequestIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestKey{})
}

// WithProjectID is set once project access has been granted.
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectKey{}, projectID)
}

func ProjectIDFrom(ctx context.Context) (string, bool) {
	return stringFrom(ctx, projectKey{})
}

func stringFrom(ctx context.Context, key any) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
