package models

import "context"

type requestContextKey struct{}

// RequestContext carries caller metadata that ends up on journal rows
type RequestContext struct {
	RequestId string // correlation id from the HTTP adapter or CLI
	Source    string // "http", "cli", "audit"
}

// WithRequestContext attaches request metadata to a context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// GetRequestContext retrieves request metadata from context, or nil if absent.
func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
