// Package requestid carries a per-request correlation id through contexts.
package requestid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header the id travels in, inbound and outbound.
const Header = "X-Request-ID"

type ctxKey struct{}

// New returns a fresh random id.
func New() string {
	return uuid.NewString()
}

// With returns a copy of ctx carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id carried by ctx, or "".
func From(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
