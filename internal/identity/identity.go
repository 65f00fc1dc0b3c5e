// Package identity carries the caller of an operation through a context.
package identity

import "context"

type ctxKey struct{}

// Identity is the authenticated caller. Admin grants the balance override
// capability.
type Identity struct {
	OwnerID string
	Admin   bool
}

// With attaches id to ctx.
func With(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// WithOwner attaches a non-admin caller.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return With(ctx, Identity{OwnerID: ownerID})
}

// WithAdmin marks the caller in ctx as admin, keeping its owner id.
func WithAdmin(ctx context.Context) context.Context {
	id, _ := FromContext(ctx)
	id.Admin = true
	return With(ctx, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// OwnerID returns the caller's owner id, if any.
func OwnerID(ctx context.Context) (string, bool) {
	id, ok := FromContext(ctx)
	if !ok || id.OwnerID == "" {
		return "", false
	}
	return id.OwnerID, true
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.Admin
}

// CanAccess reports whether the caller may address a resource of ownerID.
// Contexts without a caller are trusted, and admins reach every owner.
func CanAccess(ctx context.Context, ownerID string) bool {
	id, ok := FromContext(ctx)
	if !ok || id.OwnerID == "" || id.Admin {
		return true
	}
	return id.OwnerID == ownerID
}
