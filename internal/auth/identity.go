// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth

import "context"

// Identity is the request-scoped binding of the authenticated user and
// session. It travels in the request context, never in package state, so it
// cannot leak across concurrent requests and vanishes when the request ends.
type Identity struct {
	User    *User
	Session *Session
}

type identityKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, if any. ok is false for
// unauthenticated requests.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.User == nil || id.Session == nil {
		return Identity{}, false
	}
	return id, true
}

// IsAuthenticated reports whether ctx carries an authenticated identity.
func IsAuthenticated(ctx context.Context) bool {
	_, ok := IdentityFrom(ctx)
	return ok
}
