// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package httpapi

import (
	"context"

	"github.com/techiekraft/identity/internal/auth"
)

type sessionStateKey struct{}

// sessionState is what the session middleware leaves on the request context.
// A nil identity with a nil err means "not authenticated"; a non-nil err
// means the session store could not be consulted.
type sessionState struct {
	identity *auth.Identity
	err      error
}

func withSessionState(ctx context.Context, state sessionState) context.Context {
	return context.WithValue(ctx, sessionStateKey{}, state)
}

func sessionStateFrom(ctx context.Context) sessionState {
	state, _ := ctx.Value(sessionStateKey{}).(sessionState)
	return state
}

// IdentityFromContext returns the authenticated identity on the request
// context, if any. The second return is false when the request carries no
// valid session.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	state := sessionStateFrom(ctx)
	return state.identity, state.identity != nil
}
