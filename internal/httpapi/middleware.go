// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package httpapi

import (
	"net/http"
)

// withSession resolves the session cookie on every request and stashes the
// outcome on the context. Resolution failures are recorded, not returned:
// each handler decides whether a store failure is fatal for its endpoint.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)

		identity, err := s.auth.ResolveSession(r.Context(), token)
		if err != nil {
			s.logger.Error("session resolution failed", "error", err)
		}

		ctx := withSessionState(r.Context(), sessionState{identity: identity, err: err})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity rejects requests that do not carry a valid session.
// A session store failure is a server error, not an authentication failure.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := sessionStateFrom(r.Context())
		if state.err != nil {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if state.identity == nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionToken extracts the opaque token from the session cookie.
// Returns empty string when the cookie is absent.
func (s *Server) sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
