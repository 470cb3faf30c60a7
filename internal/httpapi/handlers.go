// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/techiekraft/identity/internal/auth"
)

type registerRequest struct {
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	Username     string  `json:"username"`
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	Role         string  `json:"role"`
	ProfileImage *string `json:"profileImage"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *auth.Identity `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write failure means the client is gone
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// handleRegister creates a credential record and immediately starts a
// session for it. Register-then-login-in-one-step is part of the contract.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user data")
		return
	}

	identity, err := s.auth.Register(r.Context(), auth.NewUser{
		Email:        req.Email,
		Password:     req.Password,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         req.Role,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		s.recordRegistration("failure")
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusBadRequest, "Email already registered")
		case hasCode(err, "AUTH_INVALID_USER_DATA"):
			writeError(w, http.StatusBadRequest, "Invalid user data")
		default:
			s.logger.Error("registration failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if err := s.startSession(w, r, identity); err != nil {
		s.recordRegistration("failure")
		s.logger.Error("session start after registration failed", "error", err, "user_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordRegistration("success")
	writeJSON(w, http.StatusCreated, identity)
}

// handleLogin verifies credentials and starts a session. Unknown email and
// wrong password produce byte-identical responses.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	identity, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.recordLogin("failure")
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := s.startSession(w, r, identity); err != nil {
		s.recordLogin("failure")
		s.logger.Error("session start after login failed", "error", err, "user_id", identity.ID)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.recordLogin("success")
	writeJSON(w, http.StatusOK, identity)
}

// handleLogout destroys the session and clears the cookie. Logging out
// without a session is still a 200; a store failure is a 500 and keeps the
// cookie, since the session row is still live server-side.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(r)
	if token != "" {
		if err := s.auth.DestroySession(r.Context(), token); err != nil {
			s.logger.Error("session destroy failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusOK)
}

// handleSession reports authentication state. It never errors: a store
// failure degrades to "not authenticated" rather than breaking pages that
// probe for login state.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := sessionStateFrom(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: state.identity != nil,
		User:          state.identity,
	})
}

// handleProfile returns the full identity for an authenticated request.
// RequireIdentity has already rejected everything else.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// startSession issues a token for the identity and sets the session cookie.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, identity *auth.Identity) error {
	token, err := s.auth.StartSession(r.Context(), identity)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// hasCode reports whether err carries the given oops error code.
func hasCode(err error, code string) bool {
	var oopsErr oops.OopsError
	if errors.As(err, &oopsErr) {
		return oopsErr.Code() == code
	}
	return false
}

func (s *Server) recordLogin(status string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(status)
	}
}

func (s *Server) recordRegistration(status string) {
	if s.metrics != nil {
		s.metrics.RecordRegistration(status)
	}
}
