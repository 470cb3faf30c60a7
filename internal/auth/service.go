// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
)

// ErrInvalidCredentials is the merged failure for an unknown email or a
// wrong password. The two cases are deliberately indistinguishable so error
// responses cannot be used to enumerate registered emails.
var ErrInvalidCredentials = oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")

// dummyStoredForm is verified against when the email is unknown so the
// request still pays the full KDF cost. It is shaped like a real stored
// credential but is all zeroes and will never match any password.
//
//nolint:gosec // G101: intentionally fake stored form for timing consistency, not a credential.
var dummyStoredForm = strings.Repeat("0", 2*scryptKeyLen) + "." + strings.Repeat("0", 2*scryptSaltLen)

// Service provides authentication and session lifecycle operations. It is
// an explicit, constructed instance holding its dependencies; there is no
// package-level state.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates a Service with a no-op logger.
// A non-positive ttl falls back to DefaultSessionTTL.
func NewService(users UserRepository, sessions SessionRepository, hasher PasswordHasher, ttl time.Duration) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, ttl, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a Service with the provided logger.
// Returns an error if any required dependency is nil.
func NewServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, ttl time.Duration, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		ttl:      ttl,
		logger:   logger,
	}, nil
}

// SessionTTL returns the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

// Authenticate verifies an email/password pair and returns the public
// identity on success. Unknown email and wrong password both return
// ErrInvalidCredentials; the KDF runs in both cases so response time does
// not reveal which one happened.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	user, lookupErr := s.users.GetByEmail(ctx, email)

	target := dummyStoredForm
	exists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_LOOKUP_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
	} else {
		target = user.PasswordHash
		exists = true
	}

	valid := s.hasher.Verify(password, target)
	if !exists || !valid {
		s.logger.Info("login rejected", "reason", "invalid credentials")
		return nil, ErrInvalidCredentials
	}

	identity := user.Identity()
	return &identity, nil
}

// Register validates the input, hashes the password, and creates the
// credential record. A duplicate email surfaces as ErrDuplicateEmail from
// the store's unique constraint; two simultaneous registrations for the
// same email race there and exactly one wins.
func (s *Service) Register(ctx context.Context, input NewUser) (*Identity, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	now := time.Now()
	user := &User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         Role(input.Role),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		ProfileImage: input.ProfileImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}

	s.logger.Info("user registered", "user_id", created.ID, "role", created.Role)
	identity := created.Identity()
	return &identity, nil
}

// ChangePassword verifies the current password for the user and replaces the
// stored credential with a hash of the new one. A wrong current password
// returns ErrInvalidCredentials; sessions already started stay valid.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return oops.Code("AUTH_LOOKUP_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	if !s.hasher.Verify(current, user.PasswordHash) {
		s.logger.Info("password change rejected", "user_id", userID, "reason", "invalid credentials")
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// StartSession serializes the identity into a new session entry and returns
// the opaque token for the caller to set as an HTTP-only cookie. The token
// itself is never logged or stored; only its hash reaches the database.
func (s *Service) StartSession(ctx context.Context, identity *Identity) (string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", oops.Code("SESSION_START_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(*identity, tokenHash, time.Now().Add(s.ttl))
	if err != nil {
		return "", oops.Code("SESSION_START_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", oops.Code("SESSION_START_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	s.logger.Info("session started", "user_id", identity.ID, "session_id", session.ID.String())
	return token, nil
}

// ResolveSession restores the identity embedded in the session for the
// given token. Absent, expired, and undecodable sessions all resolve to
// (nil, nil): "not authenticated" is an outcome, not an error. Only store
// connectivity failures propagate.
func (s *Service) ResolveSession(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		if errors.Is(err, ErrMalformedSession) {
			s.logger.Warn("dropping undecodable session")
			return nil, nil
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	// The row's stored hash must match the presented token; a store that
	// returns the wrong row does not authenticate anyone.
	if !VerifySessionToken(token, session.TokenHash) {
		s.logger.Warn("session token hash mismatch", "session_id", session.ID.String())
		return nil, nil
	}

	// Lazy expiry: the row may still exist past its expiration.
	if session.IsExpired() {
		return nil, nil
	}

	// Best effort, resolution succeeds regardless.
	_ = s.sessions.UpdateLastSeen(ctx, session.ID, time.Now()) //nolint:errcheck

	identity := session.Identity
	return &identity, nil
}

// DestroySession deletes the session for the given token. Destroying an
// absent or already-destroyed session is not an error.
func (s *Service) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByTokenHash(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}
