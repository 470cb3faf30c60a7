// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Role is the role label carried on an authenticated identity.
// Policy decisions based on it belong to the caller, not this package.
type Role string

// Valid roles.
const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known labels.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleParent, RoleAdmin:
		return true
	}
	return false
}

// ParseRole converts a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").
			With("role", s).
			Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is a credential record. The PasswordHash field is never the
// plaintext; it is always the stored form produced by a PasswordHasher.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	FirstName    string
	LastName     string
	ProfileImage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the subset of a user record safe to return to clients and
// embed in sessions. It never carries credential material and is immutable
// for the lifetime of a request.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Identity derives the public identity from the user record, stripping the
// password hash.
func (u *User) Identity() Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// NewUser is the validated input for registration.
type NewUser struct {
	Email        string
	Password     string
	Username     string
	FirstName    string
	LastName     string
	Role         string
	ProfileImage *string
}

// Validate checks the registration input shape. An empty username defaults
// to the local part of the email.
func (n *NewUser) Validate() error {
	invalid := func(reason string) error {
		return oops.Code("AUTH_INVALID_USER_DATA").
			With("reason", reason).
			Errorf("invalid user data")
	}

	if n.Email == "" || !strings.Contains(n.Email, "@") {
		return invalid("email")
	}
	if n.Password == "" {
		return invalid("password")
	}
	if n.FirstName == "" {
		return invalid("firstName")
	}
	if n.LastName == "" {
		return invalid("lastName")
	}
	if _, err := ParseRole(n.Role); err != nil {
		return invalid("role")
	}
	if n.Username == "" {
		n.Username, _, _ = strings.Cut(n.Email, "@")
	}
	return nil
}

// UserRepository manages credential record persistence. It performs no
// hashing and no session logic.
type UserRepository interface {
	// Create stores a new user and returns it with its assigned ID.
	// A duplicate email yields ErrDuplicateEmail.
	Create(ctx context.Context, user *User) (*User, error)

	// GetByEmail retrieves a user by exact, case-sensitive email match.
	// Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*User, error)

	// UpdatePassword replaces the stored credential form for a user.
	// Returns ErrNotFound if the user does not exist.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
