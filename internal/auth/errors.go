// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package auth

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a user with the same email already
	// exists. The unique constraint on the email column is the source of
	// truth; there is no check-then-insert race.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrMalformedSession marks a session row whose stored identity payload
	// cannot be decoded. Callers treat it as "not authenticated", never as a
	// server error.
	ErrMalformedSession = errors.New("malformed session payload")
)
