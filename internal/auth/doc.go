// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

// Package auth implements credential authentication and session management
// for the TechieKraft platform: scrypt password hashing, user records and
// their public identities, durable web sessions, and the service that ties
// them together. Persistence lives behind the UserRepository and
// SessionRepository interfaces; the postgres subpackage provides the
// production implementations.
package auth
