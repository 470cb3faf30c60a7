// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. The stored form is hex(digest) + "." + hex(salt),
// compatible with credentials hashed by earlier releases of the platform.
const (
	scryptN       = 16384 // CPU/memory cost
	scryptR       = 8     // block size
	scryptP       = 1     // parallelism
	scryptKeyLen  = 64    // digest length in bytes
	scryptSaltLen = 16    // random salt bytes, hex-encoded before use
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces the stored form of the password.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the stored form.
	// A malformed stored form verifies as false, never as an error.
	Verify(password, stored string) bool
}

// ScryptHasher implements PasswordHasher using scrypt.
//
// The salt is generated as random bytes but mixed into the KDF as its
// hex-encoded string, and the digest is fixed at 64 bytes. Both choices
// preserve compatibility with the existing credential store.
type ScryptHasher struct{}

// NewScryptHasher creates a new ScryptHasher.
func NewScryptHasher() *ScryptHasher {
	return &ScryptHasher{}
}

// Hash produces the stored form of the password: hex(digest) "." hex(salt).
func (h *ScryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	saltBytes := make([]byte, scryptSaltLen)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}
	salt := hex.EncodeToString(saltBytes)

	digest, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}

	return hex.EncodeToString(digest) + "." + salt, nil
}

// Verify reports whether the password matches the stored form.
// The digests are compared in constant time so response time does not leak
// how many leading bytes matched.
func (h *ScryptHasher) Verify(password, stored string) bool {
	digestHex, salt, found := strings.Cut(stored, ".")
	if !found {
		return false
	}

	digest, err := hex.DecodeString(digestHex)
	if err != nil || len(digest) != scryptKeyLen {
		return false
	}

	candidate, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(candidate, digest) == 1
}

// Compile-time interface check.
var _ PasswordHasher = (*ScryptHasher)(nil)
