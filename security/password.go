package security

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with bcrypt at the default cost.
// The result embeds a random salt and is one-way; verification goes through
// VerifyPassword.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// dummyBcryptHash is a pre-computed bcrypt hash compared against when the
// looked-up user does not exist, so authentication takes the same time for
// unknown users as for wrong passwords.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// VerifyPassword reports whether password matches the stored bcrypt hash.
// bcrypt comparison is constant-time by design.
func VerifyPassword(password, passwordHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}

// VerifyPasswordOrDummy verifies password against passwordHash, or against a
// fixed dummy hash when passwordHash is empty (user not found). Always
// performing a bcrypt comparison prevents timing-based user enumeration.
// Returns false when the dummy hash was used regardless of the comparison.
func VerifyPasswordOrDummy(password, passwordHash string) bool {
	hashToCompare := passwordHash
	exists := passwordHash != ""
	if !exists {
		hashToCompare = dummyBcryptHash
	}
	ok := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(password)) == nil
	return ok && exists
}

// ConstantTimeEquals compares two strings in constant time. Used for client
// secret comparison so secret validation does not leak prefix length.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
