// Package cryptox collects the hashing and sealing primitives used by the
// chat client: group password digests, record content hashes for
// attestations, and the AES-GCM envelope protecting the signing keystore.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// PasswordDigest returns the lowercase hex SHA-256 of the UTF-8 password.
// The digest is unsalted: every client computes the same value for the
// same password, and stored groups depend on that.
func PasswordDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword reports whether password hashes to digest.
func VerifyPassword(password, digest string) bool {
	got := PasswordDigest(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

// ContentHash returns the hex SHA-256 of v's JSON encoding.
func ContentHash(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "marshal for hashing")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
