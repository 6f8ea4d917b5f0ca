// Package token mints and checks the opaque share tokens that gate public
// quotation links. The token is the sole secret protecting a customer's
// financial document, so generation must come from a CSPRNG and comparisons
// against stored hashes must be constant-time.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
)

// 32 random bytes, base64url without padding, always 43 characters.
const (
	rawByteLen = 32
	encodedLen = 43
)

var formatRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{43}$`)

// Generate returns a fresh URL-safe share token.
func Generate() (string, error) {
	buf := make([]byte, rawByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsValidFormat reports whether s looks like a token we could have minted.
// Used to reject malformed input before any storage lookup.
func IsValidFormat(s string) bool {
	if len(s) != encodedLen {
		return false
	}
	return formatRegex.MatchString(s)
}

// Hash returns the hex-encoded SHA-256 digest of the token, for
// deployments that store tokens hashed at rest.
func Hash(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// VerifyHash recomputes the digest of tok and compares it to hash in
// constant time. A length mismatch is a plain reject, never an error.
func VerifyHash(tok, hash string) bool {
	computed := Hash(tok)
	if len(computed) != len(hash) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// GenerateWithHash mints a token together with its at-rest digest.
func GenerateWithHash() (tok string, hash string, err error) {
	tok, err = Generate()
	if err != nil {
		return "", "", err
	}
	return tok, Hash(tok), nil
}
