// Package auth issues and validates the API tokens that back local
// (non-SSO) sign-in. Tokens are random, prefixed for identification and
// stored only as SHA-256 hashes.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix identifies tokens minted by this system.
	TokenPrefix = "folio_"
	// TokenLength is the number of random bytes per token.
	TokenLength = 32
)

// GenerateToken creates a new token. Returns the plaintext token (shown to
// the caller exactly once), its storage hash and a short display prefix.
func GenerateToken() (token, tokenHash, displayPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = TokenPrefix + encoded
	tokenHash = HashToken(token)

	displayPrefix = TokenPrefix
	if len(encoded) >= 8 {
		displayPrefix = TokenPrefix + encoded[:8]
	}
	return token, tokenHash, displayPrefix, nil
}

// HashToken computes the storage hash of a plaintext token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat rejects tokens that cannot have been minted here,
// before any store lookup.
func ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encoded := strings.TrimPrefix(token, TokenPrefix)
	if encoded == "" {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}
