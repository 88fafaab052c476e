// Package auth validates API keys for the HTTP surface. Keys are never
// stored in clear: configuration carries SHA-256 hashes and incoming keys
// are hashed before comparison.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Authenticator validates API keys against a set of configured key hashes.
type Authenticator struct {
	keyHashes []string
}

// NewAuthenticator creates an authenticator from SHA-256 key hashes.
func NewAuthenticator(keyHashes []string) *Authenticator {
	hashes := make([]string, 0, len(keyHashes))
	for _, h := range keyHashes {
		if h == "" {
			continue
		}
		hashes = append(hashes, strings.ToLower(h))
	}
	return &Authenticator{keyHashes: hashes}
}

// ValidateAPIKey checks a raw API key against the configured hashes.
func (a *Authenticator) ValidateAPIKey(apiKey string) error {
	keyHash := HashAPIKey(apiKey)

	// Constant-time comparison to prevent timing attacks
	matched := false
	for _, known := range a.keyHashes {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(known)) == 1 {
			matched = true
		}
	}
	if !matched {
		return fmt.Errorf("invalid API key")
	}
	return nil
}

// ExtractAPIKey extracts the API key from the Authorization header
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
