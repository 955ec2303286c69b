package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// KeyPrefix marks generated API keys so they are easy to spot in config.
const KeyPrefix = "rk_"

// GenerateKey returns a new random API key. Only its argon2 hash is stored.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken is a fast SHA-256 digest of a key, used as a cache key and to
// derive log fingerprints. It is not a storage hash.
func HashToken(key string) string {
	sum := sha256.Sum256([]byte(key))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
