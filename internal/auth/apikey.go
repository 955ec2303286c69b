package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength  = 16
	memory      = 64 * 1024
	iterations  = 3
	parallelism = 2
	keyLength   = 32
)

// HashKey returns an argon2id encoding of an API key suitable for API_KEY_HASHES.
func HashKey(key string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, iterations, memory, parallelism, keyLength)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedHash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", memory, iterations, parallelism, encodedSalt, encodedHash), nil
}

func VerifyKey(key, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false, errors.New("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, errors.New("unexpected hash algorithm")
	}

	var mem uint32
	var it uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return false, fmt.Errorf("parse hash params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	hash := argon2.IDKey([]byte(key), salt, it, mem, par, uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1, nil
}

// KeyVerifier checks presented API keys against a fixed set of argon2
// hashes. Successful matches are remembered by token fingerprint so the
// argon2 cost is paid once per key.
type KeyVerifier struct {
	hashes []string

	mu       sync.RWMutex
	verified map[string]struct{}
}

func NewKeyVerifier(hashes []string) *KeyVerifier {
	return &KeyVerifier{hashes: hashes, verified: map[string]struct{}{}}
}

// Enabled is false when no hashes are configured, which disables auth.
func (v *KeyVerifier) Enabled() bool {
	return v != nil && len(v.hashes) > 0
}

func (v *KeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}
	fingerprint := HashToken(key)

	v.mu.RLock()
	_, ok := v.verified[fingerprint]
	v.mu.RUnlock()
	if ok {
		return true
	}

	for _, encoded := range v.hashes {
		match, err := VerifyKey(key, encoded)
		if err != nil || !match {
			continue
		}
		v.mu.Lock()
		v.verified[fingerprint] = struct{}{}
		v.mu.Unlock()
		return true
	}
	return false
}

// Fingerprint is a short, log-safe identifier for a key.
func Fingerprint(key string) string {
	return "key:" + HashToken(key)[:8]
}
