package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// APIKeyPrefix is the prefix of generated API keys.
const APIKeyPrefix = "kmk_"

// Argon2 parameters for API key hashing.
const (
	// Argon2Memory is the memory parameter in KB (16 MB).
	Argon2Memory uint32 = 16384

	// Argon2Time is the iteration count.
	Argon2Time uint32 = 2

	// Argon2Parallelism is the parallelism factor.
	Argon2Parallelism uint8 = 2

	// Argon2KeyLen is the output hash length in bytes.
	Argon2KeyLen uint32 = 32

	// Argon2SaltLen is the salt length in bytes.
	Argon2SaltLen = 16

	apiKeySecretLen = 32
)

// ErrInvalidKeyHash is returned for a malformed argon2id PHC string.
var ErrInvalidKeyHash = NewDomainError("KM-AUTH-5000", "invalid api key hash")

// GenerateAPIKey returns a new random API key.
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeySecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey computes an argon2id hash of key in PHC format:
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>
func HashAPIKey(key string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(key), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Argon2Memory, Argon2Time, Argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyAPIKey reports whether key matches the argon2id PHC string phc.
// The cost parameters are read from phc, so hashes made with other
// parameters still verify.
func VerifyAPIKey(key, phc string) (bool, error) {
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidKeyHash.WithDetails("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrInvalidKeyHash.WithDetails("unsupported version")
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, ErrInvalidKeyHash.WithCause(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidKeyHash.WithCause(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false, ErrInvalidKeyHash.WithDetails("bad hash encoding")
	}

	computed := argon2.IDKey([]byte(key), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// MaskAPIKey masks a key for display, keeping the prefix and last 4 characters.
func MaskAPIKey(key string) string {
	if len(key) <= len(APIKeyPrefix)+4 {
		return "****"
	}
	return key[:len(APIKeyPrefix)] + "****" + key[len(key)-4:]
}
