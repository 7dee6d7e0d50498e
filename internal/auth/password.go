// Package auth provides credential hashing, token generation and the
// request-scoped identity context.
package auth

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. The salt is not stored; it is derived from the
// account creation time.
const (
	DefaultIterations = 1000
	pbkdf2KeyLen      = 512 // 4096 bits
	pbkdf2Scheme      = "pbkdf2-sha512"
)

var (
	// ErrInvalidHash indicates the hash format is invalid.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrMissingCreated indicates a hash was requested without a creation time.
	ErrMissingCreated = errors.New("account creation time required for salt")
)

// Salt derives the password salt from the account creation time: the hex
// SHA-512 digest of the decimal epoch seconds.
func Salt(created time.Time) []byte {
	sum := sha512.Sum512([]byte(strconv.FormatInt(created.Unix(), 10)))
	return []byte(hex.EncodeToString(sum[:]))
}

// HashPassword derives a PBKDF2-HMAC-SHA512 hash of password.
// Returns the hash in PHC-like string format:
// $pbkdf2-sha512$i=1000,l=512$<hash>
func HashPassword(password string, created time.Time, iterations int) (string, error) {
	if created.IsZero() {
		return "", ErrMissingCreated
	}
	if iterations < 1 {
		iterations = DefaultIterations
	}

	hash := pbkdf2.Key([]byte(password), Salt(created), iterations, pbkdf2KeyLen, sha512.New)

	return fmt.Sprintf(
		"$%s$i=%d,l=%d$%s",
		pbkdf2Scheme,
		iterations,
		pbkdf2KeyLen,
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks if the password matches the encoded hash.
// Uses constant-time comparison to prevent timing attacks.
func VerifyPassword(password, encodedHash string, created time.Time) (bool, error) {
	// "", scheme, params, hash
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 4 || parts[1] != pbkdf2Scheme {
		return false, ErrInvalidHash
	}

	var iterations, keyLen int
	if _, err := fmt.Sscanf(parts[2], "i=%d,l=%d", &iterations, &keyLen); err != nil {
		return false, ErrInvalidHash
	}
	if iterations < 1 || keyLen < 1 {
		return false, ErrInvalidHash
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil || len(expectedHash) != keyLen {
		return false, ErrInvalidHash
	}

	computedHash := pbkdf2.Key([]byte(password), Salt(created), iterations, keyLen, sha512.New)

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1, nil
}

// SecretsEqual compares two secrets in constant time.
func SecretsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// QuickHash returns a SHA256 hash of the input for cache keys.
// This is NOT for password storage, only for cache key derivation.
func QuickHash(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16]) // Use first 16 bytes (32 hex chars)
}
