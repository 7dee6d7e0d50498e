package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// Alphanumeric is the default token alphabet.
const Alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"

// VerificationCodeLength is the length of the code issued at signup.
const VerificationCodeLength = 128

// ErrInvalidAlphabet indicates an alphabet too small to produce tokens.
var ErrInvalidAlphabet = errors.New("token alphabet needs at least two characters")

// TokenGenerator issues random tokens of a fixed length and alphabet.
type TokenGenerator struct {
	Length   int
	Alphabet string
}

// Generate returns a new random token.
func (g TokenGenerator) Generate() (string, error) {
	return GenerateToken(g.Length, g.Alphabet)
}

// GenerateToken returns a token of length characters drawn uniformly from alphabet
// using crypto/rand.
func GenerateToken(length int, alphabet string) (string, error) {
	if len(alphabet) < 2 {
		return "", ErrInvalidAlphabet
	}
	if length < 1 {
		return "", fmt.Errorf("invalid token length %d", length)
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// GenerateVerificationCode returns a new alphanumeric account verification code.
func GenerateVerificationCode() (string, error) {
	return GenerateToken(VerificationCodeLength, Alphanumeric)
}
