package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

const (
	digitAlphabet         = "0123456789"
	upperAlphanumAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRandomString returns a hex string built from n random bytes.
func GenerateRandomString(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("security: invalid length %d", n)
	}
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: read random: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}

// RandomDigits returns n uniformly random decimal digits.
func RandomDigits(n int) (string, error) {
	return randomFromAlphabet(digitAlphabet, n)
}

// RandomUpperAlphanumeric returns n uniformly random characters from A-Z and 0-9.
func RandomUpperAlphanumeric(n int) (string, error) {
	return randomFromAlphabet(upperAlphanumAlphabet, n)
}

func randomFromAlphabet(alphabet string, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("security: invalid length %d", n)
	}
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, errInt := rand.Int(rand.Reader, limit)
		if errInt != nil {
			return "", fmt.Errorf("security: read random: %w", errInt)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
