package security

import (
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

var argonConfig = argon2.DefaultConfig()

// HashPassword returns an encoded argon2id hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("security: empty password")
	}
	encoded, errHash := argonConfig.HashEncoded([]byte(password))
	if errHash != nil {
		return "", fmt.Errorf("security: hash password: %w", errHash)
	}
	return string(encoded), nil
}

// VerifyPassword reports whether password matches hash. Malformed hashes
// and mismatches both yield false; bcrypt hashes from older records verify too.
func VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	if strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	ok, errVerify := argon2.VerifyEncoded([]byte(password), []byte(hash))
	if errVerify != nil {
		return false
	}
	return ok
}

// NeedsRehash reports whether hash should be upgraded to argon2id.
func NeedsRehash(hash string) bool {
	return !strings.HasPrefix(hash, "$argon2id$")
}
