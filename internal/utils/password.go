package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when asked to hash an empty password.
var ErrEmptyPassword = errors.New("password cannot be empty")

// hashCost is the bcrypt work factor. 12 keeps login latency tolerable while
// staying above the library default.
const hashCost = 12

// HashPassword derives a bcrypt hash for storage in the user record.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPasswordHash reports whether password matches the stored hash.
func CheckPasswordHash(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
