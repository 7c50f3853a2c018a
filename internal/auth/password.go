package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/Nixie-Tech-LLC/vidcast/internal/errs"
)

const MinPasswordLength = 8

// uses bcrypt to hash a plaintext password.
func HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// compares a bcrypt hash with the plaintext.
func CheckPassword(hash, plain string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

func ValidatePassword(plain string) error {
	if len(plain) < MinPasswordLength {
		return errs.Validation("password must be at least %d characters", MinPasswordLength)
	}
	if len(plain) > 72 {
		return errs.Validation("password must be at most 72 bytes")
	}
	return nil
}
