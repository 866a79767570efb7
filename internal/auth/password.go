package auth

import (
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/peer-review-service/pkg/util"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// HashPassword bcrypt-hashes password. Costs outside bcrypt's range fall back
// to bcrypt.DefaultCost. Over-long passwords are a validation error rather
// than an internal one.
func HashPassword(password string, cost int) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", apperrors.NewValidationError("invalid password",
			map[string]any{"password": "must be at most 72 bytes"})
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return string(hashed), nil
}

// PasswordMatches reports whether plain hashes to hashed. A malformed hash
// never matches.
func PasswordMatches(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
