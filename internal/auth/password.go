package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is the bcrypt work factor for the operator password.
	DefaultBcryptCost = 12

	// MinPasswordLength is the floor; config may raise it, never lower it.
	MinPasswordLength = 8

	// MaxPasswordLength bounds password input size.
	MaxPasswordLength = 128
)

// PasswordManager hashes and checks the single operator password.
type PasswordManager struct {
	cost      int
	minLength int
}

// NewPasswordManager creates a password manager. Out-of-range inputs fall
// back to the package defaults.
func NewPasswordManager(cost, minLength int) *PasswordManager {
	if cost < bcrypt.MinCost {
		cost = DefaultBcryptCost
	}
	if minLength < MinPasswordLength {
		minLength = MinPasswordLength
	}
	return &PasswordManager{cost: cost, minLength: minLength}
}

// HashPassword hashes a password using bcrypt.
func (p *PasswordManager) HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("password too long")
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// VerifyPassword verifies a password against a bcrypt hash.
func (p *PasswordManager) VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength checks length bounds and requires at least three
// of the four character classes (upper, lower, digit, special).
func (p *PasswordManager) ValidatePasswordStrength(password string) error {
	if len(password) < p.minLength {
		return fmt.Errorf("password must be at least %d characters", p.minLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	}

	classes := 0
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r) && !hasUpper:
			hasUpper = true
			classes++
		case unicode.IsLower(r) && !hasLower:
			hasLower = true
			classes++
		case unicode.IsDigit(r) && !hasDigit:
			hasDigit = true
			classes++
		case (unicode.IsPunct(r) || unicode.IsSymbol(r)) && !hasSpecial:
			hasSpecial = true
			classes++
		}
	}

	if classes < 3 {
		return fmt.Errorf("password must contain at least 3 of: uppercase, lowercase, digits, special characters")
	}
	return nil
}

// HashRefreshToken creates a SHA-256 hash of a refresh token for storage.
func HashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
