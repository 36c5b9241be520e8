package security

import (
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher produces the bcrypt copy of a registration password that is
// written to the users row. Login never reads it; the hosted auth service
// remains the source of truth for credentials.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a PasswordHasher with the given bcrypt cost, clamped to [bcrypt.MinCost, bcrypt.MaxCost].
// A non-positive cost selects bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{Cost: cost}
}

// Hash returns the bcrypt hash of password. Passwords longer than 72 bytes are
// rejected by bcrypt; registration limits passwords to 32 characters.
func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
