package domain

import (
	"errors"
	"strings"
)

// Profile is the users row written at registration. The row is keyed by the id the hosted auth service assigned.
type Profile struct {
	ID           string
	Email        string
	Name         string
	Phone        string // optional
	PasswordHash string // bcrypt; never the submitted plaintext
}

// Validate validates the profile for persistence. Returns an error describing the first validation failure.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("id is required")
	}
	if p.Email == "" {
		return errors.New("email is required")
	}
	return nil
}

// Row column names shared by the REST and Postgres repositories.
const (
	ColumnID             = "id"
	ColumnEmail          = "email"
	ColumnName           = "name"
	ColumnPhone          = "phone"
	ColumnPassword       = "password"
	ColumnTwoFACode      = "two_fa_code"
	ColumnTwoFAExpiresAt = "two_fa_expires_at"
	ColumnTwoFAEnabled   = "two_fa_enabled"
)
