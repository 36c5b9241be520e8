package repository

import (
	"context"
	"errors"

	mfadomain "identity-gateway/internal/mfa/domain"
	"identity-gateway/internal/user/domain"
)

var (
	// ErrNotFound is returned when no users row matches the email.
	ErrNotFound = errors.New("user not found")
	// ErrMultipleUsers is returned when more than one users row matches the email.
	ErrMultipleUsers = errors.New("multiple users match email")
)

// Repository defines persistence for the users rows owned by the hosted database.
type Repository interface {
	// UpsertProfile inserts the profile row or merges it into the existing row with the same id.
	UpsertProfile(ctx context.Context, p *domain.Profile) error
	// SetChallenge stores code and expiry on every row matching email. Returns ErrNotFound if none matched.
	SetChallenge(ctx context.Context, email string, c mfadomain.Challenge) error
	// GetChallenge reads the code and expiry of the single row matching email. The returned challenge is empty
	// (not Pending) when no code was requested. Returns ErrNotFound or ErrMultipleUsers unless exactly one row matches.
	GetChallenge(ctx context.Context, email string) (*mfadomain.Challenge, error)
	// ClearChallenge sets code and expiry back to null; when enable is true it also sets two_fa_enabled in the same update.
	ClearChallenge(ctx context.Context, email string, enable bool) error
}
