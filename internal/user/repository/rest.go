package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mfadomain "identity-gateway/internal/mfa/domain"
	"identity-gateway/internal/supabase"
	"identity-gateway/internal/user/domain"
)

// RowClient is the subset of the hosted row API used by RESTRepository.
type RowClient interface {
	Upsert(ctx context.Context, table string, row any, onConflict ...string) error
	Update(ctx context.Context, table string, patch any, out any, filters ...supabase.Filter) error
	Select(ctx context.Context, table, columns string, limit int, out any, filters ...supabase.Filter) error
}

// RESTRepository reads and writes users rows through the hosted row API.
type RESTRepository struct {
	client RowClient
	table  string
}

// NewRESTRepository returns a users repository backed by client; table defaults to "users".
func NewRESTRepository(client RowClient, table string) *RESTRepository {
	if strings.TrimSpace(table) == "" {
		table = "users"
	}
	return &RESTRepository{client: client, table: table}
}

type profileRow struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    *string `json:"phone"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
}

type challengeRow struct {
	Code      *string    `json:"two_fa_code"`
	ExpiresAt *time.Time `json:"two_fa_expires_at"`
}

// storedChallenge is a challenge as read back from the row API.
type storedChallenge struct {
	Code      *string  `json:"two_fa_code"`
	ExpiresAt *rowTime `json:"two_fa_expires_at"`
}

// rowTimeLayouts covers timestamptz and timestamp columns in both JSON and text form. Zoneless values are UTC.
var rowTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
}

type rowTime struct {
	time.Time
}

func (t *rowTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%s: %w", domain.ColumnTwoFAExpiresAt, err)
	}
	for _, layout := range rowTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("%s: unrecognized timestamp %q", domain.ColumnTwoFAExpiresAt, s)
}

type clearRow struct {
	Code      *string    `json:"two_fa_code"`
	ExpiresAt *time.Time `json:"two_fa_expires_at"`
	Enabled   *bool      `json:"two_fa_enabled,omitempty"`
}

type idRow struct {
	ID string `json:"id"`
}

// UpsertProfile inserts or merges the profile row keyed by id.
func (r *RESTRepository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	row := profileRow{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		Password: p.PasswordHash,
	}
	if p.Phone != "" {
		row.Phone = &p.Phone
	}
	return r.client.Upsert(ctx, r.table, row, domain.ColumnID)
}

// SetChallenge stores the code and expiry on the row matching email.
func (r *RESTRepository) SetChallenge(ctx context.Context, email string, c mfadomain.Challenge) error {
	code := c.Code
	expires := c.ExpiresAt.UTC()
	var updated []idRow
	err := r.client.Update(ctx, r.table, challengeRow{Code: &code, ExpiresAt: &expires}, &updated,
		supabase.Eq(domain.ColumnEmail, email))
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}

// GetChallenge reads the code and expiry of the single row matching email.
func (r *RESTRepository) GetChallenge(ctx context.Context, email string) (*mfadomain.Challenge, error) {
	var rows []storedChallenge
	columns := domain.ColumnTwoFACode + "," + domain.ColumnTwoFAExpiresAt
	if err := r.client.Select(ctx, r.table, columns, 2, &rows, supabase.Eq(domain.ColumnEmail, email)); err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		return nil, ErrMultipleUsers
	}
	c := &mfadomain.Challenge{}
	if rows[0].Code != nil {
		c.Code = *rows[0].Code
	}
	if rows[0].ExpiresAt != nil {
		c.ExpiresAt = rows[0].ExpiresAt.Time
	}
	return c, nil
}

// ClearChallenge nulls code and expiry, optionally enabling 2FA in the same update.
func (r *RESTRepository) ClearChallenge(ctx context.Context, email string, enable bool) error {
	patch := clearRow{}
	if enable {
		enabled := true
		patch.Enabled = &enabled
	}
	var updated []idRow
	err := r.client.Update(ctx, r.table, patch, &updated, supabase.Eq(domain.ColumnEmail, email))
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return ErrNotFound
	}
	return nil
}
