package domain

import "time"

// Challenge is an emailed 2FA code and its expiry, stored as two_fa_code / two_fa_expires_at on the users row.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

// Pending reports whether a challenge was requested: both code and expiry are set.
func (c *Challenge) Pending() bool {
	return c != nil && c.Code != "" && !c.ExpiresAt.IsZero()
}

// Expired reports whether now is at or past the expiry.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
