package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	mfadomain "identity-gateway/internal/mfa/domain"
	"identity-gateway/internal/supabase"
	"identity-gateway/internal/user/domain"
)

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// PostgresRepository reads and writes users rows directly in the hosted Postgres database.
type PostgresRepository struct {
	db    *sql.DB
	table string
}

// NewPostgresRepository returns a users repository that uses the given db. table may be schema-qualified
// (e.g. public.users) and must be a plain identifier.
func NewPostgresRepository(db *sql.DB, table string) (*PostgresRepository, error) {
	if table == "" {
		table = "users"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("users table %q is not a valid identifier", table)
	}
	return &PostgresRepository{db: db, table: table}, nil
}

// UpsertProfile inserts the profile row or updates name, phone, email, and password of the row with the same id.
func (r *PostgresRepository) UpsertProfile(ctx context.Context, p *domain.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	phone := sql.NullString{String: p.Phone, Valid: p.Phone != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO `+r.table+` (id, name, phone, email, password)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, phone = EXCLUDED.phone,
			email = EXCLUDED.email, password = EXCLUDED.password`,
		p.ID, p.Name, phone, p.Email, p.PasswordHash)
	return rowError(err)
}

// SetChallenge stores code and expiry on the rows matching email. Returns ErrNotFound if none matched.
func (r *PostgresRepository) SetChallenge(ctx context.Context, email string, c mfadomain.Challenge) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+r.table+` SET two_fa_code = $1, two_fa_expires_at = $2 WHERE email = $3`,
		c.Code, c.ExpiresAt.UTC(), email)
	if err != nil {
		return rowError(err)
	}
	return requireRows(res)
}

// GetChallenge reads code and expiry of the single row matching email.
func (r *PostgresRepository) GetChallenge(ctx context.Context, email string) (*mfadomain.Challenge, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT two_fa_code, two_fa_expires_at FROM `+r.table+` WHERE email = $1 LIMIT 2`, email)
	if err != nil {
		return nil, rowError(err)
	}
	defer rows.Close()
	var (
		code    sql.NullString
		expires sql.NullTime
		n       int
	)
	for rows.Next() {
		n++
		if n > 1 {
			return nil, ErrMultipleUsers
		}
		if err := rows.Scan(&code, &expires); err != nil {
			return nil, rowError(err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, rowError(err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	c := &mfadomain.Challenge{}
	if code.Valid {
		c.Code = code.String
	}
	if expires.Valid {
		c.ExpiresAt = expires.Time.UTC()
	}
	return c, nil
}

// ClearChallenge nulls code and expiry, and sets two_fa_enabled when enable is true, in one statement.
func (r *PostgresRepository) ClearChallenge(ctx context.Context, email string, enable bool) error {
	query := `UPDATE ` + r.table + ` SET two_fa_code = NULL, two_fa_expires_at = NULL WHERE email = $1`
	if enable {
		query = `UPDATE ` + r.table + ` SET two_fa_enabled = TRUE, two_fa_code = NULL, two_fa_expires_at = NULL WHERE email = $1`
	}
	res, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return rowError(err)
	}
	return requireRows(res)
}

func requireRows(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowError reports a Postgres error the way the row API would: an *supabase.APIError carrying the SQLSTATE as
// code and the HTTP status the row API uses for it. Other errors are returned unchanged.
func rowError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	return &supabase.APIError{
		Status:  sqlStateStatus(pgErr.Code),
		Code:    pgErr.Code,
		Message: pgErr.Message,
		Details: map[string]any{
			"code":    pgErr.Code,
			"message": pgErr.Message,
			"details": nullable(pgErr.Detail),
			"hint":    nullable(pgErr.Hint),
		},
	}
}

// sqlStateStatus follows the row API's SQLSTATE to HTTP status table.
func sqlStateStatus(code string) int {
	switch code {
	case "23503", "23505":
		return http.StatusConflict
	case "42P01", "42883":
		return http.StatusNotFound
	case "42501":
		return http.StatusForbidden
	case "25006":
		return http.StatusMethodNotAllowed
	case "53400":
		return http.StatusInternalServerError
	case "P0001":
		return http.StatusBadRequest
	}
	class := code
	if len(class) > 2 {
		class = class[:2]
	}
	switch class {
	case "08", "53":
		return http.StatusServiceUnavailable
	case "09", "0L", "0P", "28":
		return http.StatusForbidden
	case "25", "2D", "38", "39", "3B", "40", "54", "55", "57", "58", "F0", "HV", "P0", "XX":
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
