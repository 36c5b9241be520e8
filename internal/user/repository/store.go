package repository

import (
	"context"
	"database/sql"
	"strings"

	"identity-gateway/internal/db"
)

// Store is the users repository a process writes to: the direct Postgres store when a database URL is
// configured, the row API otherwise.
type Store struct {
	Repository
	// DB is the open database for the Postgres store; nil for the row API.
	DB *sql.DB
}

// OpenStore selects the backend from databaseURL. The caller must Close the store.
func OpenStore(ctx context.Context, client RowClient, databaseURL, table string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return &Store{Repository: NewRESTRepository(client, table)}, nil
	}
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	pg, err := NewPostgresRepository(conn, table)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Store{Repository: pg, DB: conn}, nil
}

// Backend names the selected backend for logs.
func (s *Store) Backend() string {
	if s.DB != nil {
		return "postgres"
	}
	return "rest"
}

// Close closes the database, if any.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
