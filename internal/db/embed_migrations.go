package db

import "embed"

// MigrationFS embeds the users table migrations applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
