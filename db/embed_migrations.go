package db

import "embed"

// MigrationFS embeds the Postgres migrations applied by db/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
