package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the Postgres schema. Each file registers one step; bun derives
// the version from the file name.
var Migrations = migrate.NewMigrations()
