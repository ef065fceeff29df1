// Package migrations embeds the SQL schema for the transaction store and
// checkpoint store, run once at process startup.
package migrations

import (
	_ "embed"

	"github.com/chainwatch/evmcrawler/internal/db"
)

//go:embed 001_initial.sql
var mig0001 string

// RunMigrations applies all pending migrations to the database at dbPath.
func RunMigrations(dbPath string) error {
	migs := []db.Migration{
		{
			ID:  "001_initial.sql",
			SQL: mig0001,
		},
	}

	return db.RunMigrations(dbPath, migs)
}
