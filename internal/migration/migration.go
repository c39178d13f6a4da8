package migration

import (
	"context"

	"metabias/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Statements are the schema statements in the order Run applies them.
// Every statement is idempotent.
var Statements = []struct {
	Name string
	SQL  string
}{
	{"create fits table", `
		CREATE TABLE IF NOT EXISTS fits (
			id UUID PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
			regime VARCHAR(32) NOT NULL,
			studies INTEGER NOT NULL CHECK (studies > 0),
			data_hash CHAR(64) NOT NULL,
			fingerprint CHAR(64) NOT NULL,
			payload JSONB NOT NULL
		)`},
	{"create fits created_at index", `
		CREATE INDEX IF NOT EXISTS idx_fits_created_at ON fits (created_at DESC)`},
	{"create fits fingerprint index", `
		CREATE INDEX IF NOT EXISTS idx_fits_fingerprint ON fits (fingerprint)`},
	{"create fits regime index", `
		CREATE INDEX IF NOT EXISTS idx_fits_regime ON fits (regime)`},
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin migration", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, st := range Statements {
		if _, err := tx.ExecContext(ctx, st.SQL); err != nil {
			return errors.DatabaseError("failed to "+st.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit migration", err)
	}
	return nil
}
