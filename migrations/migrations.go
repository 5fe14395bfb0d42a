// Package migrations holds the schema for the reply tracking table and
// applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// The bot runs on a single SQLite file; the dialect is fixed.
const dialect = "sqlite3"

//go:embed *.sql
var fs embed.FS

// Run brings the replies schema up to date. Called on every startup, so
// a fresh database file is usable without a separate migrate step.
func Run(db *sql.DB) error {
	if err := Prepare(); err != nil {
		return err
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Prepare points goose at the embedded migrations. Used by Run and by
// the migrate command, which drives goose directly.
func Prepare() error {
	goose.SetBaseFS(fs)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return nil
}
