// Package dbx holds the database plumbing shared by the local replica
// (SQLite) and the relay repository (Postgres): the DBTX handle both *sql.DB
// and *sql.Tx satisfy, a transaction helper and goose migrations.
package dbx

import (
	"context"
	"database/sql"
	"io/fs"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pressly/goose/v3"
)

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back on error or panic; panics are re-raised after rollback.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration found at the root of migrations.
// dialect is a goose dialect name such as "sqlite3" or "pgx".
func Migrate(ctx context.Context, db *sql.DB, migrations fs.FS, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrapf(err, "set goose dialect %s", dialect)
	}
	goose.SetLogger(goose.NopLogger())

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}
