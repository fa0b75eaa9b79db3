package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/dbx"
	"github.com/dmitrijs2005/groupsync/internal/relay/migrations"
	"github.com/dmitrijs2005/groupsync/internal/relay/models"
	"github.com/dmitrijs2005/groupsync/internal/store"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects through the pgx driver and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Mark(errors.Wrap(err, "ping postgres"), common.ErrUnavailable)
	}
	if err := dbx.Migrate(ctx, db, migrations.Migrations, "pgx"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresRepository(db), nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Upsert writes the node and its audit row in one transaction.
func (r *PostgresRepository) Upsert(ctx context.Context, n *models.Node) error {
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO nodes (path, parent, name, value, updated_by, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (path) DO UPDATE
			 SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at;`,
			n.Path.String(), n.Path.Parent().String(), n.Path.Key(), []byte(n.Value), n.UpdatedBy, n.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "upsert node")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO node_writes (path, user_id, written_at) VALUES ($1, $2, $3);`,
			n.Path.String(), n.UpdatedBy, n.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, "record write")
		}
		return nil
	})
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "db error: put %s", n.Path), common.ErrUnavailable)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, path store.Path) (*models.Node, error) {
	n := &models.Node{Path: path}
	var value []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT value, updated_by, updated_at FROM nodes WHERE path = $1`,
		path.String()).Scan(&value, &n.UpdatedBy, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "db error: get %s", path), common.ErrUnavailable)
	}

	n.Value = json.RawMessage(value)
	return n, nil
}

func (r *PostgresRepository) Children(ctx context.Context, parent store.Path) ([]*models.Node, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, value, updated_by, updated_at FROM nodes WHERE parent = $1 ORDER BY name`,
		parent.String())
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "db error: list %s", parent), common.ErrUnavailable)
	}
	defer rows.Close()

	var out []*models.Node
	for rows.Next() {
		var (
			name  string
			value []byte
			n     models.Node
		)
		if err := rows.Scan(&name, &value, &n.UpdatedBy, &n.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan node")
		}
		n.Path = parent.Child(name)
		n.Value = json.RawMessage(value)
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "iterate nodes"), common.ErrUnavailable)
	}
	return out, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return errors.Mark(err, common.ErrUnavailable)
	}
	return nil
}
