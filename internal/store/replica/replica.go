// Package replica is a durable single-device store.Store kept in SQLite.
// It lets the client run offline with state that survives restarts; live
// notifications are local to the process.
package replica

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/dbx"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/notify"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db  *sql.DB
	q   dbx.DBTX
	hub *notify.Hub
	log logging.Logger
	now func() time.Time
}

// Open opens (creating if needed) the SQLite file at dsn and migrates it.
func Open(ctx context.Context, dsn string, log logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// modernc sqlite serialises writers; one connection also keeps
	// ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New migrates db and wraps it.
func New(ctx context.Context, db *sql.DB, log logging.Logger) (*Store, error) {
	sub, err := fsSub()
	if err != nil {
		return nil, err
	}
	if err := dbx.Migrate(ctx, db, sub, "sqlite3"); err != nil {
		return nil, err
	}
	return &Store{
		db:  db,
		q:   db,
		hub: notify.NewHub(),
		log: log.With("module", "replica"),
		now: time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, path store.Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	raw, err := store.Encode(value)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO nodes (path, parent, name, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		path.String(), path.Parent().String(), path.Key(), string(raw), s.now().UnixMilli())
	if err != nil {
		return errors.Wrapf(errors.Mark(err, store.ErrUnavailable), "replica put %s", path)
	}

	s.hub.Publish(store.Node{Path: append(store.Path(nil), path...), Value: raw})
	return nil
}

func (s *Store) Once(ctx context.Context, path store.Path, fn func(store.Node, error)) {
	go func() {
		n, err := s.get(ctx, path)
		fn(n, err)
	}()
}

func (s *Store) Map(ctx context.Context, path store.Path, fn store.Handler, done func(error)) {
	go func() {
		nodes, err := s.children(ctx, path)
		if err != nil {
			done(err)
			return
		}
		for _, n := range nodes {
			fn(n)
		}
		done(nil)
	}()
}

func (s *Store) On(ctx context.Context, path store.Path, fn store.Handler) (store.Subscription, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(path, fn, func() ([]store.Node, error) {
		return s.children(ctx, path)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Mark(err, store.ErrUnavailable)
	}
	return nil
}

func (s *Store) get(ctx context.Context, path store.Path) (store.Node, error) {
	var value string
	err := s.q.QueryRowContext(ctx, `SELECT value FROM nodes WHERE path = ?`, path.String()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Node{Path: path}, nil
	}
	if err != nil {
		return store.Node{Path: path}, errors.Wrapf(errors.Mark(err, store.ErrUnavailable), "replica get %s", path)
	}
	return store.Node{Path: path, Value: json.RawMessage(value)}, nil
}

func (s *Store) children(ctx context.Context, path store.Path) ([]store.Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT name, value FROM nodes WHERE parent = ? ORDER BY name`, path.String())
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, store.ErrUnavailable), "replica list %s", path)
	}
	defer rows.Close()

	var out []store.Node
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "scan node")
		}
		out = append(out, store.Node{Path: path.Child(key), Value: json.RawMessage(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate nodes")
	}
	return out, nil
}
