// Package repository persists relay nodes. Postgres is the durable
// backend, Memory serves single-instance development setups and Cached
// puts an LRU in front of either.
package repository

import (
	"context"

	"github.com/dmitrijs2005/groupsync/internal/relay/models"
	"github.com/dmitrijs2005/groupsync/internal/store"
)

type Repository interface {
	// Upsert stores n, replacing any node at the same path.
	Upsert(ctx context.Context, n *models.Node) error
	// Get returns common.ErrNotFound when nothing is stored at path.
	Get(ctx context.Context, path store.Path) (*models.Node, error)
	// Children returns the nodes directly under parent, ordered by key.
	Children(ctx context.Context, parent store.Path) ([]*models.Node, error)
	Ping(ctx context.Context) error
}
