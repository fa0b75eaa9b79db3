package repository

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/relay/models"
	"github.com/dmitrijs2005/groupsync/internal/store"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached serves Get and Children from LRU caches and writes through to the
// wrapped repository. A write refreshes its own entry and drops the cached
// listing of its parent. Listings read while a write was in flight are not
// cached.
type Cached struct {
	next     Repository
	nodes    *lru.Cache[string, models.Node]
	children *lru.Cache[string, []models.Node]

	gen    atomic.Uint64
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCached(next Repository, size int) (*Cached, error) {
	nodes, err := lru.New[string, models.Node](size)
	if err != nil {
		return nil, errors.Wrap(err, "node cache")
	}
	children, err := lru.New[string, []models.Node](size)
	if err != nil {
		return nil, errors.Wrap(err, "children cache")
	}
	return &Cached{next: next, nodes: nodes, children: children}, nil
}

func (c *Cached) Upsert(ctx context.Context, n *models.Node) error {
	c.gen.Add(1)
	if err := c.next.Upsert(ctx, n); err != nil {
		return err
	}
	c.gen.Add(1)
	cp := *n
	cp.Path = append(store.Path(nil), n.Path...)
	c.nodes.Add(n.Path.String(), cp)
	c.children.Remove(n.Path.Parent().String())
	return nil
}

func (c *Cached) Get(ctx context.Context, path store.Path) (*models.Node, error) {
	if n, ok := c.nodes.Get(path.String()); ok {
		c.hits.Add(1)
		return &n, nil
	}
	c.misses.Add(1)

	n, err := c.next.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	c.nodes.Add(path.String(), *n)
	return n, nil
}

func (c *Cached) Children(ctx context.Context, parent store.Path) ([]*models.Node, error) {
	key := parent.String()
	if list, ok := c.children.Get(key); ok {
		c.hits.Add(1)
		return pointers(list), nil
	}
	c.misses.Add(1)

	gen := c.gen.Load()
	out, err := c.next.Children(ctx, parent)
	if err != nil {
		return nil, err
	}
	list := make([]models.Node, len(out))
	for i, n := range out {
		list[i] = *n
	}
	if c.gen.Load() == gen {
		c.children.Add(key, list)
	}
	return pointers(list), nil
}

// Forget drops cached state for path, e.g. after another relay instance
// wrote it.
func (c *Cached) Forget(path store.Path) {
	c.gen.Add(1)
	c.nodes.Remove(path.String())
	c.children.Remove(path.Parent().String())
}

func (c *Cached) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// Stats reports cache hits and misses since creation.
func (c *Cached) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func pointers(list []models.Node) []*models.Node {
	out := make([]*models.Node, len(list))
	for i := range list {
		n := list[i]
		out[i] = &n
	}
	return out
}
