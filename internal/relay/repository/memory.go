package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/relay/models"
	"github.com/dmitrijs2005/groupsync/internal/store"
)

// Memory keeps nodes in process memory, indexed by parent.
type Memory struct {
	mu    sync.RWMutex
	nodes map[string]map[string]*models.Node
}

func NewMemory() *Memory {
	return &Memory{nodes: make(map[string]map[string]*models.Node)}
}

func (m *Memory) Upsert(_ context.Context, n *models.Node) error {
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}
	cp := *n
	cp.Path = append(store.Path(nil), n.Path...)

	m.mu.Lock()
	defer m.mu.Unlock()
	parent := n.Path.Parent().String()
	if m.nodes[parent] == nil {
		m.nodes[parent] = make(map[string]*models.Node)
	}
	m.nodes[parent][n.Path.Key()] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, path store.Path) (*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[path.Parent().String()][path.Key()]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *Memory) Children(_ context.Context, parent store.Path) ([]*models.Node, error) {
	m.mu.RLock()
	children := m.nodes[parent.String()]
	out := make([]*models.Node, 0, len(children))
	for _, n := range children {
		cp := *n
		out = append(out, &cp)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Path.Key() < out[j].Path.Key() })
	return out, nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
