package models

import (
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/store"
)

// Node is a stored tree record together with who wrote it last.
type Node struct {
	Path      store.Path
	Value     json.RawMessage
	UpdatedBy string
	UpdatedAt time.Time
}

// StoreNode drops the bookkeeping fields.
func (n *Node) StoreNode() store.Node {
	return store.Node{Path: n.Path, Value: n.Value}
}
