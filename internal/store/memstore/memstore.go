// Package memstore is an in-process store.Store. It backs the tests and the
// single-process demo mode of the client, and can inject latency and write
// failures to mimic a remote peer.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/notify"
)

type Store struct {
	mu       sync.RWMutex
	nodes    map[string]store.Node
	children map[string]map[string]struct{}
	hub      *notify.Hub

	latency time.Duration
	putHook func(store.Path) error
}

type Option func(*Store)

// WithLatency delays every callback by d.
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

// WithPutHook lets tests fail selected writes; a non-nil error from hook is
// returned by Put and the write is dropped.
func WithPutHook(hook func(store.Path) error) Option {
	return func(s *Store) { s.putHook = hook }
}

func New(opts ...Option) *Store {
	s := &Store{
		nodes:    make(map[string]store.Node),
		children: make(map[string]map[string]struct{}),
		hub:      notify.NewHub(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Put(ctx context.Context, path store.Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.putHook != nil {
		if err := s.putHook(path); err != nil {
			return err
		}
	}
	raw, err := store.Encode(value)
	if err != nil {
		return err
	}

	n := store.Node{Path: append(store.Path(nil), path...), Value: raw}
	key := path.String()
	parent := path.Parent().String()

	s.mu.Lock()
	s.nodes[key] = n
	if s.children[parent] == nil {
		s.children[parent] = make(map[string]struct{})
	}
	s.children[parent][key] = struct{}{}
	s.mu.Unlock()

	if s.latency > 0 {
		time.AfterFunc(s.latency, func() { s.hub.Publish(n) })
	} else {
		s.hub.Publish(n)
	}
	return nil
}

func (s *Store) Once(ctx context.Context, path store.Path, fn func(store.Node, error)) {
	go func() {
		if err := s.wait(ctx); err != nil {
			fn(store.Node{Path: path}, err)
			return
		}
		n, _ := s.Get(path)
		fn(n, nil)
	}()
}

func (s *Store) Map(ctx context.Context, path store.Path, fn store.Handler, done func(error)) {
	go func() {
		if err := s.wait(ctx); err != nil {
			done(err)
			return
		}
		for _, n := range s.Children(path) {
			fn(n)
		}
		done(nil)
	}()
}

func (s *Store) On(_ context.Context, path store.Path, fn store.Handler) (store.Subscription, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	load := func() ([]store.Node, error) {
		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		return s.Children(path), nil
	}
	return s.hub.Subscribe(path, fn, load)
}

// Get returns the node at path synchronously.
func (s *Store) Get(path store.Path) (store.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[path.String()]
	if !ok {
		return store.Node{Path: path}, false
	}
	return n, true
}

// Children returns the current children of path ordered by key.
func (s *Store) Children(path store.Path) []store.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.children[path.String()]
	out := make([]store.Node, 0, len(set))
	for key := range set {
		out = append(out, s.nodes[key])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Watchers reports the number of live subscriptions.
func (s *Store) Watchers() int {
	return s.hub.Len()
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "memstore")
	case <-t.C:
		return nil
	}
}
