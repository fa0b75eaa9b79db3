// Package notify fans store writes out to live subscribers.
//
// Each subscriber owns a goroutine and an unbounded queue, so a slow
// handler never blocks a publisher and notifications for one subscriber are
// delivered in publish order. A new subscriber sees the snapshot returned
// by its loader first, then everything published after it registered.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/groupsync/internal/store"
)

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
	n    atomic.Int64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscriber]struct{})}
}

// Publish queues node for every subscriber of its parent path.
func (h *Hub) Publish(node store.Node) {
	key := node.Path.Parent().String()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[key] {
		s.push(node)
	}
}

// Subscribe registers fn for the children of parent. load, if non-nil,
// returns the current children; it runs after registration so no write
// published in between is lost. A node may therefore be delivered twice.
func (h *Hub) Subscribe(parent store.Path, fn store.Handler, load func() ([]store.Node, error)) (*Subscriber, error) {
	s := &Subscriber{
		hub:  h,
		key:  parent.String(),
		fn:   fn,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[s.key] == nil {
		h.subs[s.key] = make(map[*Subscriber]struct{})
	}
	h.subs[s.key][s] = struct{}{}
	h.mu.Unlock()
	h.n.Add(1)

	if load != nil {
		snapshot, err := load()
		if err != nil {
			s.Cancel()
			return nil, err
		}
		s.prepend(snapshot)
	}

	go s.run()
	return s, nil
}

// Len reports the number of live subscribers.
func (h *Hub) Len() int {
	return int(h.n.Load())
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.key]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.key)
	}
	h.n.Add(-1)
}

// Subscriber is a live registration. It implements store.Subscription.
type Subscriber struct {
	hub *Hub
	key string
	fn  store.Handler

	mu      sync.Mutex
	queue   []store.Node
	wake    chan struct{}
	stop    chan struct{}
	stopped atomic.Bool
	once    sync.Once
}

func (s *Subscriber) Cancel() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.hub.remove(s)
		close(s.stop)
	})
}

func (s *Subscriber) push(n store.Node) {
	s.mu.Lock()
	s.queue = append(s.queue, n)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) prepend(nodes []store.Node) {
	if len(nodes) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(append(make([]store.Node, 0, len(nodes)+len(s.queue)), nodes...), s.queue...)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscriber) run() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, n := range batch {
			if s.stopped.Load() {
				return
			}
			s.fn(n)
		}

		select {
		case <-s.stop:
			return
		case <-s.wake:
		}
	}
}
