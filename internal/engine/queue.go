package engine

import "sync"

type scope uint8

const (
	scopeNone scope = iota
	scopeMessages
	scopeGroups
)

// task is one unit of loop work. Tasks in the messages or groups scope carry
// the generation current when their subscription or fetch was issued and
// are dropped if that generation has moved on.
type task struct {
	scope scope
	gen   uint64
	fn    func()
	abort func(error)
}

// queue is an unbounded FIFO. Producers never block, so store callbacks
// cannot deadlock against the loop.
type queue struct {
	mu     sync.Mutex
	items  []task
	closed bool
	wake   chan struct{}
}

func newQueue() *queue {
	return &queue{wake: make(chan struct{}, 1)}
}

func (q *queue) push(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) drain() []task {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// close rejects further pushes and returns what was left.
func (q *queue) close() []task {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}
