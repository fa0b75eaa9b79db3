package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/identity"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/memstore"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Render(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) admitted(messageID string) int {
	n := 0
	for _, ev := range r.all() {
		if m, ok := ev.(MessageAdmitted); ok && m.Message.ID == messageID {
			n++
		}
	}
	return n
}

func (r *recorder) admittedIDs(groupID string) []string {
	var ids []string
	for _, ev := range r.all() {
		if m, ok := ev.(MessageAdmitted); ok && m.GroupID == groupID {
			ids = append(ids, m.Message.ID)
		}
	}
	return ids
}

func countOf[E Event](r *recorder) int {
	n := 0
	for _, ev := range r.all() {
		if _, ok := ev.(E); ok {
			n++
		}
	}
	return n
}

func lastOf[E Event](r *recorder) (E, bool) {
	evs := r.all()
	for i := len(evs) - 1; i >= 0; i-- {
		if e, ok := evs[i].(E); ok {
			return e, true
		}
	}
	var zero E
	return zero, false
}

// deliveryCounter wraps a memstore and counts live deliveries per key.
// The count is bumped after the engine's handler has queued its task.
type deliveryCounter struct {
	*memstore.Store
	mu     sync.Mutex
	counts map[string]*atomic.Int64
}

func newDeliveryCounter(s *memstore.Store) *deliveryCounter {
	return &deliveryCounter{Store: s, counts: make(map[string]*atomic.Int64)}
}

func (d *deliveryCounter) counter(key string) *atomic.Int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counts[key]
	if !ok {
		c = &atomic.Int64{}
		d.counts[key] = c
	}
	return c
}

func (d *deliveryCounter) On(ctx context.Context, path store.Path, fn store.Handler) (store.Subscription, error) {
	return d.Store.On(ctx, path, func(n store.Node) {
		fn(n)
		d.counter(n.Key()).Add(1)
	})
}

func (d *deliveryCounter) deliveries(key string) int64 {
	return d.counter(key).Load()
}

// onceCounter wraps a memstore and counts completed one-shot fetches per
// path. The count is bumped after the callback has run.
type onceCounter struct {
	*memstore.Store
	mu     sync.Mutex
	counts map[string]int
}

func newOnceCounter(s *memstore.Store) *onceCounter {
	return &onceCounter{Store: s, counts: make(map[string]int)}
}

func (o *onceCounter) Once(ctx context.Context, path store.Path, fn func(store.Node, error)) {
	o.Store.Once(ctx, path, func(n store.Node, err error) {
		fn(n, err)
		o.mu.Lock()
		o.counts[path.String()]++
		o.mu.Unlock()
	})
}

func (o *onceCounter) fetches(path store.Path) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counts[path.String()]
}

type harness struct {
	e     *Engine
	rec   *recorder
	clock *fakeClock
}

func startEngine(t *testing.T, st store.Store, user string, att identity.Attestor) *harness {
	t.Helper()
	return startEngineWith(t, st, att, Config{UserID: user, EchoGrace: 2 * time.Second, RefetchDelay: 50 * time.Millisecond})
}

func startEngineWith(t *testing.T, st store.Store, att identity.Attestor, cfg Config) *harness {
	t.Helper()
	clock := newFakeClock()
	rec := &recorder{}
	cfg.Now = clock.Now
	e, err := New(st, att, rec, logging.Nop{}, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = e.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return &harness{e: e, rec: rec, clock: clock}
}

func wait[T any](t *testing.T, p *Pending[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	v, err := p.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "pending never completed")
	return v, err
}

func mustWait[T any](t *testing.T, p *Pending[T]) T {
	t.Helper()
	v, err := wait(t, p)
	require.NoError(t, err)
	return v
}

// barrier returns once the loop has processed everything queued so far.
func (h *harness) barrier(t *testing.T) {
	t.Helper()
	_, err := wait(t, h.e.ActiveGroup())
	require.NoError(t, err)
}

func seedGroup(t *testing.T, st store.Store, g Group) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), groupPath(g.ID), g))
}

func seedMessage(t *testing.T, st store.Store, m Message) {
	t.Helper()
	require.NoError(t, st.Put(context.Background(), messagePath(m.GroupID, m.ID), m))
}
