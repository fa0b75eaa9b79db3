package notify

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	keys []string
}

func (r *recorder) handle(n store.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, n.Key())
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func node(parts ...string) store.Node {
	return store.Node{Path: store.NewPath(parts...), Value: json.RawMessage(`{}`)}
}

func TestHub_SnapshotThenLiveInOrder(t *testing.T) {
	h := NewHub()
	rec := &recorder{}
	parent := store.NewPath("groups", "g1", "messages")

	sub, err := h.Subscribe(parent, rec.handle, func() ([]store.Node, error) {
		return []store.Node{node("groups", "g1", "messages", "a"), node("groups", "g1", "messages", "b")}, nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	h.Publish(node("groups", "g1", "messages", "c"))
	h.Publish(node("groups", "g2", "messages", "x"))
	h.Publish(node("groups", "g1", "messages", "d"))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c", "d"}, rec.snapshot())
}

func TestHub_PublishDuringLoadIsNotLost(t *testing.T) {
	h := NewHub()
	rec := &recorder{}
	parent := store.NewPath("p")

	sub, err := h.Subscribe(parent, rec.handle, func() ([]store.Node, error) {
		h.Publish(node("p", "late"))
		return []store.Node{node("p", "early")}, nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, rec.snapshot())
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	h := NewHub()
	rec := &recorder{}
	parent := store.NewPath("p")

	sub, err := h.Subscribe(parent, rec.handle, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, h.Len())

	h.Publish(node("p", "x"))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestHub_LoadErrorUnregisters(t *testing.T) {
	h := NewHub()
	boom := errors.New("boom")

	sub, err := h.Subscribe(store.NewPath("p"), func(store.Node) {}, func() ([]store.Node, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, sub)
	assert.Equal(t, 0, h.Len())
}

func TestHub_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	h := NewHub()
	release := make(chan struct{})
	sub, err := h.Subscribe(store.NewPath("p"), func(store.Node) { <-release }, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(node("p", "x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked by slow subscriber")
	}
	close(release)
}
