package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	Text string `json:"text"`
}

func onceSync(t *testing.T, s *Store, p store.Path) store.Node {
	t.Helper()
	ch := make(chan store.Node, 1)
	s.Once(context.Background(), p, func(n store.Node, err error) {
		require.NoError(t, err)
		ch <- n
	})
	select {
	case n := <-ch:
		return n
	case <-time.After(time.Second):
		t.Fatal("Once never delivered")
		return store.Node{}
	}
}

func TestStore_PutOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := store.NewPath("groups", "g1")

	assert.False(t, onceSync(t, s, p).Exists(), "absent path is delivered as absent")

	require.NoError(t, s.Put(ctx, p, rec{Text: "hello"}))
	var got rec
	require.NoError(t, onceSync(t, s, p).Decode(&got))
	assert.Equal(t, "hello", got.Text)

	require.NoError(t, s.Put(ctx, p, rec{Text: "again"}))
	require.NoError(t, onceSync(t, s, p).Decode(&got))
	assert.Equal(t, "again", got.Text, "last write wins")
}

func TestStore_MapEnumeratesChildrenOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	msgs := store.NewPath("groups", "g1", "messages")

	require.NoError(t, s.Put(ctx, msgs.Child("b"), rec{"2"}))
	require.NoError(t, s.Put(ctx, msgs.Child("a"), rec{"1"}))
	require.NoError(t, s.Put(ctx, store.NewPath("groups", "g1"), rec{"group"}))

	var keys []string
	done := make(chan error, 1)
	s.Map(ctx, msgs, func(n store.Node) { keys = append(keys, n.Key()) }, func(err error) { done <- err })

	require.NoError(t, <-done)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestStore_OnDeliversExistingThenLiveIncludingEcho(t *testing.T) {
	s := New()
	ctx := context.Background()
	msgs := store.NewPath("groups", "g1", "messages")
	require.NoError(t, s.Put(ctx, msgs.Child("m1"), rec{"old"}))

	var mu sync.Mutex
	var keys []string
	sub, err := s.On(ctx, msgs, func(n store.Node) {
		mu.Lock()
		keys = append(keys, n.Key())
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, s.Put(ctx, msgs.Child("m2"), rec{"new"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2"}, keys)
	assert.Equal(t, 1, s.Watchers())
}

func TestStore_PutHookFailsWrite(t *testing.T) {
	boom := errors.Wrap(store.ErrUnavailable, "offline")
	s := New(WithPutHook(func(p store.Path) error {
		if p.Key() == "bad" {
			return boom
		}
		return nil
	}))

	err := s.Put(context.Background(), store.NewPath("x", "bad"), rec{})
	assert.True(t, errors.Is(err, store.ErrUnavailable))
	_, ok := s.Get(store.NewPath("x", "bad"))
	assert.False(t, ok)
}

func TestStore_InvalidPath(t *testing.T) {
	s := New()
	assert.Error(t, s.Put(context.Background(), store.Path{}, rec{}))
	_, err := s.On(context.Background(), store.NewPath(""), func(store.Node) {})
	assert.Error(t, err)
}

func TestStore_OnceHonoursContextWithLatency(t *testing.T) {
	s := New(WithLatency(200 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error, 1)
	s.Once(ctx, store.NewPath("a"), func(_ store.Node, err error) { errCh <- err })
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
