package grpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/relay/limiter"
	"github.com/dmitrijs2005/groupsync/internal/relay/metrics"
	"github.com/dmitrijs2005/groupsync/internal/relay/models"
	"github.com/dmitrijs2005/groupsync/internal/relaypb"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func withUser(userID string) context.Context {
	return context.WithValue(context.Background(), userIDKey, userID)
}

func nodeStruct(t *testing.T, value string, segments ...string) *structpb.Struct {
	t.Helper()
	s, err := relaypb.NodeToStruct(store.Node{Path: store.NewPath(segments...), Value: json.RawMessage(value)})
	require.NoError(t, err)
	return s
}

func pathStruct(t *testing.T, segments ...string) *structpb.Struct {
	t.Helper()
	s, err := relaypb.PathRequest(store.NewPath(segments...))
	require.NoError(t, err)
	return s
}

type recordingPublisher struct {
	nodes []store.Node
	err   error
}

func (r *recordingPublisher) Publish(_ context.Context, n store.Node) error {
	r.nodes = append(r.nodes, n)
	return r.err
}

func TestPutGetList(t *testing.T) {
	pub := &recordingPublisher{}
	m := metrics.New()
	s := newTestServer(WithFanout(pub), WithMetrics(m))
	ctx := withUser("alice")

	_, err := s.Put(ctx, nodeStruct(t, `{"text":"one"}`, "groups", "g1", "messages", "m1"))
	require.NoError(t, err)
	_, err = s.Put(ctx, nodeStruct(t, `{"text":"two"}`, "groups", "g1", "messages", "m2"))
	require.NoError(t, err)

	got, err := s.Get(ctx, pathStruct(t, "groups", "g1", "messages", "m1"))
	require.NoError(t, err)
	n, err := relaypb.NodeFromStruct(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"one"}`, string(n.Value))

	list, err := s.List(ctx, pathStruct(t, "groups", "g1", "messages"))
	require.NoError(t, err)
	nodes, err := relaypb.NodesFromList(list)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "m1", nodes[0].Key())
	assert.Equal(t, "m2", nodes[1].Key())

	require.Len(t, pub.nodes, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Writes))

	stored, err := s.repo.Get(ctx, store.NewPath("groups", "g1", "messages", "m2"))
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.UpdatedBy)
}

func TestGet_AbsentNode(t *testing.T) {
	s := newTestServer()

	got, err := s.Get(withUser("u"), pathStruct(t, "nothing", "here"))
	require.NoError(t, err)
	n, err := relaypb.NodeFromStruct(got)
	require.NoError(t, err)
	assert.False(t, n.Exists())
	assert.Equal(t, store.NewPath("nothing", "here"), n.Path)
}

func TestPut_InvalidArgument(t *testing.T) {
	s := newTestServer()
	ctx := withUser("u")

	_, err := s.Put(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	absent, err := relaypb.NodeToStruct(store.Node{Path: store.NewPath("a")})
	require.NoError(t, err)
	_, err = s.Put(ctx, absent)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Get(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = s.List(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPut_RateLimited(t *testing.T) {
	lim, err := limiter.New(0.001, 2, 16)
	require.NoError(t, err)
	m := metrics.New()
	s := newTestServer(WithLimiter(lim), WithMetrics(m))

	for i := 0; i < 2; i++ {
		_, err := s.Put(withUser("spammer"), nodeStruct(t, `1`, "a", "b"))
		require.NoError(t, err)
	}
	_, err = s.Put(withUser("spammer"), nodeStruct(t, `1`, "a", "b"))
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited))

	_, err = s.Put(withUser("someone-else"), nodeStruct(t, `1`, "a", "b"))
	assert.NoError(t, err)
}

type failingRepo struct{}

func (failingRepo) Upsert(context.Context, *models.Node) error { return errors.New("db down") }
func (failingRepo) Get(context.Context, store.Path) (*models.Node, error) {
	return nil, errors.New("db down")
}
func (failingRepo) Children(context.Context, store.Path) ([]*models.Node, error) {
	return nil, errors.New("db down")
}
func (failingRepo) Ping(context.Context) error { return errors.New("db down") }

func TestRepositoryFailuresMapToUnavailable(t *testing.T) {
	s := newTestServer()
	s.repo = failingRepo{}
	ctx := withUser("u")

	_, err := s.Put(ctx, nodeStruct(t, `1`, "a"))
	assert.Equal(t, codes.Unavailable, status.Code(err))
	_, err = s.Get(ctx, pathStruct(t, "a"))
	assert.Equal(t, codes.Unavailable, status.Code(err))
	_, err = s.List(ctx, pathStruct(t, "a"))
	assert.Equal(t, codes.Unavailable, status.Code(err))
	_, err = s.Ping(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestPut_FanoutFailureDoesNotFailWrite(t *testing.T) {
	m := metrics.New()
	s := newTestServer(WithFanout(&recordingPublisher{err: errors.New("redis down")}), WithMetrics(m))

	_, err := s.Put(withUser("u"), nodeStruct(t, `1`, "a"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FanoutErrs))
}

func TestDeliver_PublishesToWatchers(t *testing.T) {
	m := metrics.New()
	s := newTestServer(WithMetrics(m))

	got := make(chan store.Node, 1)
	sub, err := s.hub.Subscribe(store.NewPath("p"), func(n store.Node) { got <- n }, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	s.Deliver(store.Node{Path: store.NewPath("p", "x"), Value: json.RawMessage(`1`)})
	n := <-got
	assert.Equal(t, "x", n.Key())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FanoutIn))
}
