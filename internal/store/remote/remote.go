// Package remote is a store.Store backed by a relay server over gRPC.
package remote

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/relaypb"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultTimeout = 10 * time.Second
	minBackoff     = 250 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

type Store struct {
	conn    *grpc.ClientConn
	client  relaypb.RelayClient
	token   string
	timeout time.Duration
	log     logging.Logger

	dialOpts []grpc.DialOption
}

type Option func(*Store)

// WithTimeout bounds each unary call. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithDialOptions appends grpc dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(s *Store) { s.dialOpts = append(s.dialOpts, opts...) }
}

// Dial connects lazily to the relay at endpoint, authenticating with token.
func Dial(endpoint, token string, log logging.Logger, opts ...Option) (*Store, error) {
	s := &Store{token: token, timeout: defaultTimeout, log: log.With("module", "remote_store")}
	for _, o := range opts {
		o(s)
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.tokenUnaryInterceptor),
		grpc.WithStreamInterceptor(s.tokenStreamInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dial relay %s", endpoint)
	}
	s.conn = conn
	s.client = relaypb.NewRelayClient(conn)
	return s, nil
}

// NewWithClient wraps an existing relay client; the token is expected to be
// attached by the caller's connection.
func NewWithClient(client relaypb.RelayClient, log logging.Logger, opts ...Option) *Store {
	s := &Store{client: client, timeout: defaultTimeout, log: log.With("module", "remote_store")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func withToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AuthorizationHeader, common.BearerPrefix+token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *Store) tokenUnaryInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withToken(ctx, s.token), method, req, reply, cc, opts...)
}

func (s *Store) tokenStreamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withToken(ctx, s.token), desc, cc, method, opts...)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return errors.Wrap(store.ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return errors.Wrap(store.ErrUnavailable, st.Message())
	case codes.ResourceExhausted:
		return errors.Wrap(store.ErrRateLimited, st.Message())
	case codes.InvalidArgument:
		return errors.Wrap(store.ErrInvalidPath, st.Message())
	case codes.Canceled:
		return errors.Wrap(context.Canceled, st.Message())
	default:
		return errors.Wrap(err, "rpc error")
	}
}

func (s *Store) Put(ctx context.Context, path store.Path, value any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	raw, err := store.Encode(value)
	if err != nil {
		return err
	}
	req, err := relaypb.NodeToStruct(store.Node{Path: path, Value: raw})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.client.Put(ctx, req); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *Store) Once(ctx context.Context, path store.Path, fn func(store.Node, error)) {
	go func() {
		n, err := s.get(ctx, path)
		fn(n, err)
	}()
}

func (s *Store) get(ctx context.Context, path store.Path) (store.Node, error) {
	req, err := relaypb.PathRequest(path)
	if err != nil {
		return store.Node{Path: path}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Get(ctx, req)
	if err != nil {
		return store.Node{Path: path}, mapError(err)
	}
	return relaypb.NodeFromStruct(resp)
}

func (s *Store) Map(ctx context.Context, path store.Path, fn store.Handler, done func(error)) {
	go func() {
		req, err := relaypb.PathRequest(path)
		if err != nil {
			done(err)
			return
		}
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.List(cctx, req)
		if err != nil {
			done(mapError(err))
			return
		}
		nodes, err := relaypb.NodesFromList(resp)
		if err != nil {
			done(err)
			return
		}
		for _, n := range nodes {
			fn(n)
		}
		done(nil)
	}()
}

// On opens a Watch stream. A broken stream is reopened with backoff; the
// relay then resends the current children, so handlers see redeliveries.
func (s *Store) On(ctx context.Context, path store.Path, fn store.Handler) (store.Subscription, error) {
	req, err := relaypb.PathRequest(path)
	if err != nil {
		return nil, err
	}
	wctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}
	go s.watch(wctx, path, req, fn, sub)
	return sub, nil
}

func (s *Store) watch(ctx context.Context, path store.Path, req *structpb.Struct, fn store.Handler, sub *subscription) {
	defer close(sub.done)
	log := s.log.With("path", path.String())
	backoff := minBackoff

	for {
		err := s.watchOnce(ctx, req, fn, sub, func() { backoff = minBackoff })
		if ctx.Err() != nil || sub.stopped.Load() {
			return
		}
		log.Warn(ctx, "watch stream broken, reconnecting", "error", err, "backoff", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (s *Store) watchOnce(ctx context.Context, req *structpb.Struct, fn store.Handler, sub *subscription, connected func()) error {
	stream, err := s.client.Watch(ctx, req)
	if err != nil {
		return mapError(err)
	}
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return errors.Wrap(store.ErrUnavailable, "watch closed by relay")
		}
		if err != nil {
			return mapError(err)
		}
		connected()

		n, err := relaypb.NodeFromStruct(msg)
		if err != nil {
			s.log.Warn(ctx, "dropping malformed node", "error", err)
			continue
		}
		if sub.stopped.Load() {
			return nil
		}
		fn(n)
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.client.Ping(ctx, &emptypb.Empty{})
	return mapError(err)
}

type subscription struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
	})
}
