// Package grpc serves the relay tree over gRPC.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/logging"
	"github.com/dmitrijs2005/groupsync/internal/relay/limiter"
	"github.com/dmitrijs2005/groupsync/internal/relay/metrics"
	"github.com/dmitrijs2005/groupsync/internal/relay/repository"
	"github.com/dmitrijs2005/groupsync/internal/relaypb"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/dmitrijs2005/groupsync/internal/store/notify"
	"google.golang.org/grpc"
)

// Publisher announces accepted writes to other relay instances.
type Publisher interface {
	Publish(ctx context.Context, n store.Node) error
}

type GRPCServer struct {
	address   string
	repo      repository.Repository
	hub       *notify.Hub
	fanout    Publisher
	limiter   *limiter.PerUser
	metrics   *metrics.Metrics
	logger    logging.Logger
	jwtSecret []byte
	now       func() time.Time

	// closing ends open watch streams so GracefulStop does not wait on them.
	closing   chan struct{}
	closeOnce sync.Once
}

type Option func(*GRPCServer)

// WithFanout announces every accepted write through p.
func WithFanout(p Publisher) Option {
	return func(s *GRPCServer) { s.fanout = p }
}

// WithLimiter rejects writes beyond the per-user rate.
func WithLimiter(l *limiter.PerUser) Option {
	return func(s *GRPCServer) { s.limiter = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GRPCServer) { s.metrics = m }
}

func NewGRPCServer(a string, l logging.Logger, repo repository.Repository, hub *notify.Hub, secretKey string, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address:   a,
		repo:      repo,
		hub:       hub,
		logger:    l.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
		now:       time.Now,
		closing:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	relaypb.RegisterRelayServer(srv, s)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping gRPC server...")
			s.closeOnce.Do(func() { close(s.closing) })
			srv.GracefulStop()
		case <-stopped:
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
