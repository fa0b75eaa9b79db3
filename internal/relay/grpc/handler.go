package grpc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/relay/models"
	"github.com/dmitrijs2005/groupsync/internal/relaypb"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// watchBuffer bounds how far a watch stream may lag before the hub
// subscriber blocks on it.
const watchBuffer = 64

func (s *GRPCServer) Put(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	userID := userIDFrom(ctx)

	if s.limiter != nil && !s.limiter.Allow(userID) {
		if s.metrics != nil {
			s.metrics.RateLimited.Inc()
		}
		return nil, status.Error(codes.ResourceExhausted, common.ErrRateLimited.Error())
	}

	n, err := relaypb.NodeFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if !n.Exists() {
		return nil, status.Error(codes.InvalidArgument, "node has no value")
	}

	if err := s.repo.Upsert(ctx, &models.Node{Path: n.Path, Value: n.Value, UpdatedBy: userID, UpdatedAt: s.now().UTC()}); err != nil {
		s.logger.Error(ctx, "Put failed", "path", n.Path.String(), "error", err)
		return nil, status.Error(codes.Unavailable, "write failed")
	}

	s.hub.Publish(n)
	if s.metrics != nil {
		s.metrics.Writes.Inc()
	}
	if s.fanout != nil {
		if err := s.fanout.Publish(ctx, n); err != nil {
			s.logger.Warn(ctx, "Fan-out publish failed", "path", n.Path.String(), "error", err)
			if s.metrics != nil {
				s.metrics.FanoutErrs.Inc()
			}
		}
	}

	s.logger.Debug(ctx, "Node written", "path", n.Path.String(), "user", userID)
	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	p, err := relaypb.PathFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	node := store.Node{Path: p}
	stored, err := s.repo.Get(ctx, p)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		s.logger.Error(ctx, "Get failed", "path", p.String(), "error", err)
		return nil, status.Error(codes.Unavailable, "read failed")
	default:
		node = stored.StoreNode()
	}

	out, err := relaypb.NodeToStruct(node)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) List(ctx context.Context, in *structpb.Struct) (*structpb.ListValue, error) {
	p, err := relaypb.PathFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	nodes, err := s.children(ctx, p)
	if err != nil {
		s.logger.Error(ctx, "List failed", "path", p.String(), "error", err)
		return nil, status.Error(codes.Unavailable, "read failed")
	}

	out, err := relaypb.NodesToList(nodes)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Watch sends the current children of the requested path, then every later
// write under it, until the client goes away.
func (s *GRPCServer) Watch(in *structpb.Struct, stream relaypb.Relay_WatchServer) error {
	ctx := stream.Context()

	p, err := relaypb.PathFromStruct(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	updates := make(chan store.Node, watchBuffer)
	sub, err := s.hub.Subscribe(p, func(n store.Node) {
		select {
		case updates <- n:
		case <-ctx.Done():
		case <-s.closing:
		}
	}, func() ([]store.Node, error) {
		return s.children(ctx, p)
	})
	if err != nil {
		s.logger.Error(ctx, "Watch failed", "path", p.String(), "error", err)
		return status.Error(codes.Unavailable, "read failed")
	}
	defer sub.Cancel()

	s.logger.Debug(ctx, "Watch started", "path", p.String(), "user", userIDFrom(ctx))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.closing:
			return status.Error(codes.Unavailable, "relay shutting down")
		case n := <-updates:
			msg, err := relaypb.NodeToStruct(n)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.repo.Ping(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, "repository unavailable")
	}
	return &emptypb.Empty{}, nil
}

// Deliver publishes a write made by another relay instance to local
// watchers.
func (s *GRPCServer) Deliver(n store.Node) {
	if s.metrics != nil {
		s.metrics.FanoutIn.Inc()
	}
	s.hub.Publish(n)
}

func (s *GRPCServer) children(ctx context.Context, p store.Path) ([]store.Node, error) {
	stored, err := s.repo.Children(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]store.Node, len(stored))
	for i, n := range stored {
		out[i] = n.StoreNode()
	}
	return out, nil
}
