package grpc

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/relay/auth"
	"github.com/dmitrijs2005/groupsync/internal/relaypb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// publicMethods skip authentication.
var publicMethods = map[string]bool{
	relaypb.PingMethod: true,
}

func userIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

func (s *GRPCServer) authenticate(ctx context.Context) (context.Context, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeader); len(values) > 0 {
			header = values[0]
		}
	}
	token, ok := strings.CutPrefix(header, common.BearerPrefix)
	if !ok || token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	return context.WithValue(ctx, userIDKey, userID), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}
	ctx, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authedStream) Context() context.Context {
	return a.ctx
}

func (s *GRPCServer) streamAccessTokenInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if publicMethods[info.FullMethod] {
		return handler(srv, ss)
	}
	ctx, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
}

func (s *GRPCServer) metricsInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if s.metrics == nil {
		return handler(ctx, req)
	}
	start := time.Now()
	resp, err := handler(ctx, req)
	s.metrics.ObserveRequest(path.Base(info.FullMethod), status.Code(err).String(), time.Since(start))
	return resp, err
}
