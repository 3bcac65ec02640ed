package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"path"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"safescribe/notes-api/internal/metrics"
)

const serviceTokenHeader = "x-service-token"

var ErrMissingServiceToken = errors.New("service auth token required")

// peerGuard admits API instances that share the revocation service token.
type peerGuard struct {
	token  []byte
	logger *zap.Logger
}

// NewServiceAuthUnaryInterceptor guards RevocationService methods. Calls to
// other services registered on the same server pass through untouched.
func NewServiceAuthUnaryInterceptor(expectedToken string, logger *zap.Logger) (grpc.UnaryServerInterceptor, error) {
	if expectedToken == "" {
		return nil, ErrMissingServiceToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := &peerGuard{token: []byte(expectedToken), logger: logger}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !isRevocationMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		if err := guard.admit(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}, nil
}

func (g *peerGuard) admit(ctx context.Context, fullMethod string) error {
	presented := serviceTokenFromMetadata(ctx)
	switch {
	case presented == "":
		g.refuse(ctx, fullMethod, "missing_service_token")
		return status.Error(codes.Unauthenticated, "missing_service_token")
	case subtle.ConstantTimeCompare([]byte(presented), g.token) != 1:
		g.refuse(ctx, fullMethod, "invalid_service_token")
		return status.Error(codes.PermissionDenied, "invalid_service_token")
	}
	return nil
}

func (g *peerGuard) refuse(ctx context.Context, fullMethod, reason string) {
	method := path.Base(fullMethod)
	metrics.ObservePeerRejection(method, reason)
	fields := []zap.Field{zap.String("method", method), zap.String("reason", reason)}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fields = append(fields, zap.String("peer", p.Addr.String()))
	}
	g.logger.Warn("revocation peer refused", fields...)
}

func isRevocationMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/"+RevocationServiceName+"/")
}

func serviceTokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(serviceTokenHeader) {
		if token := strings.TrimSpace(value); token != "" {
			return token
		}
	}
	return ""
}
