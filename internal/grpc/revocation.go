package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"safescribe/notes-api/internal/revocation"
)

const (
	RevocationServiceName = "safescribe.revocation.v1.RevocationService"

	revokeMethod     = "/" + RevocationServiceName + "/Revoke"
	isRevokedMethod  = "/" + RevocationServiceName + "/IsRevoked"
	listActiveMethod = "/" + RevocationServiceName + "/ListActive"

	fieldTokenID   = "token_id"
	fieldExpiresAt = "expires_at"
)

// RevocationServiceServer shares one revocation registry between API instances.
// Messages are protobuf well-known types: Revoke takes a Struct with
// token_id and an optional RFC 3339 expires_at.
type RevocationServiceServer interface {
	Revoke(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	IsRevoked(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	ListActive(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

func RegisterRevocationServiceServer(s grpc.ServiceRegistrar, srv RevocationServiceServer) {
	s.RegisterService(&revocationServiceDesc, srv)
}

var revocationServiceDesc = grpc.ServiceDesc{
	ServiceName: RevocationServiceName,
	HandlerType: (*RevocationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Revoke", Handler: revokeHandler},
		{MethodName: "IsRevoked", Handler: isRevokedHandler},
		{MethodName: "ListActive", Handler: listActiveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "safescribe/revocation/v1/revocation.proto",
}

func revokeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RevocationServiceServer).Revoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: revokeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RevocationServiceServer).Revoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func isRevokedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RevocationServiceServer).IsRevoked(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: isRevokedMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RevocationServiceServer).IsRevoked(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listActiveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RevocationServiceServer).ListActive(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listActiveMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RevocationServiceServer).ListActive(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type RevocationServer struct {
	registry revocation.Registry
}

func NewRevocationServer(registry revocation.Registry) *RevocationServer {
	return &RevocationServer{registry: registry}
}

func (s *RevocationServer) Revoke(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	fields := req.GetFields()
	tokenID := fields[fieldTokenID].GetStringValue()
	if tokenID == "" {
		return nil, status.Error(codes.InvalidArgument, "token_id required")
	}
	var expiresAt time.Time
	if raw := fields[fieldExpiresAt].GetStringValue(); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "expires_at must be RFC 3339")
		}
		expiresAt = parsed
	}
	if err := s.registry.Add(ctx, tokenID, expiresAt); err != nil {
		if errors.Is(err, revocation.ErrEmptyTokenID) {
			return nil, status.Error(codes.InvalidArgument, "token_id required")
		}
		return nil, status.Error(codes.Unavailable, "registry unavailable")
	}
	return &emptypb.Empty{}, nil
}

func (s *RevocationServer) IsRevoked(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	revoked, err := s.registry.IsRevoked(ctx, req.GetValue())
	if err != nil {
		return nil, status.Error(codes.Unavailable, "registry unavailable")
	}
	return wrapperspb.Bool(revoked), nil
}

func (s *RevocationServer) ListActive(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	tokens, err := s.registry.ListActive(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, "registry unavailable")
	}
	values := make([]*structpb.Value, 0, len(tokens))
	for _, id := range tokens {
		values = append(values, structpb.NewStringValue(id))
	}
	return &structpb.ListValue{Values: values}, nil
}
