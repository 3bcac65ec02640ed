package grpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"safescribe/notes-api/internal/revocation"
)

// RemoteRegistry is a revocation.Registry backed by a RevocationService peer.
type RemoteRegistry struct {
	conn         grpc.ClientConnInterface
	serviceToken string
}

func NewRemoteRegistry(conn grpc.ClientConnInterface, serviceToken string) *RemoteRegistry {
	return &RemoteRegistry{conn: conn, serviceToken: serviceToken}
}

// Dial connects to a RevocationService at addr, blocking until the peer is
// reachable or the timeout elapses.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*grpc.ClientConn, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return grpc.DialContext(ctx, addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
}

func (r *RemoteRegistry) outgoing(ctx context.Context) context.Context {
	if r.serviceToken == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, serviceTokenHeader, r.serviceToken)
}

func (r *RemoteRegistry) Add(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return revocation.ErrEmptyTokenID
	}
	fields := map[string]interface{}{fieldTokenID: tokenID}
	if !expiresAt.IsZero() {
		fields[fieldExpiresAt] = expiresAt.UTC().Format(time.RFC3339Nano)
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}
	if err := r.conn.Invoke(r.outgoing(ctx), revokeMethod, req, new(emptypb.Empty)); err != nil {
		return fmt.Errorf("remote revoke: %w", err)
	}
	return nil
}

func (r *RemoteRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	out := new(wrapperspb.BoolValue)
	if err := r.conn.Invoke(r.outgoing(ctx), isRevokedMethod, wrapperspb.String(tokenID), out); err != nil {
		return false, fmt.Errorf("remote is_revoked: %w", err)
	}
	return out.GetValue(), nil
}

func (r *RemoteRegistry) ListActive(ctx context.Context) ([]string, error) {
	out := new(structpb.ListValue)
	if err := r.conn.Invoke(r.outgoing(ctx), listActiveMethod, new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("remote list_active: %w", err)
	}
	tokens := make([]string, 0, len(out.GetValues()))
	for _, value := range out.GetValues() {
		tokens = append(tokens, value.GetStringValue())
	}
	return tokens, nil
}
