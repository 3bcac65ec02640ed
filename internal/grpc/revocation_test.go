package grpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"safescribe/notes-api/internal/revocation"
)

const testServiceToken = "service-token-for-tests"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func startRevocationServer(t *testing.T, registry revocation.Registry) *grpc.ClientConn {
	t.Helper()
	listener := bufconn.Listen(1024 * 1024)
	interceptor, err := NewServiceAuthUnaryInterceptor(testServiceToken, nil)
	require.NoError(t, err)
	server := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	RegisterRevocationServiceServer(server, NewRevocationServer(registry))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRemoteRegistryRoundTrip(t *testing.T) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	backing := revocation.NewMemoryRegistryWithClock(clock.Now)
	remote := NewRemoteRegistry(startRevocationServer(t, backing), testServiceToken)
	ctx := context.Background()

	require.NoError(t, remote.Add(ctx, "jti-b", clock.Now().Add(time.Hour)))
	require.NoError(t, remote.Add(ctx, "jti-a", clock.Now().Add(10*time.Minute)))
	require.NoError(t, remote.Add(ctx, "jti-default", time.Time{}))

	revoked, err := remote.IsRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = remote.IsRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	active, err := remote.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jti-a", "jti-b", "jti-default"}, active)

	clock.Advance(30 * time.Minute)
	revoked, err = remote.IsRevoked(ctx, "jti-a")
	require.NoError(t, err)
	assert.False(t, revoked)

	active, err = remote.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jti-b", "jti-default"}, active)
}

func TestRemoteRegistryPreservesExpiry(t *testing.T) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	backing := revocation.NewMemoryRegistryWithClock(clock.Now)
	remote := NewRemoteRegistry(startRevocationServer(t, backing), testServiceToken)
	ctx := context.Background()

	expiresAt := clock.Now().Add(5 * time.Minute)
	require.NoError(t, remote.Add(ctx, "jti-1", expiresAt))

	clock.Advance(5 * time.Minute)
	revoked, err := backing.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked, "entry must remain revoked at its exact expiry")

	clock.Advance(time.Millisecond)
	revoked, err = backing.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRemoteRegistryRequiresServiceToken(t *testing.T) {
	conn := startRevocationServer(t, revocation.NewMemoryRegistry())
	ctx := context.Background()

	_, err := NewRemoteRegistry(conn, "").IsRevoked(ctx, "jti-1")
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(unwrap(err)))

	_, err = NewRemoteRegistry(conn, "wrong-token").ListActive(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(unwrap(err)))
}

func TestRevokeValidatesArguments(t *testing.T) {
	remote := NewRemoteRegistry(startRevocationServer(t, revocation.NewMemoryRegistry()), testServiceToken)
	require.ErrorIs(t, remote.Add(context.Background(), "", time.Now()), revocation.ErrEmptyTokenID)

	server := NewRevocationServer(revocation.NewMemoryRegistry())
	_, err := server.Revoke(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestNewServiceAuthUnaryInterceptorRequiresToken(t *testing.T) {
	_, err := NewServiceAuthUnaryInterceptor("", nil)
	assert.ErrorIs(t, err, ErrMissingServiceToken)
}

func TestServiceAuthGuardsOnlyRevocationMethods(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	interceptor, err := NewServiceAuthUnaryInterceptor(testServiceToken, zap.New(core))
	require.NoError(t, err)

	called := 0
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		called++
		return "ok", nil
	}

	out, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, called)

	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: isRevokedMethod}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, 1, called)

	wrong := metadata.NewIncomingContext(context.Background(), metadata.Pairs(serviceTokenHeader, "nope"))
	_, err = interceptor(wrong, nil, &grpc.UnaryServerInfo{FullMethod: revokeMethod}, handler)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	good := metadata.NewIncomingContext(context.Background(), metadata.Pairs(serviceTokenHeader, testServiceToken))
	_, err = interceptor(good, nil, &grpc.UnaryServerInfo{FullMethod: listActiveMethod}, handler)
	require.NoError(t, err)
	assert.Equal(t, 2, called)

	entries := logs.FilterMessage("revocation peer refused").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "IsRevoked", entries[0].ContextMap()["method"])
	assert.Equal(t, "missing_service_token", entries[0].ContextMap()["reason"])
	assert.Equal(t, "Revoke", entries[1].ContextMap()["method"])
	assert.Equal(t, "invalid_service_token", entries[1].ContextMap()["reason"])
}

func TestDialFailsWhenPeerUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	start := time.Now()
	_, err = Dial(context.Background(), addr, 200*time.Millisecond)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func unwrap(err error) error {
	for {
		next, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := next.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}
