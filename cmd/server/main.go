package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"safescribe/notes-api/internal/auth"
	"safescribe/notes-api/internal/config"
	"safescribe/notes-api/internal/crypto"
	"safescribe/notes-api/internal/db"
	revocationgrpc "safescribe/notes-api/internal/grpc"
	internalhttp "safescribe/notes-api/internal/http"
	"safescribe/notes-api/internal/identity"
	"safescribe/notes-api/internal/logging"
	"safescribe/notes-api/internal/repository"
	"safescribe/notes-api/internal/revocation"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.Environment)
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	registry, closeRegistry := openRegistry(ctx, cfg, logger)
	defer closeRegistry()
	revocation.StartSweeper(ctx, registry, cfg.SweepInterval, logger)

	hasher, err := crypto.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher init failed", zap.Error(err))
	}
	tokens, err := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TTL())
	if err != nil {
		logger.Fatal("token manager init failed", zap.Error(err))
	}
	identitySvc := identity.NewService(store, hasher, tokens)

	if cfg.AdminPassword != "" {
		created, err := identitySvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
		if err != nil {
			logger.Fatal("admin seed failed", zap.Error(err))
		}
		if created {
			logger.Info("admin account created", zap.String("username", cfg.AdminUsername))
		}
	}

	server := internalhttp.NewServer(cfg, store, identitySvc, tokens, registry, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpc.Server
	if cfg.ServiceAuthToken != "" {
		serviceAuthInterceptor, err := revocationgrpc.NewServiceAuthUnaryInterceptor(cfg.ServiceAuthToken, logger)
		if err != nil {
			logger.Fatal("grpc service auth init failed", zap.Error(err))
		}
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(serviceAuthInterceptor))
		revocationgrpc.RegisterRevocationServiceServer(grpcServer, revocationgrpc.NewRevocationServer(registry))

		go func() {
			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logger.Fatal("grpc listen error", zap.Error(err))
			}
			logger.Info("revocation grpc listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(listener); err != nil {
				logger.Fatal("grpc server error", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("notes api listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return repository.NewMemoryStore(), func() {}
	}
	if cfg.MigrateOnStart {
		applied, err := db.Migrate(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
		logger.Info("migrations checked", zap.Bool("applied", applied))
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}
	return repository.NewPGStore(pool), pool.Close
}

// openRegistry prefers a shared remote registry, then Redis, then process memory.
func openRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (revocation.Registry, func()) {
	if cfg.RevocationGRPCAddr != "" {
		conn, err := revocationgrpc.Dial(ctx, cfg.RevocationGRPCAddr, cfg.GRPCDialTimeout)
		if err != nil {
			logger.Fatal("revocation grpc dial failed", zap.Error(err))
		}
		logger.Info("using remote revocation registry", zap.String("addr", cfg.RevocationGRPCAddr))
		return revocationgrpc.NewRemoteRegistry(conn, cfg.RevocationGRPCToken), func() { _ = conn.Close() }
	}

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		registry := revocation.NewRedisRegistry(redisClient)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := registry.Ping(pingCtx); err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		logger.Info("using redis revocation registry", zap.String("addr", cfg.RedisAddr))
		return registry, func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		}
	}

	logger.Info("using in-memory revocation registry")
	return revocation.NewMemoryRegistry(), func() {}
}
