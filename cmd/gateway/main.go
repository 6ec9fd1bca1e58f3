// Package main is the botgateway entry point. It loads configuration (GRPC_* environment
// variables), builds the registry, connection pool, router, event relay and janitor, binds the
// RegistryService + Router gRPC server and the supplemental admin HTTP surface, and runs both
// until SIGINT/SIGTERM. Grounded on the teacher's cmd/main.go wiring order and graceful-shutdown
// shape (net.Listen, goroutine Serve, signal.Notify, GracefulStop with a timeout fallback).
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"botgateway/server"
	"botgateway/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func main() {
	logger := log.NewLogfmtLogger(os.Stderr)

	cfg, err := LoadConfig()
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}
	logger = level.NewFilter(logger, parseLogLevel(cfg.LogLevel))

	clock := service.NewTimeProvider(func() time.Time { return time.Now().UTC() })
	authn := service.NewStaticTokenAuthenticator(cfg.SecurityTokens)
	registry := service.NewServiceRegistry(authn, clock, logger)
	sessions := service.NewSessionManager()
	events := service.NewEventRelay(32)

	dial := func(ctx context.Context, address string) (*grpc.ClientConn, error) {
		return grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	pool := service.NewConnectionPool(dial, cfg.PoolMaxConnections, cfg.PoolConnectionTTL, cfg.PoolIdleTimeout, clock, logger)
	defer pool.Close()

	router := service.NewRouter(registry, sessions, pool, cfg.MaxConcurrentRequests, cfg.RetryAttempts, cfg.RequestTimeout, logger)
	registryServer := server.NewRegistryServer(authn, registry, sessions, events, logger)

	janitor := service.NewJanitor(registry, sessions, pool, clock, cfg.HeartbeatTimeout, cfg.PoolCleanupInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go janitor.Run(ctx)

	grpcServer := server.NewGRPCServer(cfg.ServerAddress, registryServer, router, logger)
	admin := server.NewAdminServer(registry, clock, logger)
	adminAddr, adminErr := adminAddress(cfg.ServerAddress)
	if adminErr != nil {
		level.Error(logger).Log("msg", "failed to derive admin address", "err", adminErr)
		os.Exit(1)
	}
	adminServer := server.NewAdminHTTPServer(adminAddr, admin, logger)

	level.Info(logger).Log("msg", "starting botgateway", "grpc_addr", cfg.ServerAddress, "admin_addr", adminAddr)

	errCh := make(chan error, 2)
	go func() { errCh <- grpcServer.Serve(ctx) }()
	go func() { errCh <- adminServer.Serve(ctx) }()

	var exitCode int
	remaining := 2
	select {
	case <-ctx.Done():
		level.Info(logger).Log("msg", "shutdown signal received")
	case err := <-errCh:
		// One server stopped on its own (e.g. a bind failure): shut the other one down as well.
		remaining--
		if err != nil {
			level.Error(logger).Log("msg", "server exited with error", "err", err)
			exitCode = 1
		}
		stop()
	}

	for i := 0; i < remaining; i++ {
		if err := <-errCh; err != nil {
			level.Error(logger).Log("msg", "server exited with error", "err", err)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}

// parseLogLevel maps the configured log level name to a go-kit/log/level filter option,
// defaulting to info for an unrecognized value.
func parseLogLevel(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

// adminAddress derives the admin HTTP listen address from the gRPC listen address: same host,
// port+1. This keeps the environment surface to the single GRPC_SERVER_ADDRESS variable named in
// SPEC_FULL.md §7 rather than inventing a second one.
func adminAddress(grpcAddr string) (string, error) {
	host, portStr, err := net.SplitHostPort(grpcAddr)
	if err != nil {
		return "", err
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port+1)), nil
}
