// Package server assembles the public gRPC server (RegistryService + Router fallback) and the
// supplemental admin HTTP surface. Grounded on the teacher's cmd/main.go server-assembly shape:
// grpc.ChainStreamInterceptor for error mapping, grpc.UnknownServiceHandler for the catch-all, and
// a goroutine-driven GracefulStop with a timeout fallback to Stop.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"botgateway/helpers"
	"botgateway/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
)

// gracefulStopTimeout bounds how long Serve waits for in-flight RPCs to drain before forcing Stop.
const gracefulStopTimeout = 5 * time.Second

// GRPCServer owns the gRPC listener and server, built from a RegistryServer and Router
// (service.Router implements grpc.UnknownServiceHandler's signature via its Handle method).
type GRPCServer struct {
	addr   string
	srv    *grpc.Server
	logger log.Logger
}

// NewGRPCServer wires ServiceDesc alongside grpc.UnknownServiceHandler(router.Handle) and
// the error-mapping stream interceptor. Panics on a blank address.
func NewGRPCServer(addr string, registryServer *RegistryServer, router *service.Router, logger log.Logger) *GRPCServer {
	logger = log.With(logger, "component", "grpc_server")
	srv := grpc.NewServer(
		grpc.ChainStreamInterceptor(service.GatewayErrorToGRPCStreamInterceptor(logger)),
		grpc.UnknownServiceHandler(router.Handle),
	)
	srv.RegisterService(&ServiceDesc, registryServer)
	return &GRPCServer{
		addr:   helpers.StrPanic(addr, "server.server.go: addr is required"),
		srv:    srv,
		logger: logger,
	}
}

// Serve listens on s.addr and blocks serving RPCs until ctx is cancelled, then performs
// GracefulStop with a timeout fallback to Stop.
func (s *GRPCServer) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	defer lis.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.srv.Serve(lis)
	}()

	level.Info(s.logger).Log("msg", "grpc server listening", "addr", s.addr)
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	level.Info(s.logger).Log("msg", "grpc server shutting down")
	stopped := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(gracefulStopTimeout):
		level.Warn(s.logger).Log("msg", "graceful stop timed out, forcing stop")
		s.srv.Stop()
	}
	return nil
}

// AdminHTTPServer owns the admin HTTP listener, run independently of the gRPC server.
type AdminHTTPServer struct {
	addr   string
	admin  *AdminServer
	logger log.Logger
}

// NewAdminHTTPServer creates an AdminHTTPServer bound to addr.
func NewAdminHTTPServer(addr string, admin *AdminServer, logger log.Logger) *AdminHTTPServer {
	return &AdminHTTPServer{
		addr:   helpers.StrPanic(addr, "server.server.go: admin addr is required"),
		admin:  admin,
		logger: log.With(logger, "component", "admin_http_server"),
	}
}

// Serve listens on s.addr and blocks serving HTTP requests until ctx is cancelled.
func (s *AdminHTTPServer) Serve(ctx context.Context) error {
	httpSrv := &http.Server{Addr: s.addr, Handler: s.admin.Handler()}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.ListenAndServe()
	}()

	level.Info(s.logger).Log("msg", "admin http server listening", "addr", s.addr)
	select {
	case err := <-serveErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulStopTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
