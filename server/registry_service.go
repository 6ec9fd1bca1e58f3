// Package server assembles the public gRPC surface: the hand-built RegistryService (Register,
// EstablishConnection) and the fallback router for every other RPC (SPEC_FULL.md §7). No .pb.go
// exists for this protocol in the reference corpus, so the ServiceDesc below is written by hand
// the way mwitkow-grpc-proxy's codec-driven services are, instead of generated by protoc-gen-go-grpc.
package server

import (
	"context"
	"fmt"

	"botgateway/helpers"
	"botgateway/interfaces"
	"botgateway/service"
	"botgateway/wire"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
)

// serviceName is the fully-qualified RegistryService name methods are registered under.
const serviceName = "botgateway.RegistryService"

// RegistryServer implements the RegistryService RPCs: Register (unary, DirectAddress) and
// EstablishConnection (bidi stream, ReverseSession). Grounded on original_source's
// MyRegistryService as the handler surface, adapted onto a hand-built grpc.ServiceDesc.
type RegistryServer struct {
	authn    interfaces.Authenticator
	registry interfaces.Registry
	sessions interfaces.SessionManager
	events   interfaces.EventRelay
	logger   log.Logger
}

// NewRegistryServer creates a RegistryServer. Panics on nil dependencies.
func NewRegistryServer(
	authn interfaces.Authenticator,
	registry interfaces.Registry,
	sessions interfaces.SessionManager,
	events interfaces.EventRelay,
	logger log.Logger,
) *RegistryServer {
	return &RegistryServer{
		authn:    helpers.NilPanic(authn, "server.registry_service.go: authn is required"),
		registry: helpers.NilPanic(registry, "server.registry_service.go: registry is required"),
		sessions: helpers.NilPanic(sessions, "server.registry_service.go: sessions is required"),
		events:   helpers.NilPanic(events, "server.registry_service.go: events is required"),
		logger:   log.With(helpers.NilPanic(logger, "server.registry_service.go: logger is required"), "component", "registry_service"),
	}
}

// register implements the unary Register RPC: registers or replaces a DirectAddress instance.
func (s *RegistryServer) register(_ context.Context, req *wire.RegisterRequest) (*wire.RegisterResponse, error) {
	if err := s.registry.RegisterDirect(req.APIKey, req.Address, req.Services); err != nil {
		level.Warn(s.logger).Log("msg", "register failed", "address", req.Address, "err", err)
		return &wire.RegisterResponse{Success: false, Message: err.Error()}, nil
	}
	level.Info(s.logger).Log("msg", "registered direct address", "address", req.Address, "services", req.Services)
	return &wire.RegisterResponse{Success: true}, nil
}

// establishConnection implements the bidi-stream EstablishConnection RPC: hands the raw stream to
// service.RunSession, which performs the AwaitRegister handshake and pumps the session until close.
func (s *RegistryServer) establishConnection(stream grpc.ServerStream) error {
	return service.RunSession(stream.Context(), stream, s.authn, s.registry, s.sessions, s.events, s.logger)
}

// registerHandler adapts RegistryServer.register to the grpc.MethodDesc.Handler signature.
func registerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wire.RegisterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*RegistryServer).register(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fmt.Sprintf("/%s/Register", serviceName)}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*RegistryServer).register(ctx, req.(*wire.RegisterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// establishConnectionHandler adapts RegistryServer.establishConnection to grpc.StreamDesc.Handler.
func establishConnectionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(*RegistryServer).establishConnection(stream)
}

// ServiceDesc is the hand-built grpc.ServiceDesc registering Register and EstablishConnection
// under botgateway.RegistryService, installed alongside grpc.UnknownServiceHandler(router.Handle)
// so every other RPC falls through to the Router (SPEC_FULL.md §7).
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: registerHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "EstablishConnection",
			Handler:       establishConnectionHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "registry_service.proto",
}
