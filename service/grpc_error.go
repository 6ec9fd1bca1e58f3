package service

import (
	"errors"

	"botgateway/domain"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GatewayErrorToGRPCStreamInterceptor returns a stream server interceptor that runs the handler and
// maps its returned error via gatewayErrorToGRPC (SPEC_FULL.md §8), logging every failure for
// diagnostics.
func GatewayErrorToGRPCStreamInterceptor(logger log.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		err := handler(srv, ss)
		if err != nil {
			level.Info(logger).Log(
				"msg", "stream handler error",
				"method", info.FullMethod,
				"err", err,
			)
			err = gatewayErrorToGRPC(err)
		}
		return err
	}
}

// gatewayErrorToGRPC maps a domain sentinel to its gRPC status per SPEC_FULL.md §8's error table.
// An error that is already a gRPC status with a known code passes through unchanged.
func gatewayErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s.Err()
	}
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, "missing or invalid token")
	case errors.Is(err, domain.ErrMalformedPath):
		return status.Error(codes.InvalidArgument, "malformed method path")
	case errors.Is(err, domain.ErrServiceNotFound):
		return status.Error(codes.Unavailable, "service not registered")
	case errors.Is(err, domain.ErrUnknownConnection):
		return status.Error(codes.NotFound, "unknown connection")
	case errors.Is(err, domain.ErrDeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	case errors.Is(err, domain.ErrCancelled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, domain.ErrPoolExhausted):
		return status.Error(codes.ResourceExhausted, "connection pool exhausted")
	case errors.Is(err, domain.ErrConnectFailed):
		return status.Error(codes.Unavailable, "backend connect failed")
	case errors.Is(err, domain.ErrUnavailable):
		return status.Error(codes.Unavailable, "backend service unavailable")
	case errors.Is(err, ErrEmptyServices):
		return status.Error(codes.InvalidArgument, "services list must not be empty")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
