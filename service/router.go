package service

import (
	"context"
	"errors"
	"io"
	"time"

	"botgateway/domain"
	"botgateway/helpers"
	"botgateway/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

// retryBase and retryCap bound the exponential backoff between DirectAddress ConnectFailed
// retries (SPEC_FULL.md §5.6).
const (
	retryBase = 50 * time.Millisecond
	retryCap  = time.Second
)

// Router is the central dispatcher (C6), registered as grpc.UnknownServiceHandler so every
// external RPC hits Handle. It extracts the bare service name from the method path (C4), looks the
// service up in the Registry (C3), and forwards to either a live reverse session (C5) or a pooled
// DirectAddress connection (C2). Grounded on original_source's DynamicRouter (reverse-connection
// checked before registry fallback) and the teacher's TransparentProxy.Handler (match → resolve →
// forward → map errors shape, emptypb.Empty passthrough technique).
type Router struct {
	registry interfaces.Registry
	sessions interfaces.SessionManager
	pool     interfaces.Pool
	sem      *semaphore.Weighted
	retries  int
	timeout  time.Duration
	logger   log.Logger
}

// NewRouter creates a Router. maxConcurrentRequests <= 0 means unlimited. Panics on nil
// registry/sessions/pool/logger.
func NewRouter(
	registry interfaces.Registry,
	sessions interfaces.SessionManager,
	pool interfaces.Pool,
	maxConcurrentRequests int,
	retryAttempts int,
	requestTimeout time.Duration,
	logger log.Logger,
) *Router {
	var sem *semaphore.Weighted
	if maxConcurrentRequests > 0 {
		sem = semaphore.NewWeighted(int64(maxConcurrentRequests))
	}
	return &Router{
		registry: helpers.NilPanic(registry, "service.router.go: registry is required"),
		sessions: helpers.NilPanic(sessions, "service.router.go: sessions is required"),
		pool:     helpers.NilPanic(pool, "service.router.go: pool is required"),
		sem:      sem,
		retries:  retryAttempts,
		timeout:  requestTimeout,
		logger:   log.With(helpers.NilPanic(logger, "service.router.go: logger is required"), "component", "router"),
	}
}

// Handle implements the grpc.UnknownServiceHandler signature: every RPC the public gRPC server
// does not otherwise recognize lands here.
func (r *Router) Handle(_ any, serverStream grpc.ServerStream) error {
	fullMethod, ok := grpc.MethodFromServerStream(serverStream)
	if !ok {
		return status.Error(codes.Internal, "missing grpc method in stream context")
	}
	serviceName, err := ExtractServiceName(fullMethod)
	if err != nil {
		return status.Error(codes.Unimplemented, err.Error())
	}

	if r.sem != nil {
		if !r.sem.TryAcquire(1) {
			return status.Error(codes.ResourceExhausted, "too many concurrent requests")
		}
		defer r.sem.Release(1)
	}

	instance, err := r.registry.Lookup(serviceName)
	if err != nil {
		return gatewayErrorToGRPC(err)
	}

	ctx := serverStream.Context()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var forwardErr error
	if instance.Kind == domain.KindReverseSession {
		forwardErr = r.forwardViaSession(ctx, instance, fullMethod, serverStream)
	} else {
		forwardErr = r.forwardViaDirectAddress(ctx, instance, fullMethod, serverStream)
	}
	grpcErr := gatewayErrorToGRPC(forwardErr)
	level.Debug(r.logger).Log(
		"msg", "forwarded request",
		"service", serviceName,
		"method", fullMethod,
		"instance_kind", instance.Kind,
		"outcome", status.Code(grpcErr).String(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return grpcErr
}

// forwardViaSession forwards one request/response pair over a reverse session (C5). Reverse
// sessions speak the ForwardRequest/ForwardResponse protocol, which correlates exactly one
// response per request — so unlike DirectAddress, only the first client message is forwarded.
func (r *Router) forwardViaSession(ctx context.Context, instance domain.ServiceInstance, fullMethod string, serverStream grpc.ServerStream) error {
	sess, ok := r.sessions.Get(instance.ConnectionID)
	if !ok {
		return domain.ErrUnavailable
	}

	reqFrame := &emptypb.Empty{}
	if err := serverStream.RecvMsg(reqFrame); err != nil {
		return err
	}
	payload, err := proto.Marshal(reqFrame)
	if err != nil {
		return err
	}

	inMD, _ := metadata.FromIncomingContext(ctx)
	headers := helpers.MetadataToHeaders(inMD)

	result, err := sess.Forward(ctx, fullMethod, headers, payload)
	if err != nil {
		return err
	}
	if result.ErrorMessage != "" {
		return status.Error(statusCodeFromForward(result.StatusCode), result.ErrorMessage)
	}

	respFrame := &emptypb.Empty{}
	if len(result.Payload) > 0 {
		if err := proto.Unmarshal(result.Payload, respFrame); err != nil {
			return err
		}
	}
	return serverStream.SendMsg(respFrame)
}

// statusCodeFromForward maps a ForwardResponse status_code to a gRPC code, falling back to
// Unknown for anything outside the standard range.
func statusCodeFromForward(code int32) codes.Code {
	c := codes.Code(code)
	if c < codes.OK || c > codes.Unauthenticated {
		return codes.Unknown
	}
	return c
}

// forwardViaDirectAddress opens a real gRPC stream to the dialed backend and pumps both
// directions transparently. Opening the stream is attempted at most r.retries times in total (at
// least once), with exponential backoff between attempts on domain.ErrConnectFailed
// (SPEC_FULL.md §5.6). Grounded on the teacher's
// TransparentProxy.Handler open/retry loop.
func (r *Router) forwardViaDirectAddress(ctx context.Context, instance domain.ServiceInstance, fullMethod string, serverStream grpc.ServerStream) error {
	var clientStream grpc.ClientStream
	var lastErr error
	attempts := r.retries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(helpers.ExponentialBackoff(attempt-1, retryBase, retryCap)):
			case <-ctx.Done():
				return domain.ErrDeadlineExceeded
			}
		}
		conn, err := r.pool.Acquire(ctx, instance.Address)
		if err != nil {
			lastErr = err
			if errors.Is(err, domain.ErrConnectFailed) {
				continue
			}
			return err
		}
		desc := &grpc.StreamDesc{ServerStreams: true, ClientStreams: true}
		cs, err := conn.NewStream(ctx, desc, fullMethod)
		if err != nil {
			lastErr = domain.ErrConnectFailed
			level.Warn(r.logger).Log("msg", "open backend stream failed", "address", instance.Address, "attempt", attempt, "err", err)
			continue
		}
		clientStream = cs
		lastErr = nil
		break
	}
	if clientStream == nil {
		if lastErr == nil {
			lastErr = domain.ErrConnectFailed
		}
		return lastErr
	}

	s2cErrCh := forwardServerToClient(serverStream, clientStream, nil)
	c2sErrCh := forwardClientToServer(clientStream, serverStream, true)

	for i := 0; i < 2; i++ {
		select {
		case err := <-s2cErrCh:
			if isStreamEOF(err) {
				_ = clientStream.CloseSend()
				continue
			}
			return err
		case err := <-c2sErrCh:
			serverStream.SetTrailer(clientStream.Trailer())
			if isStreamEOF(err) {
				return nil
			}
			return err
		}
	}
	return nil
}

// isStreamEOF reports whether err is the clean end-of-stream sentinel used by grpc.ClientStream
// and grpc.ServerStream's RecvMsg.
func isStreamEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
