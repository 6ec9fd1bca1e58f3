package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"botgateway/domain"
	"botgateway/helpers"
	"botgateway/interfaces"
	"botgateway/wire"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// sessionState is the C5 state machine: AwaitRegister -> Active -> Closing -> Closed. AwaitRegister
// is handled inline by RunSession before a *session exists; the struct itself only ever occupies
// Active, Closing or Closed.
type sessionState int32

const (
	stateActive sessionState = iota
	stateClosing
	stateClosed
)

// session is one live EstablishConnection stream, implementing interfaces.Session. Grounded on
// original_source's ReverseConnectionManager (per-session pending map, single-slot response
// delivery) and mwitkow-grpc-proxy's forwardClientToServer/forwardServerToClient goroutine pump,
// adapted from relaying opaque bytes to dispatching a typed ConnectionMessage oneof.
type session struct {
	connectionID string
	stream       grpc.ServerStream
	registry     interfaces.Registry
	manager      interfaces.SessionManager
	events       interfaces.EventRelay
	logger       log.Logger

	sendCh chan wire.ConnectionMessage

	mu      sync.Mutex
	pending map[string]chan interfaces.ForwardResult

	state  atomic.Int32
	closed chan struct{}
	once   sync.Once
}

// RunSession performs the AwaitRegister handshake on a freshly-accepted EstablishConnection
// stream, then pumps it until the stream closes or fails. It blocks for the lifetime of the
// connection; callers (server.RegistryServer.establishConnection) return its error directly as
// the RPC's result.
func RunSession(
	ctx context.Context,
	stream grpc.ServerStream,
	authn interfaces.Authenticator,
	registry interfaces.Registry,
	manager interfaces.SessionManager,
	events interfaces.EventRelay,
	logger log.Logger,
) error {
	var first wire.ConnectionMessage
	if err := stream.RecvMsg(&first); err != nil {
		return fmt.Errorf("session: awaiting register: %w", err)
	}
	if first.Kind != wire.KindRegister || first.Register == nil {
		_ = stream.SendMsg(&wire.ConnectionMessage{
			Kind:   wire.KindStatus,
			Status: &wire.ConnectionStatus{Status: wire.StatusError, Message: "first message must be register"},
		})
		return fmt.Errorf("%w: first message was %q, not register", domain.ErrMalformedPath, first.Kind)
	}
	if !authn.Validate(first.Register.APIKey) {
		_ = stream.SendMsg(&wire.ConnectionMessage{
			Kind:   wire.KindStatus,
			Status: &wire.ConnectionStatus{Status: wire.StatusError, Message: domain.ErrUnauthenticated.Error()},
		})
		return domain.ErrUnauthenticated
	}
	connectionID, err := registry.RegisterSession(first.Register.APIKey, first.Register.Services)
	if err != nil {
		_ = stream.SendMsg(&wire.ConnectionMessage{
			Kind:   wire.KindStatus,
			Status: &wire.ConnectionStatus{Status: wire.StatusError, Message: err.Error()},
		})
		return err
	}

	s := &session{
		connectionID: connectionID,
		stream:       stream,
		registry:     registry,
		manager:      manager,
		events:       events,
		logger:       log.With(helpers.NilPanic(logger, "service.session.go: logger is required"), "connection_id", connectionID),
		sendCh:       make(chan wire.ConnectionMessage, 16),
		pending:      make(map[string]chan interfaces.ForwardResult),
		closed:       make(chan struct{}),
	}
	manager.Register(s)
	defer s.teardown()

	if err := stream.SendMsg(&wire.ConnectionMessage{
		Kind:   wire.KindStatus,
		Status: &wire.ConnectionStatus{Status: wire.StatusConnected, ConnectionID: connectionID},
	}); err != nil {
		return fmt.Errorf("session: sending connected status: %w", err)
	}

	level.Info(s.logger).Log("msg", "session active", "services", first.Register.Services)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return s.writeLoop(groupCtx) })
	group.Go(func() error { return s.readLoop() })
	err = group.Wait()
	if errors.Is(err, errSessionClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// errSessionClosed is readLoop's signal that the peer closed the stream cleanly (io.EOF). It is
// returned as a real error so errgroup cancels groupCtx and stops writeLoop, then translated back
// to nil by RunSession.
var errSessionClosed = errors.New("session: closed by peer")

// ConnectionID returns the id assigned to this session at registration.
func (s *session) ConnectionID() string { return s.connectionID }

// writeLoop serializes every SendMsg call onto the stream: grpc.ServerStream.SendMsg is not safe
// for concurrent use, so Forward and event delivery both enqueue onto sendCh instead of calling
// SendMsg directly.
func (s *session) writeLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-s.sendCh:
			if err := s.stream.SendMsg(&msg); err != nil {
				return fmt.Errorf("session: send: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLoop receives every ConnectionMessage from the backend and dispatches it by Kind until
// RecvMsg fails (io.EOF on a clean close, or a transport error) or s.closed fires, whichever comes
// first. grpc.ServerStream.RecvMsg has no way to be cancelled directly, so each Recv runs in its own
// goroutine; a forced Close abandons that goroutine (it exits once the peer's connection actually
// drops) rather than blocking the Janitor's expiry sweep on it.
func (s *session) readLoop() error {
	type recvResult struct {
		msg wire.ConnectionMessage
		err error
	}
	for {
		resultCh := make(chan recvResult, 1)
		go func() {
			var msg wire.ConnectionMessage
			err := s.stream.RecvMsg(&msg)
			resultCh <- recvResult{msg, err}
		}()
		select {
		case r := <-resultCh:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return errSessionClosed
				}
				return fmt.Errorf("session: recv: %w", r.err)
			}
			s.dispatch(r.msg)
		case <-s.closed:
			return errSessionClosed
		}
	}
}

// dispatch handles one inbound ConnectionMessage per its Kind.
func (s *session) dispatch(msg wire.ConnectionMessage) {
	switch msg.Kind {
	case wire.KindHeartbeat:
		if msg.Heartbeat == nil || msg.Heartbeat.ConnectionID != s.connectionID {
			level.Warn(s.logger).Log("msg", "heartbeat with mismatched connection_id, ignoring")
			return
		}
		if err := s.registry.Heartbeat(s.connectionID); err != nil {
			level.Warn(s.logger).Log("msg", "heartbeat rejected", "err", err)
		}
	case wire.KindResponse:
		if msg.Response == nil {
			return
		}
		s.deliver(msg.Response)
	case wire.KindSubscription:
		if msg.Subscription == nil {
			return
		}
		s.handleSubscription(*msg.Subscription)
	case wire.KindEvent:
		if msg.Event == nil {
			return
		}
		s.events.Publish(msg.Event.EventType, msg.Event.Payload)
	case wire.KindRegister:
		level.Warn(s.logger).Log("msg", "duplicate register on active session, rejecting")
		s.enqueue(wire.ConnectionMessage{
			Kind: wire.KindStatus,
			Status: &wire.ConnectionStatus{
				Status:       wire.StatusError,
				ConnectionID: s.connectionID,
				Message:      "session is already registered",
			},
		})
	default:
		level.Warn(s.logger).Log("msg", "unhandled message kind", "kind", msg.Kind)
	}
}

// deliver resolves the pending Forward call matching resp.RequestID, if still waiting.
func (s *session) deliver(resp *wire.ForwardResponse) {
	s.mu.Lock()
	ch, ok := s.pending[resp.RequestID]
	if ok {
		delete(s.pending, resp.RequestID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	ch <- interfaces.ForwardResult{
		StatusCode:   resp.StatusCode,
		Payload:      resp.Payload,
		ErrorMessage: resp.ErrorMessage,
	}
}

// handleSubscription applies a SubscriptionRequest against the event relay (C9).
func (s *session) handleSubscription(req wire.SubscriptionRequest) {
	if req.Subscribe {
		s.events.Subscribe(s.connectionID, req.EventType, func(event wire.EventMessage) {
			s.enqueue(wire.ConnectionMessage{Kind: wire.KindEvent, Event: &event})
		})
		return
	}
	s.events.Unsubscribe(s.connectionID, req.EventType)
}

// enqueue pushes msg onto the send queue, dropping it if the session has already closed.
func (s *session) enqueue(msg wire.ConnectionMessage) {
	select {
	case s.sendCh <- msg:
	case <-s.closed:
	}
}

// Forward sends a ForwardRequest and blocks for the matching ForwardResponse or ctx/close.
func (s *session) Forward(ctx context.Context, methodPath string, headers map[string]string, payload []byte) (interfaces.ForwardResult, error) {
	if s.state.Load() != int32(stateActive) {
		return interfaces.ForwardResult{}, domain.ErrUnavailable
	}
	requestID := uuid.NewString()
	ch := make(chan interfaces.ForwardResult, 1)

	s.mu.Lock()
	s.pending[requestID] = ch
	s.mu.Unlock()

	timeoutS := 0.0
	if deadline, ok := ctx.Deadline(); ok {
		timeoutS = float64(time.Until(deadline)) / float64(time.Second)
	}

	select {
	case s.sendCh <- wire.ConnectionMessage{
		Kind: wire.KindRequest,
		Request: &wire.ForwardRequest{
			RequestID:  requestID,
			MethodPath: methodPath,
			Headers:    headers,
			Payload:    payload,
			TimeoutS:   timeoutS,
		},
	}:
	case <-s.closed:
		s.dropPending(requestID)
		return interfaces.ForwardResult{}, domain.ErrUnavailable
	case <-ctx.Done():
		s.dropPending(requestID)
		return interfaces.ForwardResult{}, mapContextErr(ctx.Err())
	}

	select {
	case result := <-ch:
		return result, nil
	case <-s.closed:
		s.dropPending(requestID)
		return interfaces.ForwardResult{}, domain.ErrUnavailable
	case <-ctx.Done():
		s.dropPending(requestID)
		return interfaces.ForwardResult{}, mapContextErr(ctx.Err())
	}
}

// dropPending removes requestID's response channel without waiting on it further.
func (s *session) dropPending(requestID string) {
	s.mu.Lock()
	delete(s.pending, requestID)
	s.mu.Unlock()
}

// mapContextErr translates a context error into the matching domain sentinel.
func mapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrDeadlineExceeded
	}
	return domain.ErrCancelled
}

// Close forcibly tears the session down ahead of its natural stream close, used by the Janitor when
// the owning registry entry expires. Shares teardown's sync.Once with RunSession's own deferred
// call, so whichever runs first does the work and the other is a no-op.
func (s *session) Close() {
	s.teardown()
}

// teardown transitions the session to Closed, failing every in-flight Forward call, unregistering
// it from the SessionManager and Registry and dropping its event subscriptions. Safe to call once;
// RunSession defers it unconditionally.
func (s *session) teardown() {
	s.once.Do(func() {
		s.state.Store(int32(stateClosing))
		close(s.closed)
		s.manager.Unregister(s.connectionID)
		s.registry.Remove(s.connectionID)
		s.events.UnsubscribeAll(s.connectionID)

		s.mu.Lock()
		for id := range s.pending {
			delete(s.pending, id)
		}
		s.mu.Unlock()
		// The map is cleared, not nilled: a Forward call that read state==Active just before this
		// runs may still be about to insert into s.pending, which would panic against a nil map.
		// Every Forward call still blocked on ch is also selecting on s.closed (just closed above),
		// so it resolves via that branch with domain.ErrUnavailable instead of being sent a result here.
		s.state.Store(int32(stateClosed))
		level.Info(s.logger).Log("msg", "session closed")
	})
}
