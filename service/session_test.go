package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"botgateway/domain"
	"botgateway/helpers"
	"botgateway/interfaces"
	"botgateway/wire"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

// fakeStream implements grpc.ServerStream over two in-memory message queues, standing in for a
// real EstablishConnection stream so RunSession can be exercised without a network transport.
type fakeStream struct {
	ctx context.Context

	mu      sync.Mutex
	toServer   []wire.ConnectionMessage
	toServerCh chan struct{}
	fromServer []wire.ConnectionMessage
}

func newFakeStream(ctx context.Context) *fakeStream {
	return &fakeStream{ctx: ctx, toServerCh: make(chan struct{}, 64)}
}

func (f *fakeStream) pushFromClient(msg wire.ConnectionMessage) {
	f.mu.Lock()
	f.toServer = append(f.toServer, msg)
	f.mu.Unlock()
	f.toServerCh <- struct{}{}
}

func (f *fakeStream) SendMsg(m any) error {
	msg, ok := m.(*wire.ConnectionMessage)
	if !ok {
		return errors.New("fakeStream: unexpected message type")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fromServer = append(f.fromServer, *msg)
	return nil
}

func (f *fakeStream) RecvMsg(m any) error {
	<-f.toServerCh
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.toServer) == 0 {
		return io.EOF
	}
	msg := f.toServer[0]
	f.toServer = f.toServer[1:]
	out, ok := m.(*wire.ConnectionMessage)
	if !ok {
		return errors.New("fakeStream: unexpected message type")
	}
	*out = msg
	return nil
}

func (f *fakeStream) sentMessages() []wire.ConnectionMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wire.ConnectionMessage(nil), f.fromServer...)
}

func (f *fakeStream) closeClient() { f.toServerCh <- struct{}{} }

func (f *fakeStream) Context() context.Context              { return f.ctx }
func (f *fakeStream) SetHeader(metadata.MD) error            { return nil }
func (f *fakeStream) SendHeader(metadata.MD) error           { return nil }
func (f *fakeStream) SetTrailer(metadata.MD)                 {}

func TestRunSession_HandshakeAssignsConnectionIDAndMarksConnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := newFakeStream(ctx)
	authn := NewStaticTokenAuthenticator([]string{"T"})
	clock := &movableClock{t: helpers.TestNow()}
	registry := NewServiceRegistry(authn, clock, log.NewNopLogger())
	manager := NewSessionManager()
	events := NewEventRelay(0)

	stream.pushFromClient(wire.ConnectionMessage{
		Kind:     wire.KindRegister,
		Register: &wire.ConnectionRegister{APIKey: "T", Services: []string{"Foo"}},
	})

	done := make(chan error, 1)
	go func() { done <- RunSession(ctx, stream, authn, registry, manager, events, log.NewNopLogger()) }()

	require.Eventually(t, func() bool { return len(stream.sentMessages()) >= 1 }, time.Second, time.Millisecond)
	sent := stream.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, wire.KindStatus, sent[0].Kind)
	require.NotNil(t, sent[0].Status)
	assert.Equal(t, wire.StatusConnected, sent[0].Status.Status)
	connectionID := sent[0].Status.ConnectionID
	assert.NotEmpty(t, connectionID)

	_, ok := manager.Get(connectionID)
	assert.True(t, ok)

	inst, err := registry.Lookup("Foo")
	require.NoError(t, err)
	assert.Equal(t, connectionID, inst.ConnectionID)

	stream.closeClient()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunSession did not return after client close")
	}

	_, ok = manager.Get(connectionID)
	assert.False(t, ok)
}

func TestRunSession_RejectsBadToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := newFakeStream(ctx)
	authn := NewStaticTokenAuthenticator([]string{"T"})
	clock := &movableClock{t: helpers.TestNow()}
	registry := NewServiceRegistry(authn, clock, log.NewNopLogger())
	manager := NewSessionManager()
	events := NewEventRelay(0)

	stream.pushFromClient(wire.ConnectionMessage{
		Kind:     wire.KindRegister,
		Register: &wire.ConnectionRegister{APIKey: "wrong", Services: []string{"Foo"}},
	})

	err := RunSession(ctx, stream, authn, registry, manager, events, log.NewNopLogger())
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSession_ForwardRoundTrips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := newFakeStream(ctx)
	authn := NewStaticTokenAuthenticator([]string{"T"})
	clock := &movableClock{t: helpers.TestNow()}
	registry := NewServiceRegistry(authn, clock, log.NewNopLogger())
	manager := NewSessionManager()
	events := NewEventRelay(0)

	stream.pushFromClient(wire.ConnectionMessage{
		Kind:     wire.KindRegister,
		Register: &wire.ConnectionRegister{APIKey: "T", Services: []string{"Foo"}},
	})
	go func() { _ = RunSession(ctx, stream, authn, registry, manager, events, log.NewNopLogger()) }()

	require.Eventually(t, func() bool { return len(stream.sentMessages()) >= 1 }, time.Second, time.Millisecond)
	connectionID := stream.sentMessages()[0].Status.ConnectionID
	sess, ok := manager.Get(connectionID)
	require.True(t, ok)

	type forwardOutcome struct {
		res interfaces.ForwardResult
		err error
	}
	resultCh := make(chan forwardOutcome, 1)
	go func() {
		res, err := sess.Forward(context.Background(), "/pkg.Foo/Bar", map[string]string{"x": "y"}, []byte("req"))
		resultCh <- forwardOutcome{res, err}
	}()

	require.Eventually(t, func() bool { return len(stream.sentMessages()) >= 2 }, time.Second, time.Millisecond)
	req := stream.sentMessages()[1]
	require.Equal(t, wire.KindRequest, req.Kind)
	require.NotNil(t, req.Request)

	stream.pushFromClient(wire.ConnectionMessage{
		Kind: wire.KindResponse,
		Response: &wire.ForwardResponse{
			RequestID:  req.Request.RequestID,
			StatusCode: 0,
			Payload:    []byte("resp"),
		},
	})

	select {
	case out := <-resultCh:
		require.NoError(t, out.err)
		assert.Equal(t, []byte("resp"), out.res.Payload)
	case <-time.After(time.Second):
		t.Fatal("Forward did not resolve")
	}
}

func TestSession_InboundEventMessageFansOutToSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := newFakeStream(ctx)
	authn := NewStaticTokenAuthenticator([]string{"T"})
	clock := &movableClock{t: helpers.TestNow()}
	registry := NewServiceRegistry(authn, clock, log.NewNopLogger())
	manager := NewSessionManager()
	events := NewEventRelay(0)

	received := make(chan wire.EventMessage, 1)
	events.Subscribe("subscriber-1", "widget.created", func(event wire.EventMessage) {
		received <- event
	})

	stream.pushFromClient(wire.ConnectionMessage{
		Kind:     wire.KindRegister,
		Register: &wire.ConnectionRegister{APIKey: "T", Services: []string{"Foo"}},
	})
	go func() { _ = RunSession(ctx, stream, authn, registry, manager, events, log.NewNopLogger()) }()

	require.Eventually(t, func() bool { return len(stream.sentMessages()) >= 1 }, time.Second, time.Millisecond)

	stream.pushFromClient(wire.ConnectionMessage{
		Kind:  wire.KindEvent,
		Event: &wire.EventMessage{EventType: "widget.created", Payload: []byte("payload")},
	})

	select {
	case event := <-received:
		assert.Equal(t, "widget.created", event.EventType)
		assert.Equal(t, []byte("payload"), event.Payload)
	case <-time.After(time.Second):
		t.Fatal("inbound event message was not published to the subscriber")
	}
}

