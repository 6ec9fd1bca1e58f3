package service

import (
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
)

// forwardClientToServer runs in a goroutine, forwarding messages from a backend stream (src) to
// the original client stream (dst) using emptypb.Empty as an opaque frame: proto.Marshal/Unmarshal
// on an otherwise-empty message round-trips the caller's real bytes via protobuf's unknown-field
// preservation, so no application-level schema is ever needed. Grounded on the teacher's original
// TransparentProxy.Handler forwarding loop.
func forwardClientToServer(src grpc.ClientStream, dst grpc.ServerStream, sendHeader bool) chan error {
	ret := make(chan error, 1)
	go func() {
		f := &emptypb.Empty{}
		for i := 0; ; i++ {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				break
			}
			if i == 0 && sendHeader {
				md, err := src.Header()
				if err != nil {
					ret <- err
					break
				}
				if err := dst.SendHeader(md); err != nil {
					ret <- err
					break
				}
			}
			if err := dst.SendMsg(f); err != nil {
				ret <- err
				break
			}
		}
	}()
	return ret
}

// forwardServerToClient runs in a goroutine, forwarding messages from the client stream (src) to
// the backend stream (dst). If firstClientMsgOut is non-nil, the first message received is cloned
// onto it as it passes through; Router's DirectAddress path retries the stream open itself before
// any pump starts, so it always passes nil, but the hook is kept for a forwarder that needs to
// replay the first client message against a different backend after a mid-stream failure.
func forwardServerToClient(src grpc.ServerStream, dst grpc.ClientStream, firstClientMsgOut chan<- *emptypb.Empty) chan error {
	ret := make(chan error, 1)
	go func() {
		f := &emptypb.Empty{}
		first := true
		for {
			if err := src.RecvMsg(f); err != nil {
				ret <- err
				break
			}
			if first && firstClientMsgOut != nil {
				if cloned, ok := proto.Clone(f).(*emptypb.Empty); ok {
					select {
					case firstClientMsgOut <- cloned:
					default:
					}
				}
				first = false
			}
			if err := dst.SendMsg(f); err != nil {
				ret <- err
				break
			}
		}
	}()
	return ret
}
