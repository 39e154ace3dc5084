package pipe_test

import (
	"testing"
	"time"

	"github.com/ottermesh/zonerpc/internal/rpc"
	"github.com/ottermesh/zonerpc/internal/transport/pipe"
)

const pingInterface rpc.InterfaceOrdinal = 3
const pingMethod rpc.Method = 1

func TestPipeTransportPing(t *testing.T) {
	listener := pipe.NewListener()
	defer listener.Close()

	serverZone := rpc.NewService(rpc.Zone(2), nil)
	iface := &rpc.InterfaceStub{
		ID: pingInterface,
		Invoke: func(method rpc.Method, _ rpc.Encoding, in []byte) ([]byte, rpc.Status) {
			if method != pingMethod {
				return nil, rpc.InvalidMethodID
			}
			return append([]byte("pong:"), in...), rpc.OK
		},
	}
	impl := &struct{}{}
	stub := serverZone.AddLookupStub(impl, map[rpc.InterfaceOrdinal]*rpc.InterfaceStub{pingInterface: iface}, func() {})

	accepted := make(chan struct{})
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		close(accepted)
		_ = pipe.Serve(conn, serverZone, rpc.EncodingJSON)
	}()

	clientConn, err := listener.Dial()
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	select {
	case <-accepted:
	case <-time.After(time.Second):
		t.Fatalf("server never accepted the connection")
	}

	marshaller := pipe.NewMarshaller(clientConn, rpc.EncodingJSON)
	defer marshaller.Close()

	out, status := marshaller.Send(0, rpc.DestinationZone(2), stub.Object(), pingInterface, pingMethod, 0, rpc.CallerZone(1), []byte("hi"))
	if status != rpc.OK {
		t.Fatalf("Send: got %s, want OK", status)
	}
	if string(out) != "pong:hi" {
		t.Fatalf("Send: got %q, want %q", out, "pong:hi")
	}
}

func TestPipeTransportAddRefRelease(t *testing.T) {
	listener := pipe.NewListener()
	defer listener.Close()

	serverZone := rpc.NewService(rpc.Zone(2), nil)
	iface := &rpc.InterfaceStub{ID: pingInterface, Invoke: func(rpc.Method, rpc.Encoding, []byte) ([]byte, rpc.Status) { return nil, rpc.OK }}
	impl := &struct{}{}
	stub := serverZone.AddLookupStub(impl, map[rpc.InterfaceOrdinal]*rpc.InterfaceStub{pingInterface: iface}, func() {})

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		_ = pipe.Serve(conn, serverZone, rpc.EncodingBinary)
	}()

	clientConn, err := listener.Dial()
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientConn.Close()

	marshaller := pipe.NewMarshaller(clientConn, rpc.EncodingBinary)
	defer marshaller.Close()

	n, status := marshaller.AddRef(0, rpc.DestinationZone(2), stub.Object(), 0, rpc.CallerZone(1), rpc.AddRefNormal)
	if status != rpc.OK || n != 2 {
		t.Fatalf("AddRef: got (%d, %s), want (2, OK)", n, status)
	}

	n, status = marshaller.Release(rpc.DestinationZone(2), stub.Object(), rpc.CallerZone(1), rpc.ReleaseNormal)
	if status != rpc.OK || n != 1 {
		t.Fatalf("Release: got (%d, %s), want (1, OK)", n, status)
	}
}
