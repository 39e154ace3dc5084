package local_test

import (
	"testing"

	"github.com/ottermesh/zonerpc/internal/rpc"
	"github.com/ottermesh/zonerpc/internal/transport/local"
)

const pingInterface rpc.InterfaceOrdinal = 7
const pingMethod rpc.Method = 1

func TestTwoZonePing(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

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

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	proxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	objectProxy, status := proxy.GetOrCreateObjectProxy(stub.Object(), rpc.AddRefIfNew)
	if status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	ifaceProxy, status := objectProxy.QueryInterface(pingInterface)
	if status != rpc.OK {
		t.Fatalf("QueryInterface: got %s, want OK", status)
	}

	out, status := ifaceProxy.Invoke(pingMethod, rpc.EncodingJSON, []byte("hi"))
	if status != rpc.OK {
		t.Fatalf("Invoke: got %s, want OK", status)
	}
	if string(out) != "pong:hi" {
		t.Fatalf("Invoke: got %q, want %q", out, "pong:hi")
	}
}

func TestObjectProxyDropSendsSingleReleaseToOwningZone(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

	iface := &rpc.InterfaceStub{ID: pingInterface, Invoke: func(rpc.Method, rpc.Encoding, []byte) ([]byte, rpc.Status) {
		return nil, rpc.OK
	}}
	impl := &struct{}{}
	stub := serverZone.AddLookupStub(impl, map[rpc.InterfaceOrdinal]*rpc.InterfaceStub{pingInterface: iface}, func() {})

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	proxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	objectProxy, status := proxy.GetOrCreateObjectProxy(stub.Object(), rpc.AddRefIfNew)
	if status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	// The remote AddRef from AddRefIfNew left the stub's shared count
	// at 2 (1 from creation, 1 from this proxy). Two local holders of
	// the same object proxy must still only produce one Release on the
	// wire once they both go away, dropping the remote count by
	// exactly one, not two and not zero.
	objectProxy.AddRef()
	if n, status := objectProxy.Release(); status != rpc.OK || n != 1 {
		t.Fatalf("first local Release: got (%d, %s), want (1, OK)", n, status)
	}

	if n, status := objectProxy.Release(); status != rpc.OK || n != 0 {
		t.Fatalf("final local Release: got (%d, %s), want (0, OK)", n, status)
	}
	if _, ok := clientZone.LookupZone(rpc.DestinationZone(2)); ok {
		t.Fatalf("ServiceProxy still registered after its only ObjectProxy was dropped")
	}

	// Exactly one remote Release reached the server: the stub's shared
	// count went from 2 down to 1 (the creation-time reference), not 0.
	n, status := serverZone.Release(stub.Object(), rpc.ReleaseNormal)
	if status != rpc.OK || n != 0 {
		t.Fatalf("dropping the creation reference: got (%d, %s), want (0, OK)", n, status)
	}
}

func TestTransportTerminateDropsRoutedProxies(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

	iface := &rpc.InterfaceStub{ID: pingInterface, Invoke: func(rpc.Method, rpc.Encoding, []byte) ([]byte, rpc.Status) {
		return nil, rpc.OK
	}}
	impl := &struct{}{}
	stub := serverZone.AddLookupStub(impl, map[rpc.InterfaceOrdinal]*rpc.InterfaceStub{pingInterface: iface}, func() {})

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	marshaller.AddDestination(rpc.DestinationZone(2), clientZone)
	proxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	if _, status := proxy.GetOrCreateObjectProxy(stub.Object(), rpc.AddRefIfNew); status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	marshaller.Terminate()

	if marshaller.Status() != rpc.StatusDisconnected {
		t.Fatalf("marshaller status = %s, want DISCONNECTED", marshaller.Status())
	}
	if _, ok := clientZone.LookupZone(rpc.DestinationZone(2)); ok {
		t.Fatalf("client zone still routes to the destination after transport terminated")
	}

	// The ServiceProxy still hands out its local ObjectProxy without
	// wire traffic, while the terminated marshaller refuses wire calls
	// instead of reaching the (still perfectly healthy) server zone.
	if _, status := proxy.GetOrCreateObjectProxy(stub.Object(), rpc.DoNothing); status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy after terminate: got %s, want OK (existing local proxy, no wire traffic)", status)
	}
	if _, status := marshaller.AddRef(0, rpc.DestinationZone(2), stub.Object(), 0, rpc.CallerZone(1), rpc.AddRefNormal); status != rpc.TransportError {
		t.Fatalf("AddRef on terminated marshaller: got %s, want TRANSPORT_ERROR", status)
	}
}

func TestQueryInterfaceUnknownOrdinal(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

	iface := &rpc.InterfaceStub{ID: pingInterface, Invoke: func(rpc.Method, rpc.Encoding, []byte) ([]byte, rpc.Status) {
		return nil, rpc.OK
	}}
	impl := &struct{}{}
	stub := serverZone.AddLookupStub(impl, map[rpc.InterfaceOrdinal]*rpc.InterfaceStub{pingInterface: iface}, func() {})

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	proxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	objectProxy, status := proxy.GetOrCreateObjectProxy(stub.Object(), rpc.DoNothing)
	if status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	if _, status := objectProxy.QueryInterface(rpc.InterfaceOrdinal(999)); status != rpc.InvalidCast {
		t.Fatalf("QueryInterface unknown ordinal: got %s, want INVALID_CAST", status)
	}
}
