package rpc

import "testing"

const echoInterface InterfaceOrdinal = 1
const echoMethod Method = 1

func newEchoStub(svc *Service) *ObjectStub {
	impl := &struct{}{}
	iface := &InterfaceStub{
		ID: echoInterface,
		Invoke: func(method Method, encoding Encoding, in []byte) ([]byte, Status) {
			if method != echoMethod {
				return nil, InvalidMethodID
			}
			out := make([]byte, len(in))
			copy(out, in)
			return out, OK
		},
	}
	return svc.AddLookupStub(impl, map[InterfaceOrdinal]*InterfaceStub{echoInterface: iface}, func() {})
}

func TestServiceSendEchoesPayload(t *testing.T) {
	svc := NewService(Zone(1), nil)
	stub := newEchoStub(svc)

	out, status := svc.Send(stub.Object(), echoInterface, echoMethod, EncodingJSON, []byte("hello"))
	if status != OK {
		t.Fatalf("Send: got status %s, want OK", status)
	}
	if string(out) != "hello" {
		t.Fatalf("Send: got %q, want %q", out, "hello")
	}
}

func TestServiceSendUnknownObject(t *testing.T) {
	svc := NewService(Zone(1), nil)
	_, status := svc.Send(Object(999), echoInterface, echoMethod, EncodingJSON, nil)
	if status != ObjectNotFound {
		t.Fatalf("Send: got status %s, want OBJECT_NOT_FOUND", status)
	}
}

func TestServiceSendUnknownInterface(t *testing.T) {
	svc := NewService(Zone(1), nil)
	stub := newEchoStub(svc)
	_, status := svc.Send(stub.Object(), InterfaceOrdinal(2), echoMethod, EncodingJSON, nil)
	if status != InvalidInterfaceID {
		t.Fatalf("Send: got status %s, want INVALID_INTERFACE_ID", status)
	}
}

func TestServiceAddRefReleaseRoundTrip(t *testing.T) {
	svc := NewService(Zone(1), nil)
	stub := newEchoStub(svc)

	n, status := svc.AddRef(stub.Object(), AddRefNormal)
	if status != OK || n != 2 {
		t.Fatalf("AddRef: got (%d, %s), want (2, OK)", n, status)
	}

	n, status = svc.Release(stub.Object(), ReleaseNormal)
	if status != OK || n != 1 {
		t.Fatalf("Release: got (%d, %s), want (1, OK)", n, status)
	}

	// Drop the creation-time reference too; the stub should disappear.
	n, status = svc.Release(stub.Object(), ReleaseNormal)
	if status != OK || n != 0 {
		t.Fatalf("Release: got (%d, %s), want (0, OK)", n, status)
	}

	if _, ok := svc.lookupStub(stub.Object()); ok {
		t.Fatalf("stub %s still registered after refcount reached zero", stub.Object())
	}
}

func TestServiceReleaseUnknownObject(t *testing.T) {
	svc := NewService(Zone(1), nil)
	_, status := svc.Release(Object(42), ReleaseNormal)
	if status != ObjectNotFound {
		t.Fatalf("Release: got status %s, want OBJECT_NOT_FOUND", status)
	}
}

func TestServiceTryCast(t *testing.T) {
	svc := NewService(Zone(1), nil)
	stub := newEchoStub(svc)

	if status := svc.TryCast(stub.Object(), echoInterface); status != OK {
		t.Fatalf("TryCast known interface: got %s, want OK", status)
	}
	if status := svc.TryCast(stub.Object(), InterfaceOrdinal(999)); status != InvalidCast {
		t.Fatalf("TryCast unknown interface: got %s, want INVALID_CAST", status)
	}
}

func TestAddLookupStubDedupesByImplementation(t *testing.T) {
	svc := NewService(Zone(1), nil)
	impl := &struct{}{}
	iface := &InterfaceStub{ID: echoInterface, Invoke: func(Method, Encoding, []byte) ([]byte, Status) { return nil, OK }}

	first := svc.AddLookupStub(impl, map[InterfaceOrdinal]*InterfaceStub{echoInterface: iface}, func() {})
	second := svc.AddLookupStub(impl, map[InterfaceOrdinal]*InterfaceStub{echoInterface: iface}, func() {})

	if first != second {
		t.Fatalf("AddLookupStub returned different stubs for the same implementation pointer")
	}
	if first.Object() != second.Object() {
		t.Fatalf("AddLookupStub returned different object ids for the same implementation pointer: %s vs %s", first.Object(), second.Object())
	}

	svc.insertControl.Lock()
	stubs, impls := len(svc.stubs), len(svc.wrappedObjectToStub)
	svc.insertControl.Unlock()
	if stubs != impls {
		t.Fatalf("stubs and wrapped_object_to_stub diverged: %d stubs, %d impls", stubs, impls)
	}

	n, status := svc.Release(first.Object(), ReleaseNormal)
	if status != OK || n != 0 {
		t.Fatalf("Release: got (%d, %s), want (0, OK)", n, status)
	}

	svc.insertControl.Lock()
	_, implStillPresent := svc.wrappedObjectToStub[impl]
	svc.insertControl.Unlock()
	if implStillPresent {
		t.Fatalf("wrapped_object_to_stub kept the implementation after its stub was released")
	}

	third := svc.AddLookupStub(impl, map[InterfaceOrdinal]*InterfaceStub{echoInterface: iface}, func() {})
	if third.Object() == first.Object() {
		t.Fatalf("AddLookupStub reused a released object id for a fresh binding")
	}
}

func TestServiceAddZoneIsIdempotent(t *testing.T) {
	svc := NewService(Zone(1), nil)
	m := &localEchoMarshaller{}

	p1 := svc.AddZone(DestinationZone(2), CallerZone(1), m)
	p2 := svc.AddZone(DestinationZone(2), CallerZone(1), m)
	if p1 != p2 {
		t.Fatalf("AddZone: expected the same ServiceProxy to be returned for a known destination")
	}
}

// localEchoMarshaller is a minimal Marshaller stand-in used only to
// exercise ServiceProxy/ObjectProxy plumbing without a real transport.
type localEchoMarshaller struct{}

func (localEchoMarshaller) Send(DestinationChannelZone, DestinationZone, Object, InterfaceOrdinal, Method, CallerChannelZone, CallerZone, []byte) ([]byte, Status) {
	return nil, OK
}

func (localEchoMarshaller) Post(DestinationChannelZone, DestinationZone, Object, InterfaceOrdinal, Method, CallerChannelZone, CallerZone, []byte, PostOptions) Status {
	return OK
}

func (localEchoMarshaller) TryCast(DestinationZone, Object, InterfaceOrdinal) Status { return OK }

func (localEchoMarshaller) AddRef(DestinationChannelZone, DestinationZone, Object, CallerChannelZone, CallerZone, AddRefOptions) (uint64, Status) {
	return 1, OK
}

func (localEchoMarshaller) Release(DestinationZone, Object, CallerZone, ReleaseOptions) (uint64, Status) {
	return 0, OK
}
