package rpc

import (
	"log/slog"
	"sync"

	"github.com/ottermesh/zonerpc/internal/telemetry"
)

// Service is the per-zone registry: it owns every ObjectStub created
// in this zone, every ServiceProxy this zone uses to reach other
// zones, and the bookkeeping that keeps distributed reference counts
// consistent across both (spec §4.2/§4.3).
type Service struct {
	zone Zone
	log  *slog.Logger
	tel  telemetry.Telemetry

	insertControl       sync.Mutex
	nextObject          uint64
	stubs               map[Object]*ObjectStub
	wrappedObjectToStub map[any]*ObjectStub

	proxyControl sync.Mutex
	otherZones   map[DestinationZone]*ServiceProxy
}

// NewService creates an empty registry for zone. tel may be nil, in
// which case telemetry.Noop is used.
func NewService(zone Zone, tel telemetry.Telemetry) *Service {
	if tel == nil {
		tel = telemetry.Noop{}
	}
	s := &Service{
		zone:                zone,
		log:                 slog.Default().With("component", "rpc.service", "zone", zone.String()),
		tel:                 tel,
		stubs:               make(map[Object]*ObjectStub),
		wrappedObjectToStub: make(map[any]*ObjectStub),
		otherZones:          make(map[DestinationZone]*ServiceProxy),
	}
	tel.OnServiceCreation(uint64(zone))
	return s
}

// Close tears the service down and checks that every stub and every
// service proxy has already been released. A non-empty table is
// reported as a warning in the log; Close does not panic or abort,
// and it does not release what is left in the tables.
func (s *Service) Close() {
	s.insertControl.Lock()
	leakedStubs := len(s.stubs)
	leakedImpls := len(s.wrappedObjectToStub)
	s.insertControl.Unlock()
	if leakedImpls != leakedStubs {
		s.log.Warn("stubs and wrapped_object_to_stub diverged", "stubs", leakedStubs, "wrapped_object_to_stub", leakedImpls)
	}

	s.proxyControl.Lock()
	leakedProxies := len(s.otherZones)
	s.proxyControl.Unlock()

	if leakedStubs > 0 {
		s.log.Warn("service closed with outstanding stubs", "count", leakedStubs)
	}
	if leakedProxies > 0 {
		s.log.Warn("service closed with outstanding service proxies", "count", leakedProxies)
	}
	s.tel.OnServiceDeletion(uint64(s.zone))
}

// Zone returns the zone id this registry belongs to.
func (s *Service) Zone() Zone { return s.zone }

// AddLookupStub returns the ObjectStub wrapping impl, creating one
// under a freshly allocated Object id the first time impl is seen and
// reusing it for every later call with the same impl (spec §4.3
// add_lookup_stub, and the round-trip law "bind the same pointer
// twice, get the same object id both times"). impl is compared by
// identity, so callers always pass the same pointer they intend to
// dedupe on.
func (s *Service) AddLookupStub(impl any, interfaces map[InterfaceOrdinal]*InterfaceStub, onRelease func()) *ObjectStub {
	s.insertControl.Lock()
	if existing, ok := s.wrappedObjectToStub[impl]; ok {
		s.insertControl.Unlock()
		return existing
	}

	s.nextObject++
	id := Object(s.nextObject)
	stub := NewObjectStub(id, interfaces, onRelease)
	stub.impl = impl
	s.stubs[id] = stub
	s.wrappedObjectToStub[impl] = stub
	s.insertControl.Unlock()

	s.tel.OnStubCreation(uint64(s.zone), uint64(id))
	return stub
}

func (s *Service) lookupStub(object Object) (*ObjectStub, bool) {
	s.insertControl.Lock()
	defer s.insertControl.Unlock()
	stub, ok := s.stubs[object]
	return stub, ok
}

func (s *Service) dropStub(object Object) {
	s.insertControl.Lock()
	if stub, ok := s.stubs[object]; ok {
		delete(s.wrappedObjectToStub, stub.impl)
	}
	delete(s.stubs, object)
	s.insertControl.Unlock()
	s.tel.OnStubDeletion(uint64(s.zone), uint64(object))
}

// Send dispatches a locally addressed call to the stub for object,
// invoking the InterfaceStub registered for interfaceID. This is the
// server-side half of a Marshaller.Send call once it has reached the
// zone that owns the target object.
func (s *Service) Send(object Object, interfaceID InterfaceOrdinal, method Method, encoding Encoding, in []byte) ([]byte, Status) {
	s.tel.OnSendStart(uint64(s.zone), uint64(object))
	defer s.tel.OnSendEnd(uint64(s.zone), uint64(object))

	stub, ok := s.lookupStub(object)
	if !ok {
		return nil, ObjectNotFound
	}
	iface := stub.GetInterface(interfaceID)
	if iface == nil {
		return nil, InvalidInterfaceID
	}
	return iface.Invoke(method, encoding, in)
}

// TryCast reports whether object exposes interfaceID, attempting a
// dynamic cast against the object's other interfaces on a miss
// (ObjectStub.TryCast, spec §4.2).
func (s *Service) TryCast(object Object, interfaceID InterfaceOrdinal) Status {
	stub, ok := s.lookupStub(object)
	if !ok {
		return ObjectNotFound
	}
	_, status := stub.TryCast(interfaceID)
	return status
}

// AddRef increments object's reference count in this zone. A normal
// (non-optimistic) AddRef first tries to promote an existing
// optimistic reference into a strong one rather than adding a brand
// new strong reference on top of it, matching the "AddRefOptimistic
// followed by a normal AddRef" confirmation sequence of spec §4.1.
func (s *Service) AddRef(object Object, opts AddRefOptions) (uint64, Status) {
	stub, ok := s.lookupStub(object)
	if !ok {
		return 0, ObjectNotFound
	}
	if opts&AddRefOptimistic == 0 {
		if n, promoted := stub.PromoteOptimistic(); promoted {
			s.tel.OnAddRef(uint64(s.zone), uint64(object), n)
			return n, OK
		}
	}
	n := stub.AddRef(opts)
	s.tel.OnAddRef(uint64(s.zone), uint64(object), n)
	return n, OK
}

// Release decrements object's reference count in this zone, tearing
// down and unregistering the stub when the strong count reaches zero.
func (s *Service) Release(object Object, opts ReleaseOptions) (uint64, Status) {
	stub, ok := s.lookupStub(object)
	if !ok {
		return 0, ObjectNotFound
	}
	n, releasedNow := stub.Release(opts)
	s.tel.OnRelease(uint64(s.zone), uint64(object), n)
	if releasedNow {
		s.dropStub(object)
	}
	return n, OK
}

// AddZone registers marshaller as the route to destination, returning
// the ServiceProxy the caller should use, creating one if this zone
// has never talked to destination before (spec §4.3 add_zone).
func (s *Service) AddZone(destination DestinationZone, caller CallerZone, marshaller Marshaller) *ServiceProxy {
	s.proxyControl.Lock()
	defer s.proxyControl.Unlock()
	if existing, ok := s.otherZones[destination]; ok {
		return existing
	}
	proxy := NewServiceProxy(s, OperatingZone(s.zone), destination, caller, marshaller)
	s.otherZones[destination] = proxy
	return proxy
}

// LookupZone returns the ServiceProxy registered for destination, if
// any.
func (s *Service) LookupZone(destination DestinationZone) (*ServiceProxy, bool) {
	s.proxyControl.Lock()
	defer s.proxyControl.Unlock()
	p, ok := s.otherZones[destination]
	return p, ok
}

// RemoveZone unregisters destination's ServiceProxy, e.g. after a
// transport has reported it permanently unreachable.
func (s *Service) RemoveZone(destination DestinationZone) {
	s.proxyControl.Lock()
	delete(s.otherZones, destination)
	s.proxyControl.Unlock()
}

// Terminate drops every ServiceProxy this zone routes through
// marshaller, abandoning their outstanding reference counts rather
// than releasing them. A Transport calls this once it transitions to
// StatusDisconnected (spec §4.6 item 4 "a zone that is shutting down
// broadcasts a zone_terminating post"; §8 boundary behaviour "a zone
// that receives zone_terminating from a peer drops every object_proxy
// routed through that peer without issuing further releases").
func (s *Service) Terminate(marshaller Marshaller) {
	s.proxyControl.Lock()
	var dead []*ServiceProxy
	for dz, p := range s.otherZones {
		if p.marshaller == marshaller {
			dead = append(dead, p)
			delete(s.otherZones, dz)
		}
	}
	s.proxyControl.Unlock()

	for _, p := range dead {
		s.log.Warn("zone terminating, dropping service proxy", "destination", p.destinationZone)
		p.terminate()
	}
}

func (s *Service) retireServiceProxy(p *ServiceProxy) {
	s.proxyControl.Lock()
	if existing, ok := s.otherZones[p.destinationZone]; ok && existing == p {
		delete(s.otherZones, p.destinationZone)
	}
	s.proxyControl.Unlock()
}
