package rpc

import (
	"sync"
	"sync/atomic"
)

// ObjectProxyRule controls what GetOrCreateObjectProxy does about the
// reference count when it either finds an existing ObjectProxy or has
// to create one (spec §4.4/§4.5 "building a destination route").
type ObjectProxyRule int

const (
	// DoNothing returns whatever ObjectProxy already exists (or a
	// freshly created one that owes no remote reference) without
	// touching the remote reference count.
	DoNothing ObjectProxyRule = iota
	// AddRefIfNew calls AddRef on the remote object only if this
	// call is what creates the ObjectProxy; an existing proxy is
	// returned untouched.
	AddRefIfNew
	// ReleaseIfNotNew calls Release on the remote object if an
	// ObjectProxy already existed, used when the caller is handing
	// back a reference it was loaned as part of a reply payload.
	ReleaseIfNotNew
)

// ServiceProxy is one routing record inside a Service: "calls headed
// to DestinationZone go out over Marshaller, and are attributed to
// CallerZone when they get there" (spec §4.3). A Service holds one
// ServiceProxy per zone it can currently reach. CloneForZone produces
// further records for the same destination on behalf of a different
// caller; a clone is returned to its creator and is not registered in
// the Service.
type ServiceProxy struct {
	operatingZone          OperatingZone
	destinationZone        DestinationZone
	destinationChannelZone DestinationChannelZone
	callerZone             CallerZone
	callerChannelZone      CallerChannelZone
	clonedFrom             ClonedFromZone

	marshaller Marshaller
	owner      *Service

	mu            sync.Mutex
	objectProxies map[Object]*ObjectProxy

	lifetimeLockCount atomic.Int64
	terminated        atomic.Bool
}

// NewServiceProxy wires a routing record for destination, reachable
// over marshaller, owned by owner (the Service that will clean it up
// when its lifetimeLockCount drops to zero).
func NewServiceProxy(owner *Service, operating OperatingZone, destination DestinationZone, caller CallerZone, marshaller Marshaller) *ServiceProxy {
	return &ServiceProxy{
		operatingZone:   operating,
		destinationZone: destination,
		callerZone:      caller,
		marshaller:      marshaller,
		owner:           owner,
		objectProxies:   make(map[Object]*ObjectProxy),
	}
}

// DestinationZone reports the zone this record routes calls to.
func (p *ServiceProxy) DestinationZone() DestinationZone { return p.destinationZone }

// CallerZone reports the zone calls routed through this record are
// attributed to at the destination.
func (p *ServiceProxy) CallerZone() CallerZone { return p.callerZone }

// Lock increments the lifetime lock count, keeping this record alive
// even if its last ObjectProxy goes away (used while a call that
// references it is in flight).
func (p *ServiceProxy) Lock() int64 { return p.lifetimeLockCount.Add(1) }

// Unlock decrements the lifetime lock count. When it and the
// ObjectProxy table both reach zero, the owning Service retires this
// record (spec §4.3 lifetime_lock_count).
func (p *ServiceProxy) Unlock() int64 {
	n := p.lifetimeLockCount.Add(-1)
	if n == 0 {
		p.maybeRetire()
	}
	return n
}

func (p *ServiceProxy) maybeRetire() {
	p.mu.Lock()
	empty := len(p.objectProxies) == 0
	p.mu.Unlock()
	if empty && p.owner != nil {
		p.owner.retireServiceProxy(p)
	}
}

// GetOrCreateObjectProxy returns the ObjectProxy for object on this
// route, creating it if needed, and applies rule to decide whether a
// remote AddRef/Release accompanies creation vs. reuse. Creating a new
// ObjectProxy bumps lifetimeLockCount for as long as that proxy lives
// (spec §4.4 "bump the service_proxy's lifetime_lock_count").
//
// The remote AddRef for a brand new proxy happens without holding mu,
// since it may block on the wire; two callers can therefore both
// decide object needs a new proxy and both issue their own AddRef
// before either inserts into objectProxies. Whichever loses that race
// discovers the winner's proxy already registered and folds its own
// already-issued remote reference into it via adoptInherited, so the
// extra add_ref observed by the destination still gets exactly one
// matching release (spec §4.4 "inherited references").
func (p *ServiceProxy) GetOrCreateObjectProxy(object Object, rule ObjectProxyRule) (*ObjectProxy, Status) {
	p.mu.Lock()
	if existing, ok := p.objectProxies[object]; ok {
		p.mu.Unlock()
		if rule == ReleaseIfNotNew {
			p.release(object, ReleaseNormal)
		}
		return existing, OK
	}
	p.mu.Unlock()

	candidate := newObjectProxy(object, p)
	if rule == AddRefIfNew {
		if _, status := p.addRef(object, AddRefNormal); status != OK {
			return nil, status
		}
		candidate.inheritedReferenceCount.Add(1)
	}

	p.mu.Lock()
	if existing, ok := p.objectProxies[object]; ok {
		p.mu.Unlock()
		existing.adoptInherited(candidate.inheritedReferenceCount.Load(), candidate.optimisticOwed.Load())
		if rule == ReleaseIfNotNew {
			p.release(object, ReleaseNormal)
		}
		return existing, OK
	}
	p.objectProxies[object] = candidate
	p.lifetimeLockCount.Add(1)
	p.mu.Unlock()
	return candidate, OK
}

// OnObjectProxyReleased removes object's ObjectProxy from this
// record's table, releases strongOwed/optimisticOwed remote
// references to the destination zone, and retires the record if that
// was its last object proxy and its lifetime lock is also zero (spec
// §4.4 on_object_proxy_released).
func (p *ServiceProxy) OnObjectProxyReleased(object Object, strongOwed, optimisticOwed uint64) Status {
	p.mu.Lock()
	_, existed := p.objectProxies[object]
	delete(p.objectProxies, object)
	p.mu.Unlock()

	status := OK
	for i := uint64(0); i < strongOwed; i++ {
		if _, s := p.release(object, ReleaseNormal); s != OK {
			status = s
		}
	}
	for i := uint64(0); i < optimisticOwed; i++ {
		if _, s := p.release(object, ReleaseOptimistic); s != OK {
			status = s
		}
	}

	if existed {
		if n := p.lifetimeLockCount.Add(-1); n == 0 && p.owner != nil {
			p.owner.retireServiceProxy(p)
		}
		return status
	}

	p.mu.Lock()
	empty := len(p.objectProxies) == 0
	p.mu.Unlock()
	if empty && p.lifetimeLockCount.Load() == 0 && p.owner != nil {
		p.owner.retireServiceProxy(p)
	}
	return status
}

// terminate marks this routing record permanently dead: further
// calls fail fast with ZoneNotFound and destroying its object proxies
// issues no further wire traffic (spec §8 boundary behaviour "a zone
// that receives zone_terminating... drops every object_proxy routed
// through that peer without issuing further releases").
func (p *ServiceProxy) terminate() {
	p.terminated.Store(true)
}

// CloneForZone produces a new ServiceProxy reaching the same
// destination but operating on behalf of newCaller, independently
// released from the original (spec invariant: cloning a service_proxy
// reaching the same destination_zone, caller_zone pair is idempotent
// up to object identity; clones do not share lifetime).
func (p *ServiceProxy) CloneForZone(newCaller CallerZone) *ServiceProxy {
	clone := NewServiceProxy(p.owner, p.operatingZone, p.destinationZone, newCaller, p.marshaller)
	clone.clonedFrom = ClonedFromZone(p.operatingZone)
	clone.destinationChannelZone = p.destinationChannelZone
	clone.callerChannelZone = p.callerChannelZone
	return clone
}

func (p *ServiceProxy) send(object Object, interfaceID InterfaceOrdinal, method Method, in []byte) ([]byte, Status) {
	if p.terminated.Load() {
		return nil, ZoneNotFound
	}
	return p.marshaller.Send(p.destinationChannelZone, p.destinationZone, object, interfaceID, method, p.callerChannelZone, p.callerZone, in)
}

func (p *ServiceProxy) tryCast(object Object, interfaceID InterfaceOrdinal) Status {
	if p.terminated.Load() {
		return ZoneNotFound
	}
	return p.marshaller.TryCast(p.destinationZone, object, interfaceID)
}

func (p *ServiceProxy) addRef(object Object, opts AddRefOptions) (uint64, Status) {
	if p.terminated.Load() {
		return 0, ZoneNotFound
	}
	return p.marshaller.AddRef(p.destinationChannelZone, p.destinationZone, object, p.callerChannelZone, p.callerZone, opts)
}

// release is a no-op once this record has terminated: a zone that
// drops proxies routed through a dead peer issues no further releases
// (spec §8 boundary behaviour).
func (p *ServiceProxy) release(object Object, opts ReleaseOptions) (uint64, Status) {
	if p.terminated.Load() {
		return 0, OK
	}
	return p.marshaller.Release(p.destinationZone, object, p.callerZone, opts)
}
