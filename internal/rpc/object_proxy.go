package rpc

import (
	"sync"
	"sync/atomic"
)

// InterfaceProxy is the client-side handle for one interface on a
// remote object. A generated package wraps an InterfaceProxy in a
// typed Go interface implementation whose methods call Invoke with
// their own marshalled arguments (spec §4.4).
type InterfaceProxy struct {
	id     InterfaceOrdinal
	object *ObjectProxy
}

// ID returns the interface ordinal this proxy was obtained for.
func (p *InterfaceProxy) ID() InterfaceOrdinal { return p.id }

// Object returns the owning ObjectProxy.
func (p *InterfaceProxy) Object() *ObjectProxy { return p.object }

// Invoke sends in through the owning ObjectProxy's ServiceProxy and
// returns the reply payload. encoding is not forwarded: the local and
// pipe transports always hand the receiving InterfaceStub EncodingJSON.
func (p *InterfaceProxy) Invoke(method Method, encoding Encoding, in []byte) (out []byte, status Status) {
	return p.object.send(p.id, method, in)
}

// ObjectProxy is the client-side counterpart to a remote ObjectStub:
// one routing entry inside a ServiceProxy, tracking how many local
// holders share it and caching InterfaceProxy instances already
// obtained via QueryInterface (spec §4.4).
//
// refCount is the number of local holders of this proxy (creation
// counts as the first). inheritedReferenceCount and optimisticOwed
// are the strong and optimistic remote references this proxy is
// responsible for releasing once refCount drops to zero: normally
// just the one AddRef its own creation caused, plus whatever it
// inherited from a proxy discarded in a creation race (adoptInherited,
// spec §4.4 "inherited references") or promoted from optimistic to
// strong (Promote, spec §4.1).
type ObjectProxy struct {
	object Object
	proxy  *ServiceProxy

	refCount                atomic.Int64
	inheritedReferenceCount atomic.Int64
	optimisticOwed          atomic.Int64

	mu         sync.Mutex
	interfaces map[InterfaceOrdinal]*InterfaceProxy
}

func newObjectProxy(object Object, proxy *ServiceProxy) *ObjectProxy {
	p := &ObjectProxy{
		object:     object,
		proxy:      proxy,
		interfaces: make(map[InterfaceOrdinal]*InterfaceProxy),
	}
	p.refCount.Store(1)
	return p
}

// Object returns the remote object id this proxy addresses.
func (p *ObjectProxy) Object() Object { return p.object }

// QueryInterface returns a (possibly cached) InterfaceProxy for id,
// asking the remote zone to confirm the cast the first time it is
// requested (spec §4.4, §4.6 TryCast).
func (p *ObjectProxy) QueryInterface(id InterfaceOrdinal) (*InterfaceProxy, Status) {
	p.mu.Lock()
	if existing, ok := p.interfaces[id]; ok {
		p.mu.Unlock()
		return existing, OK
	}
	p.mu.Unlock()

	status := p.proxy.tryCast(p.object, id)
	if status != OK {
		return nil, status
	}

	ip := &InterfaceProxy{id: id, object: p}
	p.mu.Lock()
	if existing, ok := p.interfaces[id]; ok {
		p.mu.Unlock()
		return existing, OK
	}
	p.interfaces[id] = ip
	p.mu.Unlock()
	return ip, OK
}

func (p *ObjectProxy) send(interfaceID InterfaceOrdinal, method Method, in []byte) ([]byte, Status) {
	return p.proxy.send(p.object, interfaceID, method, in)
}

// AddRef records an additional local holder of this proxy, keeping it
// alive until a matching Release is made. Used when code in this zone
// wants to retain the proxy independently of whoever first obtained
// it from GetOrCreateObjectProxy.
func (p *ObjectProxy) AddRef() int64 { return p.refCount.Add(1) }

// Release drops one local holder. When the last holder goes away the
// proxy is torn down: it is removed from its ServiceProxy's table and
// every remote strong/optimistic reference it accrued (its own plus
// anything inherited via adoptInherited or Promote) is released to
// the destination zone in a single call each, satisfying "for every
// add_ref observed by a stub there is exactly one matching release"
// (spec §4.5 "~object_proxy", §4.6).
func (p *ObjectProxy) Release() (refCount int64, status Status) {
	n := p.refCount.Add(-1)
	if n > 0 {
		return n, OK
	}
	strongOwed := uint64(p.inheritedReferenceCount.Swap(0))
	optimisticOwed := uint64(p.optimisticOwed.Swap(0))
	return n, p.proxy.OnObjectProxyReleased(p.object, strongOwed, optimisticOwed)
}

// Promote converts one provisional optimistic hold into a confirmed
// strong one by issuing a normal AddRef to the remote zone, used when
// code that obtained this proxy from an out-of-band interface
// descriptor decides to keep the object rather than merely pass it
// along (spec §4.1 "AddRefOptimistic followed by a normal AddRef").
func (p *ObjectProxy) Promote() (uint64, Status) {
	n, status := p.proxy.addRef(p.object, AddRefNormal)
	if status != OK {
		return n, status
	}
	p.optimisticOwed.Add(-1)
	p.inheritedReferenceCount.Add(1)
	return n, OK
}

// adoptInherited folds another, concurrently-discarded ObjectProxy's
// outstanding remote obligations into this one so that exactly one
// release is eventually issued per add_ref observed on the wire, even
// when two threads raced to create a proxy for the same object (spec
// §4.4 "inherited references").
func (p *ObjectProxy) adoptInherited(strong, optimistic int64) {
	p.inheritedReferenceCount.Add(strong)
	p.optimisticOwed.Add(optimistic)
}
