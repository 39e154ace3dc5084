package rpc

import (
	"sync"
	"sync/atomic"
)

// InterfaceStub is the server-side dispatch table for one interface
// exposed by an ObjectStub. Invoke receives the marshalled argument
// payload for method and returns the marshalled result and a Status.
// Neither ObjectStub nor Service recovers a panic raised inside
// Invoke; it propagates to the goroutine that dispatched the call.
type InterfaceStub struct {
	ID InterfaceOrdinal

	// Invoke dispatches method against the wrapped implementation.
	// encoding tells Invoke which wire encoding in was produced with
	// and out must be produced with, so it can call the right
	// generated (de)marshal functions via the binding registry.
	Invoke func(method Method, encoding Encoding, in []byte) (out []byte, status Status)

	// Cast attempts to produce an InterfaceStub for a sibling ordinal
	// exposed by the same underlying implementation, mirroring a
	// dynamic_cast between two interfaces of one object. Generated
	// code that implements a single interface leaves this nil; code
	// generated for an implementation exposing more than one
	// interface wires it to try each one in turn (spec §4.2 "ask any
	// existing interface_stub to attempt a cast").
	Cast func(ordinal InterfaceOrdinal) (*InterfaceStub, bool)
}

// ObjectStub is the server-side counterpart to a client's
// ObjectProxy: one entry in a Service's stub table, wrapping exactly
// one implementation object and fanning out calls to the
// InterfaceStub registered for whichever interface ordinal the
// caller names (spec §4.2).
//
// shared_count is the strong reference count; once it reaches zero
// the implementation object is released back to its owner.
// optimistic_count is tracked separately: an optimistic reference
// never keeps the object alive by itself; it must be promoted via
// PromoteOptimistic (which Service.AddRef tries first for a normal
// AddRef) before it does.
type ObjectStub struct {
	object Object

	// impl identifies the wrapped implementation for the owning
	// Service's wrapped_object_to_stub deduplication map (spec §4.2/
	// §4.3). Opaque to ObjectStub itself; only used as a map key.
	impl any

	sharedCount     atomic.Int64
	optimisticCount atomic.Int64

	// mapControl guards interfaces, the per-stub interface-stub map
	// (spec §5 object_stub::map_control).
	mapControl sync.Mutex
	interfaces map[InterfaceOrdinal]*InterfaceStub

	// release is invoked exactly once, when sharedCount first drops
	// to zero, to let the owner tear down the wrapped implementation.
	release func()
}

// NewObjectStub wraps impl under object, with interfaces as the
// dispatch table its proxies may call into. The initial shared count
// is 1, matching the convention that creating a stub hands the
// creator an owning reference (spec §4.2).
func NewObjectStub(object Object, interfaces map[InterfaceOrdinal]*InterfaceStub, onRelease func()) *ObjectStub {
	s := &ObjectStub{
		object:     object,
		interfaces: interfaces,
		release:    onRelease,
	}
	s.sharedCount.Store(1)
	return s
}

// Object returns the object id this stub wraps.
func (s *ObjectStub) Object() Object { return s.object }

// GetInterface returns the dispatch table for id, or nil if the
// wrapped implementation does not expose it. It never attempts a
// dynamic cast; callers that want one use TryCast.
func (s *ObjectStub) GetInterface(id InterfaceOrdinal) *InterfaceStub {
	s.mapControl.Lock()
	defer s.mapControl.Unlock()
	return s.interfaces[id]
}

// TryCast returns the InterfaceStub for id, first checking the static
// dispatch table and, on a miss, asking every already-registered
// InterfaceStub to attempt a cast to id. A successful cast is
// registered under id so future lookups are static hits (spec §4.2
// "ask any existing interface_stub to attempt a cast ... insert the
// new interface_stub under its ordinal").
func (s *ObjectStub) TryCast(id InterfaceOrdinal) (*InterfaceStub, Status) {
	s.mapControl.Lock()
	if iface, ok := s.interfaces[id]; ok {
		s.mapControl.Unlock()
		return iface, OK
	}
	candidates := make([]*InterfaceStub, 0, len(s.interfaces))
	for _, iface := range s.interfaces {
		candidates = append(candidates, iface)
	}
	s.mapControl.Unlock()

	for _, iface := range candidates {
		if iface.Cast == nil {
			continue
		}
		cast, ok := iface.Cast(id)
		if !ok {
			continue
		}
		s.mapControl.Lock()
		if existing, ok := s.interfaces[id]; ok {
			s.mapControl.Unlock()
			return existing, OK
		}
		s.interfaces[id] = cast
		s.mapControl.Unlock()
		return cast, OK
	}
	return nil, InvalidCast
}

// AddRef adds a strong or optimistic reference per opts and returns
// the post-increment strong count.
func (s *ObjectStub) AddRef(opts AddRefOptions) uint64 {
	if opts&AddRefOptimistic != 0 {
		s.optimisticCount.Add(1)
		return uint64(s.sharedCount.Load())
	}
	return uint64(s.sharedCount.Add(1))
}

// Release removes a strong or optimistic reference per opts. When a
// strong release drops the shared count to zero, release fires
// exactly once and ReleasedNow reports true.
func (s *ObjectStub) Release(opts ReleaseOptions) (refCount uint64, releasedNow bool) {
	if opts&ReleaseOptimistic != 0 {
		s.optimisticCount.Add(-1)
		return uint64(s.sharedCount.Load()), false
	}
	n := s.sharedCount.Add(-1)
	if n == 0 {
		if s.release != nil {
			s.release()
		}
		return 0, true
	}
	return uint64(n), false
}

// PromoteOptimistic converts one optimistic reference into a strong
// one, used when a caller that previously held only an optimistic
// reference confirms it still needs the object (spec §4.1 AddRef
// semantics for AddRefOptimistic followed by a normal AddRef).
func (s *ObjectStub) PromoteOptimistic() (refCount uint64, ok bool) {
	for {
		cur := s.optimisticCount.Load()
		if cur <= 0 {
			return uint64(s.sharedCount.Load()), false
		}
		shared := s.sharedCount.Load()
		if shared <= 0 {
			return 0, false
		}
		if !s.optimisticCount.CompareAndSwap(cur, cur-1) {
			continue
		}
		if s.sharedCount.CompareAndSwap(shared, shared+1) {
			return uint64(shared + 1), true
		}
		s.optimisticCount.Add(1)
	}
}
