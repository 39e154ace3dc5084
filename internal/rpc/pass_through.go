package rpc

import "sync/atomic"

// PassThrough is a Marshaller that forwards every call it receives to
// a downstream Marshaller, used when a zone sits between a caller and
// the zone that actually owns an object (a multi-hop route). Send,
// Post and TryCast are forwarded unchanged; AddRef and Release are
// not forwarded one for one.
//
// PassThrough keeps its own local shared and optimistic counters,
// distinct from the downstream object's: it holds one downstream
// strong reference for as long as the local shared counter is
// non-zero, and one downstream optimistic reference for as long as the
// local optimistic counter is non-zero, no matter how many local
// AddRef calls are folded into each (spec §4.3, grounded in the
// pass-through marshaller described for multi-hop routing).
type PassThrough struct {
	downstream Marshaller

	sharedCount     atomic.Int64
	optimisticCount atomic.Int64

	downstreamHeld    atomic.Bool
	downstreamOptHeld atomic.Bool
}

// NewPassThrough wraps downstream.
func NewPassThrough(downstream Marshaller) *PassThrough {
	return &PassThrough{downstream: downstream}
}

func (pt *PassThrough) Send(
	dcz DestinationChannelZone,
	dz DestinationZone,
	object Object,
	interfaceID InterfaceOrdinal,
	method Method,
	ccz CallerChannelZone,
	cz CallerZone,
	in []byte,
) ([]byte, Status) {
	return pt.downstream.Send(dcz, dz, object, interfaceID, method, ccz, cz, in)
}

func (pt *PassThrough) Post(
	dcz DestinationChannelZone,
	dz DestinationZone,
	object Object,
	interfaceID InterfaceOrdinal,
	method Method,
	ccz CallerChannelZone,
	cz CallerZone,
	in []byte,
	opts PostOptions,
) Status {
	return pt.downstream.Post(dcz, dz, object, interfaceID, method, ccz, cz, in, opts)
}

func (pt *PassThrough) TryCast(dz DestinationZone, object Object, interfaceID InterfaceOrdinal) Status {
	return pt.downstream.TryCast(dz, object, interfaceID)
}

// AddRef increments the local counter selected by opts and, the
// first time that counter becomes non-zero, takes exactly one
// downstream reference of the matching kind.
func (pt *PassThrough) AddRef(
	dcz DestinationChannelZone,
	dz DestinationZone,
	object Object,
	ccz CallerChannelZone,
	cz CallerZone,
	opts AddRefOptions,
) (uint64, Status) {
	optimistic := opts&AddRefOptimistic != 0
	var n int64
	if optimistic {
		n = pt.optimisticCount.Add(1)
	} else {
		n = pt.sharedCount.Add(1)
	}

	needDownstream := false
	if optimistic {
		needDownstream = pt.downstreamOptHeld.CompareAndSwap(false, true)
	} else {
		needDownstream = pt.downstreamHeld.CompareAndSwap(false, true)
	}
	if needDownstream {
		if _, status := pt.downstream.AddRef(dcz, dz, object, ccz, cz, opts); status != OK {
			if optimistic {
				pt.optimisticCount.Add(-1)
				pt.downstreamOptHeld.Store(false)
			} else {
				pt.sharedCount.Add(-1)
				pt.downstreamHeld.Store(false)
			}
			return 0, status
		}
	}
	return uint64(n), OK
}

// Release decrements the local counter selected by opts and, when it
// returns to zero, releases the single downstream reference it was
// standing in for.
func (pt *PassThrough) Release(dz DestinationZone, object Object, cz CallerZone, opts ReleaseOptions) (uint64, Status) {
	optimistic := opts&ReleaseOptimistic != 0
	var n int64
	if optimistic {
		n = pt.optimisticCount.Add(-1)
	} else {
		n = pt.sharedCount.Add(-1)
	}

	if n == 0 {
		releaseDownstream := false
		if optimistic {
			releaseDownstream = pt.downstreamOptHeld.CompareAndSwap(true, false)
		} else {
			releaseDownstream = pt.downstreamHeld.CompareAndSwap(true, false)
		}
		if releaseDownstream {
			return pt.downstream.Release(dz, object, cz, opts)
		}
	}
	return uint64(n), OK
}
