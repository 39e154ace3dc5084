// Package local implements the in-process Marshaller: two zones that
// happen to live in the same Go process talk directly through each
// other's *rpc.Service, with no serialization step, since the
// payload bytes generated methods produce are already an opaque byte
// slice either side can hand to the other without copying across a
// wire. This mirrors the teacher's habit of wiring a Hub directly
// against a same-process ResourceService when no network hop is
// needed.
package local

import (
	"sync"
	"sync/atomic"

	"github.com/ottermesh/zonerpc/internal/rpc"
)

// Marshaller routes calls directly into peer's Service. callerZone
// and destinationZone are fixed at construction time since a local
// Marshaller always represents exactly one (caller, destination)
// pair, same as any other ServiceProxy's transport.
//
// status and destinations implement the Transport contract of spec
// §4.7: a local Marshaller never reconnects on its own (there is no
// wire to lose), but Terminate lets a caller simulate the peer going
// away, which is how a same-process test exercises zone_terminating
// without a real network drop.
type Marshaller struct {
	peer            *rpc.Service
	destinationZone rpc.DestinationZone
	callerZone      rpc.CallerZone

	status atomic.Int32

	mu           sync.Mutex
	destinations map[rpc.DestinationZone]*rpc.Service
}

// New wires a local Marshaller addressing peer, attributing calls to
// callerZone.
func New(peer *rpc.Service, destinationZone rpc.DestinationZone, callerZone rpc.CallerZone) *Marshaller {
	m := &Marshaller{
		peer:            peer,
		destinationZone: destinationZone,
		callerZone:      callerZone,
		destinations:    make(map[rpc.DestinationZone]*rpc.Service),
	}
	m.status.Store(int32(rpc.StatusConnected))
	return m
}

// Status reports this route's connection state (spec §4.7).
func (m *Marshaller) Status() rpc.TransportStatus {
	return rpc.TransportStatus(m.status.Load())
}

// AddDestination records that svc should be told, via Service.Terminate,
// when this Marshaller stops routing to zone.
func (m *Marshaller) AddDestination(zone rpc.DestinationZone, svc *rpc.Service) {
	m.mu.Lock()
	m.destinations[zone] = svc
	m.mu.Unlock()
}

// RemoveDestination forgets zone; Terminate will no longer notify it.
func (m *Marshaller) RemoveDestination(zone rpc.DestinationZone) {
	m.mu.Lock()
	delete(m.destinations, zone)
	m.mu.Unlock()
}

// Terminate marks this route permanently disconnected and tells every
// registered destination's Service to drop the ServiceProxy routed
// through it (spec §8 boundary behaviour, scenario 6 "transport drop").
func (m *Marshaller) Terminate() {
	m.status.Store(int32(rpc.StatusDisconnected))
	m.mu.Lock()
	services := make([]*rpc.Service, 0, len(m.destinations))
	for _, svc := range m.destinations {
		services = append(services, svc)
	}
	m.mu.Unlock()
	for _, svc := range services {
		svc.Terminate(m)
	}
}

func (m *Marshaller) Send(
	_ rpc.DestinationChannelZone,
	_ rpc.DestinationZone,
	object rpc.Object,
	interfaceID rpc.InterfaceOrdinal,
	method rpc.Method,
	_ rpc.CallerChannelZone,
	_ rpc.CallerZone,
	in []byte,
) ([]byte, rpc.Status) {
	if m.Status() == rpc.StatusDisconnected {
		return nil, rpc.TransportError
	}
	return m.peer.Send(object, interfaceID, method, rpc.EncodingJSON, in)
}

func (m *Marshaller) Post(
	dcz rpc.DestinationChannelZone,
	dz rpc.DestinationZone,
	object rpc.Object,
	interfaceID rpc.InterfaceOrdinal,
	method rpc.Method,
	ccz rpc.CallerChannelZone,
	cz rpc.CallerZone,
	in []byte,
	_ rpc.PostOptions,
) rpc.Status {
	_, status := m.Send(dcz, dz, object, interfaceID, method, ccz, cz, in)
	return status
}

func (m *Marshaller) TryCast(_ rpc.DestinationZone, object rpc.Object, interfaceID rpc.InterfaceOrdinal) rpc.Status {
	if m.Status() == rpc.StatusDisconnected {
		return rpc.TransportError
	}
	return m.peer.TryCast(object, interfaceID)
}

func (m *Marshaller) AddRef(
	_ rpc.DestinationChannelZone,
	_ rpc.DestinationZone,
	object rpc.Object,
	_ rpc.CallerChannelZone,
	_ rpc.CallerZone,
	opts rpc.AddRefOptions,
) (uint64, rpc.Status) {
	if m.Status() == rpc.StatusDisconnected {
		return 0, rpc.TransportError
	}
	return m.peer.AddRef(object, opts)
}

func (m *Marshaller) Release(_ rpc.DestinationZone, object rpc.Object, _ rpc.CallerZone, opts rpc.ReleaseOptions) (uint64, rpc.Status) {
	if m.Status() == rpc.StatusDisconnected {
		return 0, rpc.TransportError
	}
	return m.peer.Release(object, opts)
}
