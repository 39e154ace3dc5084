// Package rpc implements the zone runtime: the per-zone object
// registry (Service), the per-destination routing record
// (ServiceProxy), server-side dispatch (ObjectStub/InterfaceStub),
// client-side dispatch (ObjectProxy/InterfaceProxy), and the
// distributed reference-counting protocol that keeps them all
// consistent in the presence of concurrent release, multi-hop
// routing, and transport loss.
//
// A zone is a unit of execution with its own address space and its
// own object-id numbering. Zones never share memory; they exchange
// only opaque byte buffers through a Marshaller. This package never
// assumes anything about how those buffers travel — see
// internal/transport for concrete carriers.
package rpc

import "fmt"

// Zone identifies a unit of execution with its own address space and
// object-id namespace. The zero value means "unassigned".
type Zone uint64

// String renders the zone id for logging.
func (z Zone) String() string { return fmt.Sprintf("zone(%d)", uint64(z)) }

// IsZero reports whether the zone id is unassigned.
func (z Zone) IsZero() bool { return z == 0 }

// DestinationZone is the zone a message is addressed to.
type DestinationZone uint64

func (z DestinationZone) String() string { return fmt.Sprintf("dest-zone(%d)", uint64(z)) }
func (z DestinationZone) IsZero() bool   { return z == 0 }

// CallerZone is the zone that is ultimately responsible for a call,
// as distinct from the zone that happened to forward it. Two hops of
// the same logical call share a CallerZone but may differ in the
// zone that physically delivered the bytes (see CallerChannelZone).
type CallerZone uint64

func (z CallerZone) String() string { return fmt.Sprintf("caller-zone(%d)", uint64(z)) }
func (z CallerZone) IsZero() bool   { return z == 0 }

// CallerChannelZone is the zone that delivered a call into the
// current zone, which may differ from CallerZone when the call
// traversed more than one hop.
type CallerChannelZone uint64

func (z CallerChannelZone) IsZero() bool { return z == 0 }

// DestinationChannelZone is the zone that will physically carry a
// reply back, mirroring CallerChannelZone for the reverse direction.
type DestinationChannelZone uint64

func (z DestinationChannelZone) IsZero() bool { return z == 0 }

// ClonedFromZone identifies the zone a ServiceProxy was cloned from.
// A clone answers the same destination but is released independently
// of its source (spec invariant: cloning produces a record that
// reaches the same destination but can be independently released).
type ClonedFromZone uint64

// OperatingZone identifies the zone a ServiceProxy currently operates
// on, i.e. the zone whose Service owns it. Distinct from
// ClonedFromZone so that clone_for_zone can change the (destination,
// caller) pair of a routing record while preserving where it lives.
type OperatingZone uint64

// Object is an id for an implementation object, unique within the
// zone that created it. The zero value means "no object" / "none".
type Object uint64

func (o Object) String() string { return fmt.Sprintf("object(%d)", uint64(o)) }
func (o Object) IsZero() bool   { return o == 0 }

// InterfaceOrdinal is a stable 64-bit hash identifying the shape of
// an interface (its method set under a given protocol version). It
// is produced by the (out-of-scope) IDL generator; the core only
// ever compares it for equality and uses it as a map key.
type InterfaceOrdinal uint64

func (i InterfaceOrdinal) String() string { return fmt.Sprintf("interface(%#x)", uint64(i)) }

// Method is a stable ordinal identifying one method of an interface.
type Method uint64
