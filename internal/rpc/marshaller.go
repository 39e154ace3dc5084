package rpc

import "fmt"

// Encoding selects how a Marshaller implementation serialises the
// envelope around an opaque payload. The payload itself is always
// treated as already-encoded bytes produced by generated marshal
// functions; Encoding only governs the envelope fields (zone ids,
// object ids, method ordinals, ref-count deltas).
type Encoding int

const (
	// EncodingJSON is the default, human-readable encoding, useful
	// for local development and debugging over the pipe transport.
	EncodingJSON Encoding = iota
	// EncodingBinary is a compact gob-based encoding.
	EncodingBinary
	// EncodingCompressedBinary is EncodingBinary piped through gzip,
	// for bandwidth-constrained tunnel links.
	EncodingCompressedBinary
)

func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingBinary:
		return "binary"
	case EncodingCompressedBinary:
		return "compressed-binary"
	default:
		return "unknown"
	}
}

// ParseEncoding converts a configuration-file/CLI-flag encoding name
// ("json", "binary", "compressed-binary") into an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "json":
		return EncodingJSON, nil
	case "binary":
		return EncodingBinary, nil
	case "compressed-binary":
		return EncodingCompressedBinary, nil
	default:
		return 0, fmt.Errorf("rpc: unknown encoding %q", name)
	}
}

// AddRefOptions tunes how AddRef should behave (spec §4.1).
type AddRefOptions uint8

const (
	// AddRefNormal adds one strong reference.
	AddRefNormal AddRefOptions = 0
	// AddRefOptimistic adds one optimistic reference instead of a
	// strong one; the callee may refuse to promote it later.
	AddRefOptimistic AddRefOptions = 1 << (iota - 1)
	// AddRefBuildDestinationRoute asks the callee to also register a
	// route back to the caller's zone, used when establishing a new
	// multi-hop path.
	AddRefBuildDestinationRoute
	// AddRefBuildCallerRoute asks the callee to register the route a
	// reply should travel back over.
	AddRefBuildCallerRoute
)

// ReleaseOptions tunes how Release should behave.
type ReleaseOptions uint8

const (
	// ReleaseNormal releases one strong reference.
	ReleaseNormal ReleaseOptions = 0
	// ReleaseOptimistic releases one optimistic reference instead.
	ReleaseOptimistic ReleaseOptions = 1 << (iota - 1)
)

// PostOptions tunes fire-and-forget delivery.
type PostOptions uint8

// PostNormal is the zero value: deliver once, no acknowledgement
// requested beyond the inline Status the transport may still return
// for transport-level failures.
const PostNormal PostOptions = 0

// TransportStatus reports a concrete transport's connection state
// (spec §4.7). The core neither sets nor reads it; the transports in
// this module use it to refuse calls with TRANSPORT_ERROR once they
// are StatusDisconnected.
type TransportStatus int32

const (
	StatusConnecting TransportStatus = iota
	StatusConnected
	StatusReconnecting
	StatusDisconnected
)

func (s TransportStatus) String() string {
	switch s {
	case StatusConnecting:
		return "CONNECTING"
	case StatusConnected:
		return "CONNECTED"
	case StatusReconnecting:
		return "RECONNECTING"
	case StatusDisconnected:
		return "DISCONNECTED"
	default:
		return fmt.Sprintf("transport-status(%d)", int32(s))
	}
}

// Transport is the external collaborator contract of spec §4.7/§6: a
// Marshaller that additionally tracks its own connection Status and a
// destinations map from the zones it reaches to the Service that
// should be told when this transport dies, so that Service.Terminate
// can be driven automatically rather than left to manual wiring.
type Transport interface {
	Marshaller
	Status() TransportStatus
	AddDestination(zone DestinationZone, svc *Service)
	RemoveDestination(zone DestinationZone)
}

// Marshaller is the contract every concrete transport and every
// in-process shortcut (internal/transport/local) implements. A
// Marshaller represents a live route from one zone to another; all
// five operations return a Status instead of a Go error because the
// Status must be encodable back across zones that may not share Go's
// error representation (spec §4.1, §6).
type Marshaller interface {
	// Send dispatches a call and blocks for its reply. in is the
	// marshalled argument payload; out receives the marshalled
	// return payload on OK.
	Send(
		destinationChannelZone DestinationChannelZone,
		destinationZone DestinationZone,
		object Object,
		interfaceID InterfaceOrdinal,
		method Method,
		callerChannelZone CallerChannelZone,
		callerZone CallerZone,
		in []byte,
	) (out []byte, status Status)

	// Post dispatches a call whose reply payload is discarded. The
	// transports in this module (local and pipe) carry it like Send:
	// they wait for the call to complete and return its Status.
	Post(
		destinationChannelZone DestinationChannelZone,
		destinationZone DestinationZone,
		object Object,
		interfaceID InterfaceOrdinal,
		method Method,
		callerChannelZone CallerChannelZone,
		callerZone CallerZone,
		in []byte,
		opts PostOptions,
	) Status

	// TryCast asks the destination whether object exposes
	// interfaceID, without transferring ownership either way.
	TryCast(
		destinationZone DestinationZone,
		object Object,
		interfaceID InterfaceOrdinal,
	) Status

	// AddRef increments a reference held by callerZone on object
	// within destinationZone, optionally establishing routing state
	// as a side effect (opts).
	AddRef(
		destinationChannelZone DestinationChannelZone,
		destinationZone DestinationZone,
		object Object,
		callerChannelZone CallerChannelZone,
		callerZone CallerZone,
		opts AddRefOptions,
	) (refCount uint64, status Status)

	// Release decrements a reference held by callerZone on object
	// within destinationZone.
	Release(
		destinationZone DestinationZone,
		object Object,
		callerZone CallerZone,
		opts ReleaseOptions,
	) (refCount uint64, status Status)
}
