package rpc

import (
	"fmt"
	"sync/atomic"
)

// Status is the integer result code returned inline from every
// Marshaller operation (spec §6/§7). Service does not recover panics
// raised by an implementation while dispatching a call, so such a
// panic is not translated into one of these codes.
type Status int32

// Well-known status codes. All are negative by default; see
// SetPositiveOffset to remap them into a positive range that can
// coexist with application-domain negative codes (spec §6).
const (
	OK Status = -iota
	OutOfMemory
	NeedMoreMemory
	SecurityError
	InvalidData
	TransportError
	InvalidMethodID
	InvalidInterfaceID
	InvalidCast
	ZoneNotSupported
	ZoneNotInitialised
	ZoneNotFound
	ObjectNotFound
)

var statusNames = map[Status]string{
	OK:                 "OK",
	OutOfMemory:        "OUT_OF_MEMORY",
	NeedMoreMemory:     "NEED_MORE_MEMORY",
	SecurityError:      "SECURITY_ERROR",
	InvalidData:        "INVALID_DATA",
	TransportError:     "TRANSPORT_ERROR",
	InvalidMethodID:    "INVALID_METHOD_ID",
	InvalidInterfaceID: "INVALID_INTERFACE_ID",
	InvalidCast:        "INVALID_CAST",
	ZoneNotSupported:   "ZONE_NOT_SUPPORTED",
	ZoneNotInitialised: "ZONE_NOT_INITIALISED",
	ZoneNotFound:       "ZONE_NOT_FOUND",
	ObjectNotFound:     "OBJECT_NOT_FOUND",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// okVal, offsetVal, offsetNegative, and offsetIsApplied implement the
// "configuration toggle" of spec §6 that remaps codes into a positive
// region. They are package globals, not per-Service state, mirroring
// the process-wide nature of rpc::error::set_offset_val in the
// original C++ (a single process picks one convention at startup).
var (
	okVal           atomic.Int32
	offsetVal       atomic.Int32
	offsetNegative  atomic.Bool
	offsetIsApplied atomic.Bool
)

// SetOKValue changes the integer that represents success. Call once
// at process start if the host application's convention differs from
// zero.
func SetOKValue(val int32) { okVal.Store(val) }

// SetPositiveOffset enables remapping in Status.Encode: every status
// below OK (i.e. every negative code) encodes as (offset - status)
// when negative is false, or (offset + status) when negative is true.
// This lets an embedding application keep its own negative
// error-code space free of collisions.
func SetPositiveOffset(offset int32, negative bool) {
	offsetVal.Store(offset)
	offsetNegative.Store(negative)
	offsetIsApplied.Store(true)
}

// Encode applies the process-wide OK value and offset configuration
// to a status. Marshaller operations and the pipe codec carry Status
// values as they are, without passing them through Encode.
func (s Status) Encode() int32 {
	v := int32(s)
	if s == OK {
		return okVal.Load()
	}
	if offsetIsApplied.Load() {
		if offsetNegative.Load() {
			return offsetVal.Load() + v
		}
		return offsetVal.Load() - v
	}
	return v
}

// ErrorCode categorises a DomainError for translation at a process
// boundary (e.g. into ConnectRPC/gRPC codes), mirroring the teacher's
// core.ErrorCode / handler.domainCodeToConnectCode split between a
// small generic enum and concrete sentinel types for conditions
// callers branch on.
type ErrorCode int

const (
	ErrorCodeInternal ErrorCode = iota
	ErrorCodeInvalidArgument
	ErrorCodeNotFound
	ErrorCodeAlreadyExists
	ErrorCodeResourceExhausted
	ErrorCodeFailedPrecondition
	ErrorCodeUnavailable
)

// DomainError is a generic coded error for conditions that do not
// warrant their own concrete type. Cause, when set, is preserved for
// errors.Unwrap.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Cause }

// ErrZoneNotFound indicates that a routing operation named a
// destination zone this Service has no ServiceProxy for (spec §4.3,
// §8 boundary behaviours).
type ErrZoneNotFound struct {
	Zone DestinationZone
}

func (e *ErrZoneNotFound) Error() string {
	return fmt.Sprintf("rpc: %s not registered", e.Zone)
}

// ErrObjectNotFound indicates that an object id is not present in a
// Service's stub map (spec §8 boundary behaviours).
type ErrObjectNotFound struct {
	Object Object
}

func (e *ErrObjectNotFound) Error() string {
	return fmt.Sprintf("rpc: object %s not found", e.Object)
}

// ErrInterfaceNotFound indicates INVALID_INTERFACE_ID: the object
// exists but does not expose the requested interface ordinal.
type ErrInterfaceNotFound struct {
	Object    Object
	Interface InterfaceOrdinal
}

func (e *ErrInterfaceNotFound) Error() string {
	return fmt.Sprintf("rpc: object %s has no interface %s", e.Object, e.Interface)
}

// ErrZoneNotInitialised indicates that a ServiceProxy has been torn
// down (its owning Service reference no longer upgrades), so further
// calls through it are fatal to the caller (spec §7).
type ErrZoneNotInitialised struct {
	Zone DestinationZone
}

func (e *ErrZoneNotInitialised) Error() string {
	return fmt.Sprintf("rpc: %s not initialised", e.Zone)
}
