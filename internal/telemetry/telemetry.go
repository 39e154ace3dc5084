// Package telemetry defines the optional observability hook a zone
// runtime can be wired to, along with a no-op default and a
// Prometheus-backed implementation.
package telemetry

// Telemetry receives lifecycle events from a zone's Service as it is
// created and deleted, as it creates and destroys stubs, as references
// are added and released, and as calls flow through it. Every method must return quickly; none of them may
// block a call in flight. All ids are passed as raw uint64s rather
// than the rpc package's newtypes so this package has no dependency
// on internal/rpc, keeping the hook usable by any future caller.
type Telemetry interface {
	OnServiceCreation(zone uint64)
	OnServiceDeletion(zone uint64)
	OnStubCreation(zone, object uint64)
	OnStubDeletion(zone, object uint64)
	OnAddRef(zone, object, newCount uint64)
	OnRelease(zone, object, newCount uint64)
	OnSendStart(zone, object uint64)
	OnSendEnd(zone, object uint64)
}

// Noop implements Telemetry with no observable effect. It is the
// default used whenever a Service is created without an explicit
// Telemetry.
type Noop struct{}

func (Noop) OnServiceCreation(uint64)        {}
func (Noop) OnServiceDeletion(uint64)        {}
func (Noop) OnStubCreation(uint64, uint64)   {}
func (Noop) OnStubDeletion(uint64, uint64)   {}
func (Noop) OnAddRef(uint64, uint64, uint64) {}
func (Noop) OnRelease(uint64, uint64, uint64) {}
func (Noop) OnSendStart(uint64, uint64)      {}
func (Noop) OnSendEnd(uint64, uint64)        {}
