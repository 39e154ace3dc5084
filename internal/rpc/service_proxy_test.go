package rpc

import (
	"sync"
	"testing"
)

func TestGetOrCreateObjectProxyAddRefIfNew(t *testing.T) {
	svc := NewService(Zone(1), nil)
	m := &countingMarshaller{}
	proxy := svc.AddZone(DestinationZone(2), CallerZone(1), m)

	op1, status := proxy.GetOrCreateObjectProxy(Object(10), AddRefIfNew)
	if status != OK {
		t.Fatalf("first GetOrCreateObjectProxy: got %s, want OK", status)
	}
	if m.addRefs != 1 {
		t.Fatalf("AddRef calls after creation = %d, want 1", m.addRefs)
	}

	op2, status := proxy.GetOrCreateObjectProxy(Object(10), AddRefIfNew)
	if status != OK {
		t.Fatalf("second GetOrCreateObjectProxy: got %s, want OK", status)
	}
	if op1 != op2 {
		t.Fatalf("GetOrCreateObjectProxy returned different proxies for the same object")
	}
	if m.addRefs != 1 {
		t.Fatalf("AddRef calls after reuse = %d, want still 1 (rule only fires on creation)", m.addRefs)
	}
}

func TestGetOrCreateObjectProxyReleaseIfNotNew(t *testing.T) {
	svc := NewService(Zone(1), nil)
	m := &countingMarshaller{}
	proxy := svc.AddZone(DestinationZone(2), CallerZone(1), m)

	if _, status := proxy.GetOrCreateObjectProxy(Object(10), DoNothing); status != OK {
		t.Fatalf("creation: got %s, want OK", status)
	}
	if m.releases != 0 {
		t.Fatalf("unexpected Release on creation: got %d calls", m.releases)
	}

	if _, status := proxy.GetOrCreateObjectProxy(Object(10), ReleaseIfNotNew); status != OK {
		t.Fatalf("reuse with ReleaseIfNotNew: got %s, want OK", status)
	}
	if m.releases != 1 {
		t.Fatalf("Release calls after reuse = %d, want 1", m.releases)
	}
}

func TestOnObjectProxyReleasedRetiresEmptyServiceProxy(t *testing.T) {
	svc := NewService(Zone(1), nil)
	m := &countingMarshaller{}
	proxy := svc.AddZone(DestinationZone(2), CallerZone(1), m)

	if _, status := proxy.GetOrCreateObjectProxy(Object(10), DoNothing); status != OK {
		t.Fatalf("creation: got %s, want OK", status)
	}
	proxy.OnObjectProxyReleased(Object(10), 0, 0)

	if _, ok := svc.LookupZone(DestinationZone(2)); ok {
		t.Fatalf("ServiceProxy still registered after its only ObjectProxy was released")
	}
}

func TestServiceProxyLifetimeLockKeepsProxyAlive(t *testing.T) {
	svc := NewService(Zone(1), nil)
	m := &countingMarshaller{}
	proxy := svc.AddZone(DestinationZone(2), CallerZone(1), m)

	proxy.Lock()
	if _, status := proxy.GetOrCreateObjectProxy(Object(10), DoNothing); status != OK {
		t.Fatalf("creation: got %s, want OK", status)
	}
	proxy.OnObjectProxyReleased(Object(10), 0, 0)

	if _, ok := svc.LookupZone(DestinationZone(2)); !ok {
		t.Fatalf("ServiceProxy retired while lifetime lock was still held")
	}

	proxy.Unlock()
	if _, ok := svc.LookupZone(DestinationZone(2)); ok {
		t.Fatalf("ServiceProxy still registered after lifetime lock released")
	}
}

// racingMarshaller holds every AddRef until all expected callers are
// inside it, so that every racer passes GetOrCreateObjectProxy's first
// lookup before any of them inserts a proxy.
type racingMarshaller struct {
	countingMarshaller
	mu      sync.Mutex
	arrived sync.WaitGroup
}

func (m *racingMarshaller) AddRef(dcz DestinationChannelZone, dz DestinationZone, o Object, ccz CallerChannelZone, cz CallerZone, opts AddRefOptions) (uint64, Status) {
	m.mu.Lock()
	n, status := m.countingMarshaller.AddRef(dcz, dz, o, ccz, cz, opts)
	m.mu.Unlock()
	m.arrived.Done()
	m.arrived.Wait()
	return n, status
}

func TestObjectProxyRaceInheritsOutstandingReferences(t *testing.T) {
	svc := NewService(Zone(1), nil)
	const racers = 8
	m := &racingMarshaller{}
	m.arrived.Add(racers)
	proxy := svc.AddZone(DestinationZone(2), CallerZone(1), m)

	results := make([]*ObjectProxy, racers)
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			op, status := proxy.GetOrCreateObjectProxy(Object(10), AddRefIfNew)
			if status != OK {
				t.Errorf("racer %d: GetOrCreateObjectProxy: got %s, want OK", i, status)
				return
			}
			results[i] = op
		}(i)
	}
	wg.Wait()

	winner := results[0]
	for i, op := range results {
		if op != winner {
			t.Fatalf("racer %d got a different ObjectProxy than racer 0; GetOrCreateObjectProxy must converge on one", i)
		}
	}
	if m.addRefs != racers {
		t.Fatalf("downstream AddRef calls = %d, want %d (one per racer, regardless of who won)", m.addRefs, racers)
	}

	// Every racer's outstanding remote reference must be accounted for
	// on the single surviving ObjectProxy: releasing it racers times
	// should produce exactly racers releases on the wire, no more and
	// no fewer.
	for i := 0; i < racers-1; i++ {
		winner.AddRef()
	}
	for i := 0; i < racers; i++ {
		if _, status := winner.Release(); status != OK {
			t.Fatalf("release %d: got %s, want OK", i, status)
		}
	}
	if m.releases != racers {
		t.Fatalf("downstream Release calls = %d, want %d", m.releases, racers)
	}
}

func TestCloneForZoneIsIndependentlyReleased(t *testing.T) {
	svc := NewService(Zone(1), nil)
	m := &countingMarshaller{}
	proxy := svc.AddZone(DestinationZone(2), CallerZone(1), m)

	clone := proxy.CloneForZone(CallerZone(3))
	if clone.DestinationZone() != proxy.DestinationZone() {
		t.Fatalf("clone destination = %s, want %s", clone.DestinationZone(), proxy.DestinationZone())
	}
	if clone.CallerZone() != CallerZone(3) {
		t.Fatalf("clone caller zone = %s, want caller-zone(3)", clone.CallerZone())
	}
	if clone == proxy {
		t.Fatalf("CloneForZone returned the same record instead of an independent one")
	}

	// Releasing the clone's only object proxy retires the clone, but
	// must leave the original registered for the destination.
	if _, status := clone.GetOrCreateObjectProxy(Object(10), DoNothing); status != OK {
		t.Fatalf("clone GetOrCreateObjectProxy: got %s, want OK", status)
	}
	clone.OnObjectProxyReleased(Object(10), 0, 0)
	if p, ok := svc.LookupZone(DestinationZone(2)); !ok || p != proxy {
		t.Fatalf("releasing the clone affected the original ServiceProxy registration")
	}
}
