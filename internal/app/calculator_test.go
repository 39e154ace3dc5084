package app_test

import (
	"testing"

	"github.com/ottermesh/zonerpc/internal/app"
	"github.com/ottermesh/zonerpc/internal/rpc"
	"github.com/ottermesh/zonerpc/internal/transport/local"
)

func TestCalculatorOverLocalTransport(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

	stub := app.NewCalculatorStub(serverZone)

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	serviceProxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	objectProxy, status := serviceProxy.GetOrCreateObjectProxy(stub.Object(), rpc.AddRefIfNew)
	if status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	calc, err := app.NewCalculatorClient(objectProxy)
	if err != nil {
		t.Fatalf("NewCalculatorClient: %v", err)
	}
	defer calc.Close()

	sum, err := calc.Add(2, 3)
	if err != nil || sum != 5 {
		t.Fatalf("Add(2, 3) = (%d, %v), want (5, nil)", sum, err)
	}

	diff, err := calc.Sub(10, 4)
	if err != nil || diff != 6 {
		t.Fatalf("Sub(10, 4) = (%d, %v), want (6, nil)", diff, err)
	}
}

func TestCalculatorInfoReachedByDynamicCast(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

	stub := app.NewCalculatorStub(serverZone)

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	serviceProxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	objectProxy, status := serviceProxy.GetOrCreateObjectProxy(stub.Object(), rpc.AddRefIfNew)
	if status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	// CalculatorInfoInterfaceID was never listed in NewCalculatorStub's
	// static interface table; reaching it exercises ObjectStub.TryCast's
	// dynamic-cast fallback.
	info, err := app.NewCalculatorInfoClient(objectProxy)
	if err != nil {
		t.Fatalf("NewCalculatorInfoClient: %v", err)
	}

	label, err := info.Label()
	if err != nil {
		t.Fatalf("Label: %v", err)
	}
	if label != "zonerpc.app.Calculator" {
		t.Fatalf("Label() = %q, want %q", label, "zonerpc.app.Calculator")
	}

	// A second QueryInterface for the same ordinal is now a static hit.
	if _, err := app.NewCalculatorInfoClient(objectProxy); err != nil {
		t.Fatalf("NewCalculatorInfoClient (cached): %v", err)
	}
}

func TestCalculatorQueryInterfaceFailsForUnknownObject(t *testing.T) {
	serverZone := rpc.NewService(rpc.Zone(2), nil)
	clientZone := rpc.NewService(rpc.Zone(1), nil)

	marshaller := local.New(serverZone, rpc.DestinationZone(2), rpc.CallerZone(1))
	serviceProxy := clientZone.AddZone(rpc.DestinationZone(2), rpc.CallerZone(1), marshaller)

	objectProxy, status := serviceProxy.GetOrCreateObjectProxy(rpc.Object(999), rpc.DoNothing)
	if status != rpc.OK {
		t.Fatalf("GetOrCreateObjectProxy: got %s, want OK", status)
	}

	if _, err := app.NewCalculatorClient(objectProxy); err == nil {
		t.Fatalf("NewCalculatorClient: expected error for unregistered object")
	}
}
