// Package app holds hand-written stand-ins for what the (out of
// scope) IDL generator would emit: one concrete interface,
// Calculator, registered against internal/rpc.DefaultRegistry and
// wired to a real implementation on the server side and a typed
// client-side proxy on the other.
package app

import (
	"encoding/json"
	"fmt"

	"github.com/ottermesh/zonerpc/internal/rpc"
)

// CalculatorInterfaceID is the stable ordinal a generator would
// derive from the interface's name and method set. Computed once at
// package init and exposed so callers can AddLookupStub/QueryInterface
// against it without recomputing the hash.
var CalculatorInterfaceID rpc.InterfaceOrdinal

// CalculatorInfoInterfaceID is a second interface the same
// calculatorImpl exposes, but only reachable via a dynamic cast off
// CalculatorInterfaceID: NewCalculatorStub never puts it in the
// object's static interface table, so the first QueryInterface for it
// has to go through ObjectStub.TryCast's "ask an existing interface
// stub to cast" fallback (spec §4.2).
var CalculatorInfoInterfaceID rpc.InterfaceOrdinal

const (
	calculatorMethodAdd rpc.Method = 1
	calculatorMethodSub rpc.Method = 2

	calculatorInfoMethodLabel rpc.Method = 1
)

// Calculator is the interface both the server implementation and the
// client proxy satisfy.
type Calculator interface {
	Add(a, b int64) (int64, error)
	Sub(a, b int64) (int64, error)
	// Close drops the reference NewCalculatorClient took on the
	// underlying object proxy. Only the client proxy implements it
	// meaningfully; the server implementation's Close is a no-op.
	Close() error
}

// CalculatorInfo describes the object a Calculator wraps, obtained by
// casting a Calculator's object proxy rather than being listed
// alongside it.
type CalculatorInfo interface {
	Label() (string, error)
}

type binaryArgs struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

type binaryResult struct {
	Value int64 `json:"value"`
}

type labelResult struct {
	Value string `json:"value"`
}

func init() {
	binding := rpc.InterfaceBinding{
		Name: "zonerpc.app.Calculator",
		MarshalIn: func(_ rpc.Method, encoding rpc.Encoding, args any) ([]byte, error) {
			return encodeJSON(encoding, args)
		},
		MarshalOut: func(_ rpc.Method, encoding rpc.Encoding, result any) ([]byte, error) {
			return encodeJSON(encoding, result)
		},
		DemarshalIn: func(_ rpc.Method, encoding rpc.Encoding, data []byte) (any, error) {
			var args binaryArgs
			if err := decodeJSON(encoding, data, &args); err != nil {
				return nil, err
			}
			return args, nil
		},
		DemarshalOut: func(_ rpc.Method, encoding rpc.Encoding, data []byte) (any, error) {
			var result binaryResult
			if err := decodeJSON(encoding, data, &result); err != nil {
				return nil, err
			}
			return result, nil
		},
		CreateProxy: func(ip *rpc.InterfaceProxy) any {
			return &calculatorProxy{ip: ip}
		},
	}
	CalculatorInterfaceID = binding.GetInterfaceID(1)
	rpc.DefaultRegistry.Register(CalculatorInterfaceID, binding)

	infoBinding := rpc.InterfaceBinding{
		Name: "zonerpc.app.CalculatorInfo",
		DemarshalOut: func(_ rpc.Method, encoding rpc.Encoding, data []byte) (any, error) {
			var result labelResult
			if err := decodeJSON(encoding, data, &result); err != nil {
				return nil, err
			}
			return result, nil
		},
		CreateProxy: func(ip *rpc.InterfaceProxy) any {
			return &calculatorInfoProxy{ip: ip}
		},
	}
	CalculatorInfoInterfaceID = infoBinding.GetInterfaceID(1)
	rpc.DefaultRegistry.Register(CalculatorInfoInterfaceID, infoBinding)
}

func encodeJSON(_ rpc.Encoding, v any) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(_ rpc.Encoding, data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// calculatorImpl is the server-side implementation object.
type calculatorImpl struct{}

// NewCalculatorStub creates an ObjectStub wrapping a real Calculator
// implementation in svc, dispatching Add/Sub by method ordinal.
func NewCalculatorStub(svc *rpc.Service) *rpc.ObjectStub {
	impl := &calculatorImpl{}
	iface := &rpc.InterfaceStub{
		ID: CalculatorInterfaceID,
		Invoke: func(method rpc.Method, encoding rpc.Encoding, in []byte) ([]byte, rpc.Status) {
			var args binaryArgs
			if err := decodeJSON(encoding, in, &args); err != nil {
				return nil, rpc.InvalidData
			}
			var (
				value int64
				err   error
			)
			switch method {
			case calculatorMethodAdd:
				value, err = impl.Add(args.A, args.B)
			case calculatorMethodSub:
				value, err = impl.Sub(args.A, args.B)
			default:
				return nil, rpc.InvalidMethodID
			}
			if err != nil {
				return nil, rpc.InvalidData
			}
			out, encErr := encodeJSON(encoding, binaryResult{Value: value})
			if encErr != nil {
				return nil, rpc.InvalidData
			}
			return out, rpc.OK
		},
		Cast: func(ordinal rpc.InterfaceOrdinal) (*rpc.InterfaceStub, bool) {
			if ordinal != CalculatorInfoInterfaceID {
				return nil, false
			}
			return &rpc.InterfaceStub{
				ID: CalculatorInfoInterfaceID,
				Invoke: func(method rpc.Method, encoding rpc.Encoding, _ []byte) ([]byte, rpc.Status) {
					if method != calculatorInfoMethodLabel {
						return nil, rpc.InvalidMethodID
					}
					out, encErr := encodeJSON(encoding, labelResult{Value: impl.Label()})
					if encErr != nil {
						return nil, rpc.InvalidData
					}
					return out, rpc.OK
				},
			}, true
		},
	}
	return svc.AddLookupStub(impl, map[rpc.InterfaceOrdinal]*rpc.InterfaceStub{CalculatorInterfaceID: iface}, func() {})
}

func (calculatorImpl) Add(a, b int64) (int64, error) { return a + b, nil }
func (calculatorImpl) Sub(a, b int64) (int64, error) { return a - b, nil }
func (calculatorImpl) Close() error                  { return nil }
func (calculatorImpl) Label() string                 { return "zonerpc.app.Calculator" }

// calculatorProxy is the client-side stand-in for Calculator,
// marshalling each method call through the underlying InterfaceProxy.
type calculatorProxy struct {
	ip *rpc.InterfaceProxy
}

// NewCalculatorClient returns a Calculator that forwards calls to the
// remote object addressed by objectProxy. It takes its own local hold
// on objectProxy via AddRef, independent of whoever created it, and
// Close releases that hold rather than tearing down objectProxy out
// from under any other holder.
func NewCalculatorClient(objectProxy *rpc.ObjectProxy) (Calculator, error) {
	ip, status := objectProxy.QueryInterface(CalculatorInterfaceID)
	if status != rpc.OK {
		return nil, fmt.Errorf("zonerpc: QueryInterface(Calculator): %s", status)
	}
	objectProxy.AddRef()
	return &calculatorProxy{ip: ip}, nil
}

func (c *calculatorProxy) call(method rpc.Method, a, b int64) (int64, error) {
	in, err := encodeJSON(rpc.EncodingJSON, binaryArgs{A: a, B: b})
	if err != nil {
		return 0, err
	}
	out, status := c.ip.Invoke(method, rpc.EncodingJSON, in)
	if status != rpc.OK {
		return 0, fmt.Errorf("zonerpc: %s", status)
	}
	var result binaryResult
	if err := decodeJSON(rpc.EncodingJSON, out, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (c *calculatorProxy) Add(a, b int64) (int64, error) { return c.call(calculatorMethodAdd, a, b) }
func (c *calculatorProxy) Sub(a, b int64) (int64, error) { return c.call(calculatorMethodSub, a, b) }

func (c *calculatorProxy) Close() error {
	_, status := c.ip.Object().Release()
	if status != rpc.OK {
		return fmt.Errorf("zonerpc: release Calculator object proxy: %s", status)
	}
	return nil
}

// calculatorInfoProxy is the client-side stand-in for CalculatorInfo.
type calculatorInfoProxy struct {
	ip *rpc.InterfaceProxy
}

// NewCalculatorInfoClient returns a CalculatorInfo view of the same
// remote object a Calculator addresses, obtained by asking
// objectProxy for an interface it was never created with and
// triggering a dynamic cast on the stub side.
func NewCalculatorInfoClient(objectProxy *rpc.ObjectProxy) (CalculatorInfo, error) {
	ip, status := objectProxy.QueryInterface(CalculatorInfoInterfaceID)
	if status != rpc.OK {
		return nil, fmt.Errorf("zonerpc: QueryInterface(CalculatorInfo): %s", status)
	}
	return &calculatorInfoProxy{ip: ip}, nil
}

func (c *calculatorInfoProxy) Label() (string, error) {
	out, status := c.ip.Invoke(calculatorInfoMethodLabel, rpc.EncodingJSON, nil)
	if status != rpc.OK {
		return "", fmt.Errorf("zonerpc: %s", status)
	}
	var result labelResult
	if err := decodeJSON(rpc.EncodingJSON, out, &result); err != nil {
		return "", err
	}
	return result.Value, nil
}
