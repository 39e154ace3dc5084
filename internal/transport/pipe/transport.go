package pipe

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ottermesh/zonerpc/internal/rpc"
)

// Marshaller is a Send/Post/TryCast/AddRef/Release implementation
// that frames calls over a single net.Conn (normally the client side
// of a Listener.Dial pair, or a tunnel.Bridge connection) using
// codec. Each exported method blocks the caller's goroutine for the
// duration of the round trip; concurrent callers' requests are
// serialised onto the connection through the calls channel and the
// loop goroutine.
//
// status and destinations implement the Transport contract of spec
// §4.7: the first read or write failure on conn flips status to
// StatusDisconnected and fires Terminate, which tells every zone this
// connection used to reach that its peer is gone for good.
type Marshaller struct {
	conn  net.Conn
	codec *codec
	log   *slog.Logger
	calls chan *call

	status atomic.Int32

	mu           sync.Mutex
	destinations map[rpc.DestinationZone]*rpc.Service
}

type call struct {
	req   *envelope
	reply chan *envelope
}

// NewMarshaller wraps conn, framing every call with encoding, and
// starts the goroutine that serialises requests onto the connection
// and demultiplexes replies back to their caller.
func NewMarshaller(conn net.Conn, encoding rpc.Encoding) *Marshaller {
	m := &Marshaller{
		conn:         conn,
		codec:        newCodec(conn, encoding),
		log:          slog.Default().With("component", "transport.pipe.marshaller"),
		calls:        make(chan *call),
		destinations: make(map[rpc.DestinationZone]*rpc.Service),
	}
	m.status.Store(int32(rpc.StatusConnected))
	go m.loop()
	return m
}

func (m *Marshaller) loop() {
	for req := range m.calls {
		if err := m.codec.writeEnvelope(req.req); err != nil {
			m.log.Error("write envelope failed", "err", err)
			close(req.reply)
			m.Terminate()
			continue
		}
		reply, err := m.codec.readEnvelope()
		if err != nil {
			m.log.Error("read envelope failed", "err", err)
			close(req.reply)
			m.Terminate()
			continue
		}
		req.reply <- reply
	}
}

// Status reports this connection's state (spec §4.7).
func (m *Marshaller) Status() rpc.TransportStatus {
	return rpc.TransportStatus(m.status.Load())
}

// AddDestination records that svc should be told, via Service.Terminate,
// when this connection dies.
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

// Terminate marks this connection permanently disconnected and tells
// every registered destination's Service to drop the ServiceProxy
// routed through it (spec §8 scenario 6 "transport drop"). Safe to
// call more than once; only the first call has any effect.
func (m *Marshaller) Terminate() {
	if !m.status.CompareAndSwap(int32(rpc.StatusConnected), int32(rpc.StatusDisconnected)) &&
		!m.status.CompareAndSwap(int32(rpc.StatusReconnecting), int32(rpc.StatusDisconnected)) {
		return
	}
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

func (m *Marshaller) roundTrip(req *envelope) (*envelope, rpc.Status) {
	if m.Status() == rpc.StatusDisconnected {
		return nil, rpc.TransportError
	}
	req.CallID = uuid.NewString()
	c := &call{req: req, reply: make(chan *envelope, 1)}
	m.calls <- c
	reply, ok := <-c.reply
	if !ok {
		m.log.Warn("call failed", "call_id", req.CallID)
		return nil, rpc.TransportError
	}
	return reply, rpc.OK
}

func (m *Marshaller) Send(
	dcz rpc.DestinationChannelZone,
	dz rpc.DestinationZone,
	object rpc.Object,
	interfaceID rpc.InterfaceOrdinal,
	method rpc.Method,
	ccz rpc.CallerChannelZone,
	cz rpc.CallerZone,
	in []byte,
) ([]byte, rpc.Status) {
	reply, status := m.roundTrip(&envelope{
		Op: opSend, DestinationChannelZone: dcz, DestinationZone: dz,
		Object: object, InterfaceID: interfaceID, Method: method,
		CallerChannelZone: ccz, CallerZone: cz, Payload: in,
	})
	if status != rpc.OK {
		return nil, status
	}
	return reply.Payload, reply.Status
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
	opts rpc.PostOptions,
) rpc.Status {
	reply, status := m.roundTrip(&envelope{
		Op: opPost, DestinationChannelZone: dcz, DestinationZone: dz,
		Object: object, InterfaceID: interfaceID, Method: method,
		CallerChannelZone: ccz, CallerZone: cz, Payload: in, PostOpts: opts,
	})
	if status != rpc.OK {
		return status
	}
	return reply.Status
}

func (m *Marshaller) TryCast(dz rpc.DestinationZone, object rpc.Object, interfaceID rpc.InterfaceOrdinal) rpc.Status {
	reply, status := m.roundTrip(&envelope{Op: opTryCast, DestinationZone: dz, Object: object, InterfaceID: interfaceID})
	if status != rpc.OK {
		return status
	}
	return reply.Status
}

func (m *Marshaller) AddRef(
	dcz rpc.DestinationChannelZone,
	dz rpc.DestinationZone,
	object rpc.Object,
	ccz rpc.CallerChannelZone,
	cz rpc.CallerZone,
	opts rpc.AddRefOptions,
) (uint64, rpc.Status) {
	reply, status := m.roundTrip(&envelope{
		Op: opAddRef, DestinationChannelZone: dcz, DestinationZone: dz,
		Object: object, CallerChannelZone: ccz, CallerZone: cz, AddRefOpts: opts,
	})
	if status != rpc.OK {
		return 0, status
	}
	return reply.RefCount, reply.Status
}

func (m *Marshaller) Release(dz rpc.DestinationZone, object rpc.Object, cz rpc.CallerZone, opts rpc.ReleaseOptions) (uint64, rpc.Status) {
	reply, status := m.roundTrip(&envelope{
		Op: opRelease, DestinationZone: dz, Object: object, CallerZone: cz, ReleaseOpts: opts,
	})
	if status != rpc.OK {
		return 0, status
	}
	return reply.RefCount, reply.Status
}

// Close shuts down the connection and stops the marshaller's loop.
func (m *Marshaller) Close() error {
	close(m.calls)
	return m.conn.Close()
}

// Serve reads envelopes off conn and dispatches them against svc
// until the connection closes, replying to each with a framed
// opReply envelope. It is the server-side half of Marshaller and
// normally runs in its own goroutine per accepted connection.
func Serve(conn net.Conn, svc *rpc.Service, encoding rpc.Encoding) error {
	c := newCodec(conn, encoding)
	log := slog.Default().With("component", "transport.pipe.server", "zone", svc.Zone().String())
	for {
		req, err := c.readEnvelope()
		if err != nil {
			return err
		}
		reply := dispatch(svc, req)
		if err := c.writeEnvelope(reply); err != nil {
			log.Error("write reply failed", "err", err)
			return err
		}
	}
}

func dispatch(svc *rpc.Service, req *envelope) *envelope {
	reply := dispatchOp(svc, req)
	reply.CallID = req.CallID
	return reply
}

func dispatchOp(svc *rpc.Service, req *envelope) *envelope {
	switch req.Op {
	case opSend, opPost:
		out, status := svc.Send(req.Object, req.InterfaceID, req.Method, rpc.EncodingJSON, req.Payload)
		return &envelope{Op: opReply, Payload: out, Status: status}
	case opTryCast:
		status := svc.TryCast(req.Object, req.InterfaceID)
		return &envelope{Op: opReply, Status: status}
	case opAddRef:
		n, status := svc.AddRef(req.Object, req.AddRefOpts)
		return &envelope{Op: opReply, RefCount: n, Status: status}
	case opRelease:
		n, status := svc.Release(req.Object, req.ReleaseOpts)
		return &envelope{Op: opReply, RefCount: n, Status: status}
	default:
		return &envelope{Op: opReply, Status: rpc.InvalidData}
	}
}
