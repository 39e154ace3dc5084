package pipe

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ottermesh/zonerpc/internal/rpc"
)

// opcode identifies which Marshaller method an envelope carries.
type opcode uint8

const (
	opSend opcode = iota + 1
	opPost
	opTryCast
	opAddRef
	opRelease
	opReply
)

// envelope is the wire representation of one Marshaller call. Payload
// is already-encoded generated-method bytes and is never touched by
// the codec beyond being copied across.
type envelope struct {
	Op                     opcode
	DestinationChannelZone rpc.DestinationChannelZone
	DestinationZone        rpc.DestinationZone
	Object                 rpc.Object
	InterfaceID            rpc.InterfaceOrdinal
	Method                 rpc.Method
	CallerChannelZone      rpc.CallerChannelZone
	CallerZone             rpc.CallerZone
	AddRefOpts             rpc.AddRefOptions
	ReleaseOpts            rpc.ReleaseOptions
	PostOpts               rpc.PostOptions
	Payload                []byte

	// CallID correlates a request envelope with its reply in logs; it
	// has no protocol meaning and is never inspected by dispatch.
	CallID string

	// Reply-only fields.
	Status   rpc.Status
	RefCount uint64
}

// codec frames envelopes over a net.Conn (or any io.Reader/Writer
// pair) as a 4-byte big-endian length prefix followed by the
// envelope encoded with one of the three encodings spec §6 names for
// user payloads, reused here for the envelope itself:
// EncodingJSON (encoding/json), EncodingBinary (encoding/gob), and
// EncodingCompressedBinary (encoding/gob through compress/gzip).
type codec struct {
	encoding rpc.Encoding
	r        *bufio.Reader
	w        io.Writer
}

func newCodec(rw io.ReadWriter, encoding rpc.Encoding) *codec {
	return &codec{encoding: encoding, r: bufio.NewReader(rw), w: rw}
}

func (c *codec) encode(e *envelope) ([]byte, error) {
	switch c.encoding {
	case rpc.EncodingJSON:
		return json.Marshal(e)
	case rpc.EncodingBinary:
		return gobEncode(e)
	case rpc.EncodingCompressedBinary:
		raw, err := gobEncode(e)
		if err != nil {
			return nil, err
		}
		return gzipCompress(raw)
	default:
		return nil, fmt.Errorf("pipe: unknown encoding %s", c.encoding)
	}
}

func (c *codec) decode(data []byte) (*envelope, error) {
	e := &envelope{}
	switch c.encoding {
	case rpc.EncodingJSON:
		if err := json.Unmarshal(data, e); err != nil {
			return nil, err
		}
	case rpc.EncodingBinary:
		if err := gobDecode(data, e); err != nil {
			return nil, err
		}
	case rpc.EncodingCompressedBinary:
		raw, err := gzipDecompress(data)
		if err != nil {
			return nil, err
		}
		if err := gobDecode(raw, e); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("pipe: unknown encoding %s", c.encoding)
	}
	return e, nil
}

// writeEnvelope frames and writes e.
func (c *codec) writeEnvelope(e *envelope) error {
	data, err := c.encode(e)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := c.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = c.w.Write(data)
	return err
}

// readEnvelope blocks for the next framed envelope.
func (c *codec) readEnvelope() (*envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(c.r, data); err != nil {
		return nil, err
	}
	return c.decode(data)
}

func gobEncode(e *envelope) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, e *envelope) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
