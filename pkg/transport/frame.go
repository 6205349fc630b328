// Package transport implements the distributed parent/child wire protocol
// of spec.md §4.5: a length-prefixed binary frame, a UUID handshake, and the
// parent/child connection behaviours built on top of it (sync-on-connect,
// broadcast, keepalive, crash/program/statistics/log routing, reconnect with
// backoff). Grounded on the teacher's RPC layer (pkg/rpc, pkg/rpcserver) for
// the connection-lifecycle shape -- accept/connect, per-peer state, routing
// callbacks into manager-owned state -- generalized from net/rpc's
// gob-over-TCP to the framed binary protocol spec.md §4.5 specifies, since
// that protocol (unlike the teacher's) is not free-form RPC.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed length/type prefix every frame carries.
const HeaderSize = 8

// MaxFrameLength is spec.md §4.5's hard cap, header included: 1 GiB.
const MaxFrameLength = 1 << 30

// ErrFrameTooLarge is returned when a frame's declared length falls outside
// [HeaderSize, MaxFrameLength] (spec.md §4.5 "values outside... are framing
// errors and cause the connection to be closed").
var ErrFrameTooLarge = errors.New("transport: frame length out of bounds")

// ErrUnknownMessageType is returned when a decoded frame's type field does
// not match any known MessageType.
var ErrUnknownMessageType = errors.New("transport: unknown message type")

// MessageType enumerates spec.md §4.5's closed set of frame kinds, in the
// order the spec lists them -- MsgProgram's wire value of 4 is what makes
// spec.md §8 end-to-end scenario 6's worked byte sequence come out right.
type MessageType uint32

const (
	MsgKeepalive MessageType = iota
	MsgShutdown
	MsgIdentify
	MsgSync
	MsgProgram
	MsgCrash
	MsgStatistics
	MsgLog
)

func (t MessageType) String() string {
	switch t {
	case MsgKeepalive:
		return "keepalive"
	case MsgShutdown:
		return "shutdown"
	case MsgIdentify:
		return "identify"
	case MsgSync:
		return "sync"
	case MsgProgram:
		return "program"
	case MsgCrash:
		return "crash"
	case MsgStatistics:
		return "statistics"
	case MsgLog:
		return "log"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

func (t MessageType) valid() bool { return t <= MsgLog }

// Frame is one decoded message (spec.md §4.5). Padding is a pure wire-level
// concern; a Frame returned by the Decoder never carries it.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// padding reports how many zero bytes must follow length bytes of payload+
// header so the next frame starts 4-byte aligned.
func padding(length uint32) int {
	if r := length % 4; r != 0 {
		return int(4 - r)
	}
	return 0
}

// Encode renders f onto the wire: the 8-byte length+type header, the
// payload, and alignment padding.
func Encode(f Frame) ([]byte, error) {
	length := uint64(HeaderSize) + uint64(len(f.Payload))
	if length > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, length)
	}
	if !f.Type.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, f.Type)
	}
	pad := padding(uint32(length))
	buf := make([]byte, int(length)+pad)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(length))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(f.Type))
	copy(buf[HeaderSize:], f.Payload)
	return buf, nil
}

// Decoder incrementally reassembles frames out of a byte stream that may
// arrive in arbitrary chunks (spec.md §4.5 "incoming data is buffered;
// frames are dispatched only when current_buffer.len >= length + padding").
// It is not safe for concurrent use; a Conn's single read pump owns it.
type Decoder struct {
	buf []byte
}

// Feed appends freshly read bytes to the internal buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next extracts one complete frame from the buffer, if enough bytes have
// accumulated. ok is false (with a nil error) when more data is needed; a
// non-nil error means the peer violated framing and the connection must be
// closed (spec.md §4.5 point 4).
func (d *Decoder) Next() (frame Frame, ok bool, err error) {
	if len(d.buf) < HeaderSize {
		return Frame{}, false, nil
	}
	length := binary.LittleEndian.Uint32(d.buf[0:4])
	if length < HeaderSize || length > MaxFrameLength {
		return Frame{}, false, fmt.Errorf("%w: %d", ErrFrameTooLarge, length)
	}
	typ := MessageType(binary.LittleEndian.Uint32(d.buf[4:8]))
	total := int(length) + padding(length)
	if len(d.buf) < total {
		return Frame{}, false, nil
	}
	if !typ.valid() {
		return Frame{}, false, fmt.Errorf("%w: %d", ErrUnknownMessageType, typ)
	}
	payload := append([]byte(nil), d.buf[HeaderSize:length]...)
	d.buf = append([]byte(nil), d.buf[total:]...)
	return Frame{Type: typ, Payload: payload}, true, nil
}
