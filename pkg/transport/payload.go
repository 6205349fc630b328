package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/ir"
	"github.com/google/uuid"
)

// IdentifyPayload is the sole content of an Identify frame: the child
// announcing its node id immediately after the handshake (spec.md §4.5
// child behaviour "sends an identify message with its node id right after
// connecting"). The handshake already exchanges raw UUID bytes, so this is
// redundant at the wire level but lets routing code treat every payload
// uniformly through decodePayload instead of special-casing the frame that
// happens to come right after a handshake.
type IdentifyPayload struct {
	NodeID uuid.UUID
}

// SyncPayload carries the parent's full corpus snapshot sent once, right
// after a child connects (spec.md §4.5 parent behaviour "sync the full
// corpus to a newly connected child").
type SyncPayload struct {
	Programs []*ir.Program
}

// ProgramPayload carries one interesting program, flowing either direction
// (parent broadcast to children, or child reporting a local find upstream).
type ProgramPayload struct {
	Program *ir.Program
}

// CrashPayload reports a crashing execution upstream from child to parent.
type CrashPayload struct {
	Program *ir.Program
	Outcome executor.Outcome
	Detail  string
}

// StatisticsPayload is the child's periodic execs/coverage report (spec.md
// §4.5 child behaviour "report statistics... once a minute").
type StatisticsPayload struct {
	Execs     uint64
	CorpusLen int
	NewEdges  int
}

// LogPayload forwards one child log line upstream for centralized viewing.
type LogPayload struct {
	Level   int
	Message string
}

func encodePayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("transport: encode payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decodePayload(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("transport: decode payload: %w", err)
	}
	return nil
}

// EncodeFrame builds a Frame of the given type from a gob-encodable payload.
func EncodeFrame(t MessageType, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: t}, nil
	}
	b, err := encodePayload(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Payload: b}, nil
}
