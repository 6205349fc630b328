package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/pkg/transport"
)

// TestConnDeliversFramesToDispatch wires two Conns over a net.Pipe and
// confirms a frame sent on one side reaches the other's dispatch callback.
func TestConnDeliversFramesToDispatch(t *testing.T) {
	a, b := net.Pipe()

	received := make(chan transport.Frame, 1)
	connA := transport.NewConn(a, uuid.New(), nil, func(f transport.Frame) error { return nil })
	connB := transport.NewConn(b, uuid.New(), nil, func(f transport.Frame) error {
		received <- f
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go connA.Run(ctx)
	go connB.Run(ctx)

	want := transport.Frame{Type: transport.MsgCrash, Payload: []byte("boom")}
	require.NoError(t, connA.Send(ctx, want))

	select {
	case got := <-received:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never arrived")
	}
}

// TestConnClosesOnFramingError confirms a malformed frame from the peer
// ends the connection (spec.md §4.5 point 4: "a framing violation closes
// the connection").
func TestConnClosesOnFramingError(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()

	connB := transport.NewConn(b, uuid.New(), nil, func(f transport.Frame) error { return nil })

	ctx := context.Background()
	runErr := make(chan error, 1)
	go func() { runErr <- connB.Run(ctx) }()

	// Write a frame with an out-of-range type directly onto the wire.
	go a.Write([]byte{8, 0, 0, 0, 200, 0, 0, 0})

	select {
	case err := <-runErr:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connection never closed on framing error")
	}
}
