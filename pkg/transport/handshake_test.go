package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/pkg/transport"
)

// TestHandshakeExchangesIDs confirms both sides of a connection learn the
// other's node id.
func TestHandshakeExchangesIDs(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	idA := uuid.New()
	idB := uuid.New()

	gotA := make(chan uuid.UUID, 1)
	errA := make(chan error, 1)
	go func() {
		peer, err := transport.Handshake(a, idA)
		gotA <- peer
		errA <- err
	}()

	peerB, err := transport.Handshake(b, idB)
	require.NoError(t, err)
	require.Equal(t, idA, peerB)

	require.NoError(t, <-errA)
	require.Equal(t, idB, <-gotA)
}

// TestHandshakeTimesOut implements spec.md §8's handshake-timeout property:
// if the peer never writes its id, Handshake aborts instead of blocking
// forever.
func TestHandshakeTimesOut(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	orig := transport.HandshakeTimeout
	transport.HandshakeTimeout = 50 * time.Millisecond
	defer func() { transport.HandshakeTimeout = orig }()

	// Only one side ever calls Handshake; the peer stays silent.
	_, err := transport.Handshake(a, uuid.New())
	require.ErrorIs(t, err, transport.ErrHandshakeTimeout)
}
