package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
)

// HandshakeTimeout is spec.md §4.5's "~10 second" bound on the raw UUID
// exchange that precedes framing on every new connection. A var, not a
// const, so tests can shrink it rather than actually waiting ~10s.
var HandshakeTimeout = 10 * time.Second

// ErrHandshakeTimeout is returned when the peer's UUID does not arrive
// within HandshakeTimeout.
var ErrHandshakeTimeout = errors.New("transport: handshake timed out")

// Handshake exchanges 16 raw UUID bytes with the peer outside of framing
// (spec.md §4.5: "on connect/accept, each side writes its own node id as 16
// raw bytes and reads the peer's, with no length prefix"). It writes first
// and reads concurrently so that neither a parent-connects-to-child nor a
// child-connects-to-parent ordering can deadlock with both sides blocked
// on Read.
func Handshake(conn net.Conn, self uuid.UUID) (uuid.UUID, error) {
	if err := conn.SetDeadline(time.Now().Add(HandshakeTimeout)); err != nil {
		return uuid.Nil, err
	}
	defer conn.SetDeadline(time.Time{})

	writeErr := make(chan error, 1)
	go func() {
		self := self
		_, err := conn.Write(self[:])
		writeErr <- err
	}()

	var peer uuid.UUID
	_, err := io.ReadFull(conn, peer[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrHandshakeTimeout, err)
		}
		return uuid.Nil, fmt.Errorf("transport: handshake read: %w", err)
	}
	if err := <-writeErr; err != nil {
		return uuid.Nil, fmt.Errorf("transport: handshake write: %w", err)
	}
	return peer, nil
}
