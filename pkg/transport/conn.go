package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/covfuzz/covfuzz/internal/logger"
)

// outgoingQueueSize bounds how many frames can be queued for send before
// Send blocks; spec.md §5 asks for backpressure rather than unbounded
// buffering on a slow peer.
const outgoingQueueSize = 256

// ErrConnClosed is returned by Send once Close has been called.
var ErrConnClosed = errors.New("transport: connection closed")

// Conn is one framed, handshaken connection to a peer, with a dedicated
// read pump and write pump supervised by an errgroup (grounded on the
// errgroup.WithContext(ctx) + g.Go(...) supervisor shape used across the
// example pack for paired reader/writer goroutines, e.g. the teacher's
// tools/syz-lore query workers and SeleniaProject-Orizon's packagemanager
// download pipeline): the first of the two pumps to fail cancels ctx,
// which unblocks the other, and Wait returns the one real error.
type Conn struct {
	raw    net.Conn
	PeerID uuid.UUID
	Logf   logger.Logf

	outgoing chan Frame
	dispatch func(Frame) error

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewConn wraps an already-handshaken net.Conn. dispatch is invoked on the
// read pump's goroutine for every fully decoded inbound frame; it must not
// block for long, mirroring spec.md §5's "handlers marshal back to the
// owning loop before touching shared state" discipline.
func NewConn(raw net.Conn, peerID uuid.UUID, log logger.Logf, dispatch func(Frame) error) *Conn {
	if log == nil {
		log = logger.Discard()
	}
	return &Conn{
		raw:      raw,
		PeerID:   peerID,
		Logf:     log,
		outgoing: make(chan Frame, outgoingQueueSize),
		dispatch: dispatch,
		done:     make(chan struct{}),
	}
}

// Run drives the read and write pumps until ctx is cancelled, the peer
// disconnects, or a framing/dispatch error occurs, then closes the
// underlying connection and returns the first error encountered (nil on a
// clean ctx-cancelled shutdown).
func (c *Conn) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readPump(gctx) })
	g.Go(func() error { return c.writePump(gctx) })

	// readPump's net.Conn.Read doesn't itself observe gctx, so a pump
	// failing (or the caller cancelling ctx) would otherwise leave the
	// other pump blocked in a syscall forever; closing raw unblocks it.
	go func() {
		<-gctx.Done()
		_ = c.raw.Close()
	}()

	err := g.Wait()
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.done)
		_ = c.raw.Close()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Send enqueues f for delivery. It blocks if the outgoing queue is full and
// returns ErrConnClosed if the connection has already shut down.
func (c *Conn) Send(ctx context.Context, f Frame) error {
	select {
	case c.outgoing <- f:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the connection down from the outside (e.g. a shutdown
// message just sent, or the owning Node giving up on reconnects).
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

func (c *Conn) readPump(ctx context.Context) error {
	dec := &Decoder{}
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := c.raw.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				frame, ok, ferr := dec.Next()
				if ferr != nil {
					return fmt.Errorf("transport: framing error from %s: %w", c.PeerID, ferr)
				}
				if !ok {
					break
				}
				if derr := c.dispatch(frame); derr != nil {
					return fmt.Errorf("transport: dispatch error from %s: %w", c.PeerID, derr)
				}
			}
		}
		if err != nil {
			return fmt.Errorf("transport: read from %s: %w", c.PeerID, err)
		}
	}
}

func (c *Conn) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.outgoing:
			b, err := Encode(f)
			if err != nil {
				c.Logf(0, "transport: dropping unencodable frame to %s: %v", c.PeerID, err)
				continue
			}
			if _, err := c.raw.Write(b); err != nil {
				return fmt.Errorf("transport: write to %s: %w", c.PeerID, err)
			}
		}
	}
}
