package transport

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/internal/eventbus"
	"github.com/covfuzz/covfuzz/internal/logger"
	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/corpus"
)

// Role distinguishes the two ends of a connection (spec.md §4.5: "parents
// and children play asymmetric roles on the same wire format").
type Role int

const (
	RoleParent Role = iota
	RoleChild
)

// keepaliveInterval and statisticsInterval are both spec.md §4.5's "once a
// minute".
const keepaliveInterval = time.Minute
const statisticsInterval = time.Minute

// syncCacheTTL is the age past which NeedsResync reports a node's last
// sync as stale. No sync snapshot is cached or shared between connections:
// syncOnConnect calls SyncSnapshot afresh for every newly connected child.
const syncCacheTTL = 15 * time.Minute

// reconnectBackoff and maxReconnectAttempts govern a child's behaviour when
// its parent connection drops (spec.md §4.5 child behaviour "reconnect
// after 30s, up to 10 attempts, then give up").
const reconnectBackoff = 30 * time.Second
const maxReconnectAttempts = 10

// Handlers decouples Node from corpus/fuzzer internals the same way
// internal/eventbus decouples the corpus from the transport: a Node imports
// pkg/corpus only for the event and entry types it receives from the bus,
// and otherwise just invokes whichever of these the owning process wired
// up, mirroring the teacher's RPCManagerView
// callback-interface seam between RPCServer and Fuzzer.
type Handlers struct {
	// OnSync delivers a parent's full-corpus snapshot to a freshly
	// connected child.
	OnSync func(peer uuid.UUID, programs []*ir.Program)
	// OnProgram delivers one interesting program from the peer.
	OnProgram func(peer uuid.UUID, program *ir.Program)
	// OnCrash delivers a crash report from a child.
	OnCrash func(peer uuid.UUID, program *ir.Program, outcome executor.Outcome, detail string)
	// OnStatistics delivers a child's periodic self-report.
	OnStatistics func(peer uuid.UUID, execs uint64, corpusLen, newEdges int)
	// OnLog delivers one forwarded log line.
	OnLog func(peer uuid.UUID, level int, message string)
	// OnShutdown notifies a child that its parent is shutting down.
	OnShutdown func(peer uuid.UUID)

	// SyncSnapshot is called by a parent once per connection, when a child
	// connects, to obtain the corpus programs to sync to it.
	SyncSnapshot func() []*ir.Program
	// Statistics is called (by a child) to obtain the current self-report.
	Statistics func() (execs uint64, corpusLen, newEdges int)
}

// Node owns one Conn plus the periodic, role-specific behaviour layered on
// top of it (spec.md §4.5's parent/child behaviour lists).
type Node struct {
	Role     Role
	SelfID   uuid.UUID
	Conn     *Conn
	Handlers Handlers
	Bus      *eventbus.Bus
	Logf     logger.Logf

	lastSync      time.Time
	initialSynced bool
	unsubscribe   func()
}

// Accept completes the server side of a connection: handshake, then wrap
// raw in a Conn whose inbound frames route through n's Handlers.
func Accept(ctx context.Context, raw net.Conn, role Role, selfID uuid.UUID, h Handlers, bus *eventbus.Bus, log logger.Logf) (*Node, error) {
	peer, err := Handshake(raw, selfID)
	if err != nil {
		return nil, err
	}
	n := &Node{Role: role, SelfID: selfID, Handlers: h, Bus: bus, Logf: log}
	n.Conn = NewConn(raw, peer, log, n.dispatch)
	return n, nil
}

// Dial completes the client side of a connection to addr.
func Dial(ctx context.Context, addr string, role Role, selfID uuid.UUID, h Handlers, bus *eventbus.Bus, log logger.Logf) (*Node, error) {
	d := net.Dialer{}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	n, err := Accept(ctx, raw, role, selfID, h, bus, log)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return n, nil
}

// Run drives the connection and this node's periodic role behaviour until
// ctx is cancelled or the connection fails. It does not itself reconnect;
// use RunChildWithReconnect for the child's reconnect-on-drop behaviour.
func (n *Node) Run(ctx context.Context) error {
	if n.Bus != nil {
		n.unsubscribe = n.Bus.Subscribe(eventbus.TopicNewInteresting, n.onNewInteresting)
		defer n.unsubscribe()
	}

	connErr := make(chan error, 1)
	go func() { connErr <- n.Conn.Run(ctx) }()

	switch n.Role {
	case RoleChild:
		go n.identify(ctx)
		go n.periodicStatistics(ctx)
	case RoleParent:
		go n.syncOnConnect(ctx)
		go n.periodicKeepalive(ctx)
	}

	select {
	case err := <-connErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunChildWithReconnect runs a child node against addr, reconnecting with
// reconnectBackoff up to maxReconnectAttempts times after a dropped
// connection before giving up (spec.md §4.5 child behaviour).
func RunChildWithReconnect(ctx context.Context, addr string, selfID uuid.UUID, h Handlers, bus *eventbus.Bus, log logger.Logf) error {
	if log == nil {
		log = logger.Discard()
	}
	attempts := 0
	for {
		n, err := Dial(ctx, addr, RoleChild, selfID, h, bus, log)
		if err != nil {
			log(0, "transport: dial %s failed: %v", addr, err)
		} else {
			attempts = 0
			runErr := n.Run(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log(0, "transport: connection to %s lost: %v", addr, runErr)
		}

		attempts++
		if attempts > maxReconnectAttempts {
			return fmt.Errorf("transport: giving up on %s after %d attempts", addr, maxReconnectAttempts)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

func (n *Node) dispatch(f Frame) error {
	switch f.Type {
	case MsgKeepalive:
		return nil
	case MsgShutdown:
		if n.Handlers.OnShutdown != nil {
			n.Handlers.OnShutdown(n.Conn.PeerID)
		}
		return nil
	case MsgIdentify:
		var p IdentifyPayload
		return decodePayload(f.Payload, &p)
	case MsgSync:
		var p SyncPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return err
		}
		n.initialSynced = true
		if n.Handlers.OnSync != nil {
			n.Handlers.OnSync(n.Conn.PeerID, p.Programs)
		}
		return nil
	case MsgProgram:
		if n.Role == RoleChild && !n.initialSynced {
			// spec.md §4.5: a child must not act on programs pushed ahead
			// of its own initial sync, since it has no baseline coverage
			// to compare them against yet.
			return nil
		}
		var p ProgramPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return err
		}
		if n.Handlers.OnProgram != nil {
			n.Handlers.OnProgram(n.Conn.PeerID, p.Program)
		}
		return nil
	case MsgCrash:
		var p CrashPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return err
		}
		if n.Handlers.OnCrash != nil {
			n.Handlers.OnCrash(n.Conn.PeerID, p.Program, p.Outcome, p.Detail)
		}
		return nil
	case MsgStatistics:
		var p StatisticsPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return err
		}
		if n.Handlers.OnStatistics != nil {
			n.Handlers.OnStatistics(n.Conn.PeerID, p.Execs, p.CorpusLen, p.NewEdges)
		}
		return nil
	case MsgLog:
		var p LogPayload
		if err := decodePayload(f.Payload, &p); err != nil {
			return err
		}
		if n.Handlers.OnLog != nil {
			n.Handlers.OnLog(n.Conn.PeerID, p.Level, p.Message)
		}
		return nil
	default:
		return fmt.Errorf("transport: unhandled message type %v", f.Type)
	}
}

func (n *Node) identify(ctx context.Context) {
	f, err := EncodeFrame(MsgIdentify, IdentifyPayload{NodeID: n.SelfID})
	if err != nil {
		n.Logf(0, "transport: encode identify: %v", err)
		return
	}
	if err := n.Conn.Send(ctx, f); err != nil {
		n.Logf(0, "transport: send identify: %v", err)
	}
}

func (n *Node) syncOnConnect(ctx context.Context) {
	if n.Handlers.SyncSnapshot == nil {
		return
	}
	programs := n.Handlers.SyncSnapshot()
	n.lastSync = time.Now()
	f, err := EncodeFrame(MsgSync, SyncPayload{Programs: programs})
	if err != nil {
		n.Logf(0, "transport: encode sync: %v", err)
		return
	}
	if err := n.Conn.Send(ctx, f); err != nil {
		n.Logf(0, "transport: send sync: %v", err)
	}
}

func (n *Node) periodicKeepalive(ctx context.Context) {
	t := time.NewTicker(keepaliveInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			f, _ := EncodeFrame(MsgKeepalive, nil)
			if err := n.Conn.Send(ctx, f); err != nil {
				return
			}
		}
	}
}

func (n *Node) periodicStatistics(ctx context.Context) {
	if n.Handlers.Statistics == nil {
		return
	}
	t := time.NewTicker(statisticsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			execs, corpusLen, newEdges := n.Handlers.Statistics()
			f, err := EncodeFrame(MsgStatistics, StatisticsPayload{Execs: execs, CorpusLen: corpusLen, NewEdges: newEdges})
			if err != nil {
				continue
			}
			if err := n.Conn.Send(ctx, f); err != nil {
				return
			}
		}
	}
}

// onNewInteresting is the eventbus.Handler both roles subscribe with:
// a parent broadcasts every newly accepted corpus entry to this child
// (spec.md §4.5 parent behaviour "broadcast new interesting programs to
// all children"); a child instead forwards it upstream to the parent
// (spec.md §4.5 child behaviour "forward every local crash; forward every
// local interesting program only after the initial sync has been
// applied").
func (n *Node) onNewInteresting(event any) {
	evt, ok := event.(*corpus.NewInterestingEvent)
	if !ok || evt.Entry == nil {
		return
	}
	switch n.Role {
	case RoleParent:
		n.broadcastProgram(evt.Entry)
	case RoleChild:
		n.forwardLocalEntry(evt.Entry)
	}
}

func (n *Node) broadcastProgram(entry *corpus.CorpusEntry) {
	f, err := EncodeFrame(MsgProgram, ProgramPayload{Program: entry.Program})
	if err != nil {
		n.Logf(0, "transport: encode broadcast program: %v", err)
		return
	}
	if err := n.Conn.Send(context.Background(), f); err != nil {
		n.Logf(0, "transport: broadcast to %s: %v", n.Conn.PeerID, err)
	}
}

// forwardLocalEntry sends a locally discovered entry upstream to the
// parent. Crashes are always forwarded; interesting (non-crashing)
// programs are held back until the child's own initial sync has been
// applied, since before that the child has no baseline to compare
// against (the mirror image of dispatch's MsgProgram-before-sync guard).
func (n *Node) forwardLocalEntry(entry *corpus.CorpusEntry) {
	if entry.LastOutcome == executor.Crashed {
		f, err := EncodeFrame(MsgCrash, CrashPayload{Program: entry.Program, Outcome: entry.LastOutcome})
		if err != nil {
			n.Logf(0, "transport: encode crash report: %v", err)
			return
		}
		if err := n.Conn.Send(context.Background(), f); err != nil {
			n.Logf(0, "transport: forward crash to %s: %v", n.Conn.PeerID, err)
		}
		return
	}
	if !n.initialSynced {
		return
	}
	f, err := EncodeFrame(MsgProgram, ProgramPayload{Program: entry.Program})
	if err != nil {
		n.Logf(0, "transport: encode forwarded program: %v", err)
		return
	}
	if err := n.Conn.Send(context.Background(), f); err != nil {
		n.Logf(0, "transport: forward program to %s: %v", n.Conn.PeerID, err)
	}
}

// NeedsResync reports whether this node has not yet sent a sync, or sent
// its last one more than syncCacheTTL ago. syncOnConnect does not consult
// it.
func (n *Node) NeedsResync() bool {
	return n.lastSync.IsZero() || time.Since(n.lastSync) > syncCacheTTL
}
