package transport

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/ir"
	"github.com/covfuzz/covfuzz/pkg/corpus"
)

func newTestNode(role Role) (*Node, *[]string) {
	var calls []string
	n := &Node{Role: role, SelfID: uuid.New()}
	n.Conn = &Conn{PeerID: uuid.New(), outgoing: make(chan Frame, 4), done: make(chan struct{})}
	n.Handlers = Handlers{
		OnSync: func(peer uuid.UUID, programs []*ir.Program) {
			calls = append(calls, "sync")
		},
		OnProgram: func(peer uuid.UUID, program *ir.Program) {
			calls = append(calls, "program")
		},
		OnCrash: func(peer uuid.UUID, program *ir.Program, outcome executor.Outcome, detail string) {
			calls = append(calls, "crash")
		},
		OnStatistics: func(peer uuid.UUID, execs uint64, corpusLen, newEdges int) {
			calls = append(calls, "statistics")
		},
		OnLog: func(peer uuid.UUID, level int, message string) {
			calls = append(calls, "log")
		},
		OnShutdown: func(peer uuid.UUID) {
			calls = append(calls, "shutdown")
		},
	}
	return n, &calls
}

func mustFrame(t *testing.T, typ MessageType, payload any) Frame {
	f, err := EncodeFrame(typ, payload)
	require.NoError(t, err)
	return f
}

func TestDispatchRoutesEveryMessageType(t *testing.T) {
	n, calls := newTestNode(RoleParent)
	n.initialSynced = true

	require.NoError(t, n.dispatch(mustFrame(t, MsgKeepalive, nil)))
	require.NoError(t, n.dispatch(mustFrame(t, MsgIdentify, IdentifyPayload{NodeID: uuid.New()})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgSync, SyncPayload{})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgProgram, ProgramPayload{Program: ir.NewProgram(nil)})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgCrash, CrashPayload{Outcome: executor.Crashed})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgStatistics, StatisticsPayload{Execs: 1})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgLog, LogPayload{Message: "hi"})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgShutdown, nil)))

	require.Equal(t, []string{"sync", "program", "crash", "statistics", "log", "shutdown"}, *calls)
}

// TestDispatchIgnoresProgramsBeforeInitialSync implements spec.md §4.5's
// rule that a child must not act on a pushed program before its own
// baseline sync has landed.
func TestDispatchIgnoresProgramsBeforeInitialSync(t *testing.T) {
	n, calls := newTestNode(RoleChild)
	require.False(t, n.initialSynced)

	require.NoError(t, n.dispatch(mustFrame(t, MsgProgram, ProgramPayload{Program: ir.NewProgram(nil)})))
	require.Empty(t, *calls)

	require.NoError(t, n.dispatch(mustFrame(t, MsgSync, SyncPayload{})))
	require.NoError(t, n.dispatch(mustFrame(t, MsgProgram, ProgramPayload{Program: ir.NewProgram(nil)})))
	require.Equal(t, []string{"sync", "program"}, *calls)
}

func TestNeedsResyncIsTrueUntilFirstSync(t *testing.T) {
	n := &Node{}
	require.True(t, n.NeedsResync())
	n.lastSync = time.Now()
	require.False(t, n.NeedsResync())
}

func drainOutgoing(t *testing.T, n *Node) (Frame, bool) {
	t.Helper()
	select {
	case f := <-n.Conn.outgoing:
		return f, true
	case <-time.After(50 * time.Millisecond):
		return Frame{}, false
	}
}

// TestChildForwardsCrashRegardlessOfSync implements spec.md §4.5's "forward
// every local crash" child behaviour: a crashing entry is sent upstream
// even before the child's own initial sync has landed.
func TestChildForwardsCrashRegardlessOfSync(t *testing.T) {
	n, _ := newTestNode(RoleChild)
	require.False(t, n.initialSynced)

	entry := &corpus.CorpusEntry{Program: ir.NewProgram(nil), LastOutcome: executor.Crashed}
	n.onNewInteresting(&corpus.NewInterestingEvent{Entry: entry})

	f, ok := drainOutgoing(t, n)
	require.True(t, ok, "crash was not forwarded")
	require.Equal(t, MsgCrash, f.Type)
	var payload CrashPayload
	require.NoError(t, decodePayload(f.Payload, &payload))
	require.Equal(t, executor.Crashed, payload.Outcome)
}

// TestChildHoldsBackProgramForwardUntilSynced implements spec.md §4.5's
// "forward every local interesting program only after the initial sync has
// been applied" child behaviour.
func TestChildHoldsBackProgramForwardUntilSynced(t *testing.T) {
	n, _ := newTestNode(RoleChild)
	entry := &corpus.CorpusEntry{Program: ir.NewProgram(nil)}

	n.onNewInteresting(&corpus.NewInterestingEvent{Entry: entry})
	_, ok := drainOutgoing(t, n)
	require.False(t, ok, "program forwarded before initial sync")

	n.initialSynced = true
	n.onNewInteresting(&corpus.NewInterestingEvent{Entry: entry})
	f, ok := drainOutgoing(t, n)
	require.True(t, ok, "program was not forwarded once synced")
	require.Equal(t, MsgProgram, f.Type)
}

// TestParentBroadcastsNewInteresting confirms a parent keeps broadcasting
// to connected children (the existing behaviour, unaffected by the child
// forwarding path added alongside it).
func TestParentBroadcastsNewInteresting(t *testing.T) {
	n, _ := newTestNode(RoleParent)
	entry := &corpus.CorpusEntry{Program: ir.NewProgram(nil)}

	n.onNewInteresting(&corpus.NewInterestingEvent{Entry: entry})
	f, ok := drainOutgoing(t, n)
	require.True(t, ok, "parent did not broadcast")
	require.Equal(t, MsgProgram, f.Type)
}
