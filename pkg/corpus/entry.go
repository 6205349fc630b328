package corpus

import (
	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/ir"
)

// CorpusEntry is one accepted program plus the bookkeeping the schedulers
// need (spec.md §3). Entries are owned exclusively by the Corpus; scheduler
// strategies keep only references to entries already present in
// Corpus.entries, never their own copies (spec.md §3 "Ownership").
//
// A *CorpusEntry's identity is stable for its lifetime: once inserted it is
// never reallocated, so a strategy may safely use the pointer itself as a
// stable handle (our implementation of spec.md §9's "ring buffer with
// stable indices (generation counter)" suggestion -- a pointer already acts
// as that generation-tagged handle without an explicit counter).
type CorpusEntry struct {
	Program      *ir.Program
	Age          uint32
	Hash         [32]byte
	LastOutcome  executor.Outcome
	LastCoverage []aspects.EdgeId
}
