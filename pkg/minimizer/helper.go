// Package minimizer implements the fixpoint program minimizer of spec.md
// §4.4: given a program and the aspects it must keep reproducing, it
// repeatedly tries smaller rewrites and keeps only the ones the executor and
// evaluator still agree preserve those aspects. Grounded on the teacher's
// pkg/bisect/minimize (the same test-and-commit, all-or-nothing replacement
// discipline, generalized from "slice of bytes" to "slice of instructions")
// and pkg/bisect/generic's chunked candidate search.
package minimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/covfuzz/covfuzz/aspects"
	"github.com/covfuzz/covfuzz/executor"
	"github.com/covfuzz/covfuzz/internal/logger"
	"github.com/covfuzz/covfuzz/ir"
)

// ErrNotConverged is returned by Minimize when the fixpoint driver hits the
// 100-iteration cap without a round that made zero changes (spec.md §4.4
// "abort with a logged error if no progress... a no-op reducer bug").
var ErrNotConverged = errors.New("minimizer: fixpoint did not converge within 100 iterations")

// maxFixpointIterations is spec.md §4.4's iteration cap.
const maxFixpointIterations = 100

// numTestExecutions is how many times a candidate is re-executed before a
// reduction is committed, to defend against flaky aspect detection (spec.md
// §4.4 "Failure semantics").
const numTestExecutions = 3

// Config configures a Helper. Exec and Eval are required; Logf and Timeout
// default to a discard logger and a generous per-execution timeout.
type Config struct {
	Exec    executor.Executor
	Eval    aspects.Evaluator
	Logf    logger.Logf
	Timeout time.Duration
}

// Helper is the MinimizationHelper of spec.md §4.4: owns the mutable Code
// buffer, the pinned (keep-alive) set aligned with it index-for-index, and
// the oracle used to accept or reject a candidate rewrite.
type Helper struct {
	code    *ir.Code
	pinned  []bool
	target  *aspects.ProgramAspects
	exec    executor.Executor
	eval    aspects.Evaluator
	logf    logger.Logf
	timeout time.Duration

	didReduce bool
}

// NewHelper builds a Helper for minimizing program against target, with the
// keep-alive set already computed (see ComputeKeepAlive in keepalive.go).
func NewHelper(cfg Config, program *ir.Program, target *aspects.ProgramAspects, pinned []bool) *Helper {
	logf := cfg.Logf
	if logf == nil {
		logf = logger.Discard()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Helper{
		code:    ir.NewCode(program),
		pinned:  pinned,
		target:  target,
		exec:    cfg.Exec,
		eval:    cfg.Eval,
		logf:    logf,
		timeout: timeout,
	}
}

// Code exposes the current buffer for reducers to read (never to mutate
// directly -- every change must go through TestAndCommit or one of its
// try_* wrappers so the pinned slice and did-reduce flag stay consistent).
func (h *Helper) Code() *ir.Code { return h.code }

func (h *Helper) Pinned(i int) bool { return h.pinned[i] }

// DidReduce reports whether any try_* call committed a change since the
// last ResetDidReduce.
func (h *Helper) DidReduce() bool { return h.didReduce }

func (h *Helper) ResetDidReduce() { h.didReduce = false }

// candidate bundles a tentative Code buffer together with the pinned slice
// it would carry if committed.
type candidate struct {
	code   *ir.Code
	pinned []bool
}

// TestAndCommit implements spec.md §4.4's test_and_commit: validates
// structure, checks continuous variable numbering, executes the candidate
// (numTestExecutions times, to guard against flaky aspect detection), asks
// the oracle, and on success replaces h.code/h.pinned and sets did_reduce.
func (h *Helper) TestAndCommit(cand *ir.Code, pinned []bool) bool {
	if !cand.IsContinuouslyNumbered() {
		return false
	}
	if err := cand.IsStaticallyValid(); err != nil {
		return false
	}
	program := cand.ToProgram()
	for i := 0; i < numTestExecutions; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		exec, err := h.exec.Execute(ctx, program, h.timeout)
		cancel()
		if err != nil {
			return false
		}
		if !h.eval.HasAspects(exec, h.target) {
			return false
		}
	}
	h.code = cand
	h.pinned = pinned
	h.didReduce = true
	return true
}

// TryReplacing implements spec.md §4.4's try_replacing: a single-instruction
// swap, requiring output-count equality and that idx isn't pinned.
func (h *Helper) TryReplacing(idx int, instr ir.Instruction) bool {
	if h.pinned[idx] {
		return false
	}
	if h.code.At(idx).NumOutputs() != instr.NumOutputs() {
		return false
	}
	cand := h.code.Clone()
	cand.ReplaceAt(idx, instr)
	return h.TestAndCommit(cand, h.pinned)
}

// Replacement is one entry of an atomic multi-instruction replace.
type Replacement struct {
	Index       int
	Instruction ir.Instruction
}

// TryReplacements implements spec.md §4.4's try_replacements: an
// all-or-nothing multi-instruction replacement.
func (h *Helper) TryReplacements(repls []Replacement) bool {
	for _, r := range repls {
		if h.pinned[r.Index] {
			return false
		}
		if h.code.At(r.Index).NumOutputs() != r.Instruction.NumOutputs() {
			return false
		}
	}
	cand := h.code.Clone()
	for _, r := range repls {
		cand.ReplaceAt(r.Index, r.Instruction)
	}
	return h.TestAndCommit(cand, h.pinned)
}

// TryNopping implements spec.md §4.4's try_nopping: replaces every given
// index with its canonical Nop (preserving output arity), atomically.
func (h *Helper) TryNopping(indices []int) bool {
	repls := make([]Replacement, 0, len(indices))
	for _, idx := range indices {
		if h.pinned[idx] {
			return false
		}
		repls = append(repls, Replacement{Index: idx, Instruction: h.Nop(h.code.At(idx))})
	}
	return h.TryReplacements(repls)
}

// TryRemovingRange atomically deletes the half-open range [start,end) from
// the buffer, shrinking the pinned slice to match. Fails if any pinned index
// falls inside the range. BlockReducer does not use it: it removes blocks by
// nopping them through TryNopping.
func (h *Helper) TryRemovingRange(start, end int) bool {
	for i := start; i < end; i++ {
		if h.pinned[i] {
			return false
		}
	}
	cand := h.code.Clone()
	cand.ReplaceRange(start, end, nil)
	pinned := append(append([]bool(nil), h.pinned[:start]...), h.pinned[end:]...)
	return h.TestAndCommit(cand, pinned)
}

// ReplaceRange implements "replace a range with new content" for
// LoopReducer, SimplifyingReducer, InliningReducer and the post-processor
// (spec.md §4.4.4, §4.4.3, §4.4.5, §4.4.9): atomically swaps
// [start,end) for repl, whose length may differ from end-start. Every
// pinned index in [start,end) must be false. The replacement instructions
// themselves start out unpinned.
func (h *Helper) ReplaceRange(start, end int, repl []ir.Instruction) bool {
	for i := start; i < end; i++ {
		if h.pinned[i] {
			return false
		}
	}
	cand := h.code.Clone()
	cand.ReplaceRange(start, end, repl)
	newPinned := make([]bool, 0, len(h.pinned)-(end-start)+len(repl))
	newPinned = append(newPinned, h.pinned[:start]...)
	newPinned = append(newPinned, make([]bool, len(repl))...)
	newPinned = append(newPinned, h.pinned[end:]...)
	return h.TestAndCommit(cand, newPinned)
}

// TryInserting implements spec.md §4.4's try_inserting: insert instr at
// idx, with a precondition that the keep-alive set is empty (so inserting
// can never accidentally shift a pinned index without updating it).
func (h *Helper) TryInserting(instr ir.Instruction, at int) bool {
	for _, p := range h.pinned {
		if p {
			return false
		}
	}
	cand := h.code.Clone()
	cand.Insert(at, instr)
	pinned := make([]bool, 0, len(h.pinned)+1)
	pinned = append(pinned, h.pinned[:at]...)
	pinned = append(pinned, false)
	pinned = append(pinned, h.pinned[at:]...)
	return h.TestAndCommit(cand, pinned)
}

// Nop implements spec.md §4.4's nop(for: instr): builds the canonical
// replacement nop for instr.
func (h *Helper) Nop(instr ir.Instruction) ir.Instruction {
	return ir.NewNopFor(instr)
}

// Finalize renumbers and strips remaining nops, producing the Program a
// caller can hand back to the corpus (spec.md §4.4 "remove leftover nops").
func (h *Helper) Finalize() *ir.Program {
	h.code.Renumber()
	h.code.StripNops()
	h.code.Renumber()
	return h.code.ToProgram()
}

func (h *Helper) String() string {
	return fmt.Sprintf("Helper{len=%d, pinned=%d}", h.code.Len(), countTrue(h.pinned))
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}
