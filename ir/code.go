package ir

import (
	"errors"
	"fmt"
)

// ErrUseBeforeDef is returned when an instruction reads a variable that has
// not yet been defined at that point in the program (spec.md §3).
var ErrUseBeforeDef = errors.New("ir: variable used before definition")

// ErrInvalidContext is returned when an instruction appears outside the
// context it requires, e.g. a Break/Continue outside any loop (spec.md §3
// "contexts respected").
var ErrInvalidContext = errors.New("ir: instruction used in invalid context")

// ErrNonContinuousNumbering is returned by operations that require
// variables-numbered-continuously (spec.md §3) and find a gap.
var ErrNonContinuousNumbering = errors.New("ir: variable numbering is not contiguous")

// Code is the minimizer's mutable working buffer (spec.md §3). Unlike
// Program, which is treated as immutable-by-convention once it enters the
// corpus, Code is meant to be rewritten in place by reducers and may
// temporarily violate the continuous-numbering invariant between an edit and
// the following Renumber call.
type Code struct {
	instrs []Instruction
}

// NewCode copies p's instructions into a fresh, independently mutable
// buffer.
func NewCode(p *Program) *Code {
	c := &Code{instrs: make([]Instruction, len(p.Instructions))}
	for i, ins := range p.Instructions {
		c.instrs[i] = ins.Clone()
	}
	return c
}

func (c *Code) Len() int                    { return len(c.instrs) }
func (c *Code) At(i int) Instruction        { return c.instrs[i] }
func (c *Code) Instructions() []Instruction { return c.instrs }

// Clone returns an independent deep copy.
func (c *Code) Clone() *Code {
	out := &Code{instrs: make([]Instruction, len(c.instrs))}
	for i, ins := range c.instrs {
		out.instrs[i] = ins.Clone()
	}
	return out
}

// ToProgram snapshots the buffer into an immutable Program.
func (c *Code) ToProgram() *Program {
	out := make([]Instruction, len(c.instrs))
	for i, ins := range c.instrs {
		out[i] = ins.Clone()
	}
	return &Program{Instructions: out}
}

// ReplaceAt swaps a single instruction for another, in place. The caller is
// responsible for arity bookkeeping; MinimizationHelper enforces the
// output-count-equality precondition before calling this (spec.md §4.4
// try_replacing).
func (c *Code) ReplaceAt(i int, ins Instruction) {
	c.instrs[i] = ins
}

// ReplaceRange atomically swaps the half-open range [start,end) for repl.
// Used for multi-instruction replacement (§4.4 try_replacements) and for
// block removal (§4.4.2).
func (c *Code) ReplaceRange(start, end int, repl []Instruction) {
	tail := append([]Instruction(nil), c.instrs[end:]...)
	c.instrs = append(c.instrs[:start:start], repl...)
	c.instrs = append(c.instrs, tail...)
}

// Insert places ins at index at, shifting everything at or after at to the
// right.
func (c *Code) Insert(at int, ins Instruction) {
	c.instrs = append(c.instrs, Instruction{})
	copy(c.instrs[at+1:], c.instrs[at:])
	c.instrs[at] = ins
}

// RemoveAt deletes a single instruction.
func (c *Code) RemoveAt(i int) {
	c.instrs = append(c.instrs[:i], c.instrs[i+1:]...)
}

// StripNops removes every remaining Nop instruction that nothing still
// reads (spec.md §4.4 "Then post-process and strip remaining nops"). A Nop
// whose output is still referenced elsewhere is left in place -- it is
// still a dangling reference waiting on a reducer to rewrite it away, and
// removing its defining instruction out from under it would turn a merely
// dead value into a use-before-def. Stripping leaves gaps that the caller
// must close with Renumber.
func (c *Code) StripNops() {
	read := map[VarId]bool{}
	for _, ins := range c.instrs {
		for _, v := range ins.Inputs {
			read[v] = true
		}
	}
	out := c.instrs[:0]
	for _, ins := range c.instrs {
		if ins.IsNop() && !anyRead(read, ins.Outputs) {
			continue
		}
		out = append(out, ins)
	}
	c.instrs = out
}

func anyRead(read map[VarId]bool, vars []VarId) bool {
	for _, v := range vars {
		if read[v] {
			return true
		}
	}
	return false
}

// IsContinuouslyNumbered reports whether variable ids across the whole
// buffer are exactly 0..N-1 with no gaps (spec.md §3).
func (c *Code) IsContinuouslyNumbered() bool {
	defined := map[VarId]bool{}
	maxID := -1
	visit := func(v VarId) {
		defined[v] = true
		if int(v) > maxID {
			maxID = int(v)
		}
	}
	for _, ins := range c.instrs {
		for _, v := range ins.Outputs {
			visit(v)
		}
		for _, v := range ins.InnerOutputs {
			visit(v)
		}
	}
	return len(defined) == maxID+1
}

// Renumber reassigns variable ids to 0..N-1 in order of first definition,
// rewriting every instruction in place, and returns the old->new mapping.
// Reducers that temporarily break continuity (e.g. by nopping an
// instruction whose former output is now unused) must call this before
// committing (spec.md §3 "must renumber before commit").
func (c *Code) Renumber() map[VarId]VarId {
	mapping := map[VarId]VarId{}
	var next VarId
	assign := func(v VarId) VarId {
		if nv, ok := mapping[v]; ok {
			return nv
		}
		nv := next
		mapping[v] = nv
		next++
		return nv
	}
	for idx := range c.instrs {
		ins := &c.instrs[idx]
		for i, v := range ins.Inputs {
			ins.Inputs[i] = mapping[v]
		}
		for i, v := range ins.Outputs {
			ins.Outputs[i] = assign(v)
		}
		for i, v := range ins.InnerOutputs {
			ins.InnerOutputs[i] = assign(v)
		}
	}
	return mapping
}

// IsStaticallyValid checks the three static-validity properties spec.md §3
// requires of Code after every accepted reduction: matching block pairs,
// variables defined before use, and break/continue only inside a loop
// context.
func (c *Code) IsStaticallyValid() error {
	groups, err := FindBlockGroups(c.instrs)
	if err != nil {
		return err
	}
	_ = groups // matching itself is the check; FindBlockGroups errors on mismatch.

	defined := map[VarId]bool{}
	var loopDepth int
	var stack []BlockClass
	for i, ins := range c.instrs {
		switch ins.Def().Kind {
		case BlockEnd:
			if len(stack) == 0 {
				return fmt.Errorf("%w: stray block end at %d", ErrUnbalancedBlocks, i)
			}
			if stack[len(stack)-1] == LoopBlock {
				loopDepth--
			}
			stack = stack[:len(stack)-1]
		}
		for _, v := range ins.Inputs {
			if !defined[v] {
				return fmt.Errorf("%w: %s at instruction %d reads v%d", ErrUseBeforeDef, ins.Op, i, v)
			}
		}
		switch ins.Op {
		case "Break", "Continue":
			if loopDepth == 0 {
				return fmt.Errorf("%w: %s outside a loop at instruction %d", ErrInvalidContext, ins.Op, i)
			}
		}
		for _, v := range ins.Outputs {
			defined[v] = true
		}
		if ins.Def().Kind == BlockBegin && ins.Op != "BeginCatch" && ins.Op != "BeginFinally" && ins.Op != "BeginElse" {
			stack = append(stack, ins.Def().Class)
			if ins.Def().Class == LoopBlock {
				loopDepth++
			}
		}
		for _, v := range ins.InnerOutputs {
			defined[v] = true
		}
	}
	if len(stack) != 0 {
		return ErrUnbalancedBlocks
	}
	return nil
}
