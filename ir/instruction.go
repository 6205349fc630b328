package ir

import "fmt"

// VarId identifies a program variable. Valid ids are dense: 0..N-1 with no
// gaps (spec.md §3, "variables-numbered-continuously").
type VarId uint32

// Flags is a bitset of per-instruction modifiers (e.g. "guarded" for
// optional-chaining variants, "strict" for named functions).
type Flags uint32

const (
	FlagGuarded Flags = 1 << iota
	FlagStrict
	FlagNamed
)

// Instruction is one step of a Program (spec.md §3). Inputs/Outputs/
// InnerOutputs are variable ids; InnerOutputs are only meaningful on
// BlockBegin instructions (e.g. a loop counter or a catch binding) and are
// scoped to the block body, not the enclosing scope.
type Instruction struct {
	Op           string
	Inputs       []VarId
	Outputs      []VarId
	InnerOutputs []VarId
	Flags        Flags
	// Imm is the op's associated immediate value, where one applies (e.g.
	// LoadInt's literal, BeginRepeatLoop's iteration count). Most ops leave
	// it zero. A real lifter would carry typed literals per op; this single
	// field is the minimal stand-in spec.md §1's out-of-scope IR catalogue
	// would otherwise supply, just enough for LoopReducer's iteration-count
	// ladder (§4.4.4) to have something to shrink.
	Imm int64
}

// Def returns the static metadata for this instruction's op.
func (ins Instruction) Def() OpDef {
	return MustLookupOp(ins.Op)
}

func (ins Instruction) IsBlockBegin() bool { return ins.Def().Kind == BlockBegin }
func (ins Instruction) IsBlockEnd() bool   { return ins.Def().Kind == BlockEnd }
func (ins Instruction) IsNop() bool        { return ins.Def().Kind == NopKind }
func (ins Instruction) IsSimple() bool     { return ins.Def().Kind == Simple }

func (ins Instruction) HasFlag(f Flags) bool { return ins.Flags&f != 0 }

// NumOutputs is the total number of variables this instruction defines,
// counting both Outputs and InnerOutputs.
func (ins Instruction) NumOutputs() int {
	return len(ins.Outputs) + len(ins.InnerOutputs)
}

func (ins Instruction) String() string {
	return fmt.Sprintf("%s(in=%v,out=%v,inner=%v)", ins.Op, ins.Inputs, ins.Outputs, ins.InnerOutputs)
}

// Clone returns a deep copy, so mutating the result never aliases ins.
func (ins Instruction) Clone() Instruction {
	out := ins
	out.Inputs = append([]VarId(nil), ins.Inputs...)
	out.Outputs = append([]VarId(nil), ins.Outputs...)
	out.InnerOutputs = append([]VarId(nil), ins.InnerOutputs...)
	return out
}

// NewNopFor builds the canonical replacement Nop for an instruction,
// preserving its total output arity so that renumbering stays contiguous
// (spec.md §3 "Nops preserve the output variable count"). This is the
// standalone form of MinimizationHelper.nop (§4.4).
func NewNopFor(ins Instruction) Instruction {
	nop := Instruction{Op: "Nop"}
	if n := ins.NumOutputs(); n > 0 {
		nop.Outputs = make([]VarId, 0, n)
		nop.Outputs = append(nop.Outputs, ins.Outputs...)
		nop.Outputs = append(nop.Outputs, ins.InnerOutputs...)
	}
	return nop
}
