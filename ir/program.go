package ir

import (
	"crypto/sha256"
	"encoding/binary"
)

// Provenance records inspection-only ancestry (spec.md §3: "used only for
// inspection"); it never affects equality, hashing or execution.
type Provenance struct {
	ParentHash [32]byte
	Mutators   []string
}

// Program is an ordered, immutable-by-convention sequence of instructions
// (spec.md §3).
type Program struct {
	Instructions []Instruction
	Provenance   Provenance
}

// NewProgram wraps a slice of instructions into a Program. The slice is not
// copied; callers that mutate it afterwards must Clone first.
func NewProgram(instructions []Instruction) *Program {
	return &Program{Instructions: instructions}
}

// Size is the instruction count (spec.md §3).
func (p *Program) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Instructions)
}

// Empty reports whether the program has no instructions; the corpus must
// reject such programs on add (spec.md §4.1).
func (p *Program) Empty() bool {
	return p.Size() == 0
}

// Clone returns a deep copy.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	out := &Program{
		Instructions: make([]Instruction, len(p.Instructions)),
		Provenance:   p.Provenance,
	}
	for i, ins := range p.Instructions {
		out.Instructions[i] = ins.Clone()
	}
	out.Provenance.Mutators = append([]string(nil), p.Provenance.Mutators...)
	return out
}

// Hash computes a content hash that is stable across equivalent encodings:
// only the op/inputs/outputs/innerOutputs/flags/imm stream feeds the digest,
// not Provenance (spec.md §3: "a content hash (stable across equivalent
// encodings)"). Used by the corpus for deduplication (spec.md §4.1, §9).
func (p *Program) Hash() [32]byte {
	h := sha256.New()
	var buf [4]byte
	writeUint32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[:], v)
		h.Write(buf[:])
	}
	for _, ins := range p.Instructions {
		h.Write([]byte(ins.Op))
		h.Write([]byte{0})
		writeUint32(uint32(len(ins.Inputs)))
		for _, v := range ins.Inputs {
			writeUint32(uint32(v))
		}
		writeUint32(uint32(len(ins.Outputs)))
		for _, v := range ins.Outputs {
			writeUint32(uint32(v))
		}
		writeUint32(uint32(len(ins.InnerOutputs)))
		for _, v := range ins.InnerOutputs {
			writeUint32(uint32(v))
		}
		writeUint32(uint32(ins.Flags))
		writeUint32(uint32(ins.Imm))
		writeUint32(uint32(ins.Imm >> 32))
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
