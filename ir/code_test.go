package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/covfuzz/covfuzz/ir"
)

func TestCodeValidityCatchesUseBeforeDef(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "Add", Inputs: []ir.VarId{0, 1}, Outputs: []ir.VarId{2}},
	})
	c := ir.NewCode(p)
	require.ErrorIs(t, c.IsStaticallyValid(), ir.ErrUseBeforeDef)
}

func TestCodeValidityCatchesBreakOutsideLoop(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "Break"},
	})
	c := ir.NewCode(p)
	require.ErrorIs(t, c.IsStaticallyValid(), ir.ErrInvalidContext)
}

func TestCodeValidityAcceptsBreakInsideLoop(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "BeginRepeatLoop", InnerOutputs: []ir.VarId{0}},
		{Op: "Break"},
		{Op: "EndRepeatLoop"},
	})
	c := ir.NewCode(p)
	require.NoError(t, c.IsStaticallyValid())
}

func TestCodeValidityCatchesUnbalancedBlocks(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "BeginRepeatLoop", InnerOutputs: []ir.VarId{0}},
	})
	c := ir.NewCode(p)
	require.ErrorIs(t, c.IsStaticallyValid(), ir.ErrUnbalancedBlocks)
}

func TestRenumberClosesGaps(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
		{Op: "LoadInt", Outputs: []ir.VarId{5}}, // gap: v0 used, v1-4 skipped
		{Op: "Add", Inputs: []ir.VarId{0, 5}, Outputs: []ir.VarId{9}},
	})
	c := ir.NewCode(p)
	require.False(t, c.IsContinuouslyNumbered())

	c.Renumber()
	require.True(t, c.IsContinuouslyNumbered())

	instrs := c.Instructions()
	require.Equal(t, ir.VarId(0), instrs[0].Outputs[0])
	require.Equal(t, ir.VarId(1), instrs[1].Outputs[0])
	require.Equal(t, []ir.VarId{0, 1}, instrs[2].Inputs)
	require.Equal(t, ir.VarId(2), instrs[2].Outputs[0])
}

func TestStripNopsThenRenumber(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "LoadInt", Outputs: []ir.VarId{0}},
		{Op: "Nop", Outputs: []ir.VarId{1}},
		{Op: "Add", Inputs: []ir.VarId{0, 0}, Outputs: []ir.VarId{2}},
	})
	c := ir.NewCode(p)
	c.StripNops()
	require.Equal(t, 2, c.Len())
	c.Renumber()
	require.True(t, c.IsContinuouslyNumbered())
	require.Equal(t, ir.VarId(1), c.Instructions()[1].Outputs[0])
}

func TestFindBlockGroupsNested(t *testing.T) {
	p := ir.NewProgram([]ir.Instruction{
		{Op: "BeginRepeatLoop", InnerOutputs: []ir.VarId{0}},
		{Op: "BeginIf", Inputs: []ir.VarId{0}},
		{Op: "EndIf"},
		{Op: "EndRepeatLoop"},
	})
	groups, err := ir.FindBlockGroups(p.Instructions)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, 0, groups[0].Begin)
	require.Equal(t, 3, groups[0].End)
	require.Len(t, groups[0].Children, 1)
	require.Equal(t, 1, groups[0].Children[0].Begin)
	require.Equal(t, 2, groups[0].Children[0].End)
}

func TestNewNopForPreservesOutputCount(t *testing.T) {
	ins := ir.Instruction{Op: "CallFunction", Inputs: []ir.VarId{0}, Outputs: []ir.VarId{1}}
	nop := ir.NewNopFor(ins)
	require.True(t, nop.IsNop())
	require.Equal(t, []ir.VarId{1}, nop.Outputs)
}
