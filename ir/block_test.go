package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockEditing(t *testing.T) {
	b := NewBlock(Location{Arch: GuestA64, PC: 0x4000})

	x := b.Append(OpA64GetX, ImmA64Reg(0))
	set := b.Append(OpA64SetX, ImmA64Reg(1), x).Inst()

	y := b.InsertBefore(set, OpAdd64, x, ImmU64(8), ImmU1(false))
	set.SetArg(1, y)

	require.Equal(t, 3, b.Len())
	assert.Equal(t, []*Inst{x.Inst(), y.Inst(), set}, b.Insts())
	assert.Equal(t, y.Inst(), b.Inst(y.Inst().ID()))

	assert.Panics(t, func() { b.Erase(y.Inst()) }, "erase with uses")

	set.SetArg(1, x)
	b.Erase(y.Inst())

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, OpVoid, b.Inst(y.Inst().ID()).Op())
	assert.Equal(t, 1, x.Inst().UseCount())
	requireUseParity(t, b)
}

func TestBlockForeignArgument(t *testing.T) {
	a := NewBlock(Location{})
	b := NewBlock(Location{})

	x := a.Append(OpA32GetRegister, ImmA32Reg(0))

	assert.Panics(t, func() { b.Append(OpNot32, x) })
}

func TestBlockDump(t *testing.T) {
	b := NewBlock(Location{Arch: GuestA32, PC: 0x1000})

	x := b.Append(OpA32GetRegister, ImmA32Reg(1))
	y := b.Append(OpAdd32, x, ImmU32(5), ImmU1(false))
	b.Append(OpA32SetRegister, ImmA32Reg(2), y)
	b.Terminal = LinkBlock{Next: 0x1004}

	exp := `block a32 0x1000
%0 = A32GetRegister r1	; uses 1
%1 = Add32 %0, #5, #0	; uses 1
A32SetRegister r2, %1
terminal LinkBlock 0x1004
`

	assert.Equal(t, exp, b.Dump())
}
