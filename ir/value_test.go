package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImmediates(t *testing.T) {
	assert.True(t, ImmU1(true).U1())
	assert.Equal(t, uint8(0xfe), ImmU8(0xfe).U8())
	assert.Equal(t, uint32(7), ImmOfType(TypeU32, 0x1_0000_0007).U32())
	assert.Equal(t, A32LR, ImmA32Reg(A32LR).A32Reg())
	assert.Equal(t, CondGT, ImmCond(CondGT).Cond())

	ci := CoprocInfo{1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, ci, ImmCoprocInfo(ci).CoprocInfo())

	assert.Equal(t, int64(-1), ImmU8(0xff).ImmediateAsS64())
	assert.Equal(t, int64(-2), ImmU32(0xffff_fffe).ImmediateAsS64())
	assert.Equal(t, int64(1), ImmU1(true).ImmediateAsS64())
	assert.Equal(t, uint64(0xffff), ImmU16(0xffff).ImmediateAsU64())

	assert.True(t, ImmU32(0).IsZero())
	assert.True(t, ImmU16(0xffff).HasAllBitsSet())
	assert.False(t, ImmU32(0xffff).HasAllBitsSet())
	assert.True(t, ImmU8(0xff).IsSignedImmediate(-1))

	assert.Panics(t, func() { ImmU32(1).U64() })
	assert.Panics(t, func() { ImmCond(CondEQ).ImmediateAsU64() })
}

func TestValueStrings(t *testing.T) {
	assert.Equal(t, "#5", ImmU32(5).String())
	assert.Equal(t, "r3", ImmA32Reg(3).String())
	assert.Equal(t, "pc", ImmA32Reg(A32PC).String())
	assert.Equal(t, "d4", ImmA32ExtReg(A32D0+4).String())
	assert.Equal(t, "zr", ImmA64Reg(A64ZR).String())
	assert.Equal(t, "ordered", ImmAccType(AccOrdered).String())
	assert.Equal(t, "[0,1,0,0,0,0,0,9]", ImmCoprocInfo(CoprocInfo{0, 1, 0, 0, 0, 0, 0, 9}).String())
	assert.Equal(t, "<void>", Value{}.String())
}

func TestIdentityTransparency(t *testing.T) {
	b := NewBlock(Location{})

	x := b.Append(OpA32GetRegister, ImmA32Reg(1))
	y := b.Append(OpAdd32, x, ImmU32(5), ImmU1(false))

	// y is an Identity of an immediate now
	y.Inst().ReplaceUsesWith(ImmU32(42))

	assert.True(t, y.IsOpaque())
	assert.True(t, y.IsIdentity())
	assert.True(t, y.IsImmediate())
	assert.Equal(t, TypeU32, y.Type())
	assert.Equal(t, uint32(42), y.U32())
	assert.Equal(t, "#42", y.String())

	// chain: z -> y -> #42
	z := b.Append(OpSub32, x, x, ImmU1(true))
	z.Inst().ReplaceUsesWith(y)

	assert.True(t, z.IsImmediate())
	assert.Equal(t, uint32(42), z.U32())
	assert.Equal(t, ImmU32(42), z.Resolve())

	w := b.Append(OpAnd32, x, x)
	w.Inst().ReplaceUsesWith(x)

	require.False(t, w.IsImmediate())
	assert.Equal(t, x.Inst(), w.InstRecursive())
	assert.Equal(t, TypeU32, w.Type())
}
