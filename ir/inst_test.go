package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countUses recomputes use counts from arguments of all instructions ever created.
func countUses(b *Block) map[*Inst]int {
	m := make(map[*Inst]int)

	for _, i := range b.arena {
		for n := range i.args {
			if i.args[n].IsOpaque() {
				m[i.args[n].inst]++
			}
		}
	}

	return m
}

func requireUseParity(t *testing.T, b *Block) {
	t.Helper()

	m := countUses(b)

	for _, i := range b.arena {
		require.Equal(t, m[i], i.UseCount(), "use count of %%%d", i.ID())
	}
}

func TestUseCounts(t *testing.T) {
	b := NewBlock(Location{Arch: GuestA32, PC: 0x1000})

	x := b.Append(OpA32GetRegister, ImmA32Reg(1))
	y := b.Append(OpAdd32, x, x, ImmU1(false))
	b.Append(OpA32SetRegister, ImmA32Reg(2), y)

	assert.Equal(t, 2, x.Inst().UseCount())
	assert.Equal(t, 1, y.Inst().UseCount())
	requireUseParity(t, b)

	y.Inst().SetArg(1, ImmU32(3))
	assert.Equal(t, 1, x.Inst().UseCount())
	requireUseParity(t, b)

	y.Inst().SetArg(1, x)
	assert.Equal(t, 2, x.Inst().UseCount())

	y.Inst().ReplaceUsesWith(x)
	assert.Equal(t, 1, x.Inst().UseCount(), "identity holds one use of x")
	assert.Equal(t, 1, y.Inst().UseCount(), "consumers keep referencing y")
	requireUseParity(t, b)

	y.Inst().ClearArgs()
	assert.Equal(t, 0, x.Inst().UseCount())
	requireUseParity(t, b)
}

func TestSetArgChecks(t *testing.T) {
	b := NewBlock(Location{})

	x := b.Append(OpA32GetRegister, ImmA32Reg(1))
	y := b.Append(OpAdd32, x, ImmU32(1), ImmU1(false))

	assert.Panics(t, func() { y.Inst().SetArg(3, x) })
	assert.Panics(t, func() { y.Inst().SetArg(1, ImmU64(1)) })
	assert.Panics(t, func() { y.Inst().Arg(-1) })
	assert.Panics(t, func() { b.Append(OpAdd32, x) })
	assert.Panics(t, func() { y.Inst().ReplaceUsesWith(y) })

	requireUseParity(t, b)
}

func TestPseudoOperations(t *testing.T) {
	b := NewBlock(Location{})

	x := b.Append(OpA32GetRegister, ImmA32Reg(1))
	sum := b.Append(OpAdd32, x, ImmU32(1), ImmU1(false))

	assert.False(t, sum.Inst().HasAssociatedPseudoOperation())

	carry := b.Append(OpGetCarryFromOp, sum)
	nzcv := b.Append(OpGetNZCVFromOp, sum)

	assert.True(t, sum.Inst().HasAssociatedPseudoOperation())
	assert.Equal(t, carry.Inst(), sum.Inst().GetAssociatedPseudoOperation(OpGetCarryFromOp))
	assert.Equal(t, nzcv.Inst(), sum.Inst().GetAssociatedPseudoOperation(OpGetNZCVFromOp))
	assert.Nil(t, sum.Inst().GetAssociatedPseudoOperation(OpGetOverflowFromOp))

	// one of each kind only
	assert.Panics(t, func() { b.Append(OpGetCarryFromOp, sum) })
	assert.Equal(t, 2, sum.Inst().UseCount())

	// Mul32 has no flags
	mul := b.Append(OpMul32, x, x)
	assert.Panics(t, func() { b.Append(OpGetCarryFromOp, mul) })
	assert.Panics(t, func() { b.Append(OpGetNZCVFromOp, mul) })

	// And32 sets NZCV but no carry or overflow
	and := b.Append(OpAnd32, x, x)
	assert.Panics(t, func() { b.Append(OpGetOverflowFromOp, and) })
	b.Append(OpGetNZCVFromOp, and)

	carry.Inst().Invalidate()
	assert.Nil(t, sum.Inst().GetAssociatedPseudoOperation(OpGetCarryFromOp))
	assert.Equal(t, nzcv.Inst(), sum.Inst().GetAssociatedPseudoOperation(OpGetNZCVFromOp))

	nzcv.Inst().Invalidate()
	assert.False(t, sum.Inst().HasAssociatedPseudoOperation())

	// the slot is free again
	b.Append(OpGetCarryFromOp, sum)
}

func TestInstPredicates(t *testing.T) {
	b := NewBlock(Location{})

	addr := b.Append(OpA32GetRegister, ImmA32Reg(0))
	ld := b.Append(OpA32ReadMemory32, addr, ImmAccType(AccNormal)).Inst()
	st := b.Append(OpA32WriteMemory32, addr, ImmU32(1), ImmAccType(AccNormal)).Inst()
	sh := b.Append(OpRotateRight32, addr, ImmU8(3), ImmU1(false)).Inst()

	assert.True(t, ld.IsMemoryRead())
	assert.False(t, ld.MayHaveSideEffects())
	assert.True(t, st.IsMemoryReadOrWrite())
	assert.True(t, st.MayHaveSideEffects())
	assert.True(t, sh.IsCircularShift())
	assert.True(t, sh.IsShift())
	assert.False(t, sh.MayGetNZCVFromOp())
	assert.True(t, addr.Inst().ReadsFromCoreRegister())
	assert.True(t, addr.Inst().AreAllArgsImmediates())
	assert.False(t, sh.AreAllArgsImmediates())
}
