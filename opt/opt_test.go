package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/dynarec/ir"
)

func parse(t *testing.T, src string) *ir.Block {
	t.Helper()

	b, err := ir.Parse([]byte(src))
	require.NoError(t, err)

	return b
}

func TestConstantFolding(t *testing.T) {
	ctx := context.Background()

	b := parse(t, `block a32 0
%0 = Add32 #2, #3, #0
%1 = Sub32 %0, #1, #1
%2 = LogicalShiftLeft32 %1, #4, #0
%3 = ArithmeticShiftRight32 #0x80000000, #40, #0
%4 = RotateRight32 #1, #1, #0
%5 = SignExtendByteToWord #0xfe
A32SetRegister r0, %2
A32SetRegister r1, %3
A32SetRegister r2, %4
A32SetRegister r3, %5
`)

	n := ConstantFolding(ctx, b)
	assert.Equal(t, 6, n)

	in := b.Insts()
	assert.Equal(t, uint32(64), in[6].Arg(1).U32())
	assert.Equal(t, uint32(0xffff_ffff), in[7].Arg(1).U32())
	assert.Equal(t, uint32(0x8000_0000), in[8].Arg(1).U32())
	assert.Equal(t, uint32(0xffff_fffe), in[9].Arg(1).U32())

	require.NoError(t, Verify(b))
}

func TestConstantFoldingKeepsFlags(t *testing.T) {
	b := parse(t, `block a32 0
%0 = Add32 #0xffffffff, #1, #0
%1 = GetCarryFromOp %0
%2 = ZeroExtendByteToWord #7
%3 = Or32 %2, #0
A32SetRegister r0, %0
A32SetRegister r1, %3
`)

	n := ConstantFolding(context.Background(), b)
	assert.Equal(t, 2, n)

	assert.Equal(t, ir.OpAdd32, b.Insts()[0].Op())
	assert.Equal(t, uint32(7), b.Insts()[5].Arg(1).U32())
}

func TestSimplify(t *testing.T) {
	b := parse(t, `block a64 0
%0 = A64GetX x0
%1 = And64 %0, #0xffffffffffffffff
%2 = Mul64 #1, %1
%3 = Add64 %2, #0, #0
%4 = Eor64 #0, %3
A64SetX x1, %4
%5 = And64 %0, #0
A64SetX x2, %5
`)

	ConstantFolding(context.Background(), b)
	IdentityRemoval(context.Background(), b)

	x := b.Insts()[0]

	set := b.Insts()[1]
	assert.Equal(t, ir.OpA64SetX, set.Op())
	assert.Equal(t, x, set.Arg(1).Inst())

	assert.True(t, b.Insts()[2].Arg(1).IsZero())
	assert.Equal(t, 1, x.UseCount())
	require.NoError(t, Verify(b))
}

func TestIdentityRemovalAndDCE(t *testing.T) {
	ctx := context.Background()

	b := parse(t, `block a32 0x100
%0 = A32GetRegister r1
%1 = A32GetRegister r2
%2 = Add32 %0, %1, #0
%3 = Mul32 %2, %2
%4 = A32ReadMemory32 %0, normal
A32SetRegister r3, %2
`)

	b.Insts()[2].ReplaceUsesWith(b.Insts()[0].Value())

	assert.Equal(t, 1, IdentityRemoval(ctx, b))
	require.NoError(t, Verify(b))

	// Mul32 and the unused memory read go, the read of r2 goes after them
	assert.Equal(t, 3, DeadCodeElimination(ctx, b))
	require.NoError(t, Verify(b))

	assert.Equal(t, `block a32 0x100
%0 = A32GetRegister r1	; uses 1
A32SetRegister r3, %0
terminal ReturnToDispatch
`, b.Dump())
}

func TestRun(t *testing.T) {
	b := parse(t, `block a32 0
%0 = A32GetRegister r1
%1 = Add32 #1, #2, #0
%2 = Add32 %0, %1, #0
%3 = GetNZCVFromOp %2
A32SetCpsrNZCV %3
A32SetRegister r0, %2
terminal LinkBlock 0x4
`)

	err := Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, 5, b.Len())
	assert.Equal(t, uint32(3), b.Insts()[1].Arg(1).U32())
}

func TestVerifyInvalidated(t *testing.T) {
	b := parse(t, `block a32 0
%0 = A32GetRegister r1
A32SetRegister r0, %0
`)

	require.NoError(t, Verify(b))

	// an instruction invalidated but kept in the block is fine
	b.Insts()[1].Invalidate()
	require.NoError(t, Verify(b))
}
