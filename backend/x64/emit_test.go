package x64

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/dynarec/backend"
	"github.com/slowlang/dynarec/backend/jitstate"
	"github.com/slowlang/dynarec/ir"
)

func emit(t *testing.T, src string, opts backend.Options) *backend.Code {
	t.Helper()

	b, err := ir.Parse([]byte(src))
	require.NoError(t, err)

	c, err := EmitBlock(context.Background(), b, opts)
	require.NoError(t, err)

	t.Logf("result:\n%s", c.Text)

	return c
}

func TestEmitAddWithFlags(t *testing.T) {
	c := emit(t, `block a32 0x1000
%0 = A32GetRegister r1
%1 = Add32 %0, #5, #0
%2 = GetNZCVFromOp %1
A32SetRegister r2, %1
A32SetCpsrNZCV %2
terminal LinkBlock 0x1004
`, backend.Options{})

	assert.Equal(t, `block_a32_0x1000:
	MOV	EBX, [R15+4]
	ADD	EBX, 0x5
	PUSHFQ
	POP	RBP
	MOV	R12D, EBP
	AND	R12D, 0x800
	SHL	R12D, 17
	MOV	R13D, EBP
	AND	R13D, 1
	SHL	R13D, 29
	OR	R12D, R13D
	AND	EBP, 0xc0
	SHL	EBP, 24
	OR	EBP, R12D
	MOV	[R15+8], EBX
	MOV	[R15+320], EBP
	MOV	DWORD PTR [R15+60], 0x1004
	JMP	block_a32_0x1004
`, string(c.Text))

	assert.Equal(t, 18, c.Insts)

	_, ok := c.Size()
	assert.False(t, ok)
}

func TestEmitMemoryCall(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = A32GetRegister r1
%2 = A32ReadMemory32 %0, normal
%3 = Add32 %2, %1, #0
A32SetRegister r2, %3
terminal ReturnToDispatch
`, backend.Options{})

	assert.Equal(t, fmt.Sprintf(`block_a32_0x0:
	MOV	EBX, [R15+0]
	MOV	EBP, [R15+4]
	MOV	RSI, RBX
	MOV	RDI, R15
	CALL	QWORD PTR [R15+%d]
	ADD	EAX, EBP
	MOV	[R15+8], EAX
	JMP	return_to_dispatch
`, jitstate.CallbackOffset(ir.GuestA32, jitstate.CallbackReadMemory32)), string(c.Text))
}

func TestEmitShiftCarry(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = LogicalShiftLeft32 %0, #4, #0
%2 = GetCarryFromOp %1
CallHostFunction #0x1234, %2, %1, #0:U32
terminal ReturnToDispatch
`, backend.Options{})

	text := string(c.Text)

	assert.Contains(t, text, "\tMOV\tEBP, EBX\n\tSHR\tEBP, 28\n\tAND\tEBP, 1\n\tSHL\tEBX, 4\n")
	assert.Contains(t, text, "\tMOV\tRDI, RBP\n\tMOV\tRSI, RBX\n\tXOR\tEDX, EDX\n\tMOV\tEAX, 0x1234\n\tCALL\tRAX\n")
}

func TestEmitShiftByRegister(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = A32GetRegister r1
%2 = LeastSignificantByte %1
%3 = LogicalShiftRight32 %0, %2, #0
A32SetRegister r2, %3
terminal ReturnToDispatch
`, backend.Options{})

	text := string(c.Text)

	assert.Contains(t, text, "\tSHRX\tEBX, EBX, ")
	assert.Contains(t, text, ", 32\n\tCMOVAE\tEBX, ")

	b, err := ir.Parse([]byte(`block a32 0
%0 = A32GetRegister r0
%1 = A32GetRegister r1
%2 = LeastSignificantByte %1
%3 = LogicalShiftLeft32 %0, %2, #0
%4 = GetCarryFromOp %3
CallHostFunction #0x1234, %4, %3, #0:U32
terminal ReturnToDispatch
`))
	require.NoError(t, err)

	_, err = EmitBlock(context.Background(), b, backend.Options{})
	assert.ErrorContains(t, err, "carry out of a shift by register")
}

func TestEmitSubWithCarry(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = A32GetRegister r1
%2 = A32GetCFlag
%3 = Sub32 %0, %1, %2
%4 = GetCarryFromOp %3
A32SetRegister r2, %3
CallHostFunction #0x1234, %4, #0:U32, #0:U32
terminal ReturnToDispatch
`, backend.Options{})

	text := string(c.Text)

	assert.Contains(t, text, "\tCMC\n\tSBB\tEBX, EBP\n\tSETNC\t")
	assert.Contains(t, text, "\tSHR\tR12D, 29\n\tAND\tR12D, 1\n")
}

func TestEmitConditionalSelect(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = A32GetRegister r1
%2 = ConditionalSelect32 ne, %0, %1
A32SetRegister r2, %2
terminal ReturnToDispatch
`, backend.Options{})

	assert.Contains(t, string(c.Text), `	MOV	R12D, EBP
	MOV	R13D, [R15+320]
	TEST	R13D, 0x40000000
	CMOVZ	R12D, EBX
	MOV	[R15+8], R12D
`)
}

func TestEmitUnderPressure(t *testing.T) {
	var src strings.Builder

	const n = 30

	fmt.Fprintf(&src, "block a64 0x4000\n")

	for i := 0; i < n; i++ {
		fmt.Fprintf(&src, "%%%d = A64GetX x%d\n", i, i)
	}

	for i := 0; i < n; i++ {
		fmt.Fprintf(&src, "A64SetX x%d, %%%d\n", n-1-i, i)
	}

	c := emit(t, src.String(), backend.Options{Seed: 5})

	assert.GreaterOrEqual(t, c.Stats.Spills, n-len(Config(0, 0).GPROrder))
	assert.Equal(t, c.Stats.Spills, c.Stats.Fills)
	assert.Positive(t, c.SpillBytes)
	assert.Contains(t, string(c.Text), fmt.Sprintf("\tSUB\tRSP, %d\n", c.SpillBytes))
	assert.Contains(t, string(c.Text), fmt.Sprintf("\tADD\tRSP, %d\n\tJMP\treturn_to_dispatch\n", c.SpillBytes))

	again := emit(t, src.String(), backend.Options{Seed: 5})
	assert.Equal(t, c.Text, again.Text)
}

func TestEmitVectors(t *testing.T) {
	c := emit(t, `block a64 0
%0 = A64GetQ v1
%1 = A64GetQ v2
%2 = VectorAdd32 %0, %1
%3 = VectorGetElement32 %2, #1
A64SetW x0, %3
A64SetQ v3, %2
terminal ReturnToDispatch
`, backend.Options{})

	text := string(c.Text)

	assert.Contains(t, text, "\tPADDD\tXMM1, XMM2\n")
	assert.Contains(t, text, "\tPEXTRD\tEBX, XMM1, 1\n")
	assert.Contains(t, text, fmt.Sprintf("\tMOVUPS\tXMMWORD PTR [R15+%d], XMM1\n", jitstate.A64Vec(3)))
}

func TestEmitDebug(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = Not32 %0
A32SetRegister r1, %1
A32SetRegister r2, %0
terminal ReturnToDispatch
`, backend.Options{Debug: true})

	assert.Contains(t, string(c.Text), "\t; %0 U32 in RBX\n")
	assert.Contains(t, string(c.Text), "\t; %1 U32 in RBP\n")
}

func TestEmitBreakpointSpillsAll(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
Breakpoint
A32SetRegister r1, %0
terminal ReturnToDispatch
`, backend.Options{})

	assert.Equal(t, `block_a32_0x0:
	SUB	RSP, 16
	MOV	EBX, [R15+0]
	MOV	[RSP+0], RBX
	INT3
	MOV	RBX, [RSP+0]
	MOV	[R15+4], EBX
	ADD	RSP, 16
	JMP	return_to_dispatch
`, string(c.Text))

	assert.Equal(t, 1, c.Stats.Spills)
	assert.Equal(t, 1, c.Stats.Fills)
}

func TestEmitByteRegisters(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = LeastSignificantByte %0
%2 = SignExtendByteToWord %1
%3 = IsZero32 %2
CallHostFunction #0x10, %3, #0:U32, #0:U32
terminal ReturnToDispatch
`, backend.Options{})

	assert.Contains(t, string(c.Text), `	MOVZX	EBX, BL
	MOVSX	EBX, BL
	TEST	EBX, EBX
	SETE	BL
	MOVZX	EBX, BL
`)
}
