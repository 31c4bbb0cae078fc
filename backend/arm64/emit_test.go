package arm64

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
	LDR	W19, [X28, #4]
	ADDS	W19, W19, #5
	STR	W19, [X28, #8]
	MRS	X19, NZCV
	STR	W19, [X28, #320]
	MOVZ	X16, #0x1004
	STR	W16, [X28, #60]
	B	block_a32_0x1004
`, string(c.Text))

	assert.Equal(t, 8, c.Insts)
	assert.Equal(t, 0, c.SpillBytes)

	size, ok := c.Size()
	assert.True(t, ok)
	assert.Equal(t, 32, size)
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
	LDR	W19, [X28, #0]
	LDR	W20, [X28, #4]
	MOV	X1, X19
	MOV	X0, X28
	LDR	X16, [X28, #%d]
	BLR	X16
	ADD	W0, W0, W20
	STR	W0, [X28, #8]
	B	return_to_dispatch
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

	assert.Contains(t, text, "\tUBFX\tW20, W19, #28, #1\n\tLSL\tW19, W19, #4\n")
	assert.Contains(t, text, "\tMOV\tX0, X20\n\tMOV\tX1, X19\n\tMOV\tX2, XZR\n\tMOVZ\tX16, #0x1234\n\tBLR\tX16\n")

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

	c := emit(t, src.String(), backend.Options{Seed: 3})

	assert.GreaterOrEqual(t, c.Stats.Spills, n-len(Config(0, 0).GPROrder))
	assert.Equal(t, c.Stats.Spills, c.Stats.Fills)
	assert.Positive(t, c.SpillBytes)
	assert.Contains(t, string(c.Text), fmt.Sprintf("\tSUB\tSP, SP, #%d\n", c.SpillBytes))
	assert.Contains(t, string(c.Text), fmt.Sprintf("\tADD\tSP, SP, #%d\n\tB\treturn_to_dispatch\n", c.SpillBytes))

	again := emit(t, src.String(), backend.Options{Seed: 3})
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

	assert.Contains(t, text, "\tADD\tV8.4S, V8.4S, V9.4S\n")
	assert.Contains(t, text, "\tMOV\tW19, V8.S[1]\n")
	assert.Contains(t, text, fmt.Sprintf("\tSTR\tQ8, [X28, #%d]\n", jitstate.A64Vec(3)))
}

func TestEmitDebug(t *testing.T) {
	c := emit(t, `block a32 0
%0 = A32GetRegister r0
%1 = Not32 %0
A32SetRegister r1, %1
A32SetRegister r2, %0
terminal ReturnToDispatch
`, backend.Options{Debug: true})

	assert.Contains(t, string(c.Text), "\t// %0 U32 in X19\n")
	assert.Contains(t, string(c.Text), "\t// %1 U32 in X20\n")
}
