package arm64

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/dynarec/backend/regalloc"
)

func TestMovImm(t *testing.T) {
	var a Asm

	a.movImm(1, 0x1234_5678_0000_abcd)
	a.movImm(2, 0)
	a.movImm(3, 0xffff_0000)

	assert.Equal(t, `	MOVZ	X1, #0xabcd
	MOVK	X1, #0x5678, LSL #32
	MOVK	X1, #0x1234, LSL #48
	MOV	X2, XZR
	MOVZ	X3, #0xffff, LSL #16
`, string(a.Bytes()))
	assert.Equal(t, 5, a.Insts())
}

func TestMoves(t *testing.T) {
	for _, tc := range []struct {
		width    int
		dst, src regalloc.HostLoc
		exp      string
	}{
		{32, regalloc.Gpr(1), regalloc.Gpr(2), "\tMOV\tW1, W2\n"},
		{64, regalloc.Gpr(1), regalloc.Gpr(2), "\tMOV\tX1, X2\n"},
		{64, regalloc.Gpr(1), regalloc.Fpr(2), "\tFMOV\tX1, D2\n"},
		{128, regalloc.Fpr(1), regalloc.Fpr(2), "\tMOV\tV1.16B, V2.16B\n"},
		{64, regalloc.Gpr(3), regalloc.Flags, "\tMRS\tX3, NZCV\n"},
		{64, regalloc.Flags, regalloc.Gpr(3), "\tMSR\tNZCV, X3\n"},
		{128, regalloc.Spill(2), regalloc.Fpr(3), "\tSTR\tQ3, [SP, #32]\n"},
		{64, regalloc.Spill(0), regalloc.Gpr(19), "\tSTR\tX19, [SP, #0]\n"},
		{64, regalloc.Gpr(19), regalloc.Spill(4), "\tLDR\tX19, [SP, #64]\n"},
		{64, regalloc.Flags, regalloc.Spill(1), "\tLDR\tX16, [SP, #16]\n\tMSR\tNZCV, X16\n"},
		{64, regalloc.Spill(1), regalloc.Flags, "\tMRS\tX16, NZCV\n\tSTR\tX16, [SP, #16]\n"},
	} {
		var a Asm

		a.Move(tc.width, tc.dst, tc.src)

		assert.Equal(t, tc.exp, string(a.Bytes()), "%v <- %v", tc.dst, tc.src)
	}
}

func TestLoadImmediate(t *testing.T) {
	var a Asm

	a.LoadImmediate(regalloc.Fpr(0), 0)
	a.LoadImmediate(regalloc.Fpr(1), 7)
	a.LoadImmediate(regalloc.Flags, 0x6000_0000)
	a.LoadImmediate(regalloc.Spill(1), 0)

	assert.Equal(t, `	MOVI	V0.2D, #0
	MOVZ	X16, #0x7
	FMOV	D1, X16
	MOVZ	X16, #0x6000, LSL #16
	MSR	NZCV, X16
	STP	XZR, XZR, [SP, #16]
`, string(a.Bytes()))
}

func TestConfig(t *testing.T) {
	cfg := Config(1, 0)

	assert.Len(t, cfg.GPROrder, 25)
	assert.Equal(t, 19, cfg.GPROrder[0])
	assert.NotContains(t, cfg.GPROrder, stateReg)
	assert.NotContains(t, cfg.GPROrder, scratch0)
	assert.NotContains(t, cfg.GPROrder, scratch1)
	assert.Len(t, cfg.FPROrder, 32)
	assert.True(t, cfg.HasFlags)
}
