package x64

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/dynarec/backend/regalloc"
)

func TestMovImm(t *testing.T) {
	var a Asm

	a.movImm(rbx, 0)
	a.movImm(rcx, 0xffff_0000)
	a.movImm(r12, 0x1234_5678_0000_abcd)

	assert.Equal(t, `	XOR	EBX, EBX
	MOV	ECX, 0xffff0000
	MOV	R12, 0x123456780000abcd
`, string(a.Bytes()))
	assert.Equal(t, 3, a.Insts())
}

func TestMoves(t *testing.T) {
	for _, tc := range []struct {
		width    int
		dst, src regalloc.HostLoc
		exp      string
	}{
		{32, regalloc.Gpr(rbx), regalloc.Gpr(rax), "\tMOV\tEBX, EAX\n"},
		{64, regalloc.Gpr(r12), regalloc.Gpr(rbp), "\tMOV\tR12, RBP\n"},
		{64, regalloc.Gpr(rbx), regalloc.Fpr(2), "\tMOVQ\tRBX, XMM2\n"},
		{32, regalloc.Fpr(3), regalloc.Gpr(rsi), "\tMOVD\tXMM3, ESI\n"},
		{128, regalloc.Fpr(1), regalloc.Fpr(2), "\tMOVAPS\tXMM1, XMM2\n"},
		{128, regalloc.Spill(2), regalloc.Fpr(3), "\tMOVUPS\t[RSP+32], XMM3\n"},
		{64, regalloc.Spill(0), regalloc.Gpr(r13), "\tMOV\t[RSP+0], R13\n"},
		{64, regalloc.Gpr(rbx), regalloc.Spill(4), "\tMOV\tRBX, [RSP+64]\n"},
		{128, regalloc.Spill(1), regalloc.Spill(3), "\tMOVUPS\tXMM0, [RSP+48]\n\tMOVUPS\t[RSP+16], XMM0\n"},
	} {
		var a Asm

		a.Move(tc.width, tc.dst, tc.src)

		assert.Equal(t, tc.exp, string(a.Bytes()), "%v <- %v", tc.dst, tc.src)
	}
}

func TestLoadImmediate(t *testing.T) {
	var a Asm

	a.LoadImmediate(regalloc.Fpr(1), 0)
	a.LoadImmediate(regalloc.Fpr(2), 0x1_0000_0007)
	a.LoadImmediate(regalloc.Spill(1), 5)

	assert.Equal(t, `	PXOR	XMM1, XMM1
	MOV	DWORD PTR [RSP-8], 0x7
	MOV	DWORD PTR [RSP-4], 0x1
	MOVQ	XMM2, QWORD PTR [RSP-8]
	MOV	DWORD PTR [RSP+16], 0x5
	MOV	DWORD PTR [RSP+20], 0x0
	MOV	QWORD PTR [RSP+24], 0
`, string(a.Bytes()))

	assert.Panics(t, func() { a.LoadImmediate(regalloc.Flags, 0) })
}

func TestConfig(t *testing.T) {
	cfg := Config(1, 0)

	assert.Len(t, cfg.GPROrder, 14)
	assert.Equal(t, rbx, cfg.GPROrder[0])
	assert.NotContains(t, cfg.GPROrder, stateReg)
	assert.NotContains(t, cfg.GPROrder, rsp)
	assert.NotContains(t, cfg.FPROrder, scratchXmm)
	assert.False(t, cfg.HasFlags)
	assert.Equal(t, rax, cfg.ReturnGPR)
}
