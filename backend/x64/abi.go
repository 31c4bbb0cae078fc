package x64

import "github.com/slowlang/dynarec/backend/regalloc"

const (
	rax = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15
)

const (
	// stateReg holds the guest state pointer for the whole block.
	stateReg = r15

	// xmm0 is the vector scratch register, never allocated.
	scratchXmm = 0
)

// Config is the System V register assignment.
func Config(seed uint64, spillSlots int) regalloc.Config {
	return regalloc.Config{
		GPROrder: []int{rbx, rbp, r12, r13, r14, rax, rcx, rdx, rsi, rdi, r8, r9, r10, r11},
		FPROrder: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		CallerSaved: regalloc.CallerSaved{
			GPRs: []int{rax, rcx, rdx, rsi, rdi, r8, r9, r10, r11},
			FPRs: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
		},
		ParamGPRs:  []int{rdi, rsi, rdx, rcx, r8, r9},
		ParamFPRs:  []int{0, 1, 2, 3, 4, 5, 6, 7},
		ReturnGPR:  rax,
		SpillSlots: spillSlots,
		Seed:       seed,
	}
}

var (
	names64 = [16]string{"RAX", "RCX", "RDX", "RBX", "RSP", "RBP", "RSI", "RDI", "R8", "R9", "R10", "R11", "R12", "R13", "R14", "R15"}
	names32 = [16]string{"EAX", "ECX", "EDX", "EBX", "ESP", "EBP", "ESI", "EDI", "R8D", "R9D", "R10D", "R11D", "R12D", "R13D", "R14D", "R15D"}
	names16 = [16]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI", "R8W", "R9W", "R10W", "R11W", "R12W", "R13W", "R14W", "R15W"}
	names8  = [16]string{"AL", "CL", "DL", "BL", "SPL", "BPL", "SIL", "DIL", "R8B", "R9B", "R10B", "R11B", "R12B", "R13B", "R14B", "R15B"}
)
