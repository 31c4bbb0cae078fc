package x64

import (
	"fmt"

	"github.com/slowlang/dynarec/backend/regalloc"
)

type (
	// Asm collects assembly text in Intel syntax.
	Asm struct {
		b []byte
		n int
	}
)

func (a *Asm) ins(format string, args ...any) {
	a.b = append(a.b, '\t')
	a.b = fmt.Appendf(a.b, format, args...)
	a.b = append(a.b, '\n')
	a.n++
}

func (a *Asm) comment(format string, args ...any) {
	a.b = append(a.b, "\t; "...)
	a.b = fmt.Appendf(a.b, format, args...)
	a.b = append(a.b, '\n')
}

func (a *Asm) Bytes() []byte { return a.b }
func (a *Asm) Insts() int { return a.n }

func (a *Asm) Move(width int, dst, src regalloc.HostLoc) {
	switch {
	case dst == src:
	case dst.IsGpr() && src.IsGpr():
		if width <= 32 {
			a.ins("MOV\t%s, %s", r32(dst.Index), r32(src.Index))
		} else {
			a.ins("MOV\t%s, %s", r64(dst.Index), r64(src.Index))
		}
	case dst.IsGpr() && src.IsFpr():
		if width <= 32 {
			a.ins("MOVD\t%s, %s", r32(dst.Index), xmm(src.Index))
		} else {
			a.ins("MOVQ\t%s, %s", r64(dst.Index), xmm(src.Index))
		}
	case dst.IsFpr() && src.IsGpr():
		if width <= 32 {
			a.ins("MOVD\t%s, %s", xmm(dst.Index), r32(src.Index))
		} else {
			a.ins("MOVQ\t%s, %s", xmm(dst.Index), r64(src.Index))
		}
	case dst.IsFpr() && src.IsFpr():
		a.ins("MOVAPS\t%s, %s", xmm(dst.Index), xmm(src.Index))
	case dst.IsSpill() && src.IsGpr():
		a.ins("MOV\t%s, %s", spillAddr(dst.Index), r64(src.Index))
	case dst.IsSpill() && src.IsFpr():
		if width > 64 {
			a.ins("MOVUPS\t%s, %s", spillAddr(dst.Index), xmm(src.Index))
		} else {
			a.ins("MOVQ\t%s, %s", spillAddr(dst.Index), xmm(src.Index))
		}
	case dst.IsGpr() && src.IsSpill():
		a.ins("MOV\t%s, %s", r64(dst.Index), spillAddr(src.Index))
	case dst.IsFpr() && src.IsSpill():
		if width > 64 {
			a.ins("MOVUPS\t%s, %s", xmm(dst.Index), spillAddr(src.Index))
		} else {
			a.ins("MOVQ\t%s, %s", xmm(dst.Index), spillAddr(src.Index))
		}
	case dst.IsSpill() && src.IsSpill():
		a.ins("MOVUPS\t%s, %s", xmm(scratchXmm), spillAddr(src.Index))
		a.ins("MOVUPS\t%s, %s", spillAddr(dst.Index), xmm(scratchXmm))
	default:
		panic(fmt.Sprintf("move %v <- %v", dst, src))
	}
}

func (a *Asm) LoadImmediate(dst regalloc.HostLoc, imm uint64) {
	lo, hi := uint32(imm), uint32(imm>>32)

	switch dst.Kind {
	case regalloc.KindGpr:
		a.movImm(dst.Index, imm)
	case regalloc.KindFpr:
		if imm == 0 {
			a.ins("PXOR\t%s, %s", xmm(dst.Index), xmm(dst.Index))
			return
		}

		// through the red zone, no general register is free here
		a.ins("MOV\tDWORD PTR [RSP-8], %#x", lo)
		a.ins("MOV\tDWORD PTR [RSP-4], %#x", hi)
		a.ins("MOVQ\t%s, QWORD PTR [RSP-8]", xmm(dst.Index))
	case regalloc.KindSpill:
		off := dst.Index * regalloc.SpillSlotSize

		a.ins("MOV\tDWORD PTR [RSP+%d], %#x", off, lo)
		a.ins("MOV\tDWORD PTR [RSP+%d], %#x", off+4, hi)
		a.ins("MOV\tQWORD PTR [RSP+%d], 0", off+8)
	default:
		panic(fmt.Sprintf("load immediate into %v", dst))
	}
}

func (a *Asm) movImm(r int, imm uint64) {
	switch {
	case imm == 0:
		a.ins("XOR\t%s, %s", r32(r), r32(r))
	case imm <= 0xffff_ffff:
		a.ins("MOV\t%s, %#x", r32(r), imm)
	default:
		a.ins("MOV\t%s, %#x", r64(r), imm)
	}
}

func (a *Asm) DebugDump(entries []regalloc.DebugEntry) {
	for _, e := range entries {
		a.comment("%%%d %v in %s", e.Inst, e.Type, locName(e.Loc))
	}
}

func locName(l regalloc.HostLoc) string {
	switch l.Kind {
	case regalloc.KindGpr:
		return r64(l.Index)
	case regalloc.KindFpr:
		return xmm(l.Index)
	default:
		return spillAddr(l.Index)
	}
}

func spillAddr(slot int) string {
	return fmt.Sprintf("[RSP+%d]", slot*regalloc.SpillSlotSize)
}

func r64(i int) string { return names64[i] }
func r32(i int) string { return names32[i] }
func reg16(i int) string { return names16[i] }
func reg8(i int) string { return names8[i] }
func xmm(i int) string { return fmt.Sprintf("XMM%d", i) }

func gp(r *regalloc.Reg) string {
	if r.Width() == 64 {
		return r64(r.Index())
	}

	return r32(r.Index())
}
