package arm64

import (
	"fmt"

	"github.com/slowlang/dynarec/backend/regalloc"
)

type (
	// Asm collects assembly text.
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
	a.b = append(a.b, "\t// "...)
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
			a.ins("MOV\t%s, %s", w(dst.Index), w(src.Index))
		} else {
			a.ins("MOV\t%s, %s", x(dst.Index), x(src.Index))
		}
	case dst.IsGpr() && src.IsFpr():
		if width <= 32 {
			a.ins("FMOV\t%s, %s", w(dst.Index), s(src.Index))
		} else {
			a.ins("FMOV\t%s, %s", x(dst.Index), d(src.Index))
		}
	case dst.IsFpr() && src.IsGpr():
		if width <= 32 {
			a.ins("FMOV\t%s, %s", s(dst.Index), w(src.Index))
		} else {
			a.ins("FMOV\t%s, %s", d(dst.Index), x(src.Index))
		}
	case dst.IsFpr() && src.IsFpr():
		if width > 64 {
			a.ins("MOV\t%s.16B, %s.16B", v(dst.Index), v(src.Index))
		} else {
			a.ins("FMOV\t%s, %s", d(dst.Index), d(src.Index))
		}
	case dst.IsGpr() && src.IsFlags():
		a.ins("MRS\t%s, NZCV", x(dst.Index))
	case dst.IsFlags() && src.IsGpr():
		a.ins("MSR\tNZCV, %s", x(src.Index))
	case dst.IsSpill():
		a.store(width, dst, src)
	case src.IsSpill():
		a.load(width, dst, src)
	case dst.IsFlags() && src.IsFpr():
		a.ins("FMOV\t%s, %s", x(scratch0), d(src.Index))
		a.ins("MSR\tNZCV, %s", x(scratch0))
	case dst.IsFpr() && src.IsFlags():
		a.ins("MRS\t%s, NZCV", x(scratch0))
		a.ins("FMOV\t%s, %s", d(dst.Index), x(scratch0))
	default:
		panic(fmt.Sprintf("move %v <- %v", dst, src))
	}
}

func (a *Asm) store(width int, dst, src regalloc.HostLoc) {
	at := spillAddr(dst.Index)

	switch src.Kind {
	case regalloc.KindGpr:
		a.ins("STR\t%s, %s", x(src.Index), at)
	case regalloc.KindFpr:
		if width > 64 {
			a.ins("STR\t%s, %s", q(src.Index), at)
		} else {
			a.ins("STR\t%s, %s", d(src.Index), at)
		}
	case regalloc.KindFlags:
		a.ins("MRS\t%s, NZCV", x(scratch0))
		a.ins("STR\t%s, %s", x(scratch0), at)
	case regalloc.KindSpill:
		a.ins("LDP\t%s, %s, %s", x(scratch0), x(scratch1), spillAddr(src.Index))
		a.ins("STP\t%s, %s, %s", x(scratch0), x(scratch1), at)
	}
}

func (a *Asm) load(width int, dst, src regalloc.HostLoc) {
	at := spillAddr(src.Index)

	switch dst.Kind {
	case regalloc.KindGpr:
		a.ins("LDR\t%s, %s", x(dst.Index), at)
	case regalloc.KindFpr:
		if width > 64 {
			a.ins("LDR\t%s, %s", q(dst.Index), at)
		} else {
			a.ins("LDR\t%s, %s", d(dst.Index), at)
		}
	case regalloc.KindFlags:
		a.ins("LDR\t%s, %s", x(scratch0), at)
		a.ins("MSR\tNZCV, %s", x(scratch0))
	}
}

func (a *Asm) LoadImmediate(dst regalloc.HostLoc, imm uint64) {
	switch dst.Kind {
	case regalloc.KindGpr:
		a.movImm(dst.Index, imm)
	case regalloc.KindFpr:
		if imm == 0 {
			a.ins("MOVI\t%s.2D, #0", v(dst.Index))
			return
		}

		a.movImm(scratch0, imm)
		a.ins("FMOV\t%s, %s", d(dst.Index), x(scratch0))
	case regalloc.KindFlags:
		a.movImm(scratch0, imm)
		a.ins("MSR\tNZCV, %s", x(scratch0))
	case regalloc.KindSpill:
		if imm == 0 {
			a.ins("STP\tXZR, XZR, %s", spillAddr(dst.Index))
			return
		}

		a.movImm(scratch0, imm)
		a.ins("STP\t%s, XZR, %s", x(scratch0), spillAddr(dst.Index))
	}
}

// movImm loads a 64-bit constant with MOVZ and a MOVK per other non-zero halfword.
func (a *Asm) movImm(r int, imm uint64) {
	if imm == 0 {
		a.ins("MOV\t%s, XZR", x(r))
		return
	}

	first := true

	for sh := 0; sh < 64; sh += 16 {
		h := (imm >> sh) & 0xffff
		if h == 0 {
			continue
		}

		op := "MOVK"
		if first {
			op = "MOVZ"
			first = false
		}

		if sh == 0 {
			a.ins("%s\t%s, #%#x", op, x(r), h)
		} else {
			a.ins("%s\t%s, #%#x, LSL #%d", op, x(r), h, sh)
		}
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
		return x(l.Index)
	case regalloc.KindFpr:
		return q(l.Index)
	case regalloc.KindFlags:
		return "NZCV"
	default:
		return spillAddr(l.Index)
	}
}

func spillAddr(slot int) string {
	return fmt.Sprintf("[SP, #%d]", slot*regalloc.SpillSlotSize)
}

func x(i int) string { return fmt.Sprintf("X%d", i) }
func w(i int) string { return fmt.Sprintf("W%d", i) }
func q(i int) string { return fmt.Sprintf("Q%d", i) }
func d(i int) string { return fmt.Sprintf("D%d", i) }
func s(i int) string { return fmt.Sprintf("S%d", i) }
func v(i int) string { return fmt.Sprintf("V%d", i) }

// gp names a general register handle by its width.
func gp(r *regalloc.Reg) string {
	if r.Width() == 64 {
		return x(r.Index())
	}

	return w(r.Index())
}
