package regalloc

import (
	"tlog.app/go/loc"

	"github.com/slowlang/dynarec/ir"
)

type (
	access uint8

	// Reg is a host register handle for one operand or the result of the instruction being emitted.
	//
	// Creating a handle for a read locks the source value so no other allocation of
	// the same instruction can evict it. Realize picks the location and emits
	// the moves needed. Release, or RegAlloc.ReleaseAll at the end of the instruction,
	// drops the lock. All the handles of an instruction are expected
	// to be created before the first of them is realized.
	Reg struct {
		ra *RegAlloc

		kind   Kind
		width  int
		access access

		read  ir.Value
		write *ir.Inst

		hl HostLoc

		locked   bool
		realized bool
		released bool

		at loc.PC
	}
)

const (
	accessRead access = iota
	accessWrite
	accessReadWrite
	accessScratch
)

func (ra *RegAlloc) ReadX(a *Argument) *Reg { return ra.newRead(a, KindGpr, 64) }
func (ra *RegAlloc) ReadW(a *Argument) *Reg { return ra.newRead(a, KindGpr, 32) }
func (ra *RegAlloc) ReadQ(a *Argument) *Reg { return ra.newRead(a, KindFpr, 128) }
func (ra *RegAlloc) ReadD(a *Argument) *Reg { return ra.newRead(a, KindFpr, 64) }
func (ra *RegAlloc) ReadS(a *Argument) *Reg { return ra.newRead(a, KindFpr, 32) }

func (ra *RegAlloc) WriteX(inst *ir.Inst) *Reg { return ra.newWrite(inst, KindGpr, 64) }
func (ra *RegAlloc) WriteW(inst *ir.Inst) *Reg { return ra.newWrite(inst, KindGpr, 32) }
func (ra *RegAlloc) WriteQ(inst *ir.Inst) *Reg { return ra.newWrite(inst, KindFpr, 128) }
func (ra *RegAlloc) WriteD(inst *ir.Inst) *Reg { return ra.newWrite(inst, KindFpr, 64) }
func (ra *RegAlloc) WriteS(inst *ir.Inst) *Reg { return ra.newWrite(inst, KindFpr, 32) }

func (ra *RegAlloc) ReadWriteX(a *Argument, inst *ir.Inst) *Reg {
	return ra.newReadWrite(a, inst, KindGpr, 64)
}

func (ra *RegAlloc) ReadWriteW(a *Argument, inst *ir.Inst) *Reg {
	return ra.newReadWrite(a, inst, KindGpr, 32)
}

func (ra *RegAlloc) ReadWriteQ(a *Argument, inst *ir.Inst) *Reg {
	return ra.newReadWrite(a, inst, KindFpr, 128)
}

func (ra *RegAlloc) ReadWriteD(a *Argument, inst *ir.Inst) *Reg {
	return ra.newReadWrite(a, inst, KindFpr, 64)
}

// ScratchX is a temporary general register for the current instruction only.
func (ra *RegAlloc) ScratchX() *Reg { return ra.newScratch(KindGpr, 64) }
func (ra *RegAlloc) ScratchQ() *Reg { return ra.newScratch(KindFpr, 128) }

// WriteFlags binds the result to the host condition flags.
// It is for ops that set the flags as a side output, like ADDS; reading
// a value out of the flags still takes ReadWriteFlags.
func (ra *RegAlloc) WriteFlags(inst *ir.Inst) *Reg {
	assertf(ra.cfg.HasFlags, "host has no flags location")

	return ra.newWrite(inst, KindFlags, 32)
}

func (ra *RegAlloc) ReadWriteFlags(a *Argument, inst *ir.Inst) *Reg {
	assertf(ra.cfg.HasFlags, "host has no flags location")

	return ra.newReadWrite(a, inst, KindFlags, 32)
}

func (ra *RegAlloc) newRead(a *Argument, kind Kind, width int) *Reg {
	r := &Reg{
		ra:     ra,
		kind:   kind,
		width:  width,
		access: accessRead,
		at:     loc.Caller(2),
	}

	ra.takeArg(r, a)

	ra.handles = append(ra.handles, r)

	return r
}

func (ra *RegAlloc) newWrite(inst *ir.Inst, kind Kind, width int) *Reg {
	r := &Reg{
		ra:     ra,
		kind:   kind,
		width:  width,
		access: accessWrite,
		write:  inst,
		at:     loc.Caller(2),
	}

	ra.handles = append(ra.handles, r)

	return r
}

func (ra *RegAlloc) newReadWrite(a *Argument, inst *ir.Inst, kind Kind, width int) *Reg {
	r := &Reg{
		ra:     ra,
		kind:   kind,
		width:  width,
		access: accessReadWrite,
		write:  inst,
		at:     loc.Caller(2),
	}

	ra.takeArg(r, a)

	ra.handles = append(ra.handles, r)

	return r
}

func (ra *RegAlloc) newScratch(kind Kind, width int) *Reg {
	r := &Reg{
		ra:     ra,
		kind:   kind,
		width:  width,
		access: accessScratch,
		at:     loc.Caller(2),
	}

	ra.handles = append(ra.handles, r)

	return r
}

func (ra *RegAlloc) takeArg(r *Reg, a *Argument) {
	assertf(a.ra == ra, "argument of another allocator (handle from %v)", r.at)
	assertf(!a.allocated, "argument is already taken (handle from %v)", r.at)
	assertf(!a.IsVoid(), "void argument (handle from %v)", r.at)

	a.allocated = true
	r.read = a.value

	if r.read.IsImmediate() {
		return
	}

	ra.ValueInfo(r.read.InstRecursive()).locked++
	r.locked = true
}

// Loc is the realized location.
func (r *Reg) Loc() HostLoc {
	assertf(r.realized, "handle is not realized (handle from %v)", r.at)
	assertf(!r.released, "handle is released (handle from %v)", r.at)

	return r.hl
}

func (r *Reg) Index() int { return r.Loc().Index }
func (r *Reg) Kind() Kind { return r.kind }
func (r *Reg) Width() int { return r.width }

// Realize assigns locations to the handles in order. nil handles are skipped.
func (ra *RegAlloc) Realize(regs ...*Reg) {
	for _, r := range regs {
		if r == nil {
			continue
		}

		assertf(r.ra == ra, "handle of another allocator (handle from %v)", r.at)
		assertf(!r.realized, "handle realized twice (handle from %v)", r.at)
		assertf(!r.released, "handle is released (handle from %v)", r.at)

		switch r.access {
		case accessRead:
			r.hl = ra.realizeRead(r.kind, r.read)
		case accessWrite:
			r.hl = ra.realizeWrite(r.kind, r.write)
		case accessReadWrite:
			r.hl = ra.realizeReadWrite(r)
		case accessScratch:
			r.hl = ra.allocate(r.kind)
			ra.info(r.hl).SetupScratchLocation()
		}

		r.realized = true
	}
}

// Release unlocks the source values of the handles and lets their locations go.
func (ra *RegAlloc) Release(regs ...*Reg) {
	for _, r := range regs {
		if r == nil {
			continue
		}

		assertf(!r.released, "handle released twice (handle from %v)", r.at)

		ra.release(r)
	}
}

// ReleaseAll releases all the handles of the current instruction not released yet.
func (ra *RegAlloc) ReleaseAll() {
	for _, r := range ra.handles {
		if !r.released {
			ra.release(r)
		}
	}

	clear(ra.handles)
	ra.handles = ra.handles[:0]
}

func (ra *RegAlloc) release(r *Reg) {
	r.released = true

	if r.locked {
		r.locked = false

		info := ra.ValueInfo(r.read.InstRecursive())

		assertf(info.locked > 0, "unlock of an unlocked location (handle from %v)", r.at)

		info.locked--
	}

	if r.realized {
		ra.info(r.hl).realized = false
	}
}
