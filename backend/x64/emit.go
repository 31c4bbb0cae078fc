// Package x64 emits x86-64 assembly for guest blocks.
//
// The host has no flags location: NZCV values live in general registers
// in the guest's packed format, bits 31..28.
package x64

import (
	"context"
	"encoding/binary"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/backend"
	"github.com/slowlang/dynarec/backend/jitstate"
	"github.com/slowlang/dynarec/backend/regalloc"
	"github.com/slowlang/dynarec/ir"
)

type (
	emitter struct {
		Asm
		tail Asm

		ra   *regalloc.RegAlloc
		arch ir.GuestArch
	}

	args = [ir.MaxArgs]regalloc.Argument
)

// EmitBlock translates b into assembly. Block code expects the guest state pointer in R15.
func EmitBlock(ctx context.Context, b *ir.Block, opts backend.Options) (c *backend.Code, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "x64: emit block", "loc", b.Location, "insts", b.Len())
	defer tr.Finish("err", &err)

	e := &emitter{arch: b.Location.Arch}
	e.ra = regalloc.New(&e.Asm, Config(opts.Seed, opts.SpillSlots))

	err = backend.Run(ctx, b, e.ra, e, opts)
	if err != nil {
		return nil, err
	}

	st := e.ra.Stats()

	c = &backend.Code{
		Host:       "x64",
		Location:   b.Location,
		SpillBytes: st.SpillSlotsUsed * regalloc.SpillSlotSize,
		Stats:      st,
	}

	c.Text, c.Insts = e.finish(b.Location, c.SpillBytes)

	tr.V("stats").Printw("emitted", "insts", c.Insts, "spill_bytes", c.SpillBytes, "stats", st)

	return c, nil
}

func (e *emitter) finish(loc ir.Location, spill int) ([]byte, int) {
	var pro, epi Asm

	if spill != 0 {
		pro.ins("SUB\tRSP, %d", spill)
		epi.ins("ADD\tRSP, %d", spill)
	}

	b := fmt.Appendf(nil, "%s:\n", backend.Label(loc))
	b = append(b, pro.b...)
	b = append(b, e.b...)
	b = append(b, epi.b...)
	b = append(b, e.tail.b...)

	return b, pro.n + e.n + epi.n + e.tail.n
}

func (e *emitter) EmitTerminal(t ir.Terminal) error {
	switch t := t.(type) {
	case ir.ReturnToDispatch:
		e.tail.ins("JMP\treturn_to_dispatch")
	case ir.LinkBlock:
		if e.arch == ir.GuestA64 {
			e.tail.movImm(rax, t.Next)
			e.tail.ins("MOV\t%s, RAX", state(jitstate.A64PC()))
		} else {
			e.tail.ins("MOV\tDWORD PTR %s, %#x", state(jitstate.A32Reg(ir.A32PC)), uint32(t.Next))
		}

		e.tail.ins("JMP\t%s", backend.Label(ir.Location{Arch: e.arch, PC: t.Next}))
	default:
		return errors.New("unsupported terminal: %T", t)
	}

	return nil
}

func (e *emitter) EmitInst(inst *ir.Inst, a *args) error {
	switch op := inst.Op(); op {
	case ir.OpIdentity:
		e.ra.DefineAsExisting(inst, &a[0])
	case ir.OpBreakpoint:
		e.ra.SpillAll()
		e.ins("INT3")
	case ir.OpCallHostFunction:
		e.callHostFunction(a)
	case ir.OpGetCarryFromOp, ir.OpGetOverflowFromOp, ir.OpGetNZCVFromOp:
		if !e.ra.WasValueDefined(inst) {
			return errors.New("not produced by %v", inst.Arg(0).InstRecursive().Op())
		}
	case ir.OpNZCVFromPackedFlags:
		rw := e.ra.ReadWriteW(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("AND\t%s, 0xf0000000", gp(rw))

	case ir.OpA32GetRegister:
		e.getState(inst, 32, jitstate.A32Reg(a[0].GetImmediateA32Reg()))
	case ir.OpA32SetRegister:
		e.setState(&a[1], 32, jitstate.A32Reg(a[0].GetImmediateA32Reg()))
	case ir.OpA32GetExtendedRegister32:
		res := e.ra.WriteS(inst)
		e.ra.Realize(res)

		e.ins("MOVD\t%s, DWORD PTR %s", xmm(res.Index()), state(jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg())))
	case ir.OpA32GetExtendedRegister64:
		res := e.ra.WriteD(inst)
		e.ra.Realize(res)

		e.ins("MOVQ\t%s, QWORD PTR %s", xmm(res.Index()), state(jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg())))
	case ir.OpA32SetExtendedRegister32, ir.OpA32SetExtendedRegister64:
		bits := 32
		mn := "MOVD"

		if op == ir.OpA32SetExtendedRegister64 {
			bits, mn = 64, "MOVQ"
		}

		off := jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg())

		if !a[1].IsInFpr() {
			e.setState(&a[1], bits, off)
			break
		}

		r := e.ra.ReadD(&a[1])
		e.ra.Realize(r)

		e.ins("%s\t%s, %s", mn, state(off), xmm(r.Index()))
	case ir.OpA32GetCpsr:
		res := e.ra.WriteW(inst)
		e.ra.Realize(res)

		e.ins("MOV\t%s, %s", gp(res), state(jitstate.A32CPSRNZCV()))
		e.ins("OR\t%s, %s", gp(res), state(jitstate.A32CPSRRest()))
	case ir.OpA32SetCpsr:
		r := e.ra.ReadW(&a[0])
		t := e.ra.ScratchX()
		e.ra.Realize(r, t)

		e.ins("MOV\t%s, %s", r32(t.Index()), gp(r))
		e.ins("AND\t%s, 0xf0000000", r32(t.Index()))
		e.ins("MOV\t%s, %s", state(jitstate.A32CPSRNZCV()), r32(t.Index()))
		e.ins("MOV\t%s, %s", r32(t.Index()), gp(r))
		e.ins("AND\t%s, 0x0fffffff", r32(t.Index()))
		e.ins("MOV\t%s, %s", state(jitstate.A32CPSRRest()), r32(t.Index()))
	case ir.OpA32SetCpsrNZCV, ir.OpA64SetNZCV:
		e.setState(&a[0], 32, jitstate.NZCV(e.arch))
	case ir.OpA32GetCFlag:
		res := e.ra.WriteW(inst)
		e.ra.Realize(res)

		e.ins("MOV\t%s, %s", gp(res), state(jitstate.A32CPSRNZCV()))
		e.ins("SHR\t%s, 29", gp(res))
		e.ins("AND\t%s, 1", gp(res))
	case ir.OpA32ExceptionRaised:
		e.ra.HostCall(nil, e.callback(jitstate.CallbackExceptionRaised), nil, &a[0], &a[1])
	case ir.OpA32CoprocSendOneWord:
		info := a[0].GetImmediateCoprocInfo()

		e.ra.HostCall(nil, func() {
			e.movImm(rsi, binary.LittleEndian.Uint64(info[:]))
			e.callback(jitstate.CallbackCoprocSendOneWord)()
		}, nil, nil, &a[1])
	case ir.OpA32CoprocGetOneWord:
		info := a[0].GetImmediateCoprocInfo()

		e.ra.HostCall(inst, func() {
			e.movImm(rsi, binary.LittleEndian.Uint64(info[:]))
			e.callback(jitstate.CallbackCoprocGetOneWord)()
		}, nil, nil)
	case ir.OpA32ReadMemory8, ir.OpA32ReadMemory16, ir.OpA32ReadMemory32, ir.OpA32ReadMemory64, ir.OpA64ReadMemory64:
		e.ra.HostCall(inst, e.callback(backend.ReadCallback(op)), nil, &a[0])
	case ir.OpA32WriteMemory8, ir.OpA32WriteMemory16, ir.OpA32WriteMemory32, ir.OpA32WriteMemory64, ir.OpA64WriteMemory64:
		e.ra.HostCall(nil, e.callback(backend.WriteCallback(op)), nil, &a[0], &a[1])

	case ir.OpA64GetW, ir.OpA64GetX:
		bits := 32
		if op == ir.OpA64GetX {
			bits = 64
		}

		r := a[0].GetImmediateA64Reg()
		if r != ir.A64ZR {
			e.getState(inst, bits, jitstate.A64Reg(r))
			break
		}

		res := e.write(inst, bits)
		e.ra.Realize(res)

		e.ins("XOR\t%s, %s", r32(res.Index()), r32(res.Index()))
	case ir.OpA64GetQ:
		res := e.ra.WriteQ(inst)
		e.ra.Realize(res)

		e.ins("MOVUPS\t%s, XMMWORD PTR %s", xmm(res.Index()), state(jitstate.A64Vec(a[0].GetImmediateA64Vec())))
	case ir.OpA64SetW, ir.OpA64SetX:
		if r := a[0].GetImmediateA64Reg(); r != ir.A64ZR {
			// 32-bit values are kept zero extended, so SetW is a full store
			e.setState(&a[1], 64, jitstate.A64Reg(r))
		}
	case ir.OpA64SetQ:
		r := e.ra.ReadQ(&a[1])
		e.ra.Realize(r)

		e.ins("MOVUPS\tXMMWORD PTR %s, %s", state(jitstate.A64Vec(a[0].GetImmediateA64Vec())), xmm(r.Index()))

	case ir.OpPack2x32To1x64:
		rw := e.ra.ReadWriteX(&a[0], inst)
		hi := e.ra.ReadX(&a[1])
		t := e.ra.ScratchX()
		e.ra.Realize(rw, hi, t)

		e.ins("MOV\t%s, %s", gp(t), gp(hi))
		e.ins("SHL\t%s, 32", gp(t))
		e.ins("OR\t%s, %s", gp(rw), gp(t))
	case ir.OpLeastSignificantWord, ir.OpZeroExtendWordToLong:
		rw := e.ra.ReadWriteX(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("MOV\t%s, %s", r32(rw.Index()), r32(rw.Index()))
	case ir.OpLeastSignificantHalf, ir.OpZeroExtendHalfToWord:
		e.extend(inst, a, "MOVZX", reg16)
	case ir.OpLeastSignificantByte, ir.OpZeroExtendByteToWord:
		e.extend(inst, a, "MOVZX", reg8)
	case ir.OpSignExtendByteToWord:
		e.extend(inst, a, "MOVSX", reg8)
	case ir.OpSignExtendHalfToWord:
		e.extend(inst, a, "MOVSX", reg16)
	case ir.OpSignExtendWordToLong:
		rw := e.ra.ReadWriteX(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("MOVSXD\t%s, %s", r64(rw.Index()), r32(rw.Index()))
	case ir.OpMostSignificantBit:
		rw := e.ra.ReadWriteW(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("SHR\t%s, 31", gp(rw))
	case ir.OpIsZero32, ir.OpIsZero64:
		rw := e.readWrite(&a[0], inst, backend.OpBits(op))
		e.ra.Realize(rw)

		e.ins("TEST\t%s, %s", gp(rw), gp(rw))
		e.ins("SETE\t%s", reg8(rw.Index()))
		e.ins("MOVZX\t%s, %s", r32(rw.Index()), reg8(rw.Index()))
	case ir.OpTestBit:
		return e.testBit(inst, a)
	case ir.OpConditionalSelect32, ir.OpConditionalSelect64:
		e.conditionalSelect(inst, a, backend.OpBits(op))

	case ir.OpLogicalShiftLeft32, ir.OpLogicalShiftRight32, ir.OpArithmeticShiftRight32, ir.OpRotateRight32:
		return e.shift32(inst, a)
	case ir.OpLogicalShiftLeft64, ir.OpLogicalShiftRight64:
		e.shift64(inst, a)
	case ir.OpAdd32, ir.OpAdd64:
		e.addSub(inst, a, false)
	case ir.OpSub32, ir.OpSub64:
		e.addSub(inst, a, true)
	case ir.OpMul32, ir.OpMul64:
		e.logical(inst, a, "IMUL")
	case ir.OpAnd32, ir.OpAnd64:
		e.logical(inst, a, "AND")
	case ir.OpEor32, ir.OpEor64:
		e.logical(inst, a, "XOR")
	case ir.OpOr32, ir.OpOr64:
		e.logical(inst, a, "OR")
	case ir.OpNot32, ir.OpNot64:
		e.logical(inst, a, "NOT")

	case ir.OpZeroVector:
		res := e.ra.WriteQ(inst)
		e.ra.Realize(res)

		e.ins("PXOR\t%s, %s", xmm(res.Index()), xmm(res.Index()))
	case ir.OpVectorAdd32:
		e.vector(inst, a, "PADDD")
	case ir.OpVectorSub32:
		e.vector(inst, a, "PSUBD")
	case ir.OpVectorAnd:
		e.vector(inst, a, "PAND")
	case ir.OpVectorGetElement32:
		if !a[1].IsImmediate() || a[1].GetImmediateU8() > 3 {
			return errors.New("element index must be an immediate in 0..3")
		}

		res := e.ra.WriteW(inst)
		r := e.ra.ReadQ(&a[0])
		e.ra.Realize(res, r)

		e.ins("PEXTRD\t%s, %s, %d", gp(res), xmm(r.Index()), a[1].GetImmediateU8())
	case ir.OpVectorSetElement32:
		if !a[1].IsImmediate() || a[1].GetImmediateU8() > 3 {
			return errors.New("element index must be an immediate in 0..3")
		}

		rw := e.ra.ReadWriteQ(&a[0], inst)
		r := e.ra.ReadW(&a[2])
		e.ra.Realize(rw, r)

		e.ins("PINSRD\t%s, %s, %d", xmm(rw.Index()), gp(r), a[1].GetImmediateU8())
	default:
		return backend.Unsupported(op)
	}

	return nil
}

func state(off int) string {
	return fmt.Sprintf("[R15+%d]", off)
}

func ptr(bits int) string {
	if bits == 64 {
		return "QWORD PTR"
	}

	return "DWORD PTR"
}

func (e *emitter) getState(inst *ir.Inst, bits int, off int) {
	res := e.write(inst, bits)
	e.ra.Realize(res)

	e.ins("MOV\t%s, %s", gp(res), state(off))
}

func (e *emitter) setState(a *regalloc.Argument, bits int, off int) {
	if a.IsImmediate() && a.GetImmediateU64() < 1<<31 {
		e.ins("MOV\t%s %s, %#x", ptr(bits), state(off), a.GetImmediateU64())
		return
	}

	r := e.read(a, bits)
	e.ra.Realize(r)

	e.ins("MOV\t%s, %s", state(off), gp(r))
}

func (e *emitter) read(a *regalloc.Argument, bits int) *regalloc.Reg {
	if bits == 64 {
		return e.ra.ReadX(a)
	}

	return e.ra.ReadW(a)
}

func (e *emitter) write(inst *ir.Inst, bits int) *regalloc.Reg {
	if bits == 64 {
		return e.ra.WriteX(inst)
	}

	return e.ra.WriteW(inst)
}

func (e *emitter) readWrite(a *regalloc.Argument, inst *ir.Inst, bits int) *regalloc.Reg {
	if bits == 64 {
		return e.ra.ReadWriteX(a, inst)
	}

	return e.ra.ReadWriteW(a, inst)
}

func (e *emitter) extend(inst *ir.Inst, a *args, mn string, src func(int) string) {
	rw := e.ra.ReadWriteW(&a[0], inst)
	e.ra.Realize(rw)

	e.ins("%s\t%s, %s", mn, gp(rw), src(rw.Index()))
}

// logical emits two operand ops. NZCV of a logical op has C and V cleared.
func (e *emitter) logical(inst *ir.Inst, a *args, mn string) {
	bits := backend.OpBits(inst.Op())
	nzcv := inst.GetAssociatedPseudoOperation(ir.OpGetNZCVFromOp)

	var r, f, t, u *regalloc.Reg

	rw := e.readWrite(&a[0], inst, bits)

	if mn != "NOT" {
		r = e.read(&a[1], bits)
	}

	if nzcv != nil {
		f = e.ra.WriteW(nzcv)
		t = e.ra.ScratchX()
		u = e.ra.ScratchX()
	}

	e.ra.Realize(rw, r, f, t, u)

	if r == nil {
		e.ins("%s\t%s", mn, gp(rw))
	} else {
		e.ins("%s\t%s, %s", mn, gp(rw), gp(r))
	}

	if nzcv != nil {
		e.ins("TEST\t%s, %s", gp(rw), gp(rw))
		e.packFlags(f, t, u, false)
	}
}

// addSub emits a + b + carry and a + ^b + carry with any of the carry, overflow and NZCV pseudo-operations.
func (e *emitter) addSub(inst *ir.Inst, a *args, sub bool) {
	bits := backend.OpBits(inst.Op())

	carry := inst.GetAssociatedPseudoOperation(ir.OpGetCarryFromOp)
	overflow := inst.GetAssociatedPseudoOperation(ir.OpGetOverflowFromOp)
	nzcv := inst.GetAssociatedPseudoOperation(ir.OpGetNZCVFromOp)

	cin := &a[2]
	plain := cin.IsImmediate() && cin.GetImmediateU1() == sub

	rw := e.readWrite(&a[0], inst, bits)

	var r, c, wc, wv, f, t, u *regalloc.Reg

	imm := a[1].IsImmediate() && a[1].GetImmediateU64() < 1<<31
	if !imm {
		r = e.read(&a[1], bits)
	}

	if !cin.IsImmediate() {
		c = e.ra.ReadW(cin)
	}

	if carry != nil {
		wc = e.ra.WriteW(carry)
	}

	if overflow != nil {
		wv = e.ra.WriteW(overflow)
	}

	if nzcv != nil {
		f = e.ra.WriteW(nzcv)
		t = e.ra.ScratchX()
		u = e.ra.ScratchX()
	}

	e.ra.Realize(rw, r, c, wc, wv, f, t, u)

	mn := "ADD"
	if sub {
		mn = "SUB"
	}

	// x86 borrows where the guest carries, so sub wants the inverted carry in CF
	if !plain {
		switch {
		case c != nil:
			e.ins("BT\t%s, 0", gp(c))

			if sub {
				e.ins("CMC")
			}
		default:
			e.ins("STC")
		}

		mn = "ADC"
		if sub {
			mn = "SBB"
		}
	}

	if imm {
		e.ins("%s\t%s, %#x", mn, gp(rw), a[1].GetImmediateU64())
	} else {
		e.ins("%s\t%s, %s", mn, gp(rw), gp(r))
	}

	if wc != nil {
		cc := "SETC"
		if sub {
			cc = "SETNC"
		}

		e.ins("%s\t%s", cc, reg8(wc.Index()))
		e.ins("MOVZX\t%s, %s", gp(wc), reg8(wc.Index()))
	}

	if wv != nil {
		e.ins("SETO\t%s", reg8(wv.Index()))
		e.ins("MOVZX\t%s, %s", gp(wv), reg8(wv.Index()))
	}

	if f != nil {
		e.packFlags(f, t, u, sub)
	}
}

// packFlags converts the host flags into the guest NZCV format in f.
func (e *emitter) packFlags(f, t, u *regalloc.Reg, invertCarry bool) {
	fr, tr, ur := r32(f.Index()), r32(t.Index()), r32(u.Index())

	e.ins("PUSHFQ")
	e.ins("POP\t%s", r64(f.Index()))

	// OF is bit 11
	e.ins("MOV\t%s, %s", tr, fr)
	e.ins("AND\t%s, 0x800", tr)
	e.ins("SHL\t%s, 17", tr)

	// CF is bit 0
	e.ins("MOV\t%s, %s", ur, fr)
	e.ins("AND\t%s, 1", ur)

	if invertCarry {
		e.ins("XOR\t%s, 1", ur)
	}

	e.ins("SHL\t%s, 29", ur)
	e.ins("OR\t%s, %s", tr, ur)

	// SF and ZF are bits 7 and 6
	e.ins("AND\t%s, 0xc0", fr)
	e.ins("SHL\t%s, 24", fr)
	e.ins("OR\t%s, %s", fr, tr)
}

// shift32 emits guest shifts: amounts of 32 and more are meaningful, carry out is the last bit shifted out.
func (e *emitter) shift32(inst *ir.Inst, a *args) error {
	op := inst.Op()
	carry := inst.GetAssociatedPseudoOperation(ir.OpGetCarryFromOp)

	if !a[1].IsImmediate() {
		if carry != nil {
			return errors.New("carry out of a shift by register")
		}

		e.shiftByReg(inst, a, 32)

		return nil
	}

	n := int(a[1].GetImmediateU8())

	rw := e.ra.ReadWriteW(&a[0], inst)

	var c *regalloc.Reg

	switch {
	case carry == nil:
	case n == 0:
		c = e.ra.ReadWriteW(&a[2], carry)
	default:
		c = e.ra.WriteW(carry)
	}

	e.ra.Realize(rw, c)

	if n == 0 {
		return nil
	}

	r := gp(rw)

	carryBit := func(bit int) {
		if c == nil {
			return
		}

		e.ins("MOV\t%s, %s", gp(c), r)

		if bit != 0 {
			e.ins("SHR\t%s, %d", gp(c), bit)
		}

		if bit != 31 {
			e.ins("AND\t%s, 1", gp(c))
		}
	}

	carryZero := func() {
		if c != nil {
			e.ins("XOR\t%s, %s", gp(c), gp(c))
		}
	}

	switch op {
	case ir.OpLogicalShiftLeft32:
		switch {
		case n < 32:
			carryBit(32 - n)
			e.ins("SHL\t%s, %d", r, n)
		case n == 32:
			carryBit(0)
			e.ins("XOR\t%s, %s", r, r)
		default:
			carryZero()
			e.ins("XOR\t%s, %s", r, r)
		}
	case ir.OpLogicalShiftRight32:
		switch {
		case n < 32:
			carryBit(n - 1)
			e.ins("SHR\t%s, %d", r, n)
		case n == 32:
			carryBit(31)
			e.ins("XOR\t%s, %s", r, r)
		default:
			carryZero()
			e.ins("XOR\t%s, %s", r, r)
		}
	case ir.OpArithmeticShiftRight32:
		if n < 32 {
			carryBit(n - 1)
			e.ins("SAR\t%s, %d", r, n)
		} else {
			carryBit(31)
			e.ins("SAR\t%s, 31", r)
		}
	case ir.OpRotateRight32:
		if n%32 != 0 {
			e.ins("ROR\t%s, %d", r, n%32)
		}

		carryBit(31)
	}

	return nil
}

func (e *emitter) shift64(inst *ir.Inst, a *args) {
	mn := "SHL"
	if inst.Op() == ir.OpLogicalShiftRight64 {
		mn = "SHR"
	}

	if !a[1].IsImmediate() {
		e.shiftByReg(inst, a, 64)
		return
	}

	n := int(a[1].GetImmediateU8())

	rw := e.ra.ReadWriteX(&a[0], inst)
	e.ra.Realize(rw)

	switch {
	case n == 0:
	case n < 64:
		e.ins("%s\t%s, %d", mn, gp(rw), n)
	default:
		e.ins("XOR\t%s, %s", r32(rw.Index()), r32(rw.Index()))
	}
}

// shiftByReg uses the low byte of the amount with BMI2 shifts, which take it modulo the width.
func (e *emitter) shiftByReg(inst *ir.Inst, a *args, bits int) {
	rw := e.readWrite(&a[0], inst, bits)
	amt := e.ra.ReadW(&a[1])
	n := e.ra.ScratchX()
	z := e.ra.ScratchX()
	e.ra.Realize(rw, amt, n, z)

	r := gp(rw)
	nr, zr := r32(n.Index()), r32(z.Index())

	if bits == 64 {
		nr, zr = r64(n.Index()), r64(z.Index())
	}

	e.ins("MOVZX\t%s, %s", r32(n.Index()), reg8(amt.Index()))

	switch inst.Op() {
	case ir.OpRotateRight32:
		e.ins("MOV\t%s, 32", zr)
		e.ins("SUB\t%s, %s", zr, nr)
		e.ins("SHLX\t%s, %s, %s", zr, r, zr)
		e.ins("SHRX\t%s, %s, %s", r, r, nr)
		e.ins("OR\t%s, %s", r, zr)
	case ir.OpArithmeticShiftRight32:
		e.ins("MOV\t%s, 31", zr)
		e.ins("CMP\t%s, 31", nr)
		e.ins("CMOVA\t%s, %s", nr, zr)
		e.ins("SARX\t%s, %s, %s", r, r, nr)
	default:
		mn := "SHLX"
		if op := inst.Op(); op == ir.OpLogicalShiftRight32 || op == ir.OpLogicalShiftRight64 {
			mn = "SHRX"
		}

		e.ins("XOR\t%s, %s", r32(z.Index()), r32(z.Index()))
		e.ins("%s\t%s, %s, %s", mn, r, r, nr)
		e.ins("CMP\t%s, %d", nr, bits)
		e.ins("CMOVAE\t%s, %s", r, zr)
	}
}

func (e *emitter) testBit(inst *ir.Inst, a *args) error {
	if a[1].IsImmediate() {
		bit := a[1].GetImmediateU8()
		if bit > 63 {
			return errors.New("bit %d out of range", bit)
		}

		rw := e.ra.ReadWriteX(&a[0], inst)
		e.ra.Realize(rw)

		if bit != 0 {
			e.ins("SHR\t%s, %d", gp(rw), bit)
		}

		e.ins("AND\t%s, 1", r32(rw.Index()))

		return nil
	}

	rw := e.ra.ReadWriteX(&a[0], inst)
	r := e.ra.ReadX(&a[1])
	e.ra.Realize(rw, r)

	e.ins("SHRX\t%s, %s, %s", gp(rw), gp(rw), gp(r))
	e.ins("AND\t%s, 1", r32(rw.Index()))

	return nil
}

// conditionalSelect evaluates the guest condition on the packed guest flags.
func (e *emitter) conditionalSelect(inst *ir.Inst, a *args, bits int) {
	cond := a[0].GetImmediateCond()

	res := e.write(inst, bits)
	then := e.read(&a[1], bits)
	els := e.read(&a[2], bits)
	t := e.ra.ScratchX()
	u := e.ra.ScratchX()
	e.ra.Realize(res, then, els, t, u)

	if cond == ir.CondAL || cond == ir.CondNV {
		e.ins("MOV\t%s, %s", gp(res), gp(then))
		return
	}

	tr, ur := r32(t.Index()), r32(u.Index())

	e.ins("MOV\t%s, %s", gp(res), gp(els))
	e.ins("MOV\t%s, %s", tr, state(jitstate.NZCV(e.arch)))

	// set: ZF is clear when the even condition holds
	set := true

	switch cond &^ 1 {
	case ir.CondEQ, ir.CondCS, ir.CondMI, ir.CondVS:
		mask := [...]uint32{0x4000_0000, 0x2000_0000, 0x8000_0000, 0x1000_0000}[cond/2]

		e.ins("TEST\t%s, %#x", tr, mask)
	case ir.CondHI:
		e.ins("AND\t%s, 0x60000000", tr)
		e.ins("CMP\t%s, 0x20000000", tr)

		set = false
	case ir.CondGE:
		e.ins("MOV\t%s, %s", ur, tr)
		e.ins("SHR\t%s, 3", ur)
		e.ins("XOR\t%s, %s", ur, tr)
		e.ins("TEST\t%s, 0x10000000", ur)

		set = false
	case ir.CondGT:
		e.ins("MOV\t%s, %s", ur, tr)
		e.ins("SHR\t%s, 3", ur)
		e.ins("XOR\t%s, %s", ur, tr)
		e.ins("AND\t%s, 0x10000000", ur)
		e.ins("AND\t%s, 0x40000000", tr)
		e.ins("OR\t%s, %s", ur, tr)

		set = false
	}

	if cond&1 != 0 {
		set = !set
	}

	cc := "Z"
	if set {
		cc = "NZ"
	}

	e.ins("CMOV%s\t%s, %s", cc, gp(res), gp(then))
}

func (e *emitter) vector(inst *ir.Inst, a *args, mn string) {
	rw := e.ra.ReadWriteQ(&a[0], inst)
	r := e.ra.ReadQ(&a[1])
	e.ra.Realize(rw, r)

	e.ins("%s\t%s, %s", mn, xmm(rw.Index()), xmm(r.Index()))
}

func (e *emitter) callHostFunction(a *args) {
	var cargs []*regalloc.Argument

	for n := 1; n < 4; n++ {
		if !a[n].IsVoid() {
			cargs = append(cargs, &a[n])
		}
	}

	fn := &a[0]

	e.ra.HostCall(nil, func() {
		if fn.IsImmediate() {
			e.movImm(rax, fn.GetImmediateU64())
		} else {
			e.ra.LoadCopyInto(fn.Value(), regalloc.Gpr(rax))
		}

		e.ins("CALL\tRAX")
	}, cargs...)
}

// callback calls a guest state callback with the state as the first argument.
func (e *emitter) callback(cb jitstate.Callback) func() {
	return func() {
		e.ins("MOV\tRDI, %s", r64(stateReg))
		e.ins("CALL\tQWORD PTR %s", state(jitstate.CallbackOffset(e.arch, cb)))
	}
}
