// Package arm64 emits AArch64 assembly for guest blocks.
package arm64

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

// EmitBlock translates b into assembly. Block code expects the guest state pointer in X28.
func EmitBlock(ctx context.Context, b *ir.Block, opts backend.Options) (c *backend.Code, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "arm64: emit block", "loc", b.Location, "insts", b.Len())
	defer tr.Finish("err", &err)

	e := &emitter{arch: b.Location.Arch}
	e.ra = regalloc.New(&e.Asm, Config(opts.Seed, opts.SpillSlots))

	err = backend.Run(ctx, b, e.ra, e, opts)
	if err != nil {
		return nil, err
	}

	st := e.ra.Stats()

	c = &backend.Code{
		Host:       "arm64",
		Location:   b.Location,
		InstSize:   4,
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
		pro.ins("SUB\tSP, SP, #%d", spill)
		epi.ins("ADD\tSP, SP, #%d", spill)
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
		e.tail.ins("B\treturn_to_dispatch")
	case ir.LinkBlock:
		e.tail.movImm(scratch0, t.Next)

		if e.arch == ir.GuestA64 {
			e.tail.ins("STR\t%s, [X%d, #%d]", x(scratch0), stateReg, jitstate.A64PC())
		} else {
			e.tail.ins("STR\t%s, [X%d, #%d]", w(scratch0), stateReg, jitstate.A32Reg(ir.A32PC))
		}

		e.tail.ins("B\t%s", backend.Label(ir.Location{Arch: e.arch, PC: t.Next}))
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
		// no value stays in a register across the trap
		e.ra.SpillAll()
		e.ins("BRK\t#0")
	case ir.OpCallHostFunction:
		e.callHostFunction(a)
	case ir.OpGetCarryFromOp, ir.OpGetOverflowFromOp, ir.OpGetNZCVFromOp:
		if !e.ra.WasValueDefined(inst) {
			return errors.New("not produced by %v", inst.Arg(0).InstRecursive().Op())
		}
	case ir.OpNZCVFromPackedFlags:
		rw := e.ra.ReadWriteW(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("AND\t%s, %s, #0xf0000000", gp(rw), gp(rw))

	case ir.OpA32GetRegister:
		res := e.ra.WriteW(inst)
		e.ra.Realize(res)

		e.ldr(gp(res), jitstate.A32Reg(a[0].GetImmediateA32Reg()))
	case ir.OpA32SetRegister:
		e.setState(&a[1], 32, jitstate.A32Reg(a[0].GetImmediateA32Reg()))
	case ir.OpA32GetExtendedRegister32:
		res := e.ra.WriteS(inst)
		e.ra.Realize(res)

		e.ldr(s(res.Index()), jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg()))
	case ir.OpA32GetExtendedRegister64:
		res := e.ra.WriteD(inst)
		e.ra.Realize(res)

		e.ldr(d(res.Index()), jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg()))
	case ir.OpA32SetExtendedRegister32:
		off := jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg())

		if a[1].IsInFpr() {
			r := e.ra.ReadS(&a[1])
			e.ra.Realize(r)

			e.str(s(r.Index()), off)
		} else {
			e.setState(&a[1], 32, off)
		}
	case ir.OpA32SetExtendedRegister64:
		off := jitstate.A32ExtReg(a[0].GetImmediateA32ExtReg())

		if a[1].IsInFpr() {
			r := e.ra.ReadD(&a[1])
			e.ra.Realize(r)

			e.str(d(r.Index()), off)
		} else {
			e.setState(&a[1], 64, off)
		}
	case ir.OpA32GetCpsr:
		res := e.ra.WriteW(inst)
		e.ra.Realize(res)

		e.ldr(gp(res), jitstate.A32CPSRNZCV())
		e.ldr(w(scratch0), jitstate.A32CPSRRest())
		e.ins("ORR\t%s, %s, %s", gp(res), gp(res), w(scratch0))
	case ir.OpA32SetCpsr:
		r := e.ra.ReadW(&a[0])
		e.ra.Realize(r)

		e.ins("AND\t%s, %s, #0xf0000000", w(scratch0), gp(r))
		e.str(w(scratch0), jitstate.A32CPSRNZCV())
		e.ins("AND\t%s, %s, #0x0fffffff", w(scratch0), gp(r))
		e.str(w(scratch0), jitstate.A32CPSRRest())
	case ir.OpA32SetCpsrNZCV, ir.OpA64SetNZCV:
		e.setState(&a[0], 32, jitstate.NZCV(e.arch))
	case ir.OpA32GetCFlag:
		res := e.ra.WriteW(inst)
		e.ra.Realize(res)

		e.ldr(gp(res), jitstate.A32CPSRNZCV())
		e.ins("UBFX\t%s, %s, #29, #1", gp(res), gp(res))
	case ir.OpA32ExceptionRaised:
		e.ra.HostCall(nil, e.callback(jitstate.CallbackExceptionRaised), nil, &a[0], &a[1])
	case ir.OpA32CoprocSendOneWord:
		info := a[0].GetImmediateCoprocInfo()

		e.ra.HostCall(nil, func() {
			e.movImm(1, binary.LittleEndian.Uint64(info[:]))
			e.callback(jitstate.CallbackCoprocSendOneWord)()
		}, nil, nil, &a[1])
	case ir.OpA32CoprocGetOneWord:
		info := a[0].GetImmediateCoprocInfo()

		e.ra.HostCall(inst, func() {
			e.movImm(1, binary.LittleEndian.Uint64(info[:]))
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

		res := e.write(inst, bits)
		e.ra.Realize(res)

		if r := a[0].GetImmediateA64Reg(); r == ir.A64ZR {
			e.ins("MOV\t%s, %s", gp(res), zr(bits))
		} else {
			e.ldr(gp(res), jitstate.A64Reg(r))
		}
	case ir.OpA64GetQ:
		res := e.ra.WriteQ(inst)
		e.ra.Realize(res)

		e.ldr(q(res.Index()), jitstate.A64Vec(a[0].GetImmediateA64Vec()))
	case ir.OpA64SetW, ir.OpA64SetX:
		if r := a[0].GetImmediateA64Reg(); r != ir.A64ZR {
			// 32-bit values are kept zero extended, so SetW is a full store
			e.setState(&a[1], 64, jitstate.A64Reg(r))
		}
	case ir.OpA64SetQ:
		r := e.ra.ReadQ(&a[1])
		e.ra.Realize(r)

		e.str(q(r.Index()), jitstate.A64Vec(a[0].GetImmediateA64Vec()))

	case ir.OpPack2x32To1x64:
		rw := e.ra.ReadWriteX(&a[0], inst)
		hi := e.ra.ReadX(&a[1])
		e.ra.Realize(rw, hi)

		e.ins("ORR\t%s, %s, %s, LSL #32", gp(rw), gp(rw), gp(hi))
	case ir.OpLeastSignificantWord, ir.OpZeroExtendWordToLong:
		rw := e.ra.ReadWriteX(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("MOV\t%s, %s", w(rw.Index()), w(rw.Index()))
	case ir.OpLeastSignificantHalf, ir.OpZeroExtendHalfToWord:
		e.unary32(inst, a, "UXTH")
	case ir.OpLeastSignificantByte, ir.OpZeroExtendByteToWord:
		e.unary32(inst, a, "UXTB")
	case ir.OpSignExtendByteToWord:
		e.unary32(inst, a, "SXTB")
	case ir.OpSignExtendHalfToWord:
		e.unary32(inst, a, "SXTH")
	case ir.OpSignExtendWordToLong:
		rw := e.ra.ReadWriteX(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("SXTW\t%s, %s", x(rw.Index()), w(rw.Index()))
	case ir.OpMostSignificantBit:
		rw := e.ra.ReadWriteW(&a[0], inst)
		e.ra.Realize(rw)

		e.ins("LSR\t%s, %s, #31", gp(rw), gp(rw))
	case ir.OpIsZero32, ir.OpIsZero64:
		e.ra.SpillFlags()

		rw := e.readWrite(&a[0], inst, backend.OpBits(op))
		e.ra.Realize(rw)

		e.ins("CMP\t%s, #0", gp(rw))
		e.ins("CSET\t%s, EQ", w(rw.Index()))
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
		e.binary(inst, a, "MUL")
	case ir.OpAnd32, ir.OpAnd64:
		e.logical(inst, a, "AND")
	case ir.OpEor32, ir.OpEor64:
		e.logical(inst, a, "EOR")
	case ir.OpOr32, ir.OpOr64:
		e.logical(inst, a, "ORR")
	case ir.OpNot32, ir.OpNot64:
		e.logical(inst, a, "MVN")

	case ir.OpZeroVector:
		res := e.ra.WriteQ(inst)
		e.ra.Realize(res)

		e.ins("MOVI\t%s.2D, #0", v(res.Index()))
	case ir.OpVectorAdd32:
		e.vector(inst, a, "ADD", "4S")
	case ir.OpVectorSub32:
		e.vector(inst, a, "SUB", "4S")
	case ir.OpVectorAnd:
		e.vector(inst, a, "AND", "16B")
	case ir.OpVectorGetElement32:
		if !a[1].IsImmediate() || a[1].GetImmediateU8() > 3 {
			return errors.New("element index must be an immediate in 0..3")
		}

		res := e.ra.WriteW(inst)
		r := e.ra.ReadQ(&a[0])
		e.ra.Realize(res, r)

		e.ins("MOV\t%s, %s.S[%d]", gp(res), v(r.Index()), a[1].GetImmediateU8())
	case ir.OpVectorSetElement32:
		if !a[1].IsImmediate() || a[1].GetImmediateU8() > 3 {
			return errors.New("element index must be an immediate in 0..3")
		}

		rw := e.ra.ReadWriteQ(&a[0], inst)
		r := e.ra.ReadW(&a[2])
		e.ra.Realize(rw, r)

		e.ins("MOV\t%s.S[%d], %s", v(rw.Index()), a[1].GetImmediateU8(), gp(r))
	default:
		return backend.Unsupported(op)
	}

	return nil
}

func (e *emitter) ldr(reg string, off int) {
	e.ins("LDR\t%s, [X%d, #%d]", reg, stateReg, off)
}

func (e *emitter) str(reg string, off int) {
	e.ins("STR\t%s, [X%d, #%d]", reg, stateReg, off)
}

// setState stores a general register value into the guest state.
func (e *emitter) setState(a *regalloc.Argument, bits int, off int) {
	if a.IsImmediate() && a.GetImmediateU64() == 0 {
		e.str(zr(bits), off)
		return
	}

	r := e.read(a, bits)
	e.ra.Realize(r)

	e.str(gp(r), off)
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

func (e *emitter) unary32(inst *ir.Inst, a *args, mn string) {
	rw := e.ra.ReadWriteW(&a[0], inst)
	e.ra.Realize(rw)

	e.ins("%s\t%s, %s", mn, gp(rw), gp(rw))
}

func (e *emitter) binary(inst *ir.Inst, a *args, mn string) {
	bits := backend.OpBits(inst.Op())

	rw := e.readWrite(&a[0], inst, bits)
	r := e.read(&a[1], bits)
	e.ra.Realize(rw, r)

	e.ins("%s\t%s, %s, %s", mn, gp(rw), gp(rw), gp(r))
}

// logical emits And, Eor, Or and Not. NZCV of a logical op has C and V cleared.
func (e *emitter) logical(inst *ir.Inst, a *args, mn string) {
	bits := backend.OpBits(inst.Op())
	nzcv := inst.GetAssociatedPseudoOperation(ir.OpGetNZCVFromOp)

	var f, r *regalloc.Reg

	if nzcv != nil {
		e.ra.SpillFlags()
	}

	rw := e.readWrite(&a[0], inst, bits)

	if mn != "MVN" {
		r = e.read(&a[1], bits)
	}

	if nzcv != nil {
		f = e.ra.WriteFlags(nzcv)
	}

	e.ra.Realize(rw, r, f)

	switch {
	case mn == "MVN":
		e.ins("MVN\t%s, %s", gp(rw), gp(rw))
	case mn == "AND" && nzcv != nil:
		e.ins("ANDS\t%s, %s, %s", gp(rw), gp(rw), gp(r))
		return
	default:
		e.ins("%s\t%s, %s, %s", mn, gp(rw), gp(rw), gp(r))
	}

	if nzcv != nil {
		e.ins("TST\t%s, %s", gp(rw), gp(rw))
	}
}

// addSub emits a + b + carry and a + ^b + carry with any of the carry, overflow and NZCV pseudo-operations.
func (e *emitter) addSub(inst *ir.Inst, a *args, sub bool) {
	bits := backend.OpBits(inst.Op())

	carry := inst.GetAssociatedPseudoOperation(ir.OpGetCarryFromOp)
	overflow := inst.GetAssociatedPseudoOperation(ir.OpGetOverflowFromOp)
	nzcv := inst.GetAssociatedPseudoOperation(ir.OpGetNZCVFromOp)

	setFlags := carry != nil || overflow != nil || nzcv != nil
	cin := &a[2]

	// the carry in that plain ADD or SUB implies
	plain := cin.IsImmediate() && cin.GetImmediateU1() == sub

	if setFlags || !plain {
		e.ra.SpillFlags()
	}

	rw := e.readWrite(&a[0], inst, bits)

	var r, c, wc, wv, f *regalloc.Reg

	imm := plain && a[1].IsImmediate() && a[1].GetImmediateU64() < 1<<12
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
		f = e.ra.WriteFlags(nzcv)
	}

	e.ra.Realize(rw, r, c, wc, wv, f)

	mn := "ADD"
	if sub {
		mn = "SUB"
	}

	switch {
	case plain:
	case c != nil:
		e.ins("CMP\t%s, #1", gp(c))
	case sub:
		e.ins("CMN\tWZR, WZR")
	default:
		e.ins("CMP\tWZR, WZR")
	}

	if !plain {
		mn = "ADC"
		if sub {
			mn = "SBC"
		}
	}

	if setFlags {
		mn += "S"
	}

	if imm {
		e.ins("%s\t%s, %s, #%d", mn, gp(rw), gp(rw), a[1].GetImmediateU64())
	} else {
		e.ins("%s\t%s, %s, %s", mn, gp(rw), gp(rw), gp(r))
	}

	if wc != nil {
		e.ins("CSET\t%s, CS", gp(wc))
	}

	if wv != nil {
		e.ins("CSET\t%s, VS", gp(wv))
	}
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
		if c != nil {
			e.ins("UBFX\t%s, %s, #%d, #1", gp(c), r, bit)
		}
	}

	carryZero := func() {
		if c != nil {
			e.ins("MOV\t%s, WZR", gp(c))
		}
	}

	switch op {
	case ir.OpLogicalShiftLeft32:
		switch {
		case n < 32:
			carryBit(32 - n)
			e.ins("LSL\t%s, %s, #%d", r, r, n)
		case n == 32:
			carryBit(0)
			e.ins("MOV\t%s, WZR", r)
		default:
			carryZero()
			e.ins("MOV\t%s, WZR", r)
		}
	case ir.OpLogicalShiftRight32:
		switch {
		case n < 32:
			carryBit(n - 1)
			e.ins("LSR\t%s, %s, #%d", r, r, n)
		case n == 32:
			carryBit(31)
			e.ins("MOV\t%s, WZR", r)
		default:
			carryZero()
			e.ins("MOV\t%s, WZR", r)
		}
	case ir.OpArithmeticShiftRight32:
		if n < 32 {
			carryBit(n - 1)
			e.ins("ASR\t%s, %s, #%d", r, r, n)
		} else {
			carryBit(31)
			e.ins("ASR\t%s, %s, #31", r, r)
		}
	case ir.OpRotateRight32:
		if n%32 != 0 {
			e.ins("ROR\t%s, %s, #%d", r, r, n%32)
		}

		carryBit(31)
	}

	return nil
}

func (e *emitter) shift64(inst *ir.Inst, a *args) {
	mn := "LSL"
	if inst.Op() == ir.OpLogicalShiftRight64 {
		mn = "LSR"
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
		e.ins("%s\t%s, %s, #%d", mn, gp(rw), gp(rw), n)
	default:
		e.ins("MOV\t%s, XZR", gp(rw))
	}
}

// shiftByReg uses the low byte of the amount, host shifts take it modulo the width.
func (e *emitter) shiftByReg(inst *ir.Inst, a *args, bits int) {
	e.ra.SpillFlags()

	rw := e.readWrite(&a[0], inst, bits)
	amt := e.ra.ReadW(&a[1])
	e.ra.Realize(rw, amt)

	r := gp(rw)
	n := w(scratch1)

	e.ins("AND\t%s, %s, #0xff", n, gp(amt))

	if bits == 64 {
		n = x(scratch1)
	}

	switch inst.Op() {
	case ir.OpRotateRight32:
		e.ins("RORV\t%s, %s, %s", r, r, n)
	case ir.OpArithmeticShiftRight32:
		e.ins("MOV\t%s, #31", w(scratch0))
		e.ins("CMP\t%s, #31", n)
		e.ins("CSEL\t%s, %s, %s, LO", n, n, w(scratch0))
		e.ins("ASRV\t%s, %s, %s", r, r, n)
	default:
		mn := "LSLV"
		if op := inst.Op(); op == ir.OpLogicalShiftRight32 || op == ir.OpLogicalShiftRight64 {
			mn = "LSRV"
		}

		e.ins("%s\t%s, %s, %s", mn, r, r, n)
		e.ins("CMP\t%s, #%d", n, bits)
		e.ins("CSEL\t%s, %s, %s, LO", r, r, zr(bits))
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

		e.ins("UBFX\t%s, %s, #%d, #1", gp(rw), gp(rw), bit)

		return nil
	}

	rw := e.ra.ReadWriteX(&a[0], inst)
	r := e.ra.ReadX(&a[1])
	e.ra.Realize(rw, r)

	e.ins("LSRV\t%s, %s, %s", gp(rw), gp(rw), gp(r))
	e.ins("AND\t%s, %s, #1", gp(rw), gp(rw))

	return nil
}

// conditionalSelect evaluates the condition on the guest flags.
func (e *emitter) conditionalSelect(inst *ir.Inst, a *args, bits int) {
	cond := a[0].GetImmediateCond()

	e.ra.SpillFlags()

	res := e.write(inst, bits)
	then := e.read(&a[1], bits)
	els := e.read(&a[2], bits)
	e.ra.Realize(res, then, els)

	if cond == ir.CondAL || cond == ir.CondNV {
		e.ins("MOV\t%s, %s", gp(res), gp(then))
		return
	}

	e.ldr(w(scratch0), jitstate.NZCV(e.arch))
	e.ins("MSR\tNZCV, %s", x(scratch0))
	e.ins("CSEL\t%s, %s, %s, %s", gp(res), gp(then), gp(els), condName(cond))
}

func (e *emitter) vector(inst *ir.Inst, a *args, mn, arr string) {
	rw := e.ra.ReadWriteQ(&a[0], inst)
	r := e.ra.ReadQ(&a[1])
	e.ra.Realize(rw, r)

	e.ins("%s\t%s.%s, %s.%s, %s.%s", mn, v(rw.Index()), arr, v(rw.Index()), arr, v(r.Index()), arr)
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
			e.movImm(scratch0, fn.GetImmediateU64())
		} else {
			e.ra.LoadCopyInto(fn.Value(), regalloc.Gpr(scratch0))
		}

		e.ins("BLR\t%s", x(scratch0))
	}, cargs...)
}

// callback calls a guest state callback with the state as the first argument.
func (e *emitter) callback(cb jitstate.Callback) func() {
	return func() {
		e.ins("MOV\tX0, X%d", stateReg)
		e.ldr(x(scratch0), jitstate.CallbackOffset(e.arch, cb))
		e.ins("BLR\t%s", x(scratch0))
	}
}

func zr(bits int) string {
	if bits == 64 {
		return "XZR"
	}

	return "WZR"
}

func condName(c ir.Cond) string {
	return [...]string{"EQ", "NE", "CS", "CC", "MI", "PL", "VS", "VC", "HI", "LS", "GE", "LT", "GT", "LE", "AL", "NV"}[c&15]
}
