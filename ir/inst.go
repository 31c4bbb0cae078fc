package ir

import (
	"fmt"
	"strings"
)

type (
	InstID int

	// Inst is a single microinstruction of a Block.
	//
	// Insts are owned by their Block and reference each other only through
	// argument Values. Arguments must be changed with SetArg, Invalidate
	// and ReplaceUsesWith only, they keep use counts and the pseudo-operation
	// index of the Block consistent.
	Inst struct {
		op  Opcode
		id  InstID
		blk *Block

		useCount int

		args [MaxArgs]Value
	}
)

const MaxArgs = 4

func (i *Inst) Op() Opcode { return i.op }
func (i *Inst) ID() InstID { return i.id }
func (i *Inst) Block() *Block { return i.blk }
func (i *Inst) UseCount() int { return i.useCount }
func (i *Inst) HasUses() bool { return i.useCount > 0 }
func (i *Inst) NumArgs() int { return GetNumArgsOf(i.op) }
func (i *Inst) Value() Value { return InstValue(i) }

// Type is the result type. Identity has the type of what it forwards to.
func (i *Inst) Type() Type {
	if i.op == OpIdentity {
		return i.args[0].Type()
	}

	return GetTypeOf(i.op)
}

func (i *Inst) Arg(n int) Value {
	assertf(n >= 0 && n < i.NumArgs(), "%v: argument index %d out of range", i.op, n)

	return i.args[n]
}

// SetArg replaces argument n and moves the use from the old value to the new one.
func (i *Inst) SetArg(n int, v Value) {
	assertf(n >= 0 && n < i.NumArgs(), "%v: argument index %d out of range", i.op, n)

	want := GetArgTypeOf(i.op, n)
	assertf(AreTypesCompatible(v.Type(), want), "%v: argument %d type mismatch: have %v, want %v", i.op, n, v.Type(), want)

	if i.args[n].IsOpaque() {
		i.undoUse(i.args[n])
	}

	if v.IsOpaque() {
		i.use(v)
	}

	i.args[n] = v
}

// Invalidate releases all arguments and turns the instruction into Void.
func (i *Inst) Invalidate() {
	i.ClearArgs()
	i.op = OpVoid
}

func (i *Inst) ClearArgs() {
	for n := range i.args {
		if i.args[n].IsOpaque() {
			i.undoUse(i.args[n])
		}

		i.args[n] = Value{}
	}
}

// ReplaceUsesWith makes every Value referencing i forward to v.
// i becomes Identity(v), consumers are not touched.
func (i *Inst) ReplaceUsesWith(v Value) {
	if r := v.Resolve(); r.IsOpaque() {
		assertf(r.inst != i, "%%%d: replacement refers to itself", i.id)
	}

	i.Invalidate()

	i.op = OpIdentity

	if v.IsOpaque() {
		i.use(v)
	}

	i.args[0] = v
}

func (i *Inst) use(v Value) {
	p := v.Inst()

	if IsAPseudoOperation(i.op) {
		i.checkPseudoParent(p)

		i.blk.linkPseudo(p, i)
	}

	p.useCount++
}

func (i *Inst) undoUse(v Value) {
	p := v.Inst()

	assertf(p.useCount > 0, "%%%d: use count underflow", p.id)

	p.useCount--

	if IsAPseudoOperation(i.op) {
		i.blk.unlinkPseudo(p, i)
	}
}

func (i *Inst) checkPseudoParent(p *Inst) {
	switch i.op {
	case OpGetCarryFromOp:
		assertf(p.op.has(fCarryFromOp), "%v may not produce carry", p.op)
	case OpGetOverflowFromOp:
		assertf(p.op.has(fCarryFromOp) && p.op.has(fNZCVFromOp), "%v may not produce overflow", p.op)
	case OpGetNZCVFromOp:
		assertf(p.MayGetNZCVFromOp(), "%v may not produce NZCV", p.op)
	}

	assertf(p.GetAssociatedPseudoOperation(i.op) == nil, "%%%d already has a %v", p.id, i.op)
}

// GetAssociatedPseudoOperation returns the pseudo-operation of kind op attached to i, or nil.
func (i *Inst) GetAssociatedPseudoOperation(op Opcode) *Inst {
	for _, ps := range i.blk.pseudoOps(i) {
		if ps.op != op {
			continue
		}

		assertf(ps.args[0].Inst() == i, "%%%d: pseudo-operation %%%d has a different parent", i.id, ps.id)

		return ps
	}

	return nil
}

func (i *Inst) HasAssociatedPseudoOperation() bool {
	return len(i.blk.pseudo[i.id]) != 0
}

func (i *Inst) AreAllArgsImmediates() bool {
	for n := 0; n < i.NumArgs(); n++ {
		if !i.args[n].IsImmediate() {
			return false
		}
	}

	return true
}

func (i *Inst) IsMemoryRead() bool { return i.op.has(fMemRead) }
func (i *Inst) IsMemoryWrite() bool { return i.op.has(fMemWrite) }
func (i *Inst) IsMemoryReadOrWrite() bool { return i.op.has(fMemRead | fMemWrite) }
func (i *Inst) ReadsFromCoreRegister() bool { return i.op.has(fReadCoreReg) }
func (i *Inst) WritesToCoreRegister() bool { return i.op.has(fWriteCoreReg) }
func (i *Inst) ReadsFromCPSR() bool { return i.op.has(fReadCPSR) }
func (i *Inst) WritesToCPSR() bool { return i.op.has(fWriteCPSR) }
func (i *Inst) IsCoprocessorInstruction() bool { return i.op.has(fCoproc) }
func (i *Inst) CausesCPUException() bool { return i.op.has(fException) || i.op == OpBreakpoint }
func (i *Inst) IsLogicalShift() bool { return i.op.has(fLogicalShift) }
func (i *Inst) IsArithmeticShift() bool { return i.op.has(fArithShift) }
func (i *Inst) IsCircularShift() bool { return i.op.has(fCircularShift) }
func (i *Inst) IsShift() bool { return i.op.has(fLogicalShift | fArithShift | fCircularShift) }
func (i *Inst) MayGetNZCVFromOp() bool { return i.op.has(fNZCVFromOp) }

func (i *Inst) MayHaveSideEffects() bool {
	return i.op.has(fSideEffect) ||
		i.CausesCPUException() ||
		i.WritesToCoreRegister() ||
		i.WritesToCPSR() ||
		i.IsMemoryWrite() ||
		i.IsCoprocessorInstruction()
}

func (i *Inst) String() string {
	var b strings.Builder

	if i.Type() != TypeVoid {
		fmt.Fprintf(&b, "%%%d = ", i.id)
	}

	b.WriteString(i.op.String())

	for n := 0; n < i.NumArgs(); n++ {
		if n == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}

		a := i.args[n]

		b.WriteString(a.String())

		if a.IsImmediate() && GetArgTypeOf(i.op, n) == TypeOpaque {
			b.WriteByte(':')
			b.WriteString(a.Type().String())
		}
	}

	return b.String()
}
