package regalloc

import "github.com/slowlang/dynarec/ir"

type (
	// Argument is an operand of the instruction being emitted.
	// It is valid until the next GetArgumentInfo.
	Argument struct {
		ra        *RegAlloc
		value     ir.Value
		allocated bool
	}
)

func (a *Argument) Value() ir.Value { return a.value }
func (a *Argument) Type() ir.Type { return a.value.Type() }
func (a *Argument) IsVoid() bool { return a.Type() == ir.TypeVoid }
func (a *Argument) IsImmediate() bool { return a.value.IsImmediate() }

func (a *Argument) GetImmediateU1() bool { return a.value.U1() }
func (a *Argument) GetImmediateU8() uint8 { return a.value.U8() }
func (a *Argument) GetImmediateU16() uint16 { return a.value.U16() }
func (a *Argument) GetImmediateU32() uint32 { return a.value.U32() }
func (a *Argument) GetImmediateU64() uint64 { return a.value.ImmediateAsU64() }
func (a *Argument) GetImmediateS64() int64 { return a.value.ImmediateAsS64() }
func (a *Argument) GetImmediateCond() ir.Cond { return a.value.Cond() }
func (a *Argument) GetImmediateAccType() ir.AccType { return a.value.AccType() }
func (a *Argument) GetImmediateA32Reg() ir.A32Reg { return a.value.A32Reg() }
func (a *Argument) GetImmediateA32ExtReg() ir.A32ExtReg { return a.value.A32ExtReg() }
func (a *Argument) GetImmediateA64Reg() ir.A64Reg { return a.value.A64Reg() }
func (a *Argument) GetImmediateA64Vec() ir.A64Vec { return a.value.A64Vec() }
func (a *Argument) GetImmediateCoprocInfo() ir.CoprocInfo { return a.value.CoprocInfo() }

// Location is where the value is now. ok is false for immediates.
func (a *Argument) Location() (l HostLoc, ok bool) {
	if a.IsVoid() || a.IsImmediate() {
		return l, false
	}

	return a.ra.ValueLocation(a.value.InstRecursive())
}

func (a *Argument) IsInGpr() bool { return a.isIn(KindGpr) }
func (a *Argument) IsInFpr() bool { return a.isIn(KindFpr) }
func (a *Argument) IsInFlags() bool { return a.isIn(KindFlags) }
func (a *Argument) IsInSpill() bool { return a.isIn(KindSpill) }

func (a *Argument) isIn(k Kind) bool {
	l, ok := a.Location()

	return ok && l.Kind == k
}
