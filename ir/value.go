package ir

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Value is an instruction argument: either an immediate or
	// a reference to the result of an Inst (TypeOpaque).
	//
	// Value never owns the Inst. Every accessor follows Identity
	// instructions, so a Value stays valid after Inst.ReplaceUsesWith.
	Value struct {
		typ  Type
		inst *Inst
		imm  uint64
	}
)

func InstValue(i *Inst) Value {
	assertf(i != nil, "nil inst value")

	return Value{typ: TypeOpaque, inst: i}
}

func ImmU1(x bool) Value {
	if x {
		return Value{typ: TypeU1, imm: 1}
	}

	return Value{typ: TypeU1}
}

func ImmU8(x uint8) Value { return Value{typ: TypeU8, imm: uint64(x)} }
func ImmU16(x uint16) Value { return Value{typ: TypeU16, imm: uint64(x)} }
func ImmU32(x uint32) Value { return Value{typ: TypeU32, imm: uint64(x)} }
func ImmU64(x uint64) Value { return Value{typ: TypeU64, imm: x} }
func ImmA32Reg(r A32Reg) Value { return Value{typ: TypeA32Reg, imm: uint64(r)} }
func ImmA32ExtReg(r A32ExtReg) Value { return Value{typ: TypeA32ExtReg, imm: uint64(r)} }
func ImmA64Reg(r A64Reg) Value { return Value{typ: TypeA64Reg, imm: uint64(r)} }
func ImmA64Vec(r A64Vec) Value { return Value{typ: TypeA64Vec, imm: uint64(r)} }
func ImmCond(c Cond) Value { return Value{typ: TypeCond, imm: uint64(c)} }
func ImmAccType(a AccType) Value { return Value{typ: TypeAccType, imm: uint64(a)} }

func ImmCoprocInfo(c CoprocInfo) Value {
	return Value{typ: TypeCoprocInfo, imm: binary.LittleEndian.Uint64(c[:])}
}

// ImmOfType makes an integer immediate of the given type, truncating x.
func ImmOfType(t Type, x uint64) Value {
	switch t {
	case TypeU1:
		return ImmU1(x&1 != 0)
	case TypeU8:
		return ImmU8(uint8(x))
	case TypeU16:
		return ImmU16(uint16(x))
	case TypeU32:
		return ImmU32(uint32(x))
	case TypeU64:
		return ImmU64(x)
	default:
		panic(t)
	}
}

// IsEmpty is true for the zero Value which is used for unused argument slots.
func (v Value) IsEmpty() bool { return v.typ == TypeVoid }

// IsOpaque reports whether the Value directly references an Inst.
// It does not look through Identity.
func (v Value) IsOpaque() bool { return v.typ == TypeOpaque }

func (v Value) IsIdentity() bool {
	return v.typ == TypeOpaque && v.inst.op == OpIdentity
}

func (v Value) IsImmediate() bool {
	if v.IsIdentity() {
		return v.inst.args[0].IsImmediate()
	}

	return v.typ != TypeOpaque
}

func (v Value) Type() Type {
	if v.IsIdentity() {
		return v.inst.args[0].Type()
	}

	if v.typ == TypeOpaque {
		return v.inst.Type()
	}

	return v.typ
}

// Inst is the directly referenced instruction. It may be an Identity.
func (v Value) Inst() *Inst {
	assertf(v.typ == TypeOpaque, "value of type %v is not an instruction", v.typ)

	return v.inst
}

// InstRecursive is the referenced instruction with Identity chains skipped.
func (v Value) InstRecursive() *Inst {
	if v.IsIdentity() {
		return v.inst.args[0].InstRecursive()
	}

	return v.Inst()
}

// Resolve follows Identity chains and returns the Value they forward to.
func (v Value) Resolve() Value {
	for v.IsIdentity() {
		v = v.inst.args[0]
	}

	return v
}

func (v Value) immOf(t Type) uint64 {
	v = v.Resolve()

	assertf(v.typ == t, "value of type %v is not an immediate %v", v.typ, t)

	return v.imm
}

func (v Value) U1() bool { return v.immOf(TypeU1) != 0 }
func (v Value) U8() uint8 { return uint8(v.immOf(TypeU8)) }
func (v Value) U16() uint16 { return uint16(v.immOf(TypeU16)) }
func (v Value) U32() uint32 { return uint32(v.immOf(TypeU32)) }
func (v Value) U64() uint64 { return v.immOf(TypeU64) }
func (v Value) A32Reg() A32Reg { return A32Reg(v.immOf(TypeA32Reg)) }
func (v Value) A32ExtReg() A32ExtReg { return A32ExtReg(v.immOf(TypeA32ExtReg)) }
func (v Value) A64Reg() A64Reg { return A64Reg(v.immOf(TypeA64Reg)) }
func (v Value) A64Vec() A64Vec { return A64Vec(v.immOf(TypeA64Vec)) }
func (v Value) Cond() Cond { return Cond(v.immOf(TypeCond)) }
func (v Value) AccType() AccType { return AccType(v.immOf(TypeAccType)) }

func (v Value) CoprocInfo() (c CoprocInfo) {
	binary.LittleEndian.PutUint64(c[:], v.immOf(TypeCoprocInfo))

	return c
}

// ImmediateAsU64 zero-extends an integer immediate of any width.
func (v Value) ImmediateAsU64() uint64 {
	v = v.Resolve()

	switch v.typ {
	case TypeU1, TypeU8, TypeU16, TypeU32, TypeU64:
		return v.imm
	default:
		panic(errorf("value of type %v is not an integer immediate", v.typ))
	}
}

// ImmediateAsS64 sign-extends an integer immediate of any width.
func (v Value) ImmediateAsS64() int64 {
	x := v.ImmediateAsU64()
	w := v.Type().BitWidth()

	if w == 64 || w == 1 {
		return int64(x)
	}

	sh := 64 - w

	return int64(x<<sh) >> sh
}

func (v Value) IsSignedImmediate(x int64) bool {
	return v.IsImmediate() && v.ImmediateAsS64() == x
}

func (v Value) IsUnsignedImmediate(x uint64) bool {
	return v.IsImmediate() && v.ImmediateAsU64() == x
}

func (v Value) IsZero() bool { return v.IsUnsignedImmediate(0) }

func (v Value) HasAllBitsSet() bool {
	if !v.IsImmediate() {
		return false
	}

	w := v.Type().BitWidth()
	x := v.ImmediateAsU64()

	return bits.OnesCount64(x) == w
}

func (v Value) String() string {
	v = v.Resolve()

	switch v.typ {
	case TypeVoid:
		return "<void>"
	case TypeOpaque:
		return fmt.Sprintf("%%%d", v.inst.id)
	case TypeU1, TypeU8, TypeU16, TypeU32, TypeU64:
		return fmt.Sprintf("#%d", v.imm)
	case TypeA32Reg:
		return A32Reg(v.imm).String()
	case TypeA32ExtReg:
		return A32ExtReg(v.imm).String()
	case TypeA64Reg:
		return A64Reg(v.imm).String()
	case TypeA64Vec:
		return A64Vec(v.imm).String()
	case TypeCond:
		return Cond(v.imm).String()
	case TypeAccType:
		return AccType(v.imm).String()
	case TypeCoprocInfo:
		return v.CoprocInfo().String()
	default:
		return fmt.Sprintf("<%v>", v.typ)
	}
}

func (v Value) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, v.String())
}
