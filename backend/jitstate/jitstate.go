// Package jitstate describes the guest state block generated code works on.
// The host back ends keep a pointer to it in a reserved register.
package jitstate

import (
	"unsafe"

	"github.com/slowlang/dynarec/ir"
)

type (
	A32 struct {
		Reg    [16]uint32
		ExtReg [64]uint32 // s0..s63, d and q registers alias them

		CPSRNZCV uint32
		CPSRRest uint32

		HaltReason uint32
		_          uint32

		Callbacks Callbacks
	}

	A64 struct {
		Reg [31]uint64
		SP  uint64
		PC  uint64
		_   uint64

		Vec [32][2]uint64

		NZCV       uint32
		HaltReason uint32

		Callbacks Callbacks
	}

	// Callbacks are host functions generated code calls into.
	Callbacks struct {
		ReadMemory8       uint64
		ReadMemory16      uint64
		ReadMemory32      uint64
		ReadMemory64      uint64
		WriteMemory8      uint64
		WriteMemory16     uint64
		WriteMemory32     uint64
		WriteMemory64     uint64
		ExceptionRaised   uint64
		CoprocSendOneWord uint64
		CoprocGetOneWord  uint64
	}

	Callback int
)

const (
	CallbackReadMemory8 Callback = iota
	CallbackReadMemory16
	CallbackReadMemory32
	CallbackReadMemory64
	CallbackWriteMemory8
	CallbackWriteMemory16
	CallbackWriteMemory32
	CallbackWriteMemory64
	CallbackExceptionRaised
	CallbackCoprocSendOneWord
	CallbackCoprocGetOneWord
)

var (
	a32 A32
	a64 A64
)

func A32Reg(r ir.A32Reg) int {
	return int(unsafe.Offsetof(a32.Reg)) + 4*int(r)
}

// A32ExtReg is the offset of s, d or q register. d and q are 8 and 16 bytes wide.
func A32ExtReg(r ir.A32ExtReg) int {
	base := int(unsafe.Offsetof(a32.ExtReg))

	switch {
	case r.IsSingle():
		return base + 4*r.Index()
	case r.IsDouble():
		return base + 8*r.Index()
	default:
		return base + 16*r.Index()
	}
}

func A32CPSRNZCV() int { return int(unsafe.Offsetof(a32.CPSRNZCV)) }
func A32CPSRRest() int { return int(unsafe.Offsetof(a32.CPSRRest)) }
func A32HaltReason() int { return int(unsafe.Offsetof(a32.HaltReason)) }

func A64Reg(r ir.A64Reg) int {
	if r == ir.A64SP {
		return int(unsafe.Offsetof(a64.SP))
	}

	return int(unsafe.Offsetof(a64.Reg)) + 8*int(r)
}

func A64Vec(v ir.A64Vec) int { return int(unsafe.Offsetof(a64.Vec)) + 16*int(v) }
func A64NZCV() int { return int(unsafe.Offsetof(a64.NZCV)) }
func A64PC() int { return int(unsafe.Offsetof(a64.PC)) }
func A64HaltReason() int { return int(unsafe.Offsetof(a64.HaltReason)) }

// CallbackOffset is where the callback pointer lives in the state of the guest arch.
func CallbackOffset(arch ir.GuestArch, cb Callback) int {
	var base int

	if arch == ir.GuestA64 {
		base = int(unsafe.Offsetof(a64.Callbacks))
	} else {
		base = int(unsafe.Offsetof(a32.Callbacks))
	}

	return base + 8*int(cb)
}

// NZCV is where the guest flags live.
func NZCV(arch ir.GuestArch) int {
	if arch == ir.GuestA64 {
		return A64NZCV()
	}

	return A32CPSRNZCV()
}

func Size(arch ir.GuestArch) int {
	if arch == ir.GuestA64 {
		return int(unsafe.Sizeof(a64))
	}

	return int(unsafe.Sizeof(a32))
}
