package opt

import (
	"context"
	"math/bits"

	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/ir"
)

// ConstantFolding evaluates integer operations on immediates and
// simplifies operations with neutral or absorbing operands.
// Instructions with pseudo-operations attached are left alone,
// their flags would have to be folded too.
func ConstantFolding(ctx context.Context, b *ir.Block) (folded int) {
	tr := tlog.SpanFromContext(ctx)

	for _, i := range b.Insts() {
		if i.HasAssociatedPseudoOperation() {
			continue
		}

		v, ok := fold(i)
		if !ok {
			continue
		}

		if tr.If("opt_fold") {
			tr.Printw("fold", "inst", i.String(), "to", v)
		}

		i.ReplaceUsesWith(v)
		folded++
	}

	if tr.If("opt") {
		tr.Printw("constant folding", "block", b.Location, "folded", folded)
	}

	return folded
}

func fold(i *ir.Inst) (ir.Value, bool) {
	if i.NumArgs() == 0 {
		return ir.Value{}, false
	}

	if v, ok := simplify(i); ok {
		return v, true
	}

	if !i.AreAllArgsImmediates() {
		return ir.Value{}, false
	}

	arg := func(n int) uint64 { return i.Arg(n).ImmediateAsU64() }
	u32 := func(x uint64) (ir.Value, bool) { return ir.ImmU32(uint32(x)), true }
	u64 := func(x uint64) (ir.Value, bool) { return ir.ImmU64(x), true }

	switch i.Op() {
	case ir.OpAdd32:
		return u32(arg(0) + arg(1) + arg(2))
	case ir.OpAdd64:
		return u64(arg(0) + arg(1) + arg(2))
	case ir.OpSub32:
		return u32(arg(0) + ^arg(1) + arg(2))
	case ir.OpSub64:
		return u64(arg(0) + ^arg(1) + arg(2))
	case ir.OpMul32:
		return u32(arg(0) * arg(1))
	case ir.OpMul64:
		return u64(arg(0) * arg(1))
	case ir.OpAnd32:
		return u32(arg(0) & arg(1))
	case ir.OpAnd64:
		return u64(arg(0) & arg(1))
	case ir.OpEor32:
		return u32(arg(0) ^ arg(1))
	case ir.OpEor64:
		return u64(arg(0) ^ arg(1))
	case ir.OpOr32:
		return u32(arg(0) | arg(1))
	case ir.OpOr64:
		return u64(arg(0) | arg(1))
	case ir.OpNot32:
		return u32(^arg(0))
	case ir.OpNot64:
		return u64(^arg(0))

	case ir.OpLogicalShiftLeft32:
		if arg(1) >= 32 {
			return u32(0)
		}

		return u32(arg(0) << arg(1))
	case ir.OpLogicalShiftRight32:
		if arg(1) >= 32 {
			return u32(0)
		}

		return u32(arg(0) >> arg(1))
	case ir.OpArithmeticShiftRight32:
		sh := min(arg(1), 31)

		return u32(uint64(int32(uint32(arg(0))) >> sh))
	case ir.OpRotateRight32:
		return u32(uint64(bits.RotateLeft32(uint32(arg(0)), -int(arg(1)%32))))
	case ir.OpLogicalShiftLeft64:
		if arg(1) >= 64 {
			return u64(0)
		}

		return u64(arg(0) << arg(1))
	case ir.OpLogicalShiftRight64:
		if arg(1) >= 64 {
			return u64(0)
		}

		return u64(arg(0) >> arg(1))

	case ir.OpSignExtendByteToWord:
		return u32(uint64(int32(int8(arg(0)))))
	case ir.OpSignExtendHalfToWord:
		return u32(uint64(int32(int16(arg(0)))))
	case ir.OpZeroExtendByteToWord, ir.OpZeroExtendHalfToWord:
		return u32(arg(0))
	case ir.OpSignExtendWordToLong:
		return u64(uint64(int64(int32(arg(0)))))
	case ir.OpZeroExtendWordToLong:
		return u64(arg(0))

	case ir.OpLeastSignificantWord:
		return u32(arg(0))
	case ir.OpLeastSignificantHalf:
		return ir.ImmU16(uint16(arg(0))), true
	case ir.OpLeastSignificantByte:
		return ir.ImmU8(uint8(arg(0))), true
	case ir.OpMostSignificantBit:
		return ir.ImmU1(arg(0)>>31&1 != 0), true
	case ir.OpIsZero32, ir.OpIsZero64:
		return ir.ImmU1(arg(0) == 0), true
	case ir.OpTestBit:
		return ir.ImmU1(arg(1) < 64 && arg(0)>>arg(1)&1 != 0), true
	case ir.OpPack2x32To1x64:
		return u64(arg(0) | arg(1)<<32)
	}

	return ir.Value{}, false
}

// simplify handles operations where one immediate operand decides the result.
func simplify(i *ir.Inst) (ir.Value, bool) {
	switch i.Op() {
	case ir.OpAdd32, ir.OpAdd64:
		// x + 0 + 0
		if i.Arg(2).IsZero() {
			if i.Arg(1).IsZero() {
				return i.Arg(0), true
			}

			if i.Arg(0).IsZero() {
				return i.Arg(1), true
			}
		}
	case ir.OpSub32, ir.OpSub64:
		// x - 0 with no borrow
		if i.Arg(1).IsZero() && i.Arg(2).IsUnsignedImmediate(1) {
			return i.Arg(0), true
		}
	case ir.OpAnd32, ir.OpAnd64:
		for n := 0; n < 2; n++ {
			if i.Arg(n).IsZero() {
				return i.Arg(n), true
			}

			if i.Arg(n).HasAllBitsSet() {
				return i.Arg(1 - n), true
			}
		}
	case ir.OpOr32, ir.OpOr64, ir.OpEor32, ir.OpEor64:
		for n := 0; n < 2; n++ {
			if i.Arg(n).IsZero() {
				return i.Arg(1 - n), true
			}
		}
	case ir.OpMul32, ir.OpMul64:
		for n := 0; n < 2; n++ {
			if i.Arg(n).IsZero() {
				return i.Arg(n), true
			}

			if i.Arg(n).IsUnsignedImmediate(1) {
				return i.Arg(1 - n), true
			}
		}
	case ir.OpLogicalShiftLeft64, ir.OpLogicalShiftRight64:
		if i.Arg(1).IsZero() {
			return i.Arg(0), true
		}
	}

	return ir.Value{}, false
}
