// Package backend drives host code emission for a block.
// Host specific parts live in subpackages.
package backend

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/backend/jitstate"
	"github.com/slowlang/dynarec/backend/regalloc"
	"github.com/slowlang/dynarec/ir"
)

type (
	// Emitter is a host code generator for one block.
	Emitter interface {
		EmitInst(inst *ir.Inst, args *[ir.MaxArgs]regalloc.Argument) error
		EmitTerminal(t ir.Terminal) error
	}

	Options struct {
		// Seed of the spill victim tie breaker.
		Seed uint64

		SpillSlots int

		// Debug makes the host code print resident values after each instruction.
		Debug bool
	}

	// Code is the result of emission.
	Code struct {
		Host     string
		Location ir.Location

		Text []byte

		Insts int

		// InstSize is the size of a host instruction, 0 for variable length encodings.
		InstSize int

		SpillBytes int

		Stats regalloc.Stats
	}
)

var ErrUnsupported = errors.New("unsupported opcode")

// Run emits every instruction of b in order and then the terminal.
func Run(ctx context.Context, b *ir.Block, ra *regalloc.RegAlloc, e Emitter, opts Options) (err error) {
	tr := tlog.SpanFromContext(ctx)

	for _, inst := range b.Insts() {
		if inst.Op() == ir.OpVoid {
			continue
		}

		args := ra.GetArgumentInfo(inst)

		err = e.EmitInst(inst, &args)
		if err != nil {
			return errors.Wrap(err, "%%%d = %v", inst.ID(), inst.Op())
		}

		ra.ReleaseAll()
		ra.UpdateAllUses()
		ra.AssertAllUnlocked()

		if opts.Debug {
			ra.EmitVerboseDebuggingOutput()
		}

		if tr.If("regalloc_dump") {
			tr.Printw("after inst", "inst", inst.ID(), "op", inst.Op())
			ra.Dump(tr)
		}
	}

	ra.AssertNoMoreUses()

	err = e.EmitTerminal(b.Terminal)
	if err != nil {
		return errors.Wrap(err, "terminal")
	}

	return nil
}

// Size is the code size in bytes if the host has fixed size instructions.
func (c *Code) Size() (int, bool) {
	return c.Insts * c.InstSize, c.InstSize != 0
}

// Unsupported is the error for an opcode the host has no emitter for.
func Unsupported(op ir.Opcode) error {
	return errors.Wrap(ErrUnsupported, "%v", op)
}

// Label is the assembly label of the block translated from loc.
func Label(loc ir.Location) string {
	return fmt.Sprintf("block_%v_%#x", loc.Arch, loc.PC)
}

// OpBits is the operand width of the 32 or 64-bit variant of an op.
func OpBits(op ir.Opcode) int {
	if ir.GetTypeOf(op) == ir.TypeU64 {
		return 64
	}

	if n := ir.GetNumArgsOf(op); n != 0 && ir.GetArgTypeOf(op, 0) == ir.TypeU64 {
		return 64
	}

	return 32
}

// ReadCallback is the guest memory read callback of the op.
func ReadCallback(op ir.Opcode) jitstate.Callback {
	switch op {
	case ir.OpA32ReadMemory8:
		return jitstate.CallbackReadMemory8
	case ir.OpA32ReadMemory16:
		return jitstate.CallbackReadMemory16
	case ir.OpA32ReadMemory32:
		return jitstate.CallbackReadMemory32
	default:
		return jitstate.CallbackReadMemory64
	}
}

func WriteCallback(op ir.Opcode) jitstate.Callback {
	switch op {
	case ir.OpA32WriteMemory8:
		return jitstate.CallbackWriteMemory8
	case ir.OpA32WriteMemory16:
		return jitstate.CallbackWriteMemory16
	case ir.OpA32WriteMemory32:
		return jitstate.CallbackWriteMemory32
	default:
		return jitstate.CallbackWriteMemory64
	}
}
