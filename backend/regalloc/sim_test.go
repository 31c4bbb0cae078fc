package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slowlang/dynarec/ir"
)

type (
	// simAsm executes allocator moves on a model of the host.
	simAsm struct {
		gpr   [NumRegs]uint64
		fpr   [NumRegs][2]uint64
		flags uint64
		spill map[int][2]uint64

		moves  int
		stores int
		loads  int
		imms   int

		debug []DebugEntry
	}

	harness struct {
		t   *testing.T
		ra  *RegAlloc
		sim *simAsm
		b   *ir.Block
	}
)

func newSim() *simAsm {
	return &simAsm{spill: map[int][2]uint64{}}
}

func (s *simAsm) get(l HostLoc) [2]uint64 {
	switch l.Kind {
	case KindGpr:
		return [2]uint64{s.gpr[l.Index]}
	case KindFpr:
		return s.fpr[l.Index]
	case KindFlags:
		return [2]uint64{s.flags}
	case KindSpill:
		return s.spill[l.Index]
	}

	panic(l)
}

func (s *simAsm) set(l HostLoc, v [2]uint64) {
	switch l.Kind {
	case KindGpr:
		s.gpr[l.Index] = v[0]
	case KindFpr:
		s.fpr[l.Index] = v
	case KindFlags:
		s.flags = v[0] & 0xf000_0000
	case KindSpill:
		s.spill[l.Index] = v
	default:
		panic(l)
	}
}

func (s *simAsm) Move(width int, dst, src HostLoc) {
	v := s.get(src)

	if width <= 64 {
		v[1] = 0
	}

	s.set(dst, v)

	s.moves++

	if dst.IsSpill() {
		s.stores++
	}

	if src.IsSpill() {
		s.loads++
	}
}

func (s *simAsm) LoadImmediate(dst HostLoc, imm uint64) {
	s.set(dst, [2]uint64{imm})
	s.imms++
}

func (s *simAsm) DebugDump(entries []DebugEntry) {
	s.debug = append(s.debug, entries...)
}

func newHarness(t *testing.T, cfg Config, src string) *harness {
	t.Helper()

	b, err := ir.Parse([]byte(src))
	require.NoError(t, err)

	sim := newSim()

	return &harness{
		t:   t,
		ra:  New(sim, cfg),
		sim: sim,
		b:   b,
	}
}

func (h *harness) inst(n int) *ir.Inst { return h.b.Insts()[n] }

// step runs one instruction the way a block driver does.
func (h *harness) step(n int, emit func(inst *ir.Inst, args *[ir.MaxArgs]Argument)) {
	h.t.Helper()

	inst := h.inst(n)
	args := h.ra.GetArgumentInfo(inst)

	emit(inst, &args)

	h.ra.ReleaseAll()
	h.ra.UpdateAllUses()
	h.ra.AssertAllUnlocked()
	h.requireOneLocationPerValue()
}

// define emits a result with a known content into a fresh register of the kind.
func (h *harness) define(n int, kind Kind, v [2]uint64) HostLoc {
	var l HostLoc

	h.step(n, func(inst *ir.Inst, _ *[ir.MaxArgs]Argument) {
		var w *Reg

		if kind == KindGpr {
			w = h.ra.WriteX(inst)
		} else {
			w = h.ra.WriteQ(inst)
		}

		h.ra.Realize(w)

		l = w.Loc()
		h.sim.set(l, v)
	})

	return l
}

// add emits a 32-bit add the way a host emitter would, the first operand is read-write.
func (h *harness) add(n int) HostLoc {
	var l HostLoc

	h.step(n, func(inst *ir.Inst, args *[ir.MaxArgs]Argument) {
		rw := h.ra.ReadWriteW(&args[0], inst)
		r := h.ra.ReadW(&args[1])

		h.ra.Realize(rw, r)

		l = rw.Loc()
		h.sim.gpr[l.Index] = uint64(uint32(h.sim.gpr[l.Index] + h.sim.gpr[r.Index()]))
	})

	return l
}

// use reads the operand n of the instruction and returns its content.
func (h *harness) use(n, arg int, kind Kind) (v [2]uint64, l HostLoc) {
	h.step(n, func(inst *ir.Inst, args *[ir.MaxArgs]Argument) {
		var r *Reg

		if kind == KindGpr {
			r = h.ra.ReadX(&args[arg])
		} else {
			r = h.ra.ReadQ(&args[arg])
		}

		h.ra.Realize(r)

		l = r.Loc()
		v = h.sim.get(l)
	})

	return v, l
}

func (h *harness) requireOneLocationPerValue() {
	h.t.Helper()

	seen := map[*ir.Inst]HostLoc{}

	h.ra.each(func(l HostLoc, info *HostLocInfo) {
		for _, v := range info.values {
			prev, ok := seen[v]
			require.False(h.t, ok, "%%%d is in %v and %v", v.ID(), prev, l)
			require.Equal(h.t, l, h.ra.where[v.ID()], "%%%d location index", v.ID())

			seen[v] = l
		}
	})
}
