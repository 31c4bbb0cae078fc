// Package regalloc assigns host locations to the values of a block
// one instruction at a time, emitting moves, spills and fills on the way.
package regalloc

import (
	"math/rand/v2"

	"nikand.dev/go/heap"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/ir"
	"github.com/slowlang/dynarec/set"
)

type (
	// Assembler emits the data movement the allocator decides on.
	Assembler interface {
		// Move copies width bits from src to dst. Either may be a spill slot or the flags.
		Move(width int, dst, src HostLoc)
		LoadImmediate(dst HostLoc, imm uint64)
		DebugDump(entries []DebugEntry)
	}

	Config struct {
		// Allocation preference order, host register numbers.
		GPROrder []int
		FPROrder []int

		CallerSaved CallerSaved

		// Call argument registers in ABI order.
		ParamGPRs []int
		ParamFPRs []int
		ReturnGPR int

		// HasFlags enables the condition flags location.
		HasFlags bool

		SpillSlots int

		// Seed of the spill victim tie breaker.
		Seed uint64
	}

	CallerSaved struct {
		GPRs []int
		FPRs []int
	}

	DebugEntry struct {
		Loc  HostLoc
		Inst ir.InstID
		Type ir.Type
	}

	Stats struct {
		Spills        int
		Fills         int
		Discards      int
		ScratchReuses int
		Immediates    int

		// SpillSlotsUsed is the high-water mark of the spill area.
		SpillSlotsUsed int
	}

	RegAlloc struct {
		asm Assembler
		cfg Config

		gprs   [NumRegs]HostLocInfo
		fprs   [NumRegs]HostLocInfo
		flags  HostLocInfo
		spills []HostLocInfo

		defined set.Bits[ir.InstID]

		// where is the last known location of a value.
		// Entries are checked against the location before use.
		where map[ir.InstID]HostLoc

		handles []*Reg

		rnd     *rand.Rand
		victims heap.Heap[victim]

		stats Stats
	}

	victim struct {
		index     int
		remaining int
		tie       uint64
	}
)

// NumRegs is the size of each register bank.
const NumRegs = 32

const DefaultSpillSlots = 64

func New(asm Assembler, cfg Config) *RegAlloc {
	if cfg.SpillSlots == 0 {
		cfg.SpillSlots = DefaultSpillSlots
	}

	for _, order := range [][]int{cfg.GPROrder, cfg.FPROrder} {
		for _, r := range order {
			assertf(r >= 0 && r < NumRegs, "register %d out of range", r)
		}
	}

	ra := &RegAlloc{
		asm:    asm,
		cfg:    cfg,
		spills: make([]HostLocInfo, cfg.SpillSlots),
		where:  make(map[ir.InstID]HostLoc),
		rnd:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	ra.victims.Less = victimLess

	return ra
}

func (ra *RegAlloc) Config() *Config { return &ra.cfg }
func (ra *RegAlloc) Stats() Stats    { return ra.stats }

// GetArgumentInfo starts an instruction: it wraps the arguments
// and counts their uses against their locations.
func (ra *RegAlloc) GetArgumentInfo(inst *ir.Inst) (args [ir.MaxArgs]Argument) {
	for n := range args {
		args[n].ra = ra
	}

	for n := 0; n < inst.NumArgs(); n++ {
		v := inst.Arg(n)

		args[n].value = v

		if v.IsImmediate() || ir.IsValuelessType(v.Type()) {
			continue
		}

		p := v.InstRecursive()

		l, ok := ra.ValueLocation(p)
		assertf(ok, "%v: argument %d: %%%d is not defined", inst.Op(), n, p.ID())

		ra.info(l).usesThisInst++
	}

	return args
}

// UpdateAllUses ends an instruction: uses counted by GetArgumentInfo become accumulated,
// locations with no more uses drop their values.
func (ra *RegAlloc) UpdateAllUses() {
	ra.each(func(_ HostLoc, info *HostLocInfo) {
		info.UpdateUses()
	})
}

func (ra *RegAlloc) AssertAllUnlocked() {
	ra.each(func(l HostLoc, info *HostLocInfo) {
		assertf(info.locked == 0, "%v is still locked: %d", l, info.locked)
		assertf(!info.realized, "%v is still realized", l)
	})
}

func (ra *RegAlloc) AssertNoMoreUses() {
	ra.each(func(l HostLoc, info *HostLocInfo) {
		assertf(info.IsCompletelyEmpty(), "%v still holds %v", l, info)
	})
}

func (ra *RegAlloc) WasValueDefined(inst *ir.Inst) bool {
	return ra.defined.IsSet(inst.ID())
}

// DefineAsExisting makes inst share the location of a.
// An immediate a replaces inst in the IR instead.
func (ra *RegAlloc) DefineAsExisting(inst *ir.Inst, a *Argument) {
	ra.define(inst)

	if a.IsImmediate() {
		inst.ReplaceUsesWith(a.value)
		return
	}

	l := ra.valueLocation(a.value.InstRecursive())

	ra.info(l).addValue(inst)
	ra.where[inst.ID()] = l
}

// DefineAsRegister binds inst to a location the emitter has already written, such as a call result.
func (ra *RegAlloc) DefineAsRegister(inst *ir.Inst, l HostLoc) {
	ra.define(inst)

	info := ra.info(l)

	assertf(info.IsCompletelyEmpty(), "define %%%d as %v: location is busy", inst.ID(), l)

	info.addValue(inst)
	ra.where[inst.ID()] = l
}

func (ra *RegAlloc) define(inst *ir.Inst) {
	_, ok := ra.ValueLocation(inst)
	assertf(!ok, "%%%d is defined twice", inst.ID())

	ra.defined.Set(inst.ID())
}

// ValueLocation finds the location holding inst.
func (ra *RegAlloc) ValueLocation(inst *ir.Inst) (l HostLoc, ok bool) {
	if !ra.defined.IsSet(inst.ID()) {
		return l, false
	}

	l, ok = ra.where[inst.ID()]
	if ok && ra.holds(l, inst) {
		return l, true
	}

	ok = false

	ra.each(func(at HostLoc, info *HostLocInfo) {
		if !ok && info.Contains(inst) {
			l, ok = at, true
		}
	})

	if ok {
		ra.where[inst.ID()] = l
	} else {
		delete(ra.where, inst.ID())
	}

	return l, ok
}

func (ra *RegAlloc) ValueInfo(inst *ir.Inst) *HostLocInfo {
	return ra.info(ra.valueLocation(inst))
}

func (ra *RegAlloc) valueLocation(inst *ir.Inst) HostLoc {
	l, ok := ra.ValueLocation(inst)
	assertf(ok, "%%%d has no location", inst.ID())

	return l
}

func (ra *RegAlloc) holds(l HostLoc, inst *ir.Inst) bool {
	if l.Kind == KindFlags && !ra.cfg.HasFlags {
		return false
	}

	return ra.info(l).Contains(inst)
}

// track records l as the location of each of its values.
func (ra *RegAlloc) track(l HostLoc) {
	for _, v := range ra.info(l).values {
		ra.where[v.ID()] = l
	}
}

// Info is the state of a location.
func (ra *RegAlloc) Info(l HostLoc) *HostLocInfo { return ra.info(l) }

func (ra *RegAlloc) info(l HostLoc) *HostLocInfo {
	switch l.Kind {
	case KindGpr:
		return &ra.gprs[l.Index]
	case KindFpr:
		return &ra.fprs[l.Index]
	case KindFlags:
		assertf(ra.cfg.HasFlags, "host has no flags location")
		return &ra.flags
	case KindSpill:
		return &ra.spills[l.Index]
	}

	panic(errors.New("bad location: %v", l))
}

func (ra *RegAlloc) each(f func(l HostLoc, info *HostLocInfo)) {
	for i := range ra.gprs {
		f(Gpr(i), &ra.gprs[i])
	}

	for i := range ra.fprs {
		f(Fpr(i), &ra.fprs[i])
	}

	if ra.cfg.HasFlags {
		f(Flags, &ra.flags)
	}

	for i := range ra.spills {
		f(Spill(i), &ra.spills[i])
	}
}

func (ra *RegAlloc) bank(k Kind) ([]HostLocInfo, []int) {
	switch k {
	case KindGpr:
		return ra.gprs[:], ra.cfg.GPROrder
	case KindFpr:
		return ra.fprs[:], ra.cfg.FPROrder
	}

	panic(errors.New("no register bank of kind %v", k))
}

func (ra *RegAlloc) realizeRead(kind Kind, v ir.Value) HostLoc {
	if v.IsImmediate() {
		return ra.generateImmediate(kind, v)
	}

	inst := v.InstRecursive()

	cur, ok := ra.ValueLocation(inst)
	assertf(ok, "read of %%%d: not defined or already dropped", inst.ID())

	info := ra.info(cur)

	if cur.Kind == kind {
		info.realized = true
		return cur
	}

	assertf(kind != KindFlags, "read of %%%d into flags, use a read-write", inst.ID())
	assertf(!info.realized, "read of %%%d: %v is realized as another kind", inst.ID(), cur)
	assertf(info.locked > 0, "read of %%%d: %v is not locked", inst.ID(), cur)

	dst := ra.allocate(kind)

	ra.asm.Move(moveWidth(dst, cur), dst, cur)

	if cur.IsSpill() {
		ra.stats.Fills++
	}

	tlog.V("regalloc").Printw("move to read", "inst", inst.ID(), "from", cur, "to", dst)

	di := ra.info(dst)
	di.exchange(info)
	di.realized = true

	ra.track(dst)

	return dst
}

func (ra *RegAlloc) realizeWrite(kind Kind, inst *ir.Inst) HostLoc {
	ra.define(inst)

	if kind == KindFlags {
		assertf(!ra.flags.realized, "write of %%%d: flags are realized", inst.ID())

		ra.evacuateFlags()
		ra.flags.SetupLocation(inst)
		ra.where[inst.ID()] = Flags

		return Flags
	}

	dst := ra.allocate(kind)

	ra.info(dst).SetupLocation(inst)
	ra.where[inst.ID()] = dst

	return dst
}

func (ra *RegAlloc) realizeReadWrite(r *Reg) HostLoc {
	if !r.read.IsImmediate() {
		src := r.read.InstRecursive()

		cur, ok := ra.ValueLocation(src)
		assertf(ok, "read of %%%d: not defined or already dropped", src.ID())

		info := ra.info(cur)

		if cur.Kind == r.kind && info.IsOneRemainingUse() && info.locked == 1 && !info.realized {
			ra.define(r.write)

			// the source dies here, the result takes its place
			r.locked = false

			info.values = append(info.values[:0], r.write)
			info.locked = 0
			info.usesThisInst = 0
			info.accumulatedUses = 0
			info.expectedUses = r.write.UseCount()
			info.realized = true

			ra.where[r.write.ID()] = cur
			ra.stats.ScratchReuses++

			tlog.V("regalloc").Printw("scratch reuse", "read", src.ID(), "write", r.write.ID(), "loc", cur)

			return cur
		}
	}

	dst := ra.realizeWrite(r.kind, r.write)

	ra.LoadCopyInto(r.read, dst)

	return dst
}

func (ra *RegAlloc) generateImmediate(kind Kind, v ir.Value) HostLoc {
	ra.stats.Immediates++

	if kind == KindFlags {
		ra.SpillFlags()
		ra.asm.LoadImmediate(Flags, v.ImmediateAsU64())
		ra.flags.SetupScratchLocation()

		return Flags
	}

	dst := ra.allocate(kind)

	ra.info(dst).SetupScratchLocation()
	ra.asm.LoadImmediate(dst, v.ImmediateAsU64())

	return dst
}

// LoadCopyInto copies v to dst without changing any bookkeeping.
func (ra *RegAlloc) LoadCopyInto(v ir.Value, dst HostLoc) {
	if v.IsImmediate() {
		ra.asm.LoadImmediate(dst, v.ImmediateAsU64())
		return
	}

	inst := v.InstRecursive()

	cur, ok := ra.ValueLocation(inst)
	assertf(ok, "copy of %%%d: not defined or already dropped", inst.ID())

	if cur.IsSpill() {
		ra.stats.Fills++
	}

	ra.asm.Move(moveWidth(dst, cur), dst, cur)
}

// allocate returns an empty register of the kind, spilling if it has to.
func (ra *RegAlloc) allocate(k Kind) HostLoc {
	l := HostLoc{Kind: k, Index: ra.AllocateRegister(k)}

	ra.free(l)

	return l
}

// AllocateRegister picks a register of the kind to be used next.
// Completely empty registers come first. UpdateAllUses empties a location
// as soon as its last use is consumed, so registers whose values have no
// remaining uses are among them.
// Otherwise the one with the fewest remaining uses is chosen, which is then to be spilled.
func (ra *RegAlloc) AllocateRegister(k Kind) int {
	regs, order := ra.bank(k)

	for _, r := range order {
		if regs[r].IsCompletelyEmpty() {
			return r
		}
	}

	ra.victims.Data = ra.victims.Data[:0]

	for _, r := range order {
		if !regs[r].MaybeAllocatable() {
			continue
		}

		ra.victims.Push(victim{
			index:     r,
			remaining: regs[r].RemainingUses(),
			tie:       ra.rnd.Uint64(),
		})
	}

	assertf(ra.victims.Len() != 0, "all %v registers are locked", k)

	v := ra.victims.Pop()

	tlog.V("regalloc").Printw("spill victim", "kind", k, "reg", v.index, "remaining", v.remaining, "candidates", ra.victims.Len()+1)

	return v.index
}

func victimLess(d []victim, i, j int) bool {
	if d[i].remaining != d[j].remaining {
		return d[i].remaining < d[j].remaining
	}

	return d[i].tie < d[j].tie
}

// free empties an allocatable location: values with no more uses are dropped, others spilled.
func (ra *RegAlloc) free(l HostLoc) {
	info := ra.info(l)

	assertf(info.MaybeAllocatable(), "%v is locked or realized", l)

	if info.IsCompletelyEmpty() {
		return
	}

	if info.RemainingUses() == 0 && info.usesThisInst == 0 {
		tlog.V("regalloc").Printw("discard", "loc", l, "info", info)

		*info = HostLocInfo{}
		ra.stats.Discards++

		return
	}

	ra.spill(l)
}

func (ra *RegAlloc) spill(l HostLoc) {
	info := ra.info(l)

	slot := ra.FindFreeSpill()
	dst := Spill(slot)

	ra.asm.Move(moveWidth(dst, l), dst, l)

	tlog.V("spill").Printw("spill", "from", l, "to", dst, "info", info)

	ra.spills[slot].exchange(info)
	ra.track(dst)

	ra.stats.Spills++
	ra.stats.SpillSlotsUsed = max(ra.stats.SpillSlotsUsed, slot+1)
}

// FindFreeSpill returns the first spill slot without values.
func (ra *RegAlloc) FindFreeSpill() int {
	for i := range ra.spills {
		if len(ra.spills[i].values) == 0 {
			return i
		}
	}

	panic(errors.New("all %d spill slots are full", len(ra.spills)))
}

func (ra *RegAlloc) SpillGpr(i int) {
	ra.spillReg(Gpr(i))
}

func (ra *RegAlloc) SpillFpr(i int) {
	ra.spillReg(Fpr(i))
}

func (ra *RegAlloc) spillReg(l HostLoc) {
	info := ra.info(l)

	assertf(info.locked == 0 && !info.realized, "spill of %v: locked or realized", l)

	if len(info.values) == 0 {
		return
	}

	ra.spill(l)
}

// SpillFlags moves the flags value into a general register.
func (ra *RegAlloc) SpillFlags() {
	if !ra.cfg.HasFlags {
		return
	}

	assertf(ra.flags.locked == 0 && !ra.flags.realized, "spill of flags: locked or realized")

	ra.evacuateFlags()
}

func (ra *RegAlloc) evacuateFlags() {
	if len(ra.flags.values) == 0 {
		return
	}

	dst := ra.allocate(KindGpr)

	ra.asm.Move(64, dst, Flags)

	tlog.V("spill").Printw("spill flags", "to", dst, "info", &ra.flags)

	ra.gprs[dst.Index].exchange(&ra.flags)
	ra.track(dst)
}

// SpillAll leaves no value in registers.
func (ra *RegAlloc) SpillAll() {
	ra.SpillFlags()

	for i := range ra.gprs {
		if len(ra.gprs[i].values) != 0 {
			ra.free(Gpr(i))
		}
	}

	for i := range ra.fprs {
		if len(ra.fprs[i].values) != 0 {
			ra.free(Fpr(i))
		}
	}
}

// PrepareForCall frees caller-saved registers and loads the call arguments.
// A nil argument skips a general register.
func (ra *RegAlloc) PrepareForCall(args ...*Argument) {
	ra.SpillFlags()

	for _, r := range ra.cfg.CallerSaved.GPRs {
		if len(ra.gprs[r].values) != 0 {
			ra.free(Gpr(r))
		}
	}

	for _, r := range ra.cfg.CallerSaved.FPRs {
		if len(ra.fprs[r].values) != 0 {
			ra.free(Fpr(r))
		}
	}

	ngrn, nsrn := 0, 0

	for _, a := range args {
		if a == nil {
			ngrn++
			continue
		}

		var dst HostLoc

		if a.Type() == ir.TypeU128 {
			assertf(nsrn < len(ra.cfg.ParamFPRs), "too many vector call arguments")

			dst = Fpr(ra.cfg.ParamFPRs[nsrn])
			nsrn++
		} else {
			assertf(ngrn < len(ra.cfg.ParamGPRs), "too many call arguments")

			dst = Gpr(ra.cfg.ParamGPRs[ngrn])
			ngrn++
		}

		assertf(ra.info(dst).IsCompletelyEmpty(), "call argument register %v is busy", dst)

		ra.LoadCopyInto(a.value, dst)
	}
}

// HostCall prepares the call, lets emit produce the call itself
// and binds result, if any, to the return register.
func (ra *RegAlloc) HostCall(result *ir.Inst, emit func(), args ...*Argument) {
	ra.PrepareForCall(args...)

	emit()

	if result != nil {
		ra.DefineAsRegister(result, Gpr(ra.cfg.ReturnGPR))
	}
}

// EmitVerboseDebuggingOutput has the host code print every resident value.
func (ra *RegAlloc) EmitVerboseDebuggingOutput() {
	var entries []DebugEntry

	ra.each(func(l HostLoc, info *HostLocInfo) {
		for _, v := range info.values {
			entries = append(entries, DebugEntry{Loc: l, Inst: v.ID(), Type: v.Type()})
		}
	})

	ra.asm.DebugDump(entries)
}

// Dump logs every non-empty location.
func (ra *RegAlloc) Dump(tr tlog.Span) {
	ra.each(func(l HostLoc, info *HostLocInfo) {
		if info.IsCompletelyEmpty() {
			return
		}

		tr.Printw("hostloc", "loc", l, "info", info)
	})
}
