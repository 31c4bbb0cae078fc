package regalloc

import (
	"fmt"

	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/dynarec/ir"
)

type (
	Kind uint8

	// HostLoc is a physical place a value may live in.
	HostLoc struct {
		Kind  Kind
		Index int
	}

	// HostLocInfo is the allocator state of one HostLoc.
	//
	// A location may hold several values known to be equal.
	// Use counters sum over all of them.
	HostLocInfo struct {
		values []*ir.Inst

		locked   int
		realized bool

		usesThisInst    int
		accumulatedUses int
		expectedUses    int
	}
)

const (
	KindGpr Kind = iota
	KindFpr
	KindFlags
	KindSpill
)

// SpillSlotSize is the size of one spill slot in bytes. A slot fits any register.
const SpillSlotSize = 16

func Gpr(i int) HostLoc { return HostLoc{Kind: KindGpr, Index: i} }
func Fpr(i int) HostLoc { return HostLoc{Kind: KindFpr, Index: i} }
func Spill(i int) HostLoc { return HostLoc{Kind: KindSpill, Index: i} }

var Flags = HostLoc{Kind: KindFlags}

func (k Kind) String() string {
	switch k {
	case KindGpr:
		return "gpr"
	case KindFpr:
		return "fpr"
	case KindFlags:
		return "flags"
	case KindSpill:
		return "spill"
	default:
		return fmt.Sprintf("kind?%d", uint8(k))
	}
}

func (l HostLoc) IsGpr() bool { return l.Kind == KindGpr }
func (l HostLoc) IsFpr() bool { return l.Kind == KindFpr }
func (l HostLoc) IsFlags() bool { return l.Kind == KindFlags }
func (l HostLoc) IsSpill() bool { return l.Kind == KindSpill }

// BitWidth is the number of bits the location holds.
func (l HostLoc) BitWidth() int {
	switch l.Kind {
	case KindFpr, KindSpill:
		return 128
	default:
		return 64
	}
}

func (l HostLoc) String() string {
	if l.Kind == KindFlags {
		return "flags"
	}

	return fmt.Sprintf("%v%d", l.Kind, l.Index)
}

func (l HostLoc) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, l.String())
}

func moveWidth(dst, src HostLoc) int {
	return min(dst.BitWidth(), src.BitWidth())
}

func (i *HostLocInfo) Values() []*ir.Inst { return i.values }
func (i *HostLocInfo) Locked() int { return i.locked }
func (i *HostLocInfo) Realized() bool { return i.realized }

func (i *HostLocInfo) Contains(inst *ir.Inst) bool {
	for _, v := range i.values {
		if v == inst {
			return true
		}
	}

	return false
}

func (i *HostLocInfo) IsCompletelyEmpty() bool {
	return len(i.values) == 0 && i.locked == 0 && !i.realized &&
		i.usesThisInst == 0 && i.accumulatedUses == 0 && i.expectedUses == 0
}

func (i *HostLocInfo) MaybeAllocatable() bool {
	return i.locked == 0 && !i.realized
}

// IsOneRemainingUse reports whether the current instruction is the last user of the location.
func (i *HostLocInfo) IsOneRemainingUse() bool {
	return i.accumulatedUses+1 == i.expectedUses && i.usesThisInst == 1
}

// RemainingUses counts uses not consumed yet, the current instruction's included.
func (i *HostLocInfo) RemainingUses() int {
	return i.expectedUses - i.accumulatedUses - i.usesThisInst
}

func (i *HostLocInfo) SetupScratchLocation() {
	assertf(i.IsCompletelyEmpty(), "scratch location is not empty")

	i.realized = true
}

func (i *HostLocInfo) SetupLocation(inst *ir.Inst) {
	assertf(i.IsCompletelyEmpty(), "location for %%%d is not empty", inst.ID())

	i.values = append(i.values[:0], inst)
	i.realized = true
	i.expectedUses = inst.UseCount()
}

func (i *HostLocInfo) addValue(inst *ir.Inst) {
	i.values = append(i.values, inst)
	i.expectedUses += inst.UseCount()
}

func (i *HostLocInfo) UpdateUses() {
	i.accumulatedUses += i.usesThisInst
	i.usesThisInst = 0

	assertf(i.accumulatedUses <= i.expectedUses, "more uses than expected: %d > %d", i.accumulatedUses, i.expectedUses)

	if i.accumulatedUses == i.expectedUses {
		i.values = i.values[:0]
		i.accumulatedUses = 0
		i.expectedUses = 0
	}
}

// exchange moves the state of x into i and leaves x empty.
func (i *HostLocInfo) exchange(x *HostLocInfo) {
	*i = *x
	*x = HostLocInfo{}
}

func (i *HostLocInfo) String() string {
	ids := make([]ir.InstID, len(i.values))
	for k, v := range i.values {
		ids[k] = v.ID()
	}

	return fmt.Sprintf("values %v locked %d realized %v uses %d/%d+%d",
		ids, i.locked, i.realized, i.accumulatedUses, i.expectedUses, i.usesThisInst)
}

func (i *HostLocInfo) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, i.String())
}
