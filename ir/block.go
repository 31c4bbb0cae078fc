package ir

import (
	"fmt"
	"strings"

	"tlog.app/go/tlog/tlwire"
)

type (
	GuestArch uint8

	// Location is the guest address a Block was translated from.
	Location struct {
		Arch GuestArch
		PC   uint64
	}

	// Block is a straight-line sequence of instructions ending with a Terminal.
	// It owns all its Insts.
	Block struct {
		Location Location
		Terminal Terminal

		code  []*Inst // program order
		arena []*Inst // by InstID, erased instructions included

		// parent -> pseudo-operations depending on it, in attach order
		pseudo map[InstID][]InstID
	}

	Terminal interface {
		fmt.Stringer
	}

	// ReturnToDispatch hands control back to the dispatcher.
	ReturnToDispatch struct{}

	// LinkBlock continues at another guest location.
	LinkBlock struct {
		Next uint64
	}
)

const (
	GuestA32 GuestArch = iota
	GuestA64
)

func (a GuestArch) String() string {
	switch a {
	case GuestA32:
		return "a32"
	case GuestA64:
		return "a64"
	default:
		return fmt.Sprintf("arch?%d", uint8(a))
	}
}

func (ReturnToDispatch) String() string { return "ReturnToDispatch" }
func (t LinkBlock) String() string { return fmt.Sprintf("LinkBlock %#x", t.Next) }

func NewBlock(loc Location) *Block {
	return &Block{
		Location: loc,
		Terminal: ReturnToDispatch{},
		pseudo:   make(map[InstID][]InstID),
	}
}

// Append adds a new instruction at the end of the block and returns its result.
func (b *Block) Append(op Opcode, args ...Value) Value {
	i := b.newInst(op, args)

	b.code = append(b.code, i)

	return InstValue(i)
}

// InsertBefore adds a new instruction right before pos.
func (b *Block) InsertBefore(pos *Inst, op Opcode, args ...Value) Value {
	at := b.index(pos)

	i := b.newInst(op, args)

	b.code = append(b.code, nil)
	copy(b.code[at+1:], b.code[at:])
	b.code[at] = i

	return InstValue(i)
}

// Erase removes an instruction nothing uses anymore.
func (b *Block) Erase(i *Inst) {
	assertf(!i.HasUses(), "erase %%%d: still has %d uses", i.id, i.useCount)

	at := b.index(i)

	i.Invalidate()

	b.code = append(b.code[:at], b.code[at+1:]...)
}

// Insts is the instruction list in program order. It must not be modified.
func (b *Block) Insts() []*Inst { return b.code }

func (b *Block) Len() int { return len(b.code) }

// Inst returns the instruction by its id, erased instructions included.
func (b *Block) Inst(id InstID) *Inst {
	assertf(id >= 0 && int(id) < len(b.arena), "inst id %d out of range", id)

	return b.arena[id]
}

func (b *Block) newInst(op Opcode, args []Value) *Inst {
	assertf(len(args) == GetNumArgsOf(op), "%v: want %d arguments, got %d", op, GetNumArgsOf(op), len(args))

	i := &Inst{
		op:  op,
		id:  InstID(len(b.arena)),
		blk: b,
	}

	b.arena = append(b.arena, i)

	for n, a := range args {
		if a.IsOpaque() {
			assertf(a.inst.blk == b, "%v: argument %d belongs to another block", op, n)
		}

		i.SetArg(n, a)
	}

	return i
}

func (b *Block) index(i *Inst) int {
	for at, x := range b.code {
		if x == i {
			return at
		}
	}

	panic(errorf("%%%d is not in the block", i.id))
}

func (b *Block) linkPseudo(parent, ps *Inst) {
	b.pseudo[parent.id] = append(b.pseudo[parent.id], ps.id)
}

func (b *Block) unlinkPseudo(parent, ps *Inst) {
	l := b.pseudo[parent.id]

	for k, id := range l {
		if id != ps.id {
			continue
		}

		l = append(l[:k], l[k+1:]...)

		if len(l) == 0 {
			delete(b.pseudo, parent.id)
		} else {
			b.pseudo[parent.id] = l
		}

		return
	}

	panic(errorf("%%%d is not a pseudo-operation of %%%d", ps.id, parent.id))
}

func (b *Block) pseudoOps(parent *Inst) []*Inst {
	ids := b.pseudo[parent.id]
	if len(ids) == 0 {
		return nil
	}

	r := make([]*Inst, len(ids))

	for k, id := range ids {
		r[k] = b.arena[id]
	}

	return r
}

// Dump prints the block in the text form accepted by Parse.
func (b *Block) Dump() string {
	var s strings.Builder

	fmt.Fprintf(&s, "block %v %#x\n", b.Location.Arch, b.Location.PC)

	for _, i := range b.code {
		s.WriteString(i.String())

		if i.HasUses() {
			fmt.Fprintf(&s, "\t; uses %d", i.useCount)
		}

		s.WriteByte('\n')
	}

	fmt.Fprintf(&s, "terminal %v\n", b.Terminal)

	return s.String()
}

func (l Location) String() string {
	return fmt.Sprintf("%v:%#x", l.Arch, l.PC)
}

func (l Location) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	return e.AppendString(b, l.String())
}
