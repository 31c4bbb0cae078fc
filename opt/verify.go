package opt

import (
	"tlog.app/go/errors"

	"github.com/slowlang/dynarec/ir"
	"github.com/slowlang/dynarec/set"
)

// Verify checks argument types against the opcode table, use counts
// against the actual argument slots and pseudo-operation parent links.
func Verify(b *ir.Block) error {
	var live set.Bits[ir.InstID]

	uses := make(map[*ir.Inst]int, b.Len())

	for _, i := range b.Insts() {
		for n := 0; n < i.NumArgs(); n++ {
			a := i.Arg(n)
			want := ir.GetArgTypeOf(i.Op(), n)

			if a.IsEmpty() {
				return errors.New("%v: argument %d is empty", i, n)
			}

			if !ir.AreTypesCompatible(a.Type(), want) {
				return errors.New("%v: argument %d: type mismatch: have %v, want %v", i, n, a.Type(), want)
			}

			if !a.IsOpaque() {
				continue
			}

			p := a.Inst()

			if !live.IsSet(p.ID()) {
				return errors.New("%v: argument %d refers to %%%d which is not defined before", i, n, p.ID())
			}

			uses[p]++
		}

		if ir.IsAPseudoOperation(i.Op()) {
			p := i.Arg(0)

			if !p.IsOpaque() || p.Inst().GetAssociatedPseudoOperation(i.Op()) != i {
				return errors.New("%v: not linked to its parent", i)
			}
		}

		live.Set(i.ID())
	}

	for _, i := range b.Insts() {
		if i.UseCount() != uses[i] {
			return errors.New("%%%d: use count %d, referenced %d times", i.ID(), i.UseCount(), uses[i])
		}
	}

	return nil
}
