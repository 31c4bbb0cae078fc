package opt

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/ir"
)

// IdentityRemoval points every argument at the value its Identity chain
// forwards to and erases the Identity instructions left without uses.
// Pseudo-operations keep naming their parent.
func IdentityRemoval(ctx context.Context, b *ir.Block) (removed int) {
	for _, i := range b.Insts() {
		if ir.IsAPseudoOperation(i.Op()) {
			continue
		}

		for n := 0; n < i.NumArgs(); n++ {
			if a := i.Arg(n); a.IsIdentity() {
				i.SetArg(n, a.Resolve())
			}
		}
	}

	insts := b.Insts()

	for k := len(insts) - 1; k >= 0; k-- {
		i := insts[k]

		if i.Op() != ir.OpIdentity || i.HasUses() {
			continue
		}

		b.Erase(i)
		removed++
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("opt") {
		tr.Printw("identity removal", "block", b.Location, "removed", removed)
	}

	return removed
}
