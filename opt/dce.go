package opt

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/ir"
)

// DeadCodeElimination erases instructions whose results are unused and which have no side effects.
// Walking backwards frees whole chains in one pass.
func DeadCodeElimination(ctx context.Context, b *ir.Block) (removed int) {
	tr := tlog.SpanFromContext(ctx)

	insts := b.Insts()

	for k := len(insts) - 1; k >= 0; k-- {
		i := insts[k]

		if i.HasUses() || i.MayHaveSideEffects() {
			continue
		}

		if tr.If("opt_dce") {
			tr.Printw("dead", "inst", i.String())
		}

		b.Erase(i)
		removed++
	}

	if tr.If("opt") {
		tr.Printw("dead code elimination", "block", b.Location, "removed", removed)
	}

	return removed
}
