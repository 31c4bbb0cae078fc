// Package opt holds the passes run on a Block before register allocation.
package opt

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/dynarec/ir"
)

// Run runs all the passes in order and verifies the result.
func Run(ctx context.Context, b *ir.Block) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "opt", "block", b.Location)
	defer tr.Finish("err", &err)

	if err = Verify(b); err != nil {
		return errors.Wrap(err, "verify input")
	}

	folded := ConstantFolding(ctx, b)
	ids := IdentityRemoval(ctx, b)
	dead := DeadCodeElimination(ctx, b)

	tr.Printw("passes done", "folded", folded, "identities", ids, "dead", dead, "insts", b.Len())

	if err = Verify(b); err != nil {
		return errors.Wrap(err, "verify output")
	}

	return nil
}
