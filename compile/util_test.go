package compile

import "github.com/slowlang/dynarec/ir"

func locOf(pc uint64) ir.Location {
	return ir.Location{Arch: ir.GuestA32, PC: pc}
}
