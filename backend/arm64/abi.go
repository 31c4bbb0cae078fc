package arm64

import "github.com/slowlang/dynarec/backend/regalloc"

const (
	// stateReg holds the guest state pointer for the whole block.
	stateReg = 28

	// Intra-procedure-call scratch registers, never allocated.
	scratch0 = 16
	scratch1 = 17
)

func Config(seed uint64, spillSlots int) regalloc.Config {
	return regalloc.Config{
		GPROrder: concat(seq(19, 27), seq(0, 15)),
		FPROrder: concat(seq(8, 15), seq(16, 31), seq(0, 7)),
		CallerSaved: regalloc.CallerSaved{
			GPRs: seq(0, 18),
			FPRs: concat(seq(0, 7), seq(16, 31)),
		},
		ParamGPRs:  seq(0, 7),
		ParamFPRs:  seq(0, 7),
		ReturnGPR:  0,
		HasFlags:   true,
		SpillSlots: spillSlots,
		Seed:       seed,
	}
}

func seq(from, to int) []int {
	r := make([]int, 0, to-from+1)

	for i := from; i <= to; i++ {
		r = append(r, i)
	}

	return r
}

func concat(s ...[]int) (r []int) {
	for _, x := range s {
		r = append(r, x...)
	}

	return r
}
