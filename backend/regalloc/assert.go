package regalloc

import "tlog.app/go/errors"

// assertf panics on a broken allocation protocol.
// That is a bug in an emitter or in the IR producer.
func assertf(ok bool, format string, args ...any) {
	if ok {
		return
	}

	panic(errors.New(format, args...))
}
