package ir

import "tlog.app/go/errors"

// assertf panics when an IR invariant is broken.
// Broken invariants are bugs in a producer of the IR, there is nothing to recover.
func assertf(ok bool, format string, args ...any) {
	if ok {
		return
	}

	panic(errors.New(format, args...))
}

func errorf(format string, args ...any) error {
	return errors.New(format, args...)
}
