// Package set has a dense bit set keyed by small integer ids.
package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int32 | ~int64
	}

	Bits[K Key] struct {
		b  []uint64
		b0 [2]uint64
	}
)

func (s *Bits[K]) Set(k K) {
	i, j := ij(k)

	s.grow(i)

	s.b[i] |= 1 << j
}

func (s *Bits[K]) Clear(k K) {
	i, j := ij(k)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

func (s *Bits[K]) IsSet(k K) bool {
	i, j := ij(k)

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

func (s *Bits[K]) Size() (r int) {
	for _, x := range s.b {
		r += bits.OnesCount64(x)
	}

	return r
}

// Range calls f for every set key in increasing order until f returns false.
func (s *Bits[K]) Range(f func(k K) bool) {
	for i, x := range s.b {
		for x != 0 {
			j := bits.TrailingZeros64(x)
			x &^= 1 << j

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s *Bits[K]) Reset() {
	clear(s.b)
	s.b = s.b[:0]
}

func (s *Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	return e.AppendBreak(b)
}

func (s *Bits[K]) grow(i int) {
	if s.b == nil {
		s.b = s.b0[:0]
	}

	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}
}

func ij[K Key](k K) (int, int) {
	if k < 0 {
		panic(k)
	}

	return int(k) / 64, int(k) % 64
}
