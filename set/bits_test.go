package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	var s Bits[int]

	assert.False(t, s.IsSet(5))

	s.Set(5)
	s.Set(64)
	s.Set(200)
	s.Set(5)

	assert.True(t, s.IsSet(5))
	assert.True(t, s.IsSet(200))
	assert.False(t, s.IsSet(6))
	assert.Equal(t, 3, s.Size())

	var keys []int
	s.Range(func(k int) bool {
		keys = append(keys, k)
		return true
	})

	assert.Equal(t, []int{5, 64, 200}, keys)

	s.Clear(64)
	s.Clear(1000)
	assert.False(t, s.IsSet(64))
	assert.Equal(t, 2, s.Size())

	s.Reset()
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.IsSet(5))
}
