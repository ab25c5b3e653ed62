package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWMARing(t *testing.T) {
	t.Run("empty averages to zero", func(t *testing.T) {
		var r WMARing
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, 0.0, r.Average())
	})

	t.Run("single value", func(t *testing.T) {
		var r WMARing
		r.Push(42)
		assert.Equal(t, 42.0, r.Average())
	})

	t.Run("two values weighted toward newest", func(t *testing.T) {
		var r WMARing
		r.Push(3)
		r.Push(9)
		// (3 + 2*9) / 3
		assert.InDelta(t, 7.0, r.Average(), 1e-9)
	})

	t.Run("three values", func(t *testing.T) {
		var r WMARing
		r.Push(6)
		r.Push(12)
		r.Push(24)
		// (6 + 2*12 + 3*24) / 6
		assert.InDelta(t, 17.0, r.Average(), 1e-9)
	})

	t.Run("fourth push evicts the oldest", func(t *testing.T) {
		var r WMARing
		r.Push(100)
		r.Push(6)
		r.Push(12)
		r.Push(24)
		assert.Equal(t, 3, r.Len())
		assert.InDelta(t, 17.0, r.Average(), 1e-9)
	})

	t.Run("reset clears", func(t *testing.T) {
		var r WMARing
		r.Push(1)
		r.Push(2)
		r.Reset()
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, 0.0, r.Average())
		r.Push(5)
		assert.Equal(t, 5.0, r.Average())
	})
}
