package hdrhistogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounts64AddAndSnapshot(t *testing.T) {
	c := newCounts64(4)
	assert.True(t, c.add(1, 5))
	assert.True(t, c.add(1, 3))
	assert.Equal(t, int64(8), c.at(1))
	assert.Equal(t, []int64{0, 8, 0, 0}, c.snapshot())

	clone := c.clone()
	assert.True(t, clone.add(1, 1))
	assert.Equal(t, int64(8), c.at(1), "clone must not alias the original")
	assert.Equal(t, int64(9), clone.at(1))
}

func TestCounts32OverflowDetected(t *testing.T) {
	c := newCounts32(1)
	assert.True(t, c.add(0, 2147483647))
	assert.False(t, c.add(0, 1))
	assert.Equal(t, int64(2147483647), c.at(0))
}

func TestCounts16OverflowDetected(t *testing.T) {
	c := newCounts16(1)
	assert.True(t, c.add(0, 32767))
	assert.False(t, c.add(0, 1))
	assert.Equal(t, int64(32767), c.at(0))
}

func TestAtomicCounts64ConcurrentAdd(t *testing.T) {
	c := newAtomicCounts64(1)
	const goroutines = 32
	const perGoroutine = 1000
	done := make(chan struct{}, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < perGoroutine; j++ {
				c.add(0, 1)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < goroutines; i++ {
		<-done
	}
	assert.Equal(t, int64(goroutines*perGoroutine), c.at(0))
}

func TestCountsResetZeroesAllSlots(t *testing.T) {
	for _, c := range []counts{newCounts64(4), newCounts32(4), newCounts16(4), newAtomicCounts64(4)} {
		c.add(0, 1)
		c.add(2, 5)
		c.reset()
		for _, v := range c.snapshot() {
			assert.Equal(t, int64(0), v)
		}
	}
}
