package hdrhistogram

import (
	"math"
	"sync/atomic"
)

// counts is the storage policy behind a Histogram's counters (§4.2). It is
// a small capability set -- read, add, reset, clone -- rather than a class
// hierarchy: plain/atomic/narrow-width variants all satisfy it and the
// Histogram core never type-switches on which one it holds.
type counts interface {
	at(index int32) int64
	// add adds delta to the counter at index and reports whether the
	// word width backing the counter can still represent the result.
	// On overflow the counter is left at its prior value.
	add(index int32, delta int64) bool
	reset()
	length() int32
	snapshot() []int64
	clone() counts
}

// counts64 is plain, non-atomic int64 storage. The default policy.
type counts64 struct {
	v []int64
}

func newCounts64(n int32) *counts64 { return &counts64{v: make([]int64, n)} }

func (c *counts64) at(i int32) int64 { return c.v[i] }

func (c *counts64) add(i int32, delta int64) bool {
	c.v[i] += delta
	return true
}

func (c *counts64) reset() {
	for i := range c.v {
		c.v[i] = 0
	}
}

func (c *counts64) length() int32 { return int32(len(c.v)) }

func (c *counts64) snapshot() []int64 {
	out := make([]int64, len(c.v))
	copy(out, c.v)
	return out
}

func (c *counts64) clone() counts { return &counts64{v: c.snapshot()} }

// counts32 is plain int32 storage: half the memory of counts64, at
// the cost of overflowing on a counter exceeding math.MaxInt32.
type counts32 struct {
	v []int32
}

func newCounts32(n int32) *counts32 { return &counts32{v: make([]int32, n)} }

func (c *counts32) at(i int32) int64 { return int64(c.v[i]) }

func (c *counts32) add(i int32, delta int64) bool {
	next := int64(c.v[i]) + delta
	if next > math.MaxInt32 || next < math.MinInt32 {
		return false
	}
	c.v[i] = int32(next)
	return true
}

func (c *counts32) reset() {
	for i := range c.v {
		c.v[i] = 0
	}
}

func (c *counts32) length() int32 { return int32(len(c.v)) }

func (c *counts32) snapshot() []int64 {
	out := make([]int64, len(c.v))
	for i, x := range c.v {
		out[i] = int64(x)
	}
	return out
}

func (c *counts32) clone() counts {
	out := make([]int32, len(c.v))
	copy(out, c.v)
	return &counts32{v: out}
}

// counts16 is plain int16 storage, for dense, low-cardinality histograms.
type counts16 struct {
	v []int16
}

func newCounts16(n int32) *counts16 { return &counts16{v: make([]int16, n)} }

func (c *counts16) at(i int32) int64 { return int64(c.v[i]) }

func (c *counts16) add(i int32, delta int64) bool {
	next := int64(c.v[i]) + delta
	if next > math.MaxInt16 || next < math.MinInt16 {
		return false
	}
	c.v[i] = int16(next)
	return true
}

func (c *counts16) reset() {
	for i := range c.v {
		c.v[i] = 0
	}
}

func (c *counts16) length() int32 { return int32(len(c.v)) }

func (c *counts16) snapshot() []int64 {
	out := make([]int64, len(c.v))
	for i, x := range c.v {
		out[i] = int64(x)
	}
	return out
}

func (c *counts16) clone() counts {
	out := make([]int16, len(c.v))
	copy(out, c.v)
	return &counts16{v: out}
}

// atomicCounts64 is lock-free int64 storage: every counter supports a
// sequentially-consistent increment-and-fetch, so concurrent writers never
// corrupt a slot, though the array as a whole has no cross-counter
// consistency guarantee (§5).
type atomicCounts64 struct {
	v []int64
}

func newAtomicCounts64(n int32) *atomicCounts64 { return &atomicCounts64{v: make([]int64, n)} }

func (c *atomicCounts64) at(i int32) int64 { return atomic.LoadInt64(&c.v[i]) }

func (c *atomicCounts64) add(i int32, delta int64) bool {
	atomic.AddInt64(&c.v[i], delta)
	return true
}

func (c *atomicCounts64) reset() {
	for i := range c.v {
		atomic.StoreInt64(&c.v[i], 0)
	}
}

func (c *atomicCounts64) length() int32 { return int32(len(c.v)) }

func (c *atomicCounts64) snapshot() []int64 {
	out := make([]int64, len(c.v))
	for i := range c.v {
		out[i] = atomic.LoadInt64(&c.v[i])
	}
	return out
}

func (c *atomicCounts64) clone() counts {
	return &atomicCounts64{v: c.snapshot()}
}
