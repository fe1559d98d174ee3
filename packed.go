package hdrhistogram

import "github.com/grafana/hdrhistogram/internal/packedarray"

// packedCounts adapts internal/packedarray.Array to the counts interface
// for a single-writer (or externally synchronized) histogram. It is
// always constructed with virtual length == countsLen, so the packed
// array's resize signal is never expected to fire here; the histogram's
// own index bound checks happen before add is ever called.
type packedCounts struct {
	a *packedarray.Array
}

func newPackedCounts(n int32) *packedCounts {
	return &packedCounts{a: packedarray.New(int(n))}
}

func (p *packedCounts) at(i int32) int64 { return p.a.Get(int(i)) }

func (p *packedCounts) add(i int32, delta int64) bool {
	if err := p.a.Add(int(i), delta); err != nil {
		p.a.Resize(int(i) + 1)
		_ = p.a.Add(int(i), delta)
	}
	return true
}

func (p *packedCounts) reset() { p.a.Clear() }

func (p *packedCounts) length() int32 { return int32(p.a.Length()) }

func (p *packedCounts) snapshot() []int64 { return p.a.Snapshot() }

func (p *packedCounts) clone() counts {
	out := newPackedCounts(int32(p.a.Length()))
	for i, v := range p.a.Snapshot() {
		if v != 0 {
			_ = out.a.Set(i, v)
		}
	}
	return out
}

// concurrentPackedCounts adapts the lock-free packedarray.ConcurrentArray,
// pairing with the "Concurrent packed" variant described in §4.9: counter
// updates CAS the containing physical word, never the whole array.
type concurrentPackedCounts struct {
	a *packedarray.ConcurrentArray
}

func newConcurrentPackedCounts(n int32) *concurrentPackedCounts {
	return &concurrentPackedCounts{a: packedarray.NewConcurrent(int(n))}
}

func (p *concurrentPackedCounts) at(i int32) int64 { return p.a.Get(int(i)) }

func (p *concurrentPackedCounts) add(i int32, delta int64) bool {
	if err := p.a.Add(int(i), delta); err != nil {
		p.a.Resize(int(i) + 1)
		_ = p.a.Add(int(i), delta)
	}
	return true
}

func (p *concurrentPackedCounts) reset() {
	fresh := packedarray.NewConcurrent(p.a.Length())
	p.a = fresh
}

func (p *concurrentPackedCounts) length() int32 { return int32(p.a.Length()) }

func (p *concurrentPackedCounts) snapshot() []int64 { return p.a.Snapshot() }

func (p *concurrentPackedCounts) clone() counts {
	out := newConcurrentPackedCounts(int32(p.a.Length()))
	for i, v := range p.a.Snapshot() {
		if v != 0 {
			_ = out.a.Add(i, v)
		}
	}
	return out
}
