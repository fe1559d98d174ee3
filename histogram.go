package hdrhistogram

import (
	"math"
	"math/bits"
	"sync/atomic"
)

const (
	// MinSignificantFigures is the lowest significant-figure count this
	// module accepts (§6: SVD range).
	MinSignificantFigures = 0
	// MaxSignificantFigures is the highest significant-figure count this
	// module accepts. The spec permits ports to extend this to 6; this
	// implementation enforces the canonical 0..5 range.
	MaxSignificantFigures = 5

	// maxHighestTrackableValue bounds highestTrackableValue to leave
	// headroom for sub_bucket_mask (§6).
	maxHighestTrackableValue = math.MaxInt64 / 2
)

// Histogram is a lossy, fixed-size representation of the distribution of
// recorded non-negative int64 values, accurate to a bounded relative
// error over its configured dynamic range (§3).
type Histogram struct {
	lowestDiscernibleValue int64
	highestTrackableValue  int64
	significantFigures     int64

	unitMagnitude               int64
	subBucketHalfCountMagnitude int32
	subBucketHalfCount          int32
	subBucketMask               int64
	subBucketCount              int32
	bucketCount                 int32
	countsLen                   int32

	counts counts

	totalCount             atomic.Int64
	minValue               atomic.Int64
	maxValue               atomic.Int64
	normalizingIndexOffset int32

	// integerToDoubleConversionRatio has no effect on this int64-valued
	// histogram; it is carried solely so the wire codec (§4.10) can
	// round-trip the field for interchange with ports that do use it.
	integerToDoubleConversionRatio float64

	overflowed atomic.Bool
}

// Option configures the counts storage policy a Histogram uses (§4.2).
// The zero value of a config selects plain int64 storage.
type Option func(*config)

type config struct {
	wordWidth                      int // 8, 4, or 2 bytes; only meaningful when !atomicCounts && !packed
	atomicCounts                   bool
	packed                         bool
	normalizingIndexOffset         int32
	integerToDoubleConversionRatio float64
}

// WithCounts64 selects plain, non-atomic int64 counters (the default).
func WithCounts64() Option { return func(c *config) { c.wordWidth = 8 } }

// WithCounts32 selects plain int32 counters, trading capacity (a counter
// can overflow at math.MaxInt32; total_count is always kept as an int64)
// for half the memory of WithCounts64.
func WithCounts32() Option { return func(c *config) { c.wordWidth = 4 } }

// WithCounts16 selects plain int16 counters, for dense low-cardinality
// histograms where overflow is acceptable or impossible by construction.
func WithCounts16() Option { return func(c *config) { c.wordWidth = 2 } }

// WithAtomicCounts selects lock-free int64 counters, safe for concurrent
// Record/RecordValues calls without external synchronization, at the cost
// of no cross-counter consistency guarantee for TotalCount (§5).
func WithAtomicCounts() Option { return func(c *config) { c.atomicCounts = true } }

// WithPackedCounts selects the sparse packed-array storage policy (§4.9),
// trading lookup/update speed for memory when the histogram is expected
// to hold mostly-zero counters.
func WithPackedCounts() Option { return func(c *config) { c.packed = true } }

// WithNormalizingIndexOffset sets the normalizing index offset the
// histogram reports and the wire codec (§4.10) carries. The wire decoder
// uses this to restore the offset an encoded histogram was built with.
// Value-to-slot mapping does not apply the offset.
func WithNormalizingIndexOffset(offset int32) Option {
	return func(c *config) { c.normalizingIndexOffset = offset }
}

// WithIntegerToDoubleConversionRatio sets the conversion ratio carried
// through the wire codec (§4.10). It has no effect on this int64-valued
// histogram's behavior.
func WithIntegerToDoubleConversionRatio(ratio float64) Option {
	return func(c *config) { c.integerToDoubleConversionRatio = ratio }
}

// New returns a Histogram capable of tracking values in
// [lowestDiscernibleValue, highestTrackableValue] with significantFigures
// decimal digits of resolution (§3). lowestDiscernibleValue must be >= 1,
// highestTrackableValue must be >= 2*lowestDiscernibleValue, and
// significantFigures must be in [0,5].
func New(lowestDiscernibleValue, highestTrackableValue int64, significantFigures int, opts ...Option) (*Histogram, error) {
	if lowestDiscernibleValue < 1 {
		return nil, newError(OutOfRange, "lowestDiscernibleValue must be >= 1")
	}
	if significantFigures < MinSignificantFigures || significantFigures > MaxSignificantFigures {
		return nil, newError(OutOfRange, "significantFigures must be in [0,5]")
	}
	if highestTrackableValue < 2*lowestDiscernibleValue {
		return nil, newError(OutOfRange, "highestTrackableValue must be >= 2*lowestDiscernibleValue")
	}
	if highestTrackableValue > maxHighestTrackableValue {
		return nil, newError(OutOfRange, "highestTrackableValue exceeds the maximum trackable value")
	}

	cfg := config{wordWidth: 8, integerToDoubleConversionRatio: 1}
	for _, o := range opts {
		o(&cfg)
	}

	h := &Histogram{
		lowestDiscernibleValue:         lowestDiscernibleValue,
		highestTrackableValue:          highestTrackableValue,
		significantFigures:             int64(significantFigures),
		normalizingIndexOffset:         cfg.normalizingIndexOffset,
		integerToDoubleConversionRatio: cfg.integerToDoubleConversionRatio,
	}
	h.computeDerivedConstants()

	switch {
	case cfg.packed && cfg.atomicCounts:
		h.counts = newConcurrentPackedCounts(h.countsLen)
	case cfg.packed:
		h.counts = newPackedCounts(h.countsLen)
	case cfg.atomicCounts:
		h.counts = newAtomicCounts64(h.countsLen)
	default:
		switch cfg.wordWidth {
		case 4:
			h.counts = newCounts32(h.countsLen)
		case 2:
			h.counts = newCounts16(h.countsLen)
		default:
			h.counts = newCounts64(h.countsLen)
		}
	}

	h.minValue.Store(math.MaxInt64)
	h.maxValue.Store(0)
	return h, nil
}

// computeDerivedConstants fills in the invariants derived from
// construction parameters (§3's "Derived constants").
func (h *Histogram) computeDerivedConstants() {
	h.unitMagnitude = int64(bits.Len64(uint64(h.lowestDiscernibleValue)) - 1)

	largestValueWithSingleUnitResolution := 2 * pow10(h.significantFigures)

	// The log2-of-a-power-of-ten computation is famously sensitive to
	// float64 rounding right at integer boundaries (e.g. log2(2) must
	// come out to exactly 1.0); narrowing through float32 first, as the
	// canonical HDR Histogram ports do, keeps the ceiling stable.
	a := float32(math.Log(float64(largestValueWithSingleUnitResolution)))
	b := float32(math.Log(2))
	subBucketCountMagnitude := int32(math.Ceil(float64(a / b)))

	h.subBucketHalfCountMagnitude = subBucketCountMagnitude
	if h.subBucketHalfCountMagnitude < 1 {
		h.subBucketHalfCountMagnitude = 1
	}
	h.subBucketHalfCountMagnitude--

	h.subBucketCount = int32(1) << uint(h.subBucketHalfCountMagnitude+1)
	h.subBucketHalfCount = h.subBucketCount / 2
	h.subBucketMask = int64(h.subBucketCount-1) << uint(h.unitMagnitude)

	smallestUntrackableValue := int64(h.subBucketCount) << uint(h.unitMagnitude)
	bucketsNeeded := int32(1)
	for smallestUntrackableValue <= h.highestTrackableValue {
		if smallestUntrackableValue > math.MaxInt64/2 {
			bucketsNeeded++
			break
		}
		smallestUntrackableValue <<= 1
		bucketsNeeded++
	}
	h.bucketCount = bucketsNeeded
	h.countsLen = (h.bucketCount + 1) * h.subBucketHalfCount
}

func pow10(exp int64) int64 {
	n := int64(1)
	for ; exp > 0; exp-- {
		n *= 10
	}
	return n
}

// --- bucket math (§4.1) ---

func (h *Histogram) bucketIndex(v int64) int32 {
	pow2Ceiling := 64 - bits.LeadingZeros64(uint64(v|h.subBucketMask))
	idx := int32(pow2Ceiling) - h.subBucketHalfCountMagnitude - 1 - int32(h.unitMagnitude)
	if idx < 0 {
		return 0
	}
	return idx
}

func (h *Histogram) subBucketIndex(v int64, bucketIdx int32) int32 {
	return int32(v >> uint(int64(bucketIdx)+h.unitMagnitude))
}

func (h *Histogram) countsIndex(bucketIdx, subBucketIdx int32) int32 {
	bucketBaseIdx := (bucketIdx + 1) << uint(h.subBucketHalfCountMagnitude)
	return bucketBaseIdx + (subBucketIdx - h.subBucketHalfCount)
}

// countsIndexFor returns the counts-array slot v maps to, or -1 if v is
// outside this histogram's trackable range.
func (h *Histogram) countsIndexFor(v int64) int32 {
	if v < 0 || v > h.highestTrackableValue {
		return -1
	}
	bucketIdx := h.bucketIndex(v)
	subBucketIdx := h.subBucketIndex(v, bucketIdx)
	if subBucketIdx >= h.subBucketCount {
		return -1
	}
	idx := h.countsIndex(bucketIdx, subBucketIdx)
	if idx < 0 || idx >= h.countsLen {
		return -1
	}
	return idx
}

func (h *Histogram) valueFromIndex(bucketIdx, subBucketIdx int32) int64 {
	return int64(subBucketIdx) << uint(int64(bucketIdx)+h.unitMagnitude)
}

// SizeOfEquivalentValueRange returns the width of v's equivalence class
// (§4.1), always a power of two (I5).
func (h *Histogram) SizeOfEquivalentValueRange(v int64) int64 {
	bucketIdx := h.bucketIndex(v)
	subBucketIdx := h.subBucketIndex(v, bucketIdx)
	adjustedBucket := bucketIdx
	if subBucketIdx >= h.subBucketCount {
		adjustedBucket++
	}
	return int64(1) << uint(h.unitMagnitude+int64(adjustedBucket))
}

// LowestEquivalentValue returns the smallest value that maps to the same
// counts-array slot as v.
func (h *Histogram) LowestEquivalentValue(v int64) int64 {
	bucketIdx := h.bucketIndex(v)
	subBucketIdx := h.subBucketIndex(v, bucketIdx)
	return h.valueFromIndex(bucketIdx, subBucketIdx)
}

// NextNonEquivalentValue returns the smallest value strictly greater than
// v's whole equivalence class.
func (h *Histogram) NextNonEquivalentValue(v int64) int64 {
	return h.LowestEquivalentValue(v) + h.SizeOfEquivalentValueRange(v)
}

// HighestEquivalentValue returns the largest value that maps to the same
// counts-array slot as v (I4).
func (h *Histogram) HighestEquivalentValue(v int64) int64 {
	return h.NextNonEquivalentValue(v) - 1
}

// MedianEquivalentValue returns the midpoint of v's equivalence class.
func (h *Histogram) MedianEquivalentValue(v int64) int64 {
	return h.LowestEquivalentValue(v) + (h.SizeOfEquivalentValueRange(v) >> 1)
}

// ValuesAreEquivalent reports whether a and b map to the same counts-array
// slot (I3).
func (h *Histogram) ValuesAreEquivalent(a, b int64) bool {
	return h.LowestEquivalentValue(a) == h.LowestEquivalentValue(b)
}

// --- accessors ---

func (h *Histogram) LowestDiscernibleValue() int64 { return h.lowestDiscernibleValue }
func (h *Histogram) HighestTrackableValue() int64  { return h.highestTrackableValue }
func (h *Histogram) SignificantFigures() int64     { return h.significantFigures }
func (h *Histogram) UnitMagnitude() int64          { return h.unitMagnitude }
func (h *Histogram) SubBucketCount() int32         { return h.subBucketCount }
func (h *Histogram) BucketCount() int32            { return h.bucketCount }
func (h *Histogram) CountsLen() int32              { return h.countsLen }
func (h *Histogram) NormalizingIndexOffset() int32 { return h.normalizingIndexOffset }
func (h *Histogram) IntegerToDoubleConversionRatio() float64 {
	return h.integerToDoubleConversionRatio
}

// CountAtIndex returns the raw counter at a counts-array slot, for callers
// walking the array directly (the wire codec, §4.10).
func (h *Histogram) CountAtIndex(index int32) int64 { return h.counts.at(index) }

// CountsSnapshot returns a copy of every counts-array slot in order.
func (h *Histogram) CountsSnapshot() []int64 { return h.counts.snapshot() }

// SetCountAtIndex overwrites the counter at a counts-array slot with an
// absolute value, bypassing total_count tracking. Callers must follow up
// with ReestablishTotalCount and ReestablishMinMax once every slot has been
// populated (the wire decoder's step 5, §4.10).
func (h *Histogram) SetCountAtIndex(index int32, value int64) error {
	delta := value - h.counts.at(index)
	if delta == 0 {
		return nil
	}
	if !h.counts.add(index, delta) {
		return newError(OverflowedSmallWidth, "decoded counter would overflow its word width")
	}
	return nil
}

// ReestablishMinMax recomputes min_value and max_value from the populated
// counts, for use after a bulk load that bypassed Record (the wire
// decoder's step 5, §4.10).
func (h *Histogram) ReestablishMinMax() {
	h.minValue.Store(math.MaxInt64)
	h.maxValue.Store(0)
	it := h.RecordedValues()
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		casMin(&h.minValue, v.ValueIteratedFrom)
		casMax(&h.maxValue, v.ValueIteratedTo)
	}
}

// TotalCount returns the sum of all counters (I2).
func (h *Histogram) TotalCount() int64 { return h.totalCount.Load() }

// Overflowed reports whether a narrow counts array has rejected an update
// that would overflow a counter since the last Reset/ReestablishTotalCount
// (§4.5 edge case).
func (h *Histogram) Overflowed() bool { return h.overflowed.Load() }

// Min returns the lowest-equivalent value of the smallest value recorded,
// or math.MaxInt64 if nothing has been recorded.
func (h *Histogram) Min() int64 {
	if h.TotalCount() == 0 {
		return math.MaxInt64
	}
	return h.LowestEquivalentValue(h.minValue.Load())
}

// Max returns the highest-equivalent value of the largest value recorded,
// or 0 if nothing has been recorded.
func (h *Histogram) Max() int64 {
	if h.TotalCount() == 0 {
		return 0
	}
	return h.HighestEquivalentValue(h.maxValue.Load())
}

// --- recording (§4.3) ---

// Record records a single occurrence of v.
func (h *Histogram) Record(v int64) error {
	return h.RecordValues(v, 1)
}

// RecordValues records count occurrences of v.
func (h *Histogram) RecordValues(v, count int64) error {
	if v < 0 {
		return newError(OutOfRange, "value must be non-negative")
	}
	idx := h.countsIndexFor(v)
	if idx < 0 {
		return newError(OutOfRange, "value exceeds highestTrackableValue")
	}
	if !h.counts.add(idx, count) {
		h.overflowed.Store(true)
		return newError(OverflowedSmallWidth, "counter would overflow its word width")
	}
	h.totalCount.Add(count)
	h.updateMinMax(v)
	return nil
}

func (h *Histogram) updateMinMax(v int64) {
	casMin(&h.minValue, v)
	casMax(&h.maxValue, v)
}

func casMin(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v >= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}

func casMax(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v <= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Reset zeroes all counts and running aggregates. The counts array is
// zeroed in place, except under the concurrent packed storage policy,
// which replaces it with a freshly allocated one.
func (h *Histogram) Reset() {
	h.counts.reset()
	h.totalCount.Store(0)
	h.minValue.Store(math.MaxInt64)
	h.maxValue.Store(0)
	h.overflowed.Store(false)
}

func (h *Histogram) isCompatibleWith(other *Histogram) bool {
	return h.subBucketCount == other.subBucketCount &&
		h.bucketCount == other.bucketCount &&
		h.unitMagnitude == other.unitMagnitude
}

// Add merges other's recorded values into the receiver by replaying each
// of other's non-zero counters as a recording of its median-equivalent
// value, so histograms with compatible but distinct parameters can be
// merged (I6). It fails without modifying the receiver's counts beyond
// what was already merged if a value in other exceeds the receiver's
// trackable range.
func (h *Histogram) Add(other *Histogram) error {
	it := other.RecordedValues()
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		if err := h.RecordValues(other.MedianEquivalentValue(v.ValueIteratedTo), v.CountAddedInThisStep); err != nil {
			return wrapError(IncompatibleHistograms, "value from source histogram exceeds destination range", err)
		}
	}
	return nil
}

// AddWhileCorrectingForCoordinatedOmission iterates other's recorded
// values and performs coordinated-omission-corrected recording of each
// onto the receiver (§4.3).
func (h *Histogram) AddWhileCorrectingForCoordinatedOmission(other *Histogram, expectedInterval int64) error {
	it := other.RecordedValues()
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		value := other.MedianEquivalentValue(v.ValueIteratedTo)
		for i := int64(0); i < v.CountAddedInThisStep; i++ {
			if err := h.RecordCorrectedValue(value, expectedInterval); err != nil {
				return wrapError(IncompatibleHistograms, "value from source histogram exceeds destination range", err)
			}
		}
	}
	return nil
}

// Subtract removes other's recorded values from the receiver. It fails,
// leaving the receiver unmodified for the offending value, if doing so
// would drive any counter negative.
func (h *Histogram) Subtract(other *Histogram) error {
	it := other.RecordedValues()
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		value := other.MedianEquivalentValue(v.ValueIteratedTo)
		idx := h.countsIndexFor(value)
		if idx < 0 {
			return newError(IncompatibleHistograms, "value from source histogram exceeds destination range")
		}
		if h.counts.at(idx) < v.CountAddedInThisStep {
			return newError(NegativeCountAfterSubtract, "subtract would drive a counter below zero")
		}
		h.counts.add(idx, -v.CountAddedInThisStep)
		h.totalCount.Add(-v.CountAddedInThisStep)
	}
	return nil
}

// Copy returns a deep duplicate of the receiver.
func (h *Histogram) Copy() *Histogram {
	out := &Histogram{
		lowestDiscernibleValue:      h.lowestDiscernibleValue,
		highestTrackableValue:       h.highestTrackableValue,
		significantFigures:          h.significantFigures,
		unitMagnitude:               h.unitMagnitude,
		subBucketHalfCountMagnitude: h.subBucketHalfCountMagnitude,
		subBucketHalfCount:          h.subBucketHalfCount,
		subBucketMask:               h.subBucketMask,
		subBucketCount:              h.subBucketCount,
		bucketCount:                 h.bucketCount,
		countsLen:                   h.countsLen,
		counts:                      h.counts.clone(),
		normalizingIndexOffset:      h.normalizingIndexOffset,
	}
	out.integerToDoubleConversionRatio = h.integerToDoubleConversionRatio
	out.totalCount.Store(h.totalCount.Load())
	out.minValue.Store(h.minValue.Load())
	out.maxValue.Store(h.maxValue.Load())
	out.overflowed.Store(h.overflowed.Load())
	return out
}

// CopyInto deep-copies the receiver's state into target, which must share
// the receiver's sub_bucket_count, bucket_count, and unit_magnitude.
func (h *Histogram) CopyInto(target *Histogram) error {
	if !h.isCompatibleWith(target) {
		return newError(IncompatibleHistograms, "CopyInto requires matching bucket parameters")
	}
	target.Reset()
	snapshot := h.counts.snapshot()
	for i, v := range snapshot {
		if v != 0 {
			target.counts.add(int32(i), v)
		}
	}
	target.totalCount.Store(h.totalCount.Load())
	target.minValue.Store(h.minValue.Load())
	target.maxValue.Store(h.maxValue.Load())
	target.overflowed.Store(h.overflowed.Load())
	return nil
}

// ReestablishTotalCount recomputes total_count from the counts array,
// recovering from a transient total_count overflow when the counters
// themselves have not overflowed (§4.5).
func (h *Histogram) ReestablishTotalCount() {
	var total int64
	for _, v := range h.counts.snapshot() {
		total += v
	}
	h.totalCount.Store(total)
	h.overflowed.Store(false)
}

// --- queries (§4.5) ---

// ValueAtPercentile returns the highest equivalent value of the first
// counts-array slot at which the running count reaches the given
// percentile (clamped to [0,100]) of the total count. It returns 0 for an
// empty or overflowed histogram.
func (h *Histogram) ValueAtPercentile(percentile float64) int64 {
	if h.Overflowed() {
		return 0
	}
	total := h.TotalCount()
	if total == 0 {
		return 0
	}
	if percentile > 100 {
		percentile = 100
	}
	if percentile < 0 {
		percentile = 0
	}
	target := int64(math.Ceil((percentile / 100.0) * float64(total)))
	if target < 1 {
		target = 1
	}

	var runningTotal int64
	for bucketIdx := int32(0); bucketIdx < h.bucketCount; bucketIdx++ {
		subStart := int32(0)
		if bucketIdx > 0 {
			subStart = h.subBucketHalfCount
		}
		for subBucketIdx := subStart; subBucketIdx < h.subBucketCount; subBucketIdx++ {
			idx := h.countsIndex(bucketIdx, subBucketIdx)
			if idx < 0 || idx >= h.countsLen {
				continue
			}
			runningTotal += h.counts.at(idx)
			if runningTotal >= target {
				value := h.valueFromIndex(bucketIdx, subBucketIdx)
				return h.HighestEquivalentValue(value)
			}
		}
	}
	return h.HighestEquivalentValue(h.maxValue.Load())
}

// Mean returns the approximate arithmetic mean of the recorded values, or
// 0 if the histogram is empty.
func (h *Histogram) Mean() float64 {
	total := h.TotalCount()
	if total == 0 || h.Overflowed() {
		return 0
	}
	it := h.RecordedValues()
	var sum float64
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		sum += float64(v.CountAddedInThisStep) * float64(h.MedianEquivalentValue(v.ValueIteratedTo))
	}
	return sum / float64(total)
}

// StdDev returns the approximate standard deviation of the recorded
// values, or 0 if the histogram is empty.
func (h *Histogram) StdDev() float64 {
	total := h.TotalCount()
	if total == 0 || h.Overflowed() {
		return 0
	}
	mean := h.Mean()
	it := h.RecordedValues()
	var sumSq float64
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		dev := float64(h.MedianEquivalentValue(v.ValueIteratedTo)) - mean
		sumSq += dev * dev * float64(v.CountAddedInThisStep)
	}
	return math.Sqrt(sumSq / float64(total))
}
