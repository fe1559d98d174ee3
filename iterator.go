package hdrhistogram

// IterationValue is the per-step report every iterator variant emits
// (§4.5). Fields mirror the spec's HistogramIterationValue verbatim.
type IterationValue struct {
	ValueIteratedTo           int64
	ValueIteratedFrom         int64
	CountAtValueIteratedTo    int64
	CountAddedInThisStep      int64
	TotalCountToThisValue     int64
	TotalValueToThisValue     int64
	Percentile                float64
	PercentileLevelIteratedTo float64
}

// baseIterator walks the counts array one sub-bucket slot at a time,
// accumulating the running totals every higher-level iterator needs. It
// holds no shared/global state -- each call site owns its own instance
// (§9: "no shared iterator singletons").
type baseIterator struct {
	h            *Histogram
	bucketIdx    int32
	subBucketIdx int32

	countAtIdx             int64
	valueFromIdx           int64
	highestEquivalentValue int64

	totalCountToIdx int64
	totalValueToIdx int64
}

func newBaseIterator(h *Histogram) baseIterator {
	return baseIterator{h: h, subBucketIdx: -1}
}

// advance moves to the next sub-bucket slot, whether or not it holds a
// non-zero count, and reports whether one exists.
func (it *baseIterator) advance() bool {
	it.subBucketIdx++
	if it.subBucketIdx >= it.h.subBucketCount {
		it.subBucketIdx = it.h.subBucketHalfCount
		it.bucketIdx++
	}
	if it.bucketIdx >= it.h.bucketCount {
		return false
	}
	idx := it.h.countsIndex(it.bucketIdx, it.subBucketIdx)
	count := it.h.counts.at(idx)
	it.countAtIdx = count
	it.totalCountToIdx += count
	it.valueFromIdx = it.h.valueFromIndex(it.bucketIdx, it.subBucketIdx)
	it.totalValueToIdx += count * it.h.MedianEquivalentValue(it.valueFromIdx)
	it.highestEquivalentValue = it.h.HighestEquivalentValue(it.valueFromIdx)
	return true
}

func (it *baseIterator) percentile() float64 {
	total := it.h.TotalCount()
	if total == 0 {
		return 0
	}
	return 100.0 * float64(it.totalCountToIdx) / float64(total)
}

// AllValuesIterator visits every sub-bucket slot, populated or not.
type AllValuesIterator struct {
	base baseIterator
}

// AllValues returns an iterator over every equivalent-value slot in the
// histogram, in ascending order.
func (h *Histogram) AllValues() *AllValuesIterator {
	return &AllValuesIterator{base: newBaseIterator(h)}
}

// Next advances the iterator. It returns false once every slot has been
// visited.
func (it *AllValuesIterator) Next() (IterationValue, bool) {
	if !it.base.advance() {
		return IterationValue{}, false
	}
	pct := it.base.percentile()
	return IterationValue{
		ValueIteratedTo:           it.base.highestEquivalentValue,
		ValueIteratedFrom:         it.base.h.LowestEquivalentValue(it.base.valueFromIdx),
		CountAtValueIteratedTo:    it.base.countAtIdx,
		CountAddedInThisStep:      it.base.countAtIdx,
		TotalCountToThisValue:     it.base.totalCountToIdx,
		TotalValueToThisValue:     it.base.totalValueToIdx,
		Percentile:                pct,
		PercentileLevelIteratedTo: pct,
	}, true
}

// RecordedValuesIterator visits only sub-bucket slots with a non-zero
// count.
type RecordedValuesIterator struct {
	base baseIterator
}

// RecordedValues returns an iterator over every slot with a non-zero
// count, in ascending order.
func (h *Histogram) RecordedValues() *RecordedValuesIterator {
	return &RecordedValuesIterator{base: newBaseIterator(h)}
}

// Next advances the iterator. It returns false once every recorded value
// has been visited.
func (it *RecordedValuesIterator) Next() (IterationValue, bool) {
	for it.base.advance() {
		if it.base.countAtIdx == 0 {
			continue
		}
		pct := it.base.percentile()
		return IterationValue{
			ValueIteratedTo:           it.base.highestEquivalentValue,
			ValueIteratedFrom:         it.base.h.LowestEquivalentValue(it.base.valueFromIdx),
			CountAtValueIteratedTo:    it.base.countAtIdx,
			CountAddedInThisStep:      it.base.countAtIdx,
			TotalCountToThisValue:     it.base.totalCountToIdx,
			TotalValueToThisValue:     it.base.totalValueToIdx,
			Percentile:                pct,
			PercentileLevelIteratedTo: pct,
		}, true
	}
	return IterationValue{}, false
}

// LinearIterator reports counts accumulated in successive fixed-width
// value ranges (§4.5).
type LinearIterator struct {
	base baseIterator

	valueUnitsPerBucket                     int64
	nextValueReportingLevel                 int64
	nextValueReportingLevelLowestEquivalent int64
	countAddedInThisStep                    int64
	done                                    bool
}

// Linear returns an iterator reporting the count accumulated in each
// successive range of width valueUnitsPerBucket, starting at 0.
func (h *Histogram) Linear(valueUnitsPerBucket int64) *LinearIterator {
	it := &LinearIterator{
		base:                    newBaseIterator(h),
		valueUnitsPerBucket:     valueUnitsPerBucket,
		nextValueReportingLevel: valueUnitsPerBucket,
	}
	it.nextValueReportingLevelLowestEquivalent = h.LowestEquivalentValue(it.nextValueReportingLevel - 1)
	return it
}

// Next advances the iterator by one fixed-width step. It returns false
// once the stepping has passed the highest recorded value.
func (it *LinearIterator) Next() (IterationValue, bool) {
	if it.done || it.base.h.TotalCount() == 0 {
		return IterationValue{}, false
	}
	b := &it.base
	for b.valueFromIdx < it.nextValueReportingLevelLowestEquivalent || b.bucketIdx == 0 && b.subBucketIdx == -1 {
		if !b.advance() {
			break
		}
		it.countAddedInThisStep += b.countAtIdx
	}

	pct := b.percentile()
	val := IterationValue{
		ValueIteratedTo:           it.nextValueReportingLevel - 1,
		ValueIteratedFrom:         it.nextValueReportingLevel - it.valueUnitsPerBucket,
		CountAtValueIteratedTo:    b.countAtIdx,
		CountAddedInThisStep:      it.countAddedInThisStep,
		TotalCountToThisValue:     b.totalCountToIdx,
		TotalValueToThisValue:     b.totalValueToIdx,
		Percentile:                pct,
		PercentileLevelIteratedTo: pct,
	}

	maxObserved := b.h.NextNonEquivalentValue(b.h.maxValue.Load())
	if it.nextValueReportingLevel >= maxObserved || b.h.TotalCount() == 0 {
		it.done = true
	}
	it.countAddedInThisStep = 0
	it.nextValueReportingLevel += it.valueUnitsPerBucket
	it.nextValueReportingLevelLowestEquivalent = b.h.LowestEquivalentValue(it.nextValueReportingLevel - 1)
	return val, true
}

// LogIterator reports counts accumulated in successive exponentially
// growing value ranges (§4.5).
type LogIterator struct {
	base baseIterator

	currentStepHighestValue                 int64
	logBase                                 float64
	nextValueReportingLevel                 float64
	nextValueReportingLevelLowestEquivalent int64
	countAddedInThisStep                    int64
	done                                    bool
}

// Log returns an iterator reporting the count accumulated between
// successive powers of logBase, starting at firstValue.
func (h *Histogram) Log(firstValue int64, logBase float64) *LogIterator {
	it := &LogIterator{
		base:                    newBaseIterator(h),
		logBase:                 logBase,
		nextValueReportingLevel: float64(firstValue),
	}
	it.nextValueReportingLevelLowestEquivalent = h.LowestEquivalentValue(int64(it.nextValueReportingLevel) - 1)
	return it
}

// Next advances the iterator by one exponential step.
func (it *LogIterator) Next() (IterationValue, bool) {
	if it.done || it.base.h.TotalCount() == 0 {
		return IterationValue{}, false
	}
	b := &it.base
	for b.valueFromIdx < it.nextValueReportingLevelLowestEquivalent || b.bucketIdx == 0 && b.subBucketIdx == -1 {
		if !b.advance() {
			break
		}
		it.countAddedInThisStep += b.countAtIdx
	}

	pct := b.percentile()
	reportTo := int64(it.nextValueReportingLevel) - 1
	val := IterationValue{
		ValueIteratedTo:           reportTo,
		ValueIteratedFrom:         it.currentStepHighestValue,
		CountAtValueIteratedTo:    b.countAtIdx,
		CountAddedInThisStep:      it.countAddedInThisStep,
		TotalCountToThisValue:     b.totalCountToIdx,
		TotalValueToThisValue:     b.totalValueToIdx,
		Percentile:                pct,
		PercentileLevelIteratedTo: pct,
	}

	maxObserved := b.h.NextNonEquivalentValue(b.h.maxValue.Load())
	if reportTo+1 >= maxObserved || b.h.TotalCount() == 0 {
		it.done = true
	}
	it.countAddedInThisStep = 0
	it.currentStepHighestValue = reportTo + 1
	it.nextValueReportingLevel *= it.logBase
	it.nextValueReportingLevelLowestEquivalent = b.h.LowestEquivalentValue(int64(it.nextValueReportingLevel) - 1)
	return val, true
}
