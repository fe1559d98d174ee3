package hdrhistogram

import (
	"fmt"
	"io"
	"math"
)

// PercentileIterator reports values at a progressively finer percentile
// resolution: ticksPerHalfDistance steps are taken between each halving of
// the distance to the 100th percentile (§4.5).
type PercentileIterator struct {
	base baseIterator

	ticksPerHalfDistance  int32
	percentileToIterateTo float64
	percentile            float64
	seenLastValue         bool
	lastReportedCount     int64
}

// Percentiles returns a percentile iterator that takes ticksPerHalfDistance
// steps between each halving of the remaining distance to 100%.
func (h *Histogram) Percentiles(ticksPerHalfDistance int32) *PercentileIterator {
	return &PercentileIterator{base: newBaseIterator(h), ticksPerHalfDistance: ticksPerHalfDistance}
}

func halfDistance(percentile float64) float64 {
	return math.Pow(2, math.Floor(math.Log(100.0/(100.0-percentile))/math.Log(2))+1)
}

// Next advances the iterator. After every reporting level up to the
// highest recorded value has been emitted, one final step at exactly 100%
// is emitted before Next returns false.
func (it *PercentileIterator) Next() (IterationValue, bool) {
	b := &it.base
	total := b.h.TotalCount()
	if total == 0 {
		return IterationValue{}, false
	}

	if b.totalCountToIdx >= total {
		if it.seenLastValue {
			return IterationValue{}, false
		}
		it.seenLastValue = true
		it.percentile = 100
		return IterationValue{
			ValueIteratedTo:           b.highestEquivalentValue,
			ValueIteratedFrom:         b.h.LowestEquivalentValue(b.valueFromIdx),
			CountAtValueIteratedTo:    b.countAtIdx,
			CountAddedInThisStep:      b.totalCountToIdx - it.lastReportedCount,
			TotalCountToThisValue:     b.totalCountToIdx,
			TotalValueToThisValue:     b.totalValueToIdx,
			Percentile:                100,
			PercentileLevelIteratedTo: 100,
		}, true
	}

	if b.subBucketIdx == -1 && !b.advance() {
		return IterationValue{}, false
	}

	for {
		currentPercentile := 100.0 * float64(b.totalCountToIdx) / float64(total)
		if b.countAtIdx != 0 && it.percentileToIterateTo <= currentPercentile {
			it.percentile = it.percentileToIterateTo
			reportingTicks := float64(it.ticksPerHalfDistance) * halfDistance(it.percentileToIterateTo)
			it.percentileToIterateTo += 100.0 / reportingTicks
			val := IterationValue{
				ValueIteratedTo:           b.highestEquivalentValue,
				ValueIteratedFrom:         b.h.LowestEquivalentValue(b.valueFromIdx),
				CountAtValueIteratedTo:    b.countAtIdx,
				CountAddedInThisStep:      b.totalCountToIdx - it.lastReportedCount,
				TotalCountToThisValue:     b.totalCountToIdx,
				TotalValueToThisValue:     b.totalValueToIdx,
				Percentile:                it.percentile,
				PercentileLevelIteratedTo: it.percentile,
			}
			it.lastReportedCount = b.totalCountToIdx
			return val, true
		}
		if !b.advance() {
			return IterationValue{}, false
		}
	}
}

// Print writes a textual percentile distribution report to w (§6): one
// line per reporting level with columns Value, Percentile, TotalCount,
// 1/(1-Percentile), followed by Mean/StdDeviation, Max/Total count, and
// Buckets/SubBuckets summary lines.
func (h *Histogram) Print(w io.Writer, ticksPerHalfDistance int32) error {
	prec := int(h.significantFigures)
	it := h.Percentiles(ticksPerHalfDistance)
	if _, err := fmt.Fprintf(w, "%12s %14s %10s %14s\n\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
		return err
	}
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		inverse := "inf"
		if v.Percentile < 100 {
			inverse = fmt.Sprintf("%.2f", 1.0/(1.0-v.Percentile/100.0))
		}
		if _, err := fmt.Fprintf(w, "%12.*f %13.6f%% %10d %14s\n",
			prec, float64(v.ValueIteratedTo), v.Percentile, v.TotalCountToThisValue, inverse); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\n#[Mean=%.*f, StdDeviation=%.*f]\n#[Max=%.*f, Total count=%d]\n#[Buckets=%d, SubBuckets=%d]\n",
		prec, h.Mean(), prec, h.StdDev(), prec, float64(h.Max()), h.TotalCount(), h.bucketCount, h.subBucketCount)
	return err
}

// PrintCSV writes the same distribution report as Print, but as
// comma-separated values with a quoted header row (§6).
func (h *Histogram) PrintCSV(w io.Writer, ticksPerHalfDistance int32) error {
	prec := int(h.significantFigures)
	it := h.Percentiles(ticksPerHalfDistance)
	if _, err := fmt.Fprintf(w, "%q,%q,%q,%q\n", "Value", "Percentile", "TotalCount", "1/(1-Percentile)"); err != nil {
		return err
	}
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		inverse := "Infinity"
		if v.Percentile < 100 {
			inverse = fmt.Sprintf("%.2f", 1.0/(1.0-v.Percentile/100.0))
		}
		if _, err := fmt.Fprintf(w, "%.*f,%.6f,%d,%s\n",
			prec, float64(v.ValueIteratedTo), v.Percentile/100.0, v.TotalCountToThisValue, inverse); err != nil {
			return err
		}
	}
	return nil
}
