// Package hdrhistogram implements a High Dynamic Range Histogram: a
// fixed-footprint data structure for recording value distributions
// (typically latencies) across a wide dynamic range at a configurable,
// bounded relative precision.
//
// A Histogram is parameterized at construction by the lowest value it can
// discern, the highest value it can track, and the number of significant
// decimal digits it preserves; every value in range is looked up in
// O(1) and recorded in O(1). The counts array is not reallocated over the
// histogram's lifetime, except under the packed storage policy, whose byte
// planes grow as counters fill.
//
// Package encoding implements the wire codec for exchanging histograms
// between processes or languages. Package recorder implements the
// writer/reader phaser and interval recorder used to record into a
// histogram from many goroutines while a reader periodically swaps in a
// fresh one without ever blocking a writer.
package hdrhistogram
