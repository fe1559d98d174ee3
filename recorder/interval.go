package recorder

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	hdr "github.com/grafana/hdrhistogram"
)

// Action is the recording-only operation a writer performs against the
// interval recorder's active histogram (§4.8). It must not iterate or
// otherwise structurally mutate the histogram, only record into it.
type Action func(active *hdr.Histogram) error

// IntervalRecorder holds two histograms, active and inactive, and lets
// writers record into the active one while a reader periodically swaps
// them out for a stable snapshot (§4.8).
type IntervalRecorder struct {
	phaser   *Phaser
	active   atomic.Pointer[hdr.Histogram]
	inactive *hdr.Histogram

	flipSleep time.Duration
	logger    logrus.FieldLogger
}

// NewIntervalRecorder returns an IntervalRecorder backed by two
// independently allocated histograms from newHistogram, which must return
// histograms sharing the same construction parameters on every call.
// flipSleep is passed to the phaser's FlipPhase on every Sample.
func NewIntervalRecorder(newHistogram func() (*hdr.Histogram, error), flipSleep time.Duration, logger logrus.FieldLogger) (*IntervalRecorder, error) {
	first, err := newHistogram()
	if err != nil {
		return nil, err
	}
	second, err := newHistogram()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &IntervalRecorder{
		phaser:    NewPhaser(logger),
		inactive:  second,
		flipSleep: flipSleep,
		logger:    logger,
	}
	r.active.Store(first)
	return r, nil
}

// Update enters the phaser's writer critical section, invokes action
// against the current active histogram, and exits the critical section
// (§4.8). Writers never block on a concurrent Sample.
func (r *IntervalRecorder) Update(action Action) error {
	criticalValue := r.phaser.WriterCriticalSectionEnter()
	defer r.phaser.WriterCriticalSectionExit(criticalValue)
	return action(r.active.Load())
}

// Sample swaps the active and inactive histograms and returns the
// now-stable former-active histogram once every writer that observed it is
// guaranteed to have exited (§4.8). Sample does not reset the returned
// histogram: the following Sample makes it the active histogram again with
// whatever counts it still holds. When the caller Resets each returned
// histogram before the next Sample, every successful Update is reflected
// in exactly one Sample: the first one called strictly after Update returns.
func (r *IntervalRecorder) Sample() *hdr.Histogram {
	r.phaser.LockReader()
	defer r.phaser.UnlockReader()

	oldActive := r.active.Load()
	r.active.Store(r.inactive)
	r.inactive = oldActive

	r.logger.Debug("interval recorder: sampling active histogram")
	r.phaser.FlipPhase(r.flipSleep)
	return oldActive
}
