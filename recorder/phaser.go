// Package recorder implements the writer/reader phaser and the interval
// recorder built on top of it (§4.7-4.8): a coordination primitive that
// lets writers record into a histogram lock-free while a reader
// periodically takes a frozen snapshot without stalling them.
package recorder

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// oddPhaseInitialEpoch is the odd phase's end-epoch reset value, standing
// in for the spec's "i64::MIN-equivalent" sentinel.
const oddPhaseInitialEpoch = math.MinInt64

// Phaser separates writer critical sections from reader phase flips.
// Writers never block on readers; readers observe a frozen snapshot once
// FlipPhase returns (§4.7). The zero value is not usable; construct with
// NewPhaser.
type Phaser struct {
	startEpoch   atomic.Int64
	evenEndEpoch atomic.Int64
	oddEndEpoch  atomic.Int64
	readerMu     sync.Mutex

	logger logrus.FieldLogger
}

// NewPhaser returns a Phaser in its initial even phase. logger may be nil,
// in which case flip diagnostics go to logrus.StandardLogger().
func NewPhaser(logger logrus.FieldLogger) *Phaser {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Phaser{logger: logger}
}

// WriterCriticalSectionEnter marks the start of a write and returns the
// critical value the matching WriterCriticalSectionExit call must be given.
func (p *Phaser) WriterCriticalSectionEnter() int64 {
	return p.startEpoch.Add(1) - 1
}

// WriterCriticalSectionExit marks the end of a write begun with the given
// critical value.
func (p *Phaser) WriterCriticalSectionExit(criticalValueAtEnter int64) {
	if criticalValueAtEnter < 0 {
		p.oddEndEpoch.Add(1)
	} else {
		p.evenEndEpoch.Add(1)
	}
}

// LockReader acquires the phaser's reader mutex, serializing readers
// against each other. Callers must hold it across both the state swap they
// are protecting and the following FlipPhase call (§4.7's reader
// protocol splits these into separate steps around the same lock).
func (p *Phaser) LockReader() { p.readerMu.Lock() }

// UnlockReader releases the phaser's reader mutex.
func (p *Phaser) UnlockReader() { p.readerMu.Unlock() }

// FlipPhase flips the active phase and blocks until every writer that
// entered before the flip has exited. The caller must already hold the
// reader mutex via LockReader. sleep is the per-iteration pause while
// draining; zero means yield instead of sleeping.
func (p *Phaser) FlipPhase(sleep time.Duration) {
	nextPhaseEven := p.startEpoch.Load() < 0

	var startValueAtFlip int64
	var priorEnd *atomic.Int64
	if nextPhaseEven {
		p.evenEndEpoch.Store(0)
		startValueAtFlip = p.startEpoch.Swap(0)
		priorEnd = &p.oddEndEpoch
	} else {
		p.oddEndEpoch.Store(oddPhaseInitialEpoch)
		startValueAtFlip = p.startEpoch.Swap(oddPhaseInitialEpoch)
		priorEnd = &p.evenEndEpoch
	}

	p.logger.Debugf("phaser: flipping to next phase, draining to %d", startValueAtFlip)
	for priorEnd.Load() != startValueAtFlip {
		if sleep <= 0 {
			runtime.Gosched()
		} else {
			time.Sleep(sleep)
		}
	}
}
