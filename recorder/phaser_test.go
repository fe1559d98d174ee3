package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPhaserEnterExitFlipsCleanly(t *testing.T) {
	p := NewPhaser(nil)

	cv := p.WriterCriticalSectionEnter()
	p.WriterCriticalSectionExit(cv)

	done := make(chan struct{})
	go func() {
		p.LockReader()
		p.FlipPhase(0)
		p.UnlockReader()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("FlipPhase did not return for a drained writer")
	}
}

func TestPhaserFlipWaitsForOutstandingWriter(t *testing.T) {
	p := NewPhaser(nil)

	cv := p.WriterCriticalSectionEnter()

	flipped := make(chan struct{})
	go func() {
		p.LockReader()
		p.FlipPhase(time.Millisecond)
		p.UnlockReader()
		close(flipped)
	}()

	select {
	case <-flipped:
		t.Fatal("FlipPhase returned before the outstanding writer exited")
	case <-time.After(50 * time.Millisecond):
	}

	p.WriterCriticalSectionExit(cv)

	select {
	case <-flipped:
	case <-time.After(time.Second):
		t.Fatal("FlipPhase did not return after the writer exited")
	}
}

func TestPhaserConcurrentWritersAndFlips(t *testing.T) {
	p := NewPhaser(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cv := p.WriterCriticalSectionEnter()
				p.WriterCriticalSectionExit(cv)
			}
		}()
	}

	for i := 0; i < 50; i++ {
		p.LockReader()
		p.FlipPhase(0)
		p.UnlockReader()
	}
	close(stop)
	wg.Wait()

	assert.NotPanics(t, func() {
		p.LockReader()
		p.FlipPhase(0)
		p.UnlockReader()
	})
}
