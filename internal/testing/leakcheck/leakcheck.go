// Package leakcheck verifies that code under test releases its goroutines.
package leakcheck

import (
	"runtime"
	"testing"
	"time"
)

const (
	settleInterval = 10 * time.Millisecond
	settleTimeout  = 2 * time.Second
)

// Snapshot holds the goroutine count taken before the code under test ran.
type Snapshot struct {
	tb     testing.TB
	before int
}

// Goroutines records the current goroutine count. Take the snapshot before
// starting the workers whose shutdown is being verified.
func Goroutines(tb testing.TB) *Snapshot {
	tb.Helper()
	runtime.Gosched()
	return &Snapshot{tb: tb, before: runtime.NumGoroutine()}
}

// Expect fails the test unless the goroutine count settles back to the
// snapshot, allowing slack extra goroutines for runtime background work.
// Polls until the count drops or the settle timeout passes, since exiting
// goroutines deschedule asynchronously.
func (s *Snapshot) Expect(slack int) {
	s.tb.Helper()

	deadline := time.Now().Add(settleTimeout)
	var now int
	for {
		runtime.Gosched()
		now = runtime.NumGoroutine()
		if now <= s.before+slack {
			return
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(settleInterval)
	}
	s.tb.Errorf("goroutines did not settle: before=%d now=%d slack=%d", s.before, now, slack)
}
