package lock

import (
	"sync"
	"time"
)

// Guard prevents two overlapping runs of the same named job. A job whose
// previous run exceeded its timeout is considered crashed and its lock is
// auto-released, so a wedged run cannot block the job forever.
type Guard struct {
	mtx  sync.Mutex
	runs map[string]time.Time
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{runs: make(map[string]time.Time)}
}

// Acquire takes the lock for the named job and returns true, or returns false
// if a run is already in progress. A timeout of zero disables auto-release.
func (g *Guard) Acquire(name string, timeout time.Duration) bool {
	g.mtx.Lock()
	defer g.mtx.Unlock()

	startedAt, running := g.runs[name]
	if running {
		if timeout <= 0 || time.Since(startedAt) < timeout {
			return false
		}
	}

	g.runs[name] = time.Now()
	return true
}

// Release frees the lock for the named job.
func (g *Guard) Release(name string) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	delete(g.runs, name)
}
