// Package rcu implements the grace-period reclamation protocol used to
// protect the callback arrays read on every trace call. Readers mark their
// critical sections through cheap per-shard counters; a writer that has
// replaced shared state calls WaitGracePeriod before letting go of the old
// value, which guarantees no reader that started before the replacement can
// still observe it.
package rcu

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// numShards is the size of the fixed shard table that replaces per-CPU
// counters. Readers pick a shard at ReadBegin time; begin and end always hit
// the same shard because the shard id travels in the ReadHandle.
const numShards = 64

// gpSleep is the bounded sleep between quiescence scans.
const gpSleep = 10 * time.Millisecond

// shardCount holds the begin/end counters of one shard for one period.
// The padding keeps hot shards on separate cache lines.
type shardCount struct {
	begin atomic.Uint64
	end   atomic.Uint64
	_     [48]byte
}

// GracePeriod is the process-wide grace-period state: two alternating
// periods of per-shard counters plus the flag selecting the current one.
// The zero value is ready to use.
type GracePeriod struct {
	// periods[p][s] counts readers of period p on shard s.
	periods [2][numShards]shardCount
	// period is the index of the current period (0 or 1).
	period atomic.Uint32
	// mu serializes period flips between concurrent writers.
	mu sync.Mutex
}

// ReadHandle identifies one read-side critical section. It must be passed
// back to ReadEnd unchanged.
type ReadHandle struct {
	period uint32
	shard  uint32
}

// ReadBegin enters a read-side critical section and returns the handle for
// the matching ReadEnd. It never blocks and never fails.
func (g *GracePeriod) ReadBegin() ReadHandle {
	shard := uint32(rand.Intn(numShards))
	period := g.period.Load()
	// The counter increment is sequentially consistent, so everything the
	// reader loads afterwards is ordered after the begin.
	g.periods[period][shard].begin.Add(1)
	return ReadHandle{period: period, shard: shard}
}

// ReadEnd leaves the read-side critical section identified by h.
func (g *GracePeriod) ReadEnd(h ReadHandle) {
	// The increment orders every load of the critical section before the
	// end; a writer summing end before begin can therefore never see an
	// end without its begin.
	g.periods[h.period][h.shard].end.Add(1)
}

// quiescent reports whether no reader is currently inside a critical
// section of the given period. The end counter is read before the begin
// counter on every shard.
func (g *GracePeriod) quiescent(period uint32) bool {
	for s := 0; s < numShards; s++ {
		end := g.periods[period][s].end.Load()
		begin := g.periods[period][s].begin.Load()
		if begin != end {
			return false
		}
	}
	return true
}

// waitQuiescent scans the given period until it is quiescent, sleeping
// between scans.
func (g *GracePeriod) waitQuiescent(period uint32) {
	for !g.quiescent(period) {
		time.Sleep(gpSleep)
	}
}

// WaitGracePeriod blocks until every reader whose critical section began
// before the call has finished it. Once it returns, anything retired before
// the call can no longer be observed by any reader and may be freed.
//
// The wait uses the two-period protocol: readers of the previous period are
// waited out first, and if the current period is still active the period
// flag is flipped so that new readers use the other side while the old one
// drains. It cannot fail; it can only delay.
func (g *GracePeriod) WaitGracePeriod() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cur := g.period.Load()

	// Readers still inside the previous period predate the caller's
	// retirement, so they must drain too.
	g.waitQuiescent(1 - cur)

	if g.quiescent(cur) {
		return
	}

	// Flip the period flag. New readers start on the other period; the
	// remaining readers of cur are exactly the ones active at the time of
	// this call, so draining cur bounds the wait.
	g.period.Store(1 - cur)
	g.waitQuiescent(cur)
}

// Slot is a shared pointer slot published with release ordering and read
// with acquire ordering. It is the "assign" half of the reclamation
// contract: a writer stores a new value with Assign, waits one grace period
// and only then drops the old one.
type Slot[T any] struct {
	p atomic.Pointer[T]
}

// Load returns the current value of the slot.
func (s *Slot[T]) Load() *T {
	return s.p.Load()
}

// Assign publishes v in the slot. The store is at least release-ordered, so
// a reader that observes v also observes everything written before the
// Assign.
func (s *Slot[T]) Assign(v *T) {
	s.p.Store(v)
}
