package rcu

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestReadSide(t *testing.T) {
	g := &GracePeriod{}

	// With no reader inside, a grace period returns immediately.
	done := make(chan struct{})
	go func() {
		g.WaitGracePeriod()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitGracePeriod did not return without readers")
	}

	// Begin/end pairs leave every period quiescent again.
	for i := 0; i < 1000; i++ {
		h := g.ReadBegin()
		g.ReadEnd(h)
	}
	require.True(t, g.quiescent(0))
	require.True(t, g.quiescent(1))
}

// TestWaitGracePeriodBlocks checks that WaitGracePeriod returns only after
// every reader whose critical section began before the call has ended it.
func TestWaitGracePeriodBlocks(t *testing.T) {
	const readers = 8

	g := &GracePeriod{}

	// Start the readers and keep their critical sections open until
	// release is closed.
	handles := make(chan ReadHandle, readers)
	release := make(chan struct{})
	var eg errgroup.Group
	for i := 0; i < readers; i++ {
		eg.Go(func() error {
			h := g.ReadBegin()
			handles <- h
			<-release
			g.ReadEnd(h)
			return nil
		})
	}
	for i := 0; i < readers; i++ {
		<-handles
	}

	// Start the grace period. It must not return while the readers are
	// still inside.
	var returned atomic.Bool
	done := make(chan struct{})
	go func() {
		g.WaitGracePeriod()
		returned.Store(true)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	require.False(t, returned.Load(), "grace period ended with readers inside")

	// Release the readers; now the grace period must end.
	close(release)
	require.NoError(t, eg.Wait())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WaitGracePeriod did not return after readers exited")
	}
}

// TestLateReader checks that a reader that begins after the period flip does
// not extend the grace period forever.
func TestLateReader(t *testing.T) {
	g := &GracePeriod{}

	h := g.ReadBegin()

	done := make(chan struct{})
	go func() {
		g.WaitGracePeriod()
		close(done)
	}()

	// Give the writer time to flip the period, then keep starting new
	// readers. They use the new period and must not block the writer.
	time.Sleep(30 * time.Millisecond)
	stop := make(chan struct{})
	var eg errgroup.Group
	eg.Go(func() error {
		for {
			select {
			case <-stop:
				return nil
			default:
				hh := g.ReadBegin()
				g.ReadEnd(hh)
			}
		}
	})

	g.ReadEnd(h)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("grace period extended by readers that began after the call")
	}
	close(stop)
	require.NoError(t, eg.Wait())
}

func TestSlot(t *testing.T) {
	var s Slot[int]
	require.Nil(t, s.Load())

	a, b := 1, 2
	s.Assign(&a)
	require.Equal(t, &a, s.Load())
	s.Assign(&b)
	require.Equal(t, &b, s.Load())
}
