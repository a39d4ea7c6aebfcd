package registry

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// reentrantMutex is a mutex that the owning goroutine may lock again
// without deadlocking. Tracer notifications run under the registration
// lock and are allowed to call back into the registration API, which makes
// plain sync.Mutex unusable here.
type reentrantMutex struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

func (m *reentrantMutex) Lock() {
	id := goroutineID()
	if m.owner.Load() == id {
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

func (m *reentrantMutex) Unlock() {
	if m.owner.Load() != goroutineID() {
		panic("registry: unlock by non-owner")
	}
	m.depth--
	if m.depth > 0 {
		return
	}
	m.owner.Store(0)
	m.mu.Unlock()
}

// goroutineID parses the current goroutine's id out of the stack header
// ("goroutine N [running]:"). The runtime offers no direct accessor.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	s := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		panic("registry: unparseable goroutine id: " + string(s))
	}
	return id
}
