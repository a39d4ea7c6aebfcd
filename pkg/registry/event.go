package registry

import (
	"reflect"
	"sync/atomic"

	"github.com/tracekit/tracepoint/pkg/abi"
	"github.com/tracekit/tracepoint/pkg/rcu"
)

// Key filters callback dispatch. A callback registered with a key other
// than KeyNone is only invoked by emits carrying the same key.
type Key uint64

// KeyNone matches every emit.
const KeyNone Key = 0

// Func is the observer form for fixed-arity events.
type Func func(desc *abi.EventDescription, args []abi.Argument, ctx any)

// VariadicFunc is the observer form for variadic events. The extra fields
// are the self-describing tail beyond the declared field list.
type VariadicFunc func(desc *abi.EventDescription, args []abi.Argument, extra []abi.DynField, ctx any)

// Callback is one registered observer. Exactly one of Func and
// VariadicFunc is set, matching the event's variadic flag. Ctx is handed
// back opaquely on every invocation and must be comparable: together with
// the function pointer and the key it forms the identity used for
// duplicate rejection and removal.
type Callback struct {
	Func         Func
	VariadicFunc VariadicFunc
	Ctx          any
	Key          Key
}

func (c *Callback) funcPointer() uintptr {
	if c.Func != nil {
		return reflect.ValueOf(c.Func).Pointer()
	}
	return reflect.ValueOf(c.VariadicFunc).Pointer()
}

func (c *Callback) matches(o *Callback) bool {
	return c.funcPointer() == o.funcPointer() && c.Ctx == o.Ctx && c.Key == o.Key
}

// Enable counter layout: the low bits count registered observers, the top
// byte is a mask of privileged integrations armed outside the callback
// API. A single load decides both.
const (
	enabledCountMask uint32 = 0x00ff_ffff
	// PrivilegedMask covers the bits reserved for privileged hooks.
	PrivilegedMask uint32 = 0xff00_0000

	privilegedShift = 24
	// PrivilegedBits is the number of distinct privileged hook bits.
	PrivilegedBits = 8
)

// Event pairs an immutable description with its mutable dispatch state.
// Events are created by Registry.RegisterEvents and stay valid until
// unregistered.
type Event struct {
	desc    *abi.EventDescription
	enabled atomic.Uint32
	// callbacks always holds a non-nil immutable slice. It is replaced
	// wholesale on every register/unregister, never edited in place.
	callbacks rcu.Slot[[]Callback]
	reg       *Registry
}

// emptyCallbacks is the shared sentinel for events with no observer, so
// arming and disarming the last observer does not allocate.
var emptyCallbacks = &[]Callback{}

// Description returns the immutable event description.
func (e *Event) Description() *abi.EventDescription { return e.desc }

// Enabled reports whether anything would observe an emit right now. The
// answer may be stale by one concurrent registration; callers use it only
// to skip argument construction.
func (e *Event) Enabled() bool { return e.enabled.Load() != 0 }

// ArmPrivileged sets one privileged bit (0 to 7), arming the event for a
// privileged hook independently of registered callbacks.
func (e *Event) ArmPrivileged(bit uint8) {
	if bit >= PrivilegedBits {
		panic("registry: privileged bit out of range")
	}
	mask := uint32(1) << (privilegedShift + bit)
	for {
		old := e.enabled.Load()
		if old&mask != 0 || e.enabled.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// disarmObservers clears the observer count, keeping any privileged bits a
// concurrent arm may set during the swap.
func (e *Event) disarmObservers() {
	for {
		old := e.enabled.Load()
		if e.enabled.CompareAndSwap(old, old&PrivilegedMask) {
			return
		}
	}
}

// DisarmPrivileged clears one privileged bit.
func (e *Event) DisarmPrivileged(bit uint8) {
	if bit >= PrivilegedBits {
		panic("registry: privileged bit out of range")
	}
	mask := uint32(1) << (privilegedShift + bit)
	for {
		old := e.enabled.Load()
		if old&mask == 0 || e.enabled.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// Emit dispatches a fixed-arity event occurrence to every observer.
func (e *Event) Emit(args ...abi.Argument) {
	e.EmitWithKey(KeyNone, args...)
}

// EmitWithKey dispatches a fixed-arity event occurrence, invoking only
// observers whose key is KeyNone or equal to key. Emit never blocks.
func (e *Event) EmitWithKey(key Key, args ...abi.Argument) {
	enabled := e.enabled.Load()
	if enabled == 0 {
		return
	}
	if enabled&PrivilegedMask != 0 {
		e.reg.dispatchPrivileged(e, key, args, nil)
	}
	h := e.reg.gp.ReadBegin()
	for _, cb := range *e.callbacks.Load() {
		if cb.Func == nil {
			continue
		}
		if cb.Key != KeyNone && cb.Key != key {
			continue
		}
		cb.Func(e.desc, args, cb.Ctx)
	}
	e.reg.gp.ReadEnd(h)
}

// EmitVariadic dispatches a variadic event occurrence: the declared
// arguments plus a self-describing tail.
func (e *Event) EmitVariadic(args []abi.Argument, extra []abi.DynField) {
	e.EmitVariadicWithKey(KeyNone, args, extra)
}

// EmitVariadicWithKey is EmitVariadic with key filtering.
func (e *Event) EmitVariadicWithKey(key Key, args []abi.Argument, extra []abi.DynField) {
	enabled := e.enabled.Load()
	if enabled == 0 {
		return
	}
	if enabled&PrivilegedMask != 0 {
		e.reg.dispatchPrivileged(e, key, args, extra)
	}
	h := e.reg.gp.ReadBegin()
	for _, cb := range *e.callbacks.Load() {
		if cb.VariadicFunc == nil {
			continue
		}
		if cb.Key != KeyNone && cb.Key != key {
			continue
		}
		cb.VariadicFunc(e.desc, args, extra, cb.Ctx)
	}
	e.reg.gp.ReadEnd(h)
}
