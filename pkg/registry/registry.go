// Package registry tracks event descriptions and their observers. The hot
// path (Event.Emit) runs lock-free: it loads one atomic counter, then
// walks an immutable callback array under a read-side critical section.
// All mutation goes through a Registry, which serializes on a reentrant
// lock and replaces callback arrays wholesale, waiting a grace period
// before a removed observer's context may be reused.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tracekit/tracepoint/pkg/abi"
	"github.com/tracekit/tracepoint/pkg/rcu"
)

var (
	// ErrAlreadyExists reports a duplicate registration: an event
	// description already in the table, or a callback with an identity
	// tuple already attached to the event.
	ErrAlreadyExists = errors.New("registry: already exists")
	// ErrNotFound reports an unregistration of something never registered.
	ErrNotFound = errors.New("registry: not found")
	// ErrExiting reports a registration call after Shutdown.
	ErrExiting = errors.New("registry: exiting")
	// ErrInvalid reports a malformed event description or a callback form
	// not matching the event's variadic flag.
	ErrInvalid = errors.New("registry: invalid")
)

// PrivilegedHook observes emits of events with privileged bits armed. It
// runs outside the callback array, before the registered observers.
type PrivilegedHook func(e *Event, key Key, args []abi.Argument, extra []abi.DynField)

// Registry owns the event table, the observer state of every event in it,
// and the subscribed tracers.
type Registry struct {
	log  *zap.Logger
	priv PrivilegedHook

	gp rcu.GracePeriod

	// mu serializes all registration. It is reentrant because tracer
	// notifications run under it and may call back into registration.
	mu      reentrantMutex
	exiting bool
	events  []*Event
	index   map[*abi.EventDescription]*Event
	tracers []Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithPrivilegedHook installs the privileged emit hook.
func WithPrivilegedHook(h PrivilegedHook) Option {
	return func(r *Registry) { r.priv = h }
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		log:   zap.NewNop(),
		index: make(map[*abi.EventDescription]*Event),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, initializing it on first use.
func Default() *Registry {
	defaultOnce.Do(func() { defaultRegistry = New() })
	return defaultRegistry
}

func (r *Registry) dispatchPrivileged(e *Event, key Key, args []abi.Argument, extra []abi.DynField) {
	if r.priv != nil {
		r.priv(e, key, args, extra)
	}
}

// RegisterCallback attaches an observer to an event. The callback's form
// must match the event's variadic flag, and its (function, context, key)
// tuple must not already be attached.
func (r *Registry) RegisterCallback(e *Event, cb Callback) error {
	if err := validateCallback(e, &cb); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exiting {
		return ErrExiting
	}

	old := e.callbacks.Load()
	for i := range *old {
		if (*old)[i].matches(&cb) {
			return ErrAlreadyExists
		}
	}

	next := make([]Callback, len(*old)+1)
	copy(next, *old)
	next[len(*old)] = cb
	e.callbacks.Assign(&next)
	// Arm after publication, so an emit racing the counter never sees the
	// new observer missing from the array.
	e.enabled.Add(1)

	r.log.Debug("callback registered",
		zap.String("provider", e.desc.Provider),
		zap.String("event", e.desc.Name),
		zap.Int("observers", len(next)))
	return nil
}

// UnregisterCallback detaches an observer by its identity tuple. It
// returns only after a grace period, so the caller may immediately release
// anything the callback's context referenced.
func (r *Registry) UnregisterCallback(e *Event, cb Callback) error {
	if err := validateCallback(e, &cb); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exiting {
		return ErrExiting
	}

	old := e.callbacks.Load()
	at := -1
	for i := range *old {
		if (*old)[i].matches(&cb) {
			at = i
			break
		}
	}
	if at < 0 {
		return ErrNotFound
	}

	if len(*old) == 1 {
		e.callbacks.Assign(emptyCallbacks)
	} else {
		next := make([]Callback, 0, len(*old)-1)
		next = append(next, (*old)[:at]...)
		next = append(next, (*old)[at+1:]...)
		e.callbacks.Assign(&next)
	}
	e.enabled.Add(^uint32(0))
	r.gp.WaitGracePeriod()

	r.log.Debug("callback unregistered",
		zap.String("provider", e.desc.Provider),
		zap.String("event", e.desc.Name),
		zap.Int("observers", len(*old)-1))
	return nil
}

func validateCallback(e *Event, cb *Callback) error {
	switch {
	case cb.Func == nil && cb.VariadicFunc == nil:
		return fmt.Errorf("%w: callback without function", ErrInvalid)
	case cb.Func != nil && cb.VariadicFunc != nil:
		return fmt.Errorf("%w: callback with both function forms", ErrInvalid)
	case e.desc.Variadic && cb.VariadicFunc == nil:
		return fmt.Errorf("%w: non-variadic callback on variadic event %s:%s",
			ErrInvalid, e.desc.Provider, e.desc.Name)
	case !e.desc.Variadic && cb.Func == nil:
		return fmt.Errorf("%w: variadic callback on non-variadic event %s:%s",
			ErrInvalid, e.desc.Provider, e.desc.Name)
	}
	return nil
}
