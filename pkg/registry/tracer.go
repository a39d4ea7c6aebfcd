package registry

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// Tracer is a plugin interested in the event table. Both notifications are
// delivered synchronously under the registration lock; a tracer may call
// back into the registration API from inside them.
type Tracer interface {
	OnEventsInserted(events []*Event)
	OnEventsRemoved(events []*Event)
}

// Subscribe adds a tracer and immediately delivers the current event table
// to it, so the tracer never misses events registered before it arrived.
func (r *Registry) Subscribe(t Tracer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exiting {
		return ErrExiting
	}
	for _, cur := range r.tracers {
		if cur == t {
			return ErrAlreadyExists
		}
	}
	r.tracers = append(r.tracers, t)
	if len(r.events) > 0 {
		t.OnEventsInserted(r.events)
	}
	r.log.Debug("tracer subscribed", zap.Int("tracers", len(r.tracers)))
	return nil
}

// Unsubscribe removes a tracer.
func (r *Registry) Unsubscribe(t Tracer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.tracers {
		if cur == t {
			r.tracers = append(r.tracers[:i], r.tracers[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// RegisterEvents publishes a batch of event descriptions and returns their
// dispatch states, in input order. The batch is validated up front:
// either every description is published or none is. Subscribed tracers are
// notified once for the whole batch.
func (r *Registry) RegisterEvents(descs ...*abi.EventDescription) ([]*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exiting {
		return nil, ErrExiting
	}

	for _, desc := range descs {
		if err := validateDescription(desc); err != nil {
			return nil, err
		}
		if _, ok := r.index[desc]; ok {
			return nil, fmt.Errorf("%w: event %s:%s", ErrAlreadyExists, desc.Provider, desc.Name)
		}
	}

	batch := make([]*Event, len(descs))
	for i, desc := range descs {
		e := &Event{desc: desc, reg: r}
		e.callbacks.Assign(emptyCallbacks)
		batch[i] = e
		r.events = append(r.events, e)
		r.index[desc] = e
	}
	for _, t := range r.tracers {
		t.OnEventsInserted(batch)
	}
	r.log.Debug("events registered",
		zap.Int("count", len(batch)),
		zap.Int("total", len(r.events)))
	return batch, nil
}

// UnregisterEvents removes a batch of events from the table. It returns
// only after a grace period, so no emit can still be walking the removed
// events' callback arrays.
func (r *Registry) UnregisterEvents(events ...*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exiting {
		return ErrExiting
	}

	for _, e := range events {
		if _, ok := r.index[e.desc]; !ok {
			return fmt.Errorf("%w: event %s:%s", ErrNotFound, e.desc.Provider, e.desc.Name)
		}
	}

	for _, e := range events {
		r.removeEvent(e)
	}
	for _, t := range r.tracers {
		t.OnEventsRemoved(events)
	}
	r.gp.WaitGracePeriod()
	r.log.Debug("events unregistered",
		zap.Int("count", len(events)),
		zap.Int("total", len(r.events)))
	return nil
}

// removeEvent disarms one event and drops it from the table. Caller holds
// the lock and waits the grace period afterwards.
func (r *Registry) removeEvent(e *Event) {
	// Disarm first so new emits take the zero fast path, then empty the
	// array for emits already past the counter load.
	e.disarmObservers()
	e.callbacks.Assign(emptyCallbacks)
	delete(r.index, e.desc)
	for i, cur := range r.events {
		if cur == e {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return
		}
	}
}

// Events returns a snapshot of the current event table.
func (r *Registry) Events() []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Event, len(r.events))
	copy(out, r.events)
	return out
}

// Lookup returns the dispatch state registered for desc, or nil.
func (r *Registry) Lookup(desc *abi.EventDescription) *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index[desc]
}

// Shutdown removes every event, notifies tracers, and fails all further
// registration calls with ErrExiting. It returns after a final grace
// period, when no emit can observe any previously registered callback.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exiting {
		return
	}
	r.exiting = true

	removed := r.events
	for _, e := range removed {
		e.disarmObservers()
		e.callbacks.Assign(emptyCallbacks)
	}
	r.events = nil
	r.index = make(map[*abi.EventDescription]*Event)
	for _, t := range r.tracers {
		t.OnEventsRemoved(removed)
	}
	r.tracers = nil
	r.gp.WaitGracePeriod()
	r.log.Debug("registry shut down", zap.Int("removed", len(removed)))
}

func validateDescription(desc *abi.EventDescription) error {
	switch {
	case desc == nil:
		return fmt.Errorf("%w: nil event description", ErrInvalid)
	case desc.Provider == "" || desc.Name == "":
		return fmt.Errorf("%w: event description without provider or name", ErrInvalid)
	case desc.Version == 0 || desc.Version > abi.ABIVersion:
		return fmt.Errorf("%w: event %s:%s declares unsupported ABI version %d",
			ErrInvalid, desc.Provider, desc.Name, desc.Version)
	case desc.StructSize < abi.DescStructSize:
		return fmt.Errorf("%w: event %s:%s declares truncated struct size %d",
			ErrInvalid, desc.Provider, desc.Name, desc.StructSize)
	}
	return nil
}
