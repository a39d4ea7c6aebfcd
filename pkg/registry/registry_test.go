package registry

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/tracekit/tracepoint/pkg/abi"
)

func testDesc(t *testing.T, name string, opts ...abi.EventOption) *abi.EventDescription {
	t.Helper()
	fields := []abi.Field{
		abi.F("a", abi.U32()),
		abi.F("b", abi.S64()),
	}
	return abi.NewEventDescription("test", name, abi.LevelDebug, fields, opts...)
}

func testEvent(t *testing.T, r *Registry, name string, opts ...abi.EventOption) *Event {
	t.Helper()
	batch, err := r.RegisterEvents(testDesc(t, name, opts...))
	require.NoError(t, err)
	require.Len(t, batch, 1)
	return batch[0]
}

func TestRegisterEvents(t *testing.T) {
	r := New()
	a := testDesc(t, "a")
	b := testDesc(t, "b")

	batch, err := r.RegisterEvents(a, b)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Same(t, a, batch[0].Description())
	require.Equal(t, batch, r.Events())
	require.Same(t, batch[1], r.Lookup(b))

	t.Run("Duplicate", func(t *testing.T) {
		_, err := r.RegisterEvents(a)
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("InvalidRejectsWholeBatch", func(t *testing.T) {
		bad := testDesc(t, "bad")
		bad.Provider = ""
		good := testDesc(t, "good")
		_, err := r.RegisterEvents(good, bad)
		require.ErrorIs(t, err, ErrInvalid)
		// Nothing from the failed batch was published.
		require.Nil(t, r.Lookup(good))
	})

	t.Run("BadVersion", func(t *testing.T) {
		d := testDesc(t, "vers")
		d.Version = abi.ABIVersion + 1
		_, err := r.RegisterEvents(d)
		require.ErrorIs(t, err, ErrInvalid)
	})
}

func TestUnregisterEvents(t *testing.T) {
	r := New()
	e := testEvent(t, r, "gone")
	require.NoError(t, r.UnregisterEvents(e))
	require.Nil(t, r.Lookup(e.Description()))
	require.Empty(t, r.Events())
	require.ErrorIs(t, r.UnregisterEvents(e), ErrNotFound)
}

func TestCallbackRegistration(t *testing.T) {
	r := New()
	e := testEvent(t, r, "cb")
	fn := func(*abi.EventDescription, []abi.Argument, any) {}

	require.False(t, e.Enabled())
	require.NoError(t, r.RegisterCallback(e, Callback{Func: fn, Ctx: "one"}))
	require.True(t, e.Enabled())

	t.Run("DuplicateLeavesArrayUntouched", func(t *testing.T) {
		before := e.callbacks.Load()
		err := r.RegisterCallback(e, Callback{Func: fn, Ctx: "one"})
		require.ErrorIs(t, err, ErrAlreadyExists)
		require.Same(t, before, e.callbacks.Load())
	})

	t.Run("DistinctCtxIsDistinctObserver", func(t *testing.T) {
		require.NoError(t, r.RegisterCallback(e, Callback{Func: fn, Ctx: "two"}))
		require.Len(t, *e.callbacks.Load(), 2)
	})

	t.Run("DistinctKeyIsDistinctObserver", func(t *testing.T) {
		require.NoError(t, r.RegisterCallback(e, Callback{Func: fn, Ctx: "one", Key: 7}))
		require.Len(t, *e.callbacks.Load(), 3)
	})

	t.Run("InvalidForms", func(t *testing.T) {
		require.ErrorIs(t, r.RegisterCallback(e, Callback{}), ErrInvalid)
		vfn := func(*abi.EventDescription, []abi.Argument, []abi.DynField, any) {}
		require.ErrorIs(t, r.RegisterCallback(e, Callback{VariadicFunc: vfn}), ErrInvalid)
	})
}

func TestUnregisterMiddleCallback(t *testing.T) {
	r := New()
	e := testEvent(t, r, "order")
	fn := func(*abi.EventDescription, []abi.Argument, any) {}
	for _, ctx := range []string{"first", "second", "third"} {
		require.NoError(t, r.RegisterCallback(e, Callback{Func: fn, Ctx: ctx}))
	}

	require.NoError(t, r.UnregisterCallback(e, Callback{Func: fn, Ctx: "second"}))

	// The survivors keep their original relative order.
	cbs := *e.callbacks.Load()
	require.Len(t, cbs, 2)
	require.Equal(t, "first", cbs[0].Ctx)
	require.Equal(t, "third", cbs[1].Ctx)
	require.True(t, e.Enabled())

	require.ErrorIs(t,
		r.UnregisterCallback(e, Callback{Func: fn, Ctx: "second"}),
		ErrNotFound)

	require.NoError(t, r.UnregisterCallback(e, Callback{Func: fn, Ctx: "first"}))
	require.NoError(t, r.UnregisterCallback(e, Callback{Func: fn, Ctx: "third"}))
	require.False(t, e.Enabled())
	// The last unregistration swaps the shared empty sentinel back in.
	require.Same(t, emptyCallbacks, e.callbacks.Load())
}

func TestEmit(t *testing.T) {
	r := New()
	e := testEvent(t, r, "emit")

	var got []string
	fn := func(desc *abi.EventDescription, args []abi.Argument, ctx any) {
		require.Same(t, e.Description(), desc)
		require.Len(t, args, 2)
		got = append(got, ctx.(string))
	}

	// Disabled events drop the emit before touching observers.
	e.Emit(abi.IntArg(uint32(1)), abi.IntArg(int64(2)))
	require.Empty(t, got)

	require.NoError(t, r.RegisterCallback(e, Callback{Func: fn, Ctx: "all"}))
	require.NoError(t, r.RegisterCallback(e, Callback{Func: fn, Ctx: "keyed", Key: 7}))

	e.Emit(abi.IntArg(uint32(1)), abi.IntArg(int64(2)))
	require.Equal(t, []string{"all"}, got)

	got = nil
	e.EmitWithKey(7, abi.IntArg(uint32(1)), abi.IntArg(int64(2)))
	require.Equal(t, []string{"all", "keyed"}, got)

	got = nil
	e.EmitWithKey(9, abi.IntArg(uint32(1)), abi.IntArg(int64(2)))
	require.Equal(t, []string{"all"}, got)
}

func TestEmitVariadic(t *testing.T) {
	r := New()
	e := testEvent(t, r, "var", abi.WithVariadic())

	var gotExtra []abi.DynField
	vfn := func(_ *abi.EventDescription, _ []abi.Argument, extra []abi.DynField, _ any) {
		gotExtra = extra
	}
	require.NoError(t, r.RegisterCallback(e, Callback{VariadicFunc: vfn}))

	fn := func(*abi.EventDescription, []abi.Argument, any) {}
	require.ErrorIs(t, r.RegisterCallback(e, Callback{Func: fn}), ErrInvalid)

	extra := []abi.DynField{abi.DynF("x", abi.DynU64V(1))}
	e.EmitVariadic([]abi.Argument{abi.IntArg(uint32(1)), abi.IntArg(int64(2))}, extra)
	require.Len(t, gotExtra, 1)
	require.Equal(t, "x", gotExtra[0].Name)
}

func TestPrivileged(t *testing.T) {
	var calls atomic.Int32
	hook := func(e *Event, key Key, args []abi.Argument, extra []abi.DynField) {
		calls.Add(1)
	}
	r := New(WithPrivilegedHook(hook))
	e := testEvent(t, r, "priv")

	e.Emit()
	require.Zero(t, calls.Load())

	// A privileged bit arms the event without any registered callback.
	e.ArmPrivileged(0)
	require.True(t, e.Enabled())
	e.Emit()
	require.Equal(t, int32(1), calls.Load())

	e.DisarmPrivileged(0)
	require.False(t, e.Enabled())
	e.Emit()
	require.Equal(t, int32(1), calls.Load())

	require.Panics(t, func() { e.ArmPrivileged(PrivilegedBits) })
}

type tableTracer struct {
	inserted [][]*Event
	removed  [][]*Event
}

func (t *tableTracer) OnEventsInserted(events []*Event) {
	t.inserted = append(t.inserted, events)
}

func (t *tableTracer) OnEventsRemoved(events []*Event) {
	t.removed = append(t.removed, events)
}

func TestTracerNotification(t *testing.T) {
	r := New()
	early := testEvent(t, r, "early")

	tr := &tableTracer{}
	require.NoError(t, r.Subscribe(tr))
	// Subscription delivers the existing table immediately.
	require.Equal(t, [][]*Event{{early}}, tr.inserted)
	require.ErrorIs(t, r.Subscribe(tr), ErrAlreadyExists)

	late := testEvent(t, r, "late")
	require.Equal(t, [][]*Event{{early}, {late}}, tr.inserted)

	require.NoError(t, r.UnregisterEvents(early))
	require.Equal(t, [][]*Event{{early}}, tr.removed)

	require.NoError(t, r.Unsubscribe(tr))
	require.ErrorIs(t, r.Unsubscribe(tr), ErrNotFound)
	testEvent(t, r, "unseen")
	require.Len(t, tr.inserted, 2)
}

// reentrantTracer registers a callback on every inserted event, from
// inside the notification, while the registration lock is already held.
type reentrantTracer struct {
	r  *Registry
	t  *testing.T
	fn Func
}

func (tr *reentrantTracer) OnEventsInserted(events []*Event) {
	for _, e := range events {
		require.NoError(tr.t, tr.r.RegisterCallback(e, Callback{Func: tr.fn}))
	}
}

func (tr *reentrantTracer) OnEventsRemoved([]*Event) {}

func TestTracerReentrancy(t *testing.T) {
	r := New()
	fn := func(*abi.EventDescription, []abi.Argument, any) {}
	require.NoError(t, r.Subscribe(&reentrantTracer{r: r, t: t, fn: fn}))

	e := testEvent(t, r, "reentrant")
	require.True(t, e.Enabled())
	require.Len(t, *e.callbacks.Load(), 1)
}

func TestShutdown(t *testing.T) {
	r := New()
	e := testEvent(t, r, "done")
	fn := func(*abi.EventDescription, []abi.Argument, any) {}
	require.NoError(t, r.RegisterCallback(e, Callback{Func: fn}))

	tr := &tableTracer{}
	require.NoError(t, r.Subscribe(tr))

	r.Shutdown()
	require.Equal(t, [][]*Event{{e}}, tr.removed)
	require.False(t, e.Enabled())

	_, err := r.RegisterEvents(testDesc(t, "late"))
	require.ErrorIs(t, err, ErrExiting)
	require.ErrorIs(t, r.RegisterCallback(e, Callback{Func: fn}), ErrExiting)
	require.ErrorIs(t, r.Subscribe(tr), ErrExiting)

	// A second shutdown is a no-op.
	r.Shutdown()
	require.Len(t, tr.removed, 1)
}

// TestConcurrentEmitUnregister checks the reclamation contract: once
// UnregisterCallback returns, no emit still observes the removed callback.
func TestConcurrentEmitUnregister(t *testing.T) {
	r := New()
	e := testEvent(t, r, "race")

	var removed atomic.Bool
	var invoked atomic.Int64
	fn := func(*abi.EventDescription, []abi.Argument, any) {
		if removed.Load() {
			t.Error("callback invoked after unregistration returned")
		}
		invoked.Add(1)
	}
	require.NoError(t, r.RegisterCallback(e, Callback{Func: fn}))

	stop := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for {
				select {
				case <-stop:
					return nil
				default:
					e.Emit(abi.IntArg(uint32(1)), abi.IntArg(int64(2)))
				}
			}
		})
	}

	for invoked.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, r.UnregisterCallback(e, Callback{Func: fn}))
	removed.Store(true)

	close(stop)
	require.NoError(t, g.Wait())
	require.False(t, e.Enabled())
}

// TestConcurrentArmUnregister checks that a privileged bit armed while the
// event is being unregistered is never lost: the disarm only clears the
// observer count.
func TestConcurrentArmUnregister(t *testing.T) {
	for i := 0; i < 100; i++ {
		r := New()
		e := testEvent(t, r, "armed")

		var g errgroup.Group
		g.Go(func() error {
			e.ArmPrivileged(3)
			return nil
		})
		g.Go(func() error {
			return r.UnregisterEvents(e)
		})
		require.NoError(t, g.Wait())
		require.NotZero(t, e.enabled.Load()&PrivilegedMask)
	}
}
