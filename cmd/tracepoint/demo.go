package main

import (
	"encoding/binary"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tracekit/tracepoint/pkg/abi"
	"github.com/tracekit/tracepoint/pkg/registry"
	"github.com/tracekit/tracepoint/pkg/visit"
)

// DemoCommand registers the sample provider, attaches a logging tracer,
// and emits one occurrence of each sample event.
func DemoCommand(log *zap.Logger) error {
	reg := registry.New(registry.WithLogger(log))
	tracer := &zapTracer{log: log, reg: reg}
	if err := reg.Subscribe(tracer); err != nil {
		return err
	}

	events, err := reg.RegisterEvents(sampleDescriptions()...)
	if err != nil {
		return err
	}
	request, threadSwitch, annotation, metrics := events[0], events[1], events[2], events[3]

	// Static: all argument values copied into the vector.
	request.Emit(
		abi.StringArg("GET"),
		abi.IntArg(uint32(200)),
		abi.IntArg(uint64(512)),
		abi.IntArg(uint8(0b101)),
	)

	// Gather: the argument is just a base address; the engine reads the
	// task struct out of memory through the descriptor's offsets.
	buf := make([]byte, taskStructSize)
	prio := int32(-2)
	binary.NativeEndian.PutUint32(buf[0:], 4242)
	binary.NativeEndian.PutUint32(buf[4:], uint32(prio))
	copy(buf[8:], "worker\x00")
	mem := &abi.BufferMemory{Base: 0x1000, Data: buf}
	threadSwitch.Emit(abi.GatherArg(mem, 0x1000))

	// Dynamic: the value carries its own type.
	annotation.Emit(
		abi.StringArg("deploy"),
		abi.DynamicArg(abi.DynStructV(
			abi.DynF("version", abi.DynStringV("1.4.2")),
			abi.DynF("canary", abi.DynBoolV(true)),
		)),
	)

	// Variadic: self-describing fields after the declared ones.
	metrics.EmitVariadic(
		[]abi.Argument{abi.FloatArg(0.75)},
		[]abi.DynField{
			abi.DynF("rss", abi.DynU64V(1<<20)),
			abi.DynF("cores", abi.DynVLAV(abi.DynU64V(0), abi.DynU64V(2))),
		},
	)

	reg.Shutdown()
	return nil
}

// zapTracer logs event table changes and attaches a rendering callback to
// every inserted event.
type zapTracer struct {
	log *zap.Logger
	reg *registry.Registry
}

func (t *zapTracer) OnEventsInserted(events []*registry.Event) {
	for _, e := range events {
		desc := e.Description()
		t.log.Info("event inserted",
			zap.String("provider", desc.Provider),
			zap.String("event", desc.Name),
			zap.Stringer("level", desc.Level))

		cb := registry.Callback{}
		if desc.Variadic {
			cb.VariadicFunc = t.renderVariadic
		} else {
			cb.Func = t.render
		}
		if err := t.reg.RegisterCallback(e, cb); err != nil {
			t.log.Warn("callback registration failed", zap.Error(err))
		}
	}
}

func (t *zapTracer) OnEventsRemoved(events []*registry.Event) {
	for _, e := range events {
		desc := e.Description()
		t.log.Info("event removed",
			zap.String("provider", desc.Provider),
			zap.String("event", desc.Name))
	}
}

func (t *zapTracer) render(desc *abi.EventDescription, args []abi.Argument, _ any) {
	fv := &formatVisitor{}
	if err := visit.Event(desc, args, fv); err != nil {
		t.log.Warn("event decode failed", zap.Error(err))
		return
	}
	t.log.Info("event",
		zap.String("name", desc.Provider+":"+desc.Name),
		zap.String("args", fv.String()))
}

func (t *zapTracer) renderVariadic(desc *abi.EventDescription, args []abi.Argument, extra []abi.DynField, _ any) {
	fv := &formatVisitor{}
	if err := visit.EventVariadic(desc, args, extra, fv); err != nil {
		t.log.Warn("event decode failed", zap.Error(err))
		return
	}
	t.log.Info("event",
		zap.String("name", desc.Provider+":"+desc.Name),
		zap.String("args", fv.String()))
}

// formatVisitor renders a decoded event as one compact line, e.g.
//
//	method="GET" status=200(ok) bytes=512 perms=5(read|exec)
type formatVisitor struct {
	visit.NopVisitor
	b       strings.Builder
	needSep bool
	labels  [][]string
}

func (f *formatVisitor) String() string { return f.b.String() }

func (f *formatVisitor) sep() {
	if f.needSep {
		f.b.WriteString(" ")
	}
	f.needSep = false
}

func (f *formatVisitor) leaf(s string) {
	f.sep()
	f.b.WriteString(s)
	f.needSep = true
}

func (f *formatVisitor) BeforeField(name string) {
	f.sep()
	f.b.WriteString(name)
	f.b.WriteString("=")
}

func (f *formatVisitor) Null()           { f.leaf("null") }
func (f *formatVisitor) Bool(v bool)     { f.leaf(fmt.Sprintf("%t", v)) }
func (f *formatVisitor) Byte(v byte)     { f.leaf(fmt.Sprintf("%d", v)) }
func (f *formatVisitor) Float(v float64) { f.leaf(fmt.Sprintf("%g", v)) }
func (f *formatVisitor) Str(v string)    { f.leaf(fmt.Sprintf("%q", v)) }

func (f *formatVisitor) Integer(v visit.IntegerValue) {
	if v.Signed {
		f.leaf(fmt.Sprintf("%d", v.Int64()))
	} else {
		f.leaf(fmt.Sprintf("%d", v.Uint64()))
	}
}

func (f *formatVisitor) BeforeStruct(int) {
	f.sep()
	f.b.WriteString("{")
}

func (f *formatVisitor) AfterStruct() {
	f.b.WriteString("}")
	f.needSep = true
}

func (f *formatVisitor) open() {
	f.sep()
	f.b.WriteString("[")
}

func (f *formatVisitor) close() {
	f.b.WriteString("]")
	f.needSep = true
}

func (f *formatVisitor) BeforeArray(int)   { f.open() }
func (f *formatVisitor) AfterArray()       { f.close() }
func (f *formatVisitor) BeforeVLA(int)     { f.open() }
func (f *formatVisitor) AfterVLA()         { f.close() }
func (f *formatVisitor) BeforeVLAVisitor() { f.open() }
func (f *formatVisitor) AfterVLAVisitor()  { f.close() }

func (f *formatVisitor) BeforeOptional(present bool) {
	if !present {
		f.leaf("none")
	}
}

func (f *formatVisitor) BeforeEnum(labels []string) {
	f.labels = append(f.labels, labels)
}

func (f *formatVisitor) AfterEnum() { f.closeLabels() }

func (f *formatVisitor) BeforeEnumBitmap(labels []string) {
	f.labels = append(f.labels, labels)
}

func (f *formatVisitor) AfterEnumBitmap() { f.closeLabels() }

func (f *formatVisitor) closeLabels() {
	last := f.labels[len(f.labels)-1]
	f.labels = f.labels[:len(f.labels)-1]
	if len(last) > 0 {
		f.b.WriteString("(" + strings.Join(last, "|") + ")")
	}
}
